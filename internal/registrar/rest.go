package registrar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// REST talks to a hosting provider exposing
//
//	GET  /domains?name=<domain>   -> [{"id": "...", "name": "..."}]
//	POST /domains/<id>/verify     -> {"verified": bool}
type REST struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewREST(baseURL, token string, requestsPerSecond float64, timeout time.Duration) *REST {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}
	return &REST{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *REST) FindDomainByName(ctx context.Context, name string) (*DomainRecord, error) {
	endpoint := c.baseURL + "/domains?name=" + url.QueryEscape(name)

	var records []DomainRecord
	status, err := c.do(ctx, http.MethodGet, endpoint, &records)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	for i := range records {
		if strings.EqualFold(strings.TrimSuffix(records[i].Name, "."), name) {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (c *REST) VerifyDomain(ctx context.Context, domain *DomainRecord) (bool, error) {
	if domain == nil || domain.ID == "" {
		return false, fmt.Errorf("%w: domain record without id", ErrUnexpectedResponse)
	}
	endpoint := c.baseURL + "/domains/" + url.PathEscape(domain.ID) + "/verify"

	var body struct {
		Verified bool `json:"verified"`
	}
	status, err := c.do(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	return body.Verified, nil
}

// do returns the status code for 2xx and 404 responses and decodes 2xx
// bodies into out. Anything else is an error.
func (c *REST) do(ctx context.Context, method, endpoint string, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedResponse, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode body: %v", ErrUnexpectedResponse, err)
	}
	return resp.StatusCode, nil
}
