package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/leozw/domain-activator/internal/core"
)

// HealthProbe issues one bounded GET to the domain root and classifies the
// response. HTTPS is tried first; plain HTTP covers the window before the
// first certificate is issued.
type HealthProbe struct {
	client  *http.Client
	timeout time.Duration
	schemes []string
	now     func() time.Time
}

func NewHealthProbe(timeout time.Duration) *HealthProbe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewHealthProbeWithClient(&http.Client{
		Timeout: timeout,
		// A redirect already proves the platform answered for the host.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, timeout)
}

func NewHealthProbeWithClient(client *http.Client, timeout time.Duration) *HealthProbe {
	return &HealthProbe{
		client:  client,
		timeout: timeout,
		schemes: []string{"https", "http"},
		now:     time.Now,
	}
}

func (h *HealthProbe) CheckHealth(ctx context.Context, domain string) core.CheckResult {
	var last core.CheckResult
	for _, scheme := range h.schemes {
		result, reached := h.probe(ctx, scheme+"://"+domain+"/", domain)
		if reached {
			return result
		}
		last = result
	}
	return last
}

// probe reports reached=false only when no HTTP response came back, so the
// caller knows whether falling back to another scheme makes sense.
func (h *HealthProbe) probe(ctx context.Context, url, domain string) (core.CheckResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.Unverified(core.SignalHealth, domain, core.StateError, "health_error: "+err.Error(), h.now()), false
	}
	req.Header.Set("User-Agent", "DomainActivator/1.0")

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := time.Since(start).Round(time.Millisecond)
	if err != nil {
		if isTimeout(err) {
			return core.Unverified(core.SignalHealth, domain, core.StateError,
				fmt.Sprintf("health_timeout: %s after %s", url, latency), h.now()), false
		}
		return core.Unverified(core.SignalHealth, domain, core.StateError,
			fmt.Sprintf("health_unreachable: %s: %v", url, err), h.now()), false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	detail := fmt.Sprintf("status=%d latency=%s url=%s", resp.StatusCode, latency, url)
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return core.Verified(core.SignalHealth, domain, detail, h.now()), true
	}
	return core.Unverified(core.SignalHealth, domain, core.StateMismatch, detail, h.now()), true
}

// isTimeout covers both the client's own Timeout and the probe deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
