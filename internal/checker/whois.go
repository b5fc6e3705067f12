package checker

import (
	"context"
	"strings"
	"time"

	"github.com/likexian/whois"
)

// WHOISLookup finds the registrar a domain was bought from, so setup
// instructions can tell the tenant where to edit their DNS.
type WHOISLookup struct {
	timeout time.Duration
	query   func(domain string) (string, error)
}

func NewWHOISLookup(timeout time.Duration) *WHOISLookup {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WHOISLookup{
		timeout: timeout,
		query: func(domain string) (string, error) {
			return whois.Whois(domain)
		},
	}
}

// RegistrarName is best effort: any failure yields "".
func (w *WHOISLookup) RegistrarName(ctx context.Context, domain string) string {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		raw, err := w.query(domain)
		if err != nil {
			done <- ""
			return
		}
		done <- parseRegistrar(raw)
	}()

	select {
	case <-ctx.Done():
		return ""
	case name := <-done:
		return name
	}
}

func parseRegistrar(raw string) string {
	prefixes := []string{
		"registrar:",
		"registrar name:",
		"sponsoring registrar:",
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, prefix := range prefixes {
			if strings.HasPrefix(lower, prefix) {
				if name := strings.TrimSpace(line[len(prefix):]); name != "" {
					return name
				}
			}
		}
	}
	return ""
}
