// Package registrar wraps third-party hosting providers' domain APIs.
//
// Implementations return (nil, nil) from FindDomainByName when the provider
// has no record of the domain yet; that is a normal state while DNS
// propagates, not a failure.
package registrar

import (
	"context"
	"errors"
)

var ErrUnexpectedResponse = errors.New("unexpected registrar response")

// DomainRecord is the provider's view of a custom domain.
type DomainRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client interface {
	FindDomainByName(ctx context.Context, name string) (*DomainRecord, error)
	VerifyDomain(ctx context.Context, domain *DomainRecord) (bool, error)
}
