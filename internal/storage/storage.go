// Package storage defines the persistence boundaries of the activation
// engine. Implementations live in the postgres, sqlite, memory and redis
// subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/leozw/domain-activator/internal/core"
)

// ErrConflict is returned when an optimistic update kept losing to
// concurrent writers.
var ErrConflict = errors.New("concurrent tenant update")

// UpdateFunc mutates t in place. Returning false leaves the record untouched.
// Optimistic stores may call it more than once; only the last call counts.
type UpdateFunc func(t *core.Tenant) (bool, error)

type TenantStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*core.Tenant, error)
	ListByStatus(ctx context.Context, status core.DomainStatus) ([]*core.Tenant, error)

	// Update runs fn while holding an exclusive lock on the tenant record and
	// returns the record as it is after the call, whether or not fn wrote.
	// fn must be quick and must not call out to other systems.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*core.Tenant, error)
}

// StoredVerdict is the most recent verdict for a tenant's request.
type StoredVerdict struct {
	RequestID uuid.UUID    `json:"request_id"`
	Verdict   core.Verdict `json:"verdict"`
}

type VerdictStore interface {
	SaveVerdict(ctx context.Context, tenantID uuid.UUID, v StoredVerdict) error
	// LatestVerdict returns nil without error when nothing is stored.
	LatestVerdict(ctx context.Context, tenantID uuid.UUID) (*StoredVerdict, error)
	DeleteVerdict(ctx context.Context, tenantID uuid.UUID) error
}
