// Package memory holds process-local stores for tests and single-node runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]*core.Tenant
	verdicts map[uuid.UUID]storage.StoredVerdict
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		tenants:  make(map[uuid.UUID]*core.Tenant),
		verdicts: make(map[uuid.UUID]storage.StoredVerdict),
		now:      time.Now,
	}
}

// Put inserts or replaces a tenant.
func (s *Store) Put(t *core.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = core.StatusNone
	}
	s.tenants[t.ID] = t.Clone()
}

func (s *Store) GetTenant(_ context.Context, id uuid.UUID) (*core.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, core.ErrTenantNotFound
	}
	return t.Clone(), nil
}

func (s *Store) ListByStatus(_ context.Context, status core.DomainStatus) ([]*core.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.Tenant
	for _, t := range s.tenants {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) Update(_ context.Context, id uuid.UUID, fn storage.UpdateFunc) (*core.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tenants[id]
	if !ok {
		return nil, core.ErrTenantNotFound
	}

	t := current.Clone()
	changed, err := fn(t)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}
	if s.apexClaimed(t) {
		return nil, core.ErrHostnameInUse
	}

	t.UpdatedAt = s.now().UTC()
	s.tenants[id] = t
	return t.Clone(), nil
}

// apexClaimed mirrors the partial unique index on tenants.domain_apex.
func (s *Store) apexClaimed(t *core.Tenant) bool {
	if t.Domain == nil || t.Status == core.StatusNone {
		return false
	}
	for id, other := range s.tenants {
		if id != t.ID && other.Domain != nil && other.Status != core.StatusNone && other.Domain.Apex == t.Domain.Apex {
			return true
		}
	}
	return false
}

func (s *Store) SaveVerdict(_ context.Context, tenantID uuid.UUID, v storage.StoredVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[tenantID] = v
	return nil
}

func (s *Store) LatestVerdict(_ context.Context, tenantID uuid.UUID) (*storage.StoredVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verdicts[tenantID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) DeleteVerdict(_ context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verdicts, tenantID)
	return nil
}
