package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/domain-activator/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return s
}

func seedMonitoring(t *testing.T, s *Store, apex string) *core.Tenant {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	req, err := core.NewDomainRequest("shop."+apex, core.CanonicalApex, now)
	require.NoError(t, err)

	tenant := &core.Tenant{
		ID:                  uuid.New(),
		Name:                "Shop",
		Email:               "owner@" + apex,
		Domain:              req,
		Status:              core.StatusMonitoring,
		MonitoringStartedAt: &now,
		UpdatedAt:           now,
	}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	return tenant
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	seeded := seedMonitoring(t, s, "example.com")

	got, err := s.GetTenant(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Domain)
	assert.Equal(t, seeded.Domain.ID, got.Domain.ID)
	assert.Equal(t, "example.com", got.Domain.Apex)
	assert.Equal(t, core.CanonicalApex, got.Domain.Canonical)
	assert.Equal(t, core.StatusMonitoring, got.Status)

	list, err := s.ListByStatus(context.Background(), core.StatusMonitoring)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.GetTenant(context.Background(), uuid.New())
	assert.ErrorIs(t, err, core.ErrTenantNotFound)
}

func TestStore_UpdateSingleWinner(t *testing.T) {
	s := openTestStore(t)
	seeded := seedMonitoring(t, s, "example.com")

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var won bool
			_, err := s.Update(context.Background(), seeded.ID, func(tn *core.Tenant) (bool, error) {
				won = tn.Status == core.StatusMonitoring
				if won {
					tn.Status = core.StatusVerifiedActive
				}
				return won, nil
			})
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := s.GetTenant(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusVerifiedActive, got.Status)
}

func TestStore_UpdateRejectsClaimedApex(t *testing.T) {
	s := openTestStore(t)
	seedMonitoring(t, s, "example.com")

	other := &core.Tenant{ID: uuid.New(), Name: "Other", Email: "other@example.org"}
	require.NoError(t, s.CreateTenant(context.Background(), other))

	req, err := core.NewDomainRequest("www.example.com", core.CanonicalWWW, time.Now())
	require.NoError(t, err)

	_, err = s.Update(context.Background(), other.ID, func(tn *core.Tenant) (bool, error) {
		tn.Domain = req
		tn.Status = core.StatusPendingVerification
		return true, nil
	})
	assert.ErrorIs(t, err, core.ErrHostnameInUse)
}
