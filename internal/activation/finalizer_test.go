package activation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/notify"
	"github.com/leozw/domain-activator/internal/notify/notifytest"
	"github.com/leozw/domain-activator/internal/storage/memory"
)

type fixture struct {
	store     *memory.Store
	recorder  *notifytest.Recorder
	clock     *clockwork.FakeClock
	finalizer *Finalizer
	tenantID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		recorder: &notifytest.Recorder{},
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		tenantID: uuid.New(),
	}
	f.store.Put(&core.Tenant{ID: f.tenantID, Name: "Example Shop", Email: "owner@example.com"})
	f.finalizer = NewFinalizer(f.store, f.recorder, f.clock, zap.NewNop(), nil)
	return f
}

// monitoring submits a request and starts monitoring it.
func (f *fixture) monitoring(t *testing.T, hostname string) *core.DomainRequest {
	t.Helper()
	req, err := core.NewDomainRequest(hostname, core.CanonicalApex, f.clock.Now())
	require.NoError(t, err)

	_, err = f.finalizer.Submit(context.Background(), f.tenantID, req)
	require.NoError(t, err)
	tenant, err := f.finalizer.BeginMonitoring(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusMonitoring, tenant.Status)
	return req
}

func TestFinalizer_FinalizeTwiceInSequence(t *testing.T) {
	f := newFixture(t)
	req := f.monitoring(t, "shop.example.com")

	res, err := f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Activated: true, Outcome: OutcomeActivated}, res)

	res, err = f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Activated: false, Outcome: OutcomeAlreadyActive}, res)

	tenant, err := f.store.GetTenant(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusVerifiedActive, tenant.Status)
	require.NotNil(t, tenant.VerifiedAt)
	assert.Equal(t, f.clock.Now().UTC(), *tenant.VerifiedAt)

	assert.Equal(t, 1, f.recorder.Count(notify.EventActivationSuccess))
	ev := f.recorder.Events()[0]
	assert.Equal(t, req.ID, ev.RequestID)
	assert.Equal(t, "example.com", ev.Hostname)
	assert.Equal(t, "owner@example.com", ev.Email)
}

func TestFinalizer_ConcurrentFinalize(t *testing.T) {
	f := newFixture(t)
	req := f.monitoring(t, "shop.example.com")

	const callers = 16
	results := make([]Result, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	activated := 0
	for _, r := range results {
		if r.Activated {
			activated++
		} else {
			assert.Equal(t, OutcomeAlreadyActive, r.Outcome)
		}
	}
	assert.Equal(t, 1, activated)
	assert.Equal(t, 1, f.recorder.Count(notify.EventActivationSuccess))
}

func TestFinalizer_SupersededRequestIsIgnored(t *testing.T) {
	f := newFixture(t)
	old := f.monitoring(t, "shop.example.com")
	current := f.monitoring(t, "store.example.org")

	res, err := f.finalizer.Finalize(context.Background(), f.tenantID, old.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuperseded, res.Outcome)
	assert.False(t, res.Activated)

	tenant, err := f.store.GetTenant(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusMonitoring, tenant.Status)
	assert.Equal(t, current.ID, tenant.Domain.ID)
	assert.Zero(t, f.recorder.Count(notify.EventActivationSuccess))
}

func TestFinalizer_ExpireThenRestart(t *testing.T) {
	f := newFixture(t)
	req := f.monitoring(t, "shop.example.com")
	session := uuid.New()

	expired, err := f.finalizer.Expire(context.Background(), f.tenantID, req.ID, session, "dns_unverified")
	require.NoError(t, err)
	assert.True(t, expired)

	// A second expiry for the same session is a no-op.
	expired, err = f.finalizer.Expire(context.Background(), f.tenantID, req.ID, session, "dns_unverified")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, 1, f.recorder.Count(notify.EventTimeoutHelp))
	assert.Equal(t, "dns_unverified", f.recorder.Events()[0].Reason)

	res, err := f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotMonitoring, res.Outcome)

	f.clock.Advance(2 * time.Hour)
	tenant, err := f.finalizer.BeginMonitoring(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusMonitoring, tenant.Status)
	assert.Equal(t, f.clock.Now().UTC(), *tenant.MonitoringStartedAt)
}

func TestFinalizer_BeginMonitoringRejectsActive(t *testing.T) {
	f := newFixture(t)
	req := f.monitoring(t, "shop.example.com")
	_, err := f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)

	_, err = f.finalizer.BeginMonitoring(context.Background(), f.tenantID, req.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = f.finalizer.BeginMonitoring(context.Background(), f.tenantID, uuid.New())
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestFinalizer_Remove(t *testing.T) {
	f := newFixture(t)
	req := f.monitoring(t, "shop.example.com")
	_, err := f.finalizer.Finalize(context.Background(), f.tenantID, req.ID)
	require.NoError(t, err)

	tenant, err := f.finalizer.Remove(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusNone, tenant.Status)
	assert.Nil(t, tenant.Domain)

	_, err = f.finalizer.Remove(context.Background(), f.tenantID)
	assert.ErrorIs(t, err, core.ErrNoDomainRequest)

	_, err = f.finalizer.Remove(context.Background(), uuid.New())
	assert.ErrorIs(t, err, core.ErrTenantNotFound)
}
