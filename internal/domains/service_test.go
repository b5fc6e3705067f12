package domains

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/notify"
	"github.com/leozw/domain-activator/internal/notify/notifytest"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/storage"
	"github.com/leozw/domain-activator/internal/storage/memory"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	cmds []*queue.Command
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cmd *queue.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.cmds = append(d.cmds, cmd)
	return nil
}

func (d *recordingDispatcher) last(t *testing.T) *queue.Command {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.cmds)
	return d.cmds[len(d.cmds)-1]
}

type fixedHint string

func (h fixedHint) RegistrarName(context.Context, string) string { return string(h) }

var target = core.PlatformTarget{CNAME: "sites.platform.test.", ARecords: []string{"203.0.113.10"}}

type fixture struct {
	store      *memory.Store
	recorder   *notifytest.Recorder
	dispatcher *recordingDispatcher
	clock      *clockwork.FakeClock
	finalizer  *activation.Finalizer
	service    *Service
	tenantID   uuid.UUID
}

func newFixture(t *testing.T, pt core.PlatformTarget) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.NewStore(),
		recorder:   &notifytest.Recorder{},
		dispatcher: &recordingDispatcher{},
		clock:      clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		tenantID:   uuid.New(),
	}
	f.store.Put(&core.Tenant{ID: f.tenantID, Name: "Example Shop", Email: "owner@example.com"})
	f.finalizer = activation.NewFinalizer(f.store, f.recorder, f.clock, zap.NewNop(), nil)
	f.service = NewService(f.store, f.store, f.finalizer, f.dispatcher, f.recorder, fixedHint("Example Registrar, Inc."), pt, f.clock, zap.NewNop())
	return f
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t, target)

	st, err := f.service.Submit(context.Background(), f.tenantID, "https://Shop.Example.com/", core.CanonicalWWW)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPendingVerification, st.Status)
	assert.Equal(t, "still verifying", st.Message)
	require.NotNil(t, st.Request)
	assert.Equal(t, "shop.example.com", st.Request.Hostname)
	assert.Equal(t, "example.com", st.Request.Apex)
	assert.Nil(t, st.Verdict)

	cmd := f.dispatcher.last(t)
	assert.Equal(t, queue.CommandStart, cmd.Type)
	assert.Equal(t, st.Request.ID, cmd.RequestID)

	require.Equal(t, 1, f.recorder.Count(notify.EventSetupInstructions))
	ev := f.recorder.Events()[0]
	assert.Equal(t, "www.example.com", ev.Hostname)
	assert.Equal(t, "sites.platform.test", ev.CNAMETarget)
	assert.Equal(t, []string{"203.0.113.10"}, ev.ARecords)
	assert.Equal(t, "Example Registrar, Inc.", ev.RegistrarHint)
}

func TestService_SubmitConfigurationErrors(t *testing.T) {
	t.Run("invalid hostname", func(t *testing.T) {
		f := newFixture(t, target)
		_, err := f.service.Submit(context.Background(), f.tenantID, "not a domain", core.CanonicalApex)

		var cfgErr *core.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "hostname", cfgErr.Field)
	})

	t.Run("missing platform target", func(t *testing.T) {
		f := newFixture(t, core.PlatformTarget{})
		_, err := f.service.Submit(context.Background(), f.tenantID, "shop.example.com", core.CanonicalApex)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		f := newFixture(t, target)
		_, err := f.service.Submit(context.Background(), uuid.New(), "shop.example.com", core.CanonicalApex)
		assert.ErrorIs(t, err, core.ErrTenantNotFound)
	})
}

func TestService_SubmitDispatchFailure(t *testing.T) {
	f := newFixture(t, target)
	f.dispatcher.err = errors.New("queue unavailable")

	_, err := f.service.Submit(context.Background(), f.tenantID, "shop.example.com", core.CanonicalApex)
	assert.ErrorContains(t, err, "queue unavailable")
}

func TestService_RestartRequiresTimedOut(t *testing.T) {
	f := newFixture(t, target)
	ctx := context.Background()

	_, err := f.service.Restart(ctx, f.tenantID)
	assert.ErrorIs(t, err, core.ErrNoDomainRequest)

	st, err := f.service.Submit(ctx, f.tenantID, "shop.example.com", core.CanonicalApex)
	require.NoError(t, err)

	_, err = f.service.Restart(ctx, f.tenantID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = f.finalizer.BeginMonitoring(ctx, f.tenantID, st.Request.ID)
	require.NoError(t, err)
	_, err = f.finalizer.Expire(ctx, f.tenantID, st.Request.ID, uuid.New(), "dns_unverified")
	require.NoError(t, err)

	restarted, err := f.service.Restart(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, "timed out, contact support", restarted.Message)

	cmd := f.dispatcher.last(t)
	assert.Equal(t, queue.CommandRestart, cmd.Type)
	assert.Equal(t, st.Request.ID, cmd.RequestID)
}

func TestService_RecheckRequiresMonitoring(t *testing.T) {
	f := newFixture(t, target)
	ctx := context.Background()

	st, err := f.service.Submit(ctx, f.tenantID, "shop.example.com", core.CanonicalApex)
	require.NoError(t, err)
	assert.ErrorIs(t, f.service.Recheck(ctx, f.tenantID), core.ErrInvalidTransition)

	_, err = f.finalizer.BeginMonitoring(ctx, f.tenantID, st.Request.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.Recheck(ctx, f.tenantID))
	assert.Equal(t, queue.CommandRecheck, f.dispatcher.last(t).Type)
}

func TestService_Remove(t *testing.T) {
	f := newFixture(t, target)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Remove(ctx, f.tenantID), core.ErrNoDomainRequest)

	st, err := f.service.Submit(ctx, f.tenantID, "shop.example.com", core.CanonicalApex)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveVerdict(ctx, f.tenantID, storage.StoredVerdict{RequestID: st.Request.ID}))

	require.NoError(t, f.service.Remove(ctx, f.tenantID))
	cmd := f.dispatcher.last(t)
	assert.Equal(t, queue.CommandCancel, cmd.Type)
	assert.Equal(t, st.Request.ID, cmd.RequestID)

	after, err := f.service.Status(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusNone, after.Status)
	assert.Equal(t, "no custom domain", after.Message)
	assert.Nil(t, after.Request)
	assert.Nil(t, after.Verdict)
}

func TestService_StatusIgnoresStaleVerdict(t *testing.T) {
	f := newFixture(t, target)
	ctx := context.Background()

	st, err := f.service.Submit(ctx, f.tenantID, "shop.example.com", core.CanonicalApex)
	require.NoError(t, err)

	verdict := core.Verdict{Verified: false, Reason: "dns_unverified", DecidedAt: f.clock.Now()}
	require.NoError(t, f.store.SaveVerdict(ctx, f.tenantID, storage.StoredVerdict{RequestID: uuid.New(), Verdict: verdict}))

	got, err := f.service.Status(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Nil(t, got.Verdict)

	require.NoError(t, f.store.SaveVerdict(ctx, f.tenantID, storage.StoredVerdict{RequestID: st.Request.ID, Verdict: verdict}))
	got, err = f.service.Status(ctx, f.tenantID)
	require.NoError(t, err)
	require.NotNil(t, got.Verdict)
	assert.Equal(t, "dns_unverified", got.Verdict.Reason)
}
