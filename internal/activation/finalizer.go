// Package activation owns every write to a tenant's DomainStatus. Each
// transition is a locked read-modify-write through storage.TenantStore.
package activation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/notify"
	"github.com/leozw/domain-activator/internal/storage"
)

type Outcome string

const (
	OutcomeActivated     Outcome = "activated"
	OutcomeAlreadyActive Outcome = "already_active"
	OutcomeSuperseded    Outcome = "superseded"
	OutcomeNotMonitoring Outcome = "not_monitoring"
)

// Result of a Finalize call. Losing the race is not an error: Activated is
// false and Outcome says why.
type Result struct {
	Activated bool    `json:"activated"`
	Outcome   Outcome `json:"outcome"`
}

type Finalizer struct {
	store    storage.TenantStore
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  *metrics.Collector
}

func NewFinalizer(store storage.TenantStore, notifier notify.Notifier, clock clockwork.Clock, logger *zap.Logger, m *metrics.Collector) *Finalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Finalizer{
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger.Named("finalizer"),
		metrics:  m,
	}
}

// Submit records a new request, superseding whatever the tenant had before.
func (f *Finalizer) Submit(ctx context.Context, tenantID uuid.UUID, req *core.DomainRequest) (*core.Tenant, error) {
	return f.store.Update(ctx, tenantID, func(t *core.Tenant) (bool, error) {
		d := *req
		t.Domain = &d
		t.Status = core.StatusPendingVerification
		t.MonitoringStartedAt = nil
		t.VerifiedAt = nil
		return true, nil
	})
}

// BeginMonitoring moves pending_verification or timed_out to monitoring and
// stamps the session start. Calling it again for a request that is already
// monitoring returns the tenant unchanged.
func (f *Finalizer) BeginMonitoring(ctx context.Context, tenantID, requestID uuid.UUID) (*core.Tenant, error) {
	return f.store.Update(ctx, tenantID, func(t *core.Tenant) (bool, error) {
		if !t.CurrentRequest(requestID) {
			return false, fmt.Errorf("%w: request %s is no longer current", core.ErrInvalidTransition, requestID)
		}
		if t.Status == core.StatusMonitoring {
			return false, nil
		}
		if !core.CanTransition(t.Status, core.StatusMonitoring) {
			return false, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, t.Status, core.StatusMonitoring)
		}

		now := f.clock.Now().UTC()
		t.Status = core.StatusMonitoring
		t.MonitoringStartedAt = &now
		return true, nil
	})
}

// Finalize activates the request if, under the tenant lock, it is still
// current and monitoring. Only the call that performs the transition sends
// activation_success.
func (f *Finalizer) Finalize(ctx context.Context, tenantID, requestID uuid.UUID) (Result, error) {
	var res Result

	tenant, err := f.store.Update(ctx, tenantID, func(t *core.Tenant) (bool, error) {
		res = Result{}
		switch {
		case !t.CurrentRequest(requestID):
			res.Outcome = OutcomeSuperseded
			return false, nil
		case t.Status == core.StatusVerifiedActive:
			res.Outcome = OutcomeAlreadyActive
			return false, nil
		case t.Status != core.StatusMonitoring:
			res.Outcome = OutcomeNotMonitoring
			return false, nil
		}

		now := f.clock.Now().UTC()
		t.Status = core.StatusVerifiedActive
		t.VerifiedAt = &now
		res = Result{Activated: true, Outcome: OutcomeActivated}
		return true, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("finalize tenant %s: %w", tenantID, err)
	}

	f.metrics.RecordFinalize(string(res.Outcome), res.Activated)
	log := f.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_id", requestID.String()),
		zap.String("outcome", string(res.Outcome)),
	)
	if !res.Activated {
		log.Info("Finalize was a no-op")
		return res, nil
	}

	log.Info("Custom domain activated", zap.String("hostname", tenant.Domain.Hostname))
	f.send(ctx, log, notify.EventActivationSuccess, tenant, uuid.Nil, "")
	return res, nil
}

// Expire moves a monitoring request to timed_out and sends timeout_help
// once for sessionID. It reports whether the transition happened.
func (f *Finalizer) Expire(ctx context.Context, tenantID, requestID, sessionID uuid.UUID, reason string) (bool, error) {
	var expired bool

	tenant, err := f.store.Update(ctx, tenantID, func(t *core.Tenant) (bool, error) {
		expired = t.CurrentRequest(requestID) && t.Status == core.StatusMonitoring
		if !expired {
			return false, nil
		}
		t.Status = core.StatusTimedOut
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("expire tenant %s: %w", tenantID, err)
	}
	if !expired {
		return false, nil
	}

	f.metrics.RecordTimeout()
	log := f.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_id", requestID.String()),
		zap.String("session_id", sessionID.String()),
	)
	log.Warn("Custom domain verification timed out", zap.String("reason", reason))
	f.send(ctx, log, notify.EventTimeoutHelp, tenant, sessionID, reason)
	return true, nil
}

// Remove drops the tenant's custom domain from any status.
func (f *Finalizer) Remove(ctx context.Context, tenantID uuid.UUID) (*core.Tenant, error) {
	return f.store.Update(ctx, tenantID, func(t *core.Tenant) (bool, error) {
		if t.Domain == nil && t.Status == core.StatusNone {
			return false, core.ErrNoDomainRequest
		}
		if t.Status != core.StatusNone && !core.CanTransition(t.Status, core.StatusNone) {
			return false, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, t.Status, core.StatusNone)
		}
		t.Domain = nil
		t.Status = core.StatusNone
		t.MonitoringStartedAt = nil
		t.VerifiedAt = nil
		return true, nil
	})
}

// send runs after the status write has committed. Delivery failures are
// logged; the transition stands.
func (f *Finalizer) send(ctx context.Context, log *zap.Logger, event notify.EventType, t *core.Tenant, sessionID uuid.UUID, reason string) {
	if f.notifier == nil || t.Domain == nil {
		return
	}
	err := f.notifier.Notify(ctx, notify.Event{
		Type:       event,
		TenantID:   t.ID,
		RequestID:  t.Domain.ID,
		SessionID:  sessionID,
		Email:      t.Email,
		TenantName: t.Name,
		Hostname:   t.Domain.CanonicalHost(),
		Canonical:  string(t.Domain.Canonical),
		Reason:     reason,
		OccurredAt: f.clock.Now().UTC(),
	})
	if err != nil {
		log.Error("Failed to send notification", zap.String("event", string(event)), zap.Error(err))
	}
}
