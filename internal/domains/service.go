// Package domains is the request-facing side of custom domain activation:
// it records requests, reports status and hands session work to the
// monitor through a Dispatcher.
package domains

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/notify"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/storage"
)

// Dispatcher delivers session commands to whatever hosts the monitor.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *queue.Command) error
}

// RegistrarHinter names the registrar a domain is held at, or "".
type RegistrarHinter interface {
	RegistrarName(ctx context.Context, domain string) string
}

// Status is what a tenant sees for its custom domain.
type Status struct {
	Status              core.DomainStatus   `json:"status"`
	Request             *core.DomainRequest `json:"request"`
	Verdict             *core.Verdict       `json:"verdict"`
	Message             string              `json:"message"`
	MonitoringStartedAt *time.Time          `json:"monitoring_started_at,omitempty"`
	VerifiedAt          *time.Time          `json:"verified_at,omitempty"`
}

type Service struct {
	tenants    storage.TenantStore
	verdicts   storage.VerdictStore
	finalizer  *activation.Finalizer
	dispatcher Dispatcher
	notifier   notify.Notifier
	hinter     RegistrarHinter
	target     core.PlatformTarget
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewService(
	tenants storage.TenantStore,
	verdicts storage.VerdictStore,
	finalizer *activation.Finalizer,
	dispatcher Dispatcher,
	notifier notify.Notifier,
	hinter RegistrarHinter,
	target core.PlatformTarget,
	clock clockwork.Clock,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		tenants:    tenants,
		verdicts:   verdicts,
		finalizer:  finalizer,
		dispatcher: dispatcher,
		notifier:   notifier,
		hinter:     hinter,
		target:     target,
		clock:      clock,
		logger:     logger.Named("domains"),
	}
}

// Submit validates and records a new request, sends the setup instructions
// and asks the monitor to start. A previous request of the tenant is
// superseded.
func (s *Service) Submit(ctx context.Context, tenantID uuid.UUID, hostname string, canonical core.Canonical) (*Status, error) {
	if err := s.target.Validate(); err != nil {
		return nil, err
	}
	req, err := core.NewDomainRequest(hostname, canonical, s.clock.Now())
	if err != nil {
		return nil, err
	}

	tenant, err := s.finalizer.Submit(ctx, tenantID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to record domain request: %w", err)
	}

	log := s.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_id", req.ID.String()),
		zap.String("hostname", req.Hostname),
	)
	log.Info("Custom domain requested", zap.String("canonical", string(req.Canonical)))

	s.forgetVerdict(ctx, log, tenantID)
	s.sendSetup(ctx, log, tenant)

	if err := s.dispatch(ctx, queue.CommandStart, tenantID, req.ID); err != nil {
		return nil, err
	}
	return s.status(ctx, tenant), nil
}

// Restart re-enters monitoring for a request that timed out.
func (s *Service) Restart(ctx context.Context, tenantID uuid.UUID) (*Status, error) {
	tenant, err := s.requireStatus(ctx, tenantID, core.StatusTimedOut)
	if err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, queue.CommandRestart, tenantID, tenant.Domain.ID); err != nil {
		return nil, err
	}
	return s.status(ctx, tenant), nil
}

// Recheck asks the live session for an immediate tick.
func (s *Service) Recheck(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.requireStatus(ctx, tenantID, core.StatusMonitoring)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, queue.CommandRecheck, tenantID, tenant.Domain.ID)
}

// Remove drops the custom domain and stops its session.
func (s *Service) Remove(ctx context.Context, tenantID uuid.UUID) error {
	before, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if _, err := s.finalizer.Remove(ctx, tenantID); err != nil {
		return err
	}

	log := s.logger.With(zap.String("tenant_id", tenantID.String()))
	log.Info("Custom domain removed")
	s.forgetVerdict(ctx, log, tenantID)

	requestID := uuid.Nil
	if before.Domain != nil {
		requestID = before.Domain.ID
	}
	return s.dispatch(ctx, queue.CommandCancel, tenantID, requestID)
}

// Status reports the tenant's activation state and the latest verdict for
// its current request, without running a check.
func (s *Service) Status(ctx context.Context, tenantID uuid.UUID) (*Status, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, tenant), nil
}

func (s *Service) status(ctx context.Context, t *core.Tenant) *Status {
	st := &Status{
		Status:              t.Status,
		Request:             t.Domain,
		Message:             t.Status.UserMessage(),
		MonitoringStartedAt: t.MonitoringStartedAt,
		VerifiedAt:          t.VerifiedAt,
	}
	if t.Domain == nil || s.verdicts == nil {
		return st
	}

	stored, err := s.verdicts.LatestVerdict(ctx, t.ID)
	if err != nil {
		s.logger.Warn("Failed to load latest verdict", zap.String("tenant_id", t.ID.String()), zap.Error(err))
		return st
	}
	if stored != nil && stored.RequestID == t.Domain.ID {
		v := stored.Verdict
		st.Verdict = &v
	}
	return st
}

func (s *Service) requireStatus(ctx context.Context, tenantID uuid.UUID, want core.DomainStatus) (*core.Tenant, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Domain == nil {
		return nil, core.ErrNoDomainRequest
	}
	if tenant.Status != want {
		return nil, fmt.Errorf("%w: status is %s, expected %s", core.ErrInvalidTransition, tenant.Status, want)
	}
	return tenant, nil
}

func (s *Service) dispatch(ctx context.Context, t queue.CommandType, tenantID, requestID uuid.UUID) error {
	if err := s.dispatcher.Dispatch(ctx, queue.NewCommand(t, tenantID, requestID)); err != nil {
		return fmt.Errorf("failed to dispatch %s command: %w", t, err)
	}
	return nil
}

func (s *Service) forgetVerdict(ctx context.Context, log *zap.Logger, tenantID uuid.UUID) {
	if s.verdicts == nil {
		return
	}
	if err := s.verdicts.DeleteVerdict(ctx, tenantID); err != nil {
		log.Warn("Failed to clear cached verdict", zap.Error(err))
	}
}

func (s *Service) sendSetup(ctx context.Context, log *zap.Logger, t *core.Tenant) {
	if s.notifier == nil {
		return
	}
	req := t.Domain

	var hint string
	if s.hinter != nil {
		hint = s.hinter.RegistrarName(ctx, req.Apex)
	}

	err := s.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventSetupInstructions,
		TenantID:      t.ID,
		RequestID:     req.ID,
		Email:         t.Email,
		TenantName:    t.Name,
		Hostname:      req.CanonicalHost(),
		Canonical:     string(req.Canonical),
		CNAMETarget:   s.target.NormalizedCNAME(),
		ARecords:      s.target.ARecords,
		RegistrarHint: hint,
		OccurredAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		log.Error("Failed to send setup instructions", zap.Error(err))
	}
}
