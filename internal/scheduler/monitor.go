// Package scheduler hosts the monitoring sessions: one goroutine per tenant
// that ticks at a fixed interval until the request is activated, superseded
// or the session deadline passes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/checker"
	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/storage"
	"github.com/leozw/domain-activator/internal/verification"
)

var ErrMonitorStopped = errors.New("monitor stopped")

const (
	outcomeVerified  = "verified"
	outcomeTimedOut  = "timed_out"
	outcomeStopped   = "stopped"
	outcomeCancelled = "cancelled"
)

// Gatherer collects the signals of one tick.
type Gatherer interface {
	Gather(ctx context.Context, req core.DomainRequest) checker.Signals
}

type Monitor struct {
	gatherer  Gatherer
	strategy  verification.Strategy
	finalizer *activation.Finalizer
	tenants   storage.TenantStore
	verdicts  storage.VerdictStore
	clock     clockwork.Clock
	logger    *zap.Logger
	metrics   *metrics.Collector

	interval time.Duration
	timeout  time.Duration

	base context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	stopped  bool
	wg       sync.WaitGroup
}

func NewMonitor(
	gatherer Gatherer,
	finalizer *activation.Finalizer,
	tenants storage.TenantStore,
	verdicts storage.VerdictStore,
	cfg config.MonitorConfig,
	clock clockwork.Clock,
	logger *zap.Logger,
	m *metrics.Collector,
) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	base, stop := context.WithCancel(context.Background())
	return &Monitor{
		gatherer:  gatherer,
		strategy:  verification.Strategy{RequireHealth: cfg.RequireHealth},
		finalizer: finalizer,
		tenants:   tenants,
		verdicts:  verdicts,
		clock:     clock,
		logger:    logger.Named("monitor"),
		metrics:   m,
		interval:  cfg.TickInterval,
		timeout:   cfg.Timeout,
		base:      base,
		stop:      stop,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Start moves the request into monitoring and launches its session. Any
// session the tenant already had for another request is cancelled first.
// Starting a request whose session is already running returns that session.
func (m *Monitor) Start(ctx context.Context, tenantID, requestID uuid.UUID) (SessionInfo, error) {
	tenant, err := m.finalizer.BeginMonitoring(ctx, tenantID, requestID)
	if err != nil {
		return SessionInfo{}, err
	}
	if tenant.Domain == nil || tenant.MonitoringStartedAt == nil {
		return SessionInfo{}, fmt.Errorf("tenant %s has no monitoring start time", tenantID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return SessionInfo{}, ErrMonitorStopped
	}
	if old, ok := m.sessions[tenantID]; ok {
		if old.Request.ID == requestID && old.StartedAt.Equal(*tenant.MonitoringStartedAt) {
			return old.Info(), nil
		}
		old.cancel()
	}

	s := newSession(tenantID, *tenant.Domain, *tenant.MonitoringStartedAt, m.interval, m.timeout)
	m.launch(s)
	return s.Info(), nil
}

// Recheck asks the tenant's live session for an immediate tick.
func (m *Monitor) Recheck(tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[tenantID]
	if !ok {
		return core.ErrSessionNotFound
	}
	s.wake()
	return nil
}

// Cancel stops the tenant's session. A non-nil requestID only cancels a
// session for that request.
func (m *Monitor) Cancel(tenantID, requestID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[tenantID]
	if !ok || (requestID != uuid.Nil && s.Request.ID != requestID) {
		return false
	}
	s.cancel()
	delete(m.sessions, tenantID)
	return true
}

func (m *Monitor) Active(tenantID uuid.UUID) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[tenantID]
	if !ok {
		return SessionInfo{}, false
	}
	return s.Info(), true
}

// Resume relaunches a session for every tenant left in monitoring by a
// previous process. Deadlines keep counting from the stored start time.
func (m *Monitor) Resume(ctx context.Context) (int, error) {
	tenants, err := m.tenants.ListByStatus(ctx, core.StatusMonitoring)
	if err != nil {
		return 0, fmt.Errorf("failed to list monitoring tenants: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return 0, ErrMonitorStopped
	}

	resumed := 0
	for _, t := range tenants {
		if t.Domain == nil || t.MonitoringStartedAt == nil {
			continue
		}
		if _, ok := m.sessions[t.ID]; ok {
			continue
		}
		m.launch(newSession(t.ID, *t.Domain, *t.MonitoringStartedAt, m.interval, m.timeout))
		resumed++
	}

	m.logger.Info("Resumed monitoring sessions", zap.Int("count", resumed))
	return resumed, nil
}

// Handle applies a queued command.
func (m *Monitor) Handle(ctx context.Context, cmd *queue.Command) error {
	switch cmd.Type {
	case queue.CommandStart, queue.CommandRestart:
		_, err := m.Start(ctx, cmd.TenantID, cmd.RequestID)
		return err
	case queue.CommandRecheck:
		return m.Recheck(cmd.TenantID)
	case queue.CommandCancel:
		m.Cancel(cmd.TenantID, cmd.RequestID)
		return nil
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// Stop cancels every session and waits for their goroutines to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.stop()
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Monitor stopped")
}

// launch must be called with m.mu held.
func (m *Monitor) launch(s *Session) {
	ctx, cancel := context.WithCancel(m.base)
	s.cancel = cancel
	m.sessions[s.TenantID] = s

	m.metrics.SessionStarted()
	m.wg.Add(1)
	go m.run(ctx, s)
}

func (m *Monitor) run(ctx context.Context, s *Session) {
	defer m.wg.Done()

	log := m.logger.With(
		zap.String("tenant_id", s.TenantID.String()),
		zap.String("request_id", s.Request.ID.String()),
		zap.String("session_id", s.ID.String()),
		zap.String("hostname", s.Request.Hostname),
	)
	log.Info("Monitoring session started", zap.Time("deadline", s.Deadline))

	outcome := outcomeCancelled
	defer func() {
		m.mu.Lock()
		if m.sessions[s.TenantID] == s {
			delete(m.sessions, s.TenantID)
		}
		m.mu.Unlock()

		s.cancel()
		m.metrics.SessionEnded(outcome)
		log.Info("Monitoring session ended",
			zap.String("outcome", outcome),
			zap.Int64("attempts", s.attempts.Load()),
		)
		close(s.done)
	}()

	for {
		if result, done := m.tick(ctx, s, log); done {
			outcome = result
			return
		}

		timer := m.clock.NewTimer(s.nextWait(m.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			log.Debug("Recheck requested")
		case <-timer.Chan():
		}
	}
}

// tick runs one gather/decide/act cycle and reports whether the session is
// over.
func (m *Monitor) tick(ctx context.Context, s *Session, log *zap.Logger) (string, bool) {
	signals := m.gatherer.Gather(ctx, s.Request)
	if ctx.Err() != nil {
		return outcomeCancelled, true
	}

	verdict := m.strategy.DetermineStatus(signals.DNS, signals.Registrar, signals.Health)
	attempt := s.attempts.Add(1)
	m.metrics.RecordTick(verdict.Reason)

	if m.verdicts != nil {
		stored := storage.StoredVerdict{RequestID: s.Request.ID, Verdict: verdict}
		if err := m.verdicts.SaveVerdict(ctx, s.TenantID, stored); err != nil {
			log.Warn("Failed to store verdict", zap.Error(err))
		}
	}

	log.Info("Verification tick",
		zap.Int64("attempt", attempt),
		zap.Bool("verified", verdict.Verified),
		zap.String("reason", verdict.Reason),
	)

	if verdict.Verified {
		res, err := m.finalizer.Finalize(ctx, s.TenantID, s.Request.ID)
		if err != nil {
			log.Error("Failed to finalize, retrying on next tick", zap.Error(err))
			return "", false
		}
		if res.Outcome == activation.OutcomeActivated || res.Outcome == activation.OutcomeAlreadyActive {
			return outcomeVerified, true
		}
		return outcomeStopped, true
	}

	if m.clock.Now().Before(s.Deadline) {
		return "", false
	}

	expired, err := m.finalizer.Expire(ctx, s.TenantID, s.Request.ID, s.ID, verdict.Reason)
	if err != nil {
		log.Error("Failed to expire session, retrying on next tick", zap.Error(err))
		return "", false
	}
	if !expired {
		return outcomeStopped, true
	}
	return outcomeTimedOut, true
}
