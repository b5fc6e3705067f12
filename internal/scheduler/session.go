package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/domain-activator/internal/core"
)

// Session is one bounded monitoring run for a tenant's current request.
// Its ticks run on a single goroutine and therefore never overlap.
type Session struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Request      core.DomainRequest
	StartedAt    time.Time
	Deadline     time.Time
	TickInterval time.Duration

	attempts atomic.Int64
	cancel   context.CancelFunc
	kick     chan struct{}
	done     chan struct{}
}

// SessionInfo is a read-only snapshot of a Session.
type SessionInfo struct {
	ID           uuid.UUID     `json:"id"`
	TenantID     uuid.UUID     `json:"tenant_id"`
	RequestID    uuid.UUID     `json:"request_id"`
	Hostname     string        `json:"hostname"`
	StartedAt    time.Time     `json:"started_at"`
	Deadline     time.Time     `json:"deadline"`
	TickInterval time.Duration `json:"tick_interval"`
	Attempts     int64         `json:"attempts"`
}

func newSession(tenantID uuid.UUID, req core.DomainRequest, startedAt time.Time, interval, timeout time.Duration) *Session {
	return &Session{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Request:      req,
		StartedAt:    startedAt,
		Deadline:     startedAt.Add(timeout),
		TickInterval: interval,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		TenantID:     s.TenantID,
		RequestID:    s.Request.ID,
		Hostname:     s.Request.Hostname,
		StartedAt:    s.StartedAt,
		Deadline:     s.Deadline,
		TickInterval: s.TickInterval,
		Attempts:     s.attempts.Load(),
	}
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// wake requests an immediate tick. Pending wake-ups coalesce.
func (s *Session) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// nextWait is how long to sleep before the next tick: the regular interval,
// cut short so the final tick lands on the deadline.
func (s *Session) nextWait(now time.Time) time.Duration {
	remaining := s.Deadline.Sub(now)
	if remaining <= 0 {
		return s.TickInterval
	}
	return min(s.TickInterval, remaining)
}
