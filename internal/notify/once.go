package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/metrics"
)

// Claimer grants a key to exactly one caller until ttl expires.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Once delivers each (key, event type) pair at most once across every path
// and process sharing the Claimer.
type Once struct {
	next    Notifier
	claims  Claimer
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewOnce(next Notifier, claims Claimer, ttl time.Duration, logger *zap.Logger, m *metrics.Collector) *Once {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Once{
		next:    next,
		claims:  claims,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func ClaimKey(e Event) string {
	return fmt.Sprintf("notify:%s:%s", e.DedupKey(), e.Type)
}

func (o *Once) Notify(ctx context.Context, e Event) error {
	key := ClaimKey(e)

	ok, err := o.claims.Claim(ctx, key, o.ttl)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		o.logger.Debug("Notification already sent",
			zap.String("event", string(e.Type)),
			zap.String("tenant_id", e.TenantID.String()),
			zap.String("key", key),
		)
		return nil
	}

	err = o.next.Notify(ctx, e)
	o.metrics.RecordNotification(string(e.Type), err)
	if err != nil {
		// Give a later caller the chance to deliver it.
		if relErr := o.claims.Release(ctx, key); relErr != nil {
			o.logger.Warn("Failed to release notification claim", zap.String("key", key), zap.Error(relErr))
		}
		return err
	}
	return nil
}

// MemoryClaims is a process-local Claimer.
type MemoryClaims struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{claims: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryClaims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.claims[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryClaims) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.claims, key)
	m.mu.Unlock()
	return nil
}
