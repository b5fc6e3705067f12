package checker

import (
	"context"
	"sync"
	"time"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/metrics"
)

type DomainVerifier interface {
	VerifyBoth(ctx context.Context, req core.DomainRequest) core.DualResult
}

type HealthChecker interface {
	CheckHealth(ctx context.Context, domain string) core.CheckResult
}

type RegistrarChecker interface {
	Check(ctx context.Context, domain string) core.CheckResult
}

// Signals is everything one tick collected, gathered before any verdict.
type Signals struct {
	DNS       core.DualResult
	Registrar core.CheckResult
	Health    core.CheckResult
}

// Analyzer gathers the three signals for a request concurrently.
type Analyzer struct {
	dns       DomainVerifier
	registrar RegistrarChecker
	health    HealthChecker
	metrics   *metrics.Collector
}

func NewAnalyzer(dns DomainVerifier, registrar RegistrarChecker, health HealthChecker, m *metrics.Collector) *Analyzer {
	return &Analyzer{
		dns:       dns,
		registrar: registrar,
		health:    health,
		metrics:   m,
	}
}

func (a *Analyzer) Gather(ctx context.Context, req core.DomainRequest) Signals {
	var (
		wg  sync.WaitGroup
		out Signals
	)
	host := req.CanonicalHost()

	wg.Add(3)
	go func() {
		defer wg.Done()
		start := time.Now()
		out.DNS = a.dns.VerifyBoth(ctx, req)
		a.metrics.ObserveCheck(string(core.SignalDNS), out.DNS.OverallVerified, time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		out.Registrar = a.registrar.Check(ctx, host)
		a.metrics.ObserveCheck(string(core.SignalRegistrar), out.Registrar.Verified, time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		out.Health = a.health.CheckHealth(ctx, host)
		a.metrics.ObserveCheck(string(core.SignalHealth), out.Health.Verified, time.Since(start))
	}()
	wg.Wait()

	return out
}
