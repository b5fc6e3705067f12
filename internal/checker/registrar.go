package checker

import (
	"context"
	"time"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/registrar"
)

// RegistrarCheck folds a registrar client's answers and failures into a
// CheckResult so a flaky third party never reaches the monitor as an error.
type RegistrarCheck struct {
	client  registrar.Client
	timeout time.Duration
	now     func() time.Time
}

// NewRegistrarCheck accepts a nil client for deployments whose hosting
// provider exposes no verification API.
func NewRegistrarCheck(client registrar.Client, timeout time.Duration) *RegistrarCheck {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RegistrarCheck{client: client, timeout: timeout, now: time.Now}
}

func (r *RegistrarCheck) Check(ctx context.Context, domain string) core.CheckResult {
	if r.client == nil {
		return core.Unverified(core.SignalRegistrar, domain, core.StateUnconfigured, "registrar_disabled", r.now())
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	record, err := r.client.FindDomainByName(ctx, domain)
	if err != nil {
		return core.Unverified(core.SignalRegistrar, domain, core.StateError, "registrar_error:"+err.Error(), r.now())
	}
	if record == nil {
		// Expected while the provider has not picked the domain up yet.
		return core.Unverified(core.SignalRegistrar, domain, core.StateUnconfigured, "registrar_domain_not_found", r.now())
	}

	verified, err := r.client.VerifyDomain(ctx, record)
	if err != nil {
		return core.Unverified(core.SignalRegistrar, domain, core.StateError, "registrar_error:"+err.Error(), r.now())
	}
	if !verified {
		return core.Unverified(core.SignalRegistrar, domain, core.StateMismatch, "registrar_pending id="+record.ID, r.now())
	}
	return core.Verified(core.SignalRegistrar, domain, "registrar_verified id="+record.ID, r.now())
}
