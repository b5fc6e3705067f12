package checker

import (
	"context"
	"sync"

	"github.com/leozw/domain-activator/internal/core"
)

// CNAMEVerifier is the single-domain check DualVerifier fans out to.
type CNAMEVerifier interface {
	VerifyCNAME(ctx context.Context, domain string) core.CheckResult
}

// DualVerifier checks the apex and www forms of a request independently and
// reduces them to one verdict honoring the canonical preference.
type DualVerifier struct {
	dns CNAMEVerifier
}

func NewDualVerifier(dns CNAMEVerifier) *DualVerifier {
	return &DualVerifier{dns: dns}
}

func (v *DualVerifier) VerifyBoth(ctx context.Context, req core.DomainRequest) core.DualResult {
	var (
		wg        sync.WaitGroup
		apex, www core.CheckResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		apex = v.dns.VerifyCNAME(ctx, req.Apex)
	}()
	go func() {
		defer wg.Done()
		www = v.dns.VerifyCNAME(ctx, req.WWW())
	}()
	wg.Wait()

	return core.DualResult{
		Canonical:       req.Canonical,
		Apex:            apex,
		WWW:             www,
		OverallVerified: Reduce(req.Canonical, apex, www),
	}
}

// Reduce requires the canonical form to verify. The other form may lag
// behind (unconfigured) or alias the canonical host, but must not point
// somewhere else.
func Reduce(canonical core.Canonical, apex, www core.CheckResult) bool {
	primary, secondary := apex, www
	if canonical == core.CanonicalWWW {
		primary, secondary = www, apex
	}
	if !primary.Verified {
		return false
	}
	return !secondary.Conflicts() || secondary.AliasOf(primary.Target)
}
