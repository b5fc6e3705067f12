// Package verification turns the signals of one monitoring tick into a
// single verdict.
package verification

import (
	"time"

	"github.com/leozw/domain-activator/internal/core"
)

const (
	ReasonDNSAndRegistrar     = "dns_and_registrar_confirmed"
	ReasonDNSAndHealth        = "dns_and_health_confirmed"
	ReasonDNSUnverified       = "dns_unverified"
	ReasonRegistrarUnverified = "registrar_unverified"
	ReasonHealthUnverified    = "health_unverified"
)

// Strategy is a pure function of its inputs. RequireHealth disables the
// registrar shortcut so that a live HTTP response is always needed.
type Strategy struct {
	RequireHealth bool
}

// DetermineStatus applies the default strategy.
func DetermineStatus(dns core.DualResult, registrar, health core.CheckResult) core.Verdict {
	return Strategy{}.DetermineStatus(dns, registrar, health)
}

// DetermineStatus evaluates, in order:
//  1. registrar and DNS verified
//  2. DNS and health verified
//  3. otherwise unverified, blaming DNS first, then registrar, then health.
func (s Strategy) DetermineStatus(dns core.DualResult, registrar, health core.CheckResult) core.Verdict {
	summary := dns.Summary()
	v := core.Verdict{
		Signals:   []core.CheckResult{summary, registrar, health},
		DecidedAt: latest(summary, registrar, health),
	}

	switch {
	case !s.RequireHealth && dns.OverallVerified && registrar.Verified:
		v.Verified = true
		v.Reason = ReasonDNSAndRegistrar
	case dns.OverallVerified && health.Verified:
		v.Verified = true
		v.Reason = ReasonDNSAndHealth
	case !dns.OverallVerified:
		v.Reason = ReasonDNSUnverified
	case !registrar.Verified:
		v.Reason = ReasonRegistrarUnverified
	default:
		v.Reason = ReasonHealthUnverified
	}
	return v
}

// latest keeps DecidedAt a function of the inputs rather than the wall clock.
func latest(results ...core.CheckResult) time.Time {
	var t time.Time
	for _, r := range results {
		if r.ObservedAt.After(t) {
			t = r.ObservedAt
		}
	}
	return t
}
