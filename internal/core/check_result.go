package core

import (
	"fmt"
	"strings"
	"time"
)

type Signal string

const (
	SignalDNS       Signal = "dns"
	SignalRegistrar Signal = "registrar"
	SignalHealth    Signal = "health"
)

// CheckState refines Verified=false into the cases the dual-domain rule
// needs to tell apart.
type CheckState string

const (
	StateVerified     CheckState = "verified"
	StateUnconfigured CheckState = "unconfigured"
	StateMismatch     CheckState = "mismatch"
	StateError        CheckState = "error"
)

// CheckResult is one signal's outcome for one tick. It is never cached
// across ticks.
type CheckResult struct {
	Signal     Signal     `json:"signal"`
	Target     string     `json:"target,omitempty"`
	Verified   bool       `json:"verified"`
	State      CheckState `json:"state"`
	Detail     string     `json:"detail"`
	// Alias is the CNAME target the domain resolved through, if any.
	Alias      string     `json:"alias,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}

func Verified(signal Signal, target, detail string, at time.Time) CheckResult {
	return CheckResult{Signal: signal, Target: target, Verified: true, State: StateVerified, Detail: detail, ObservedAt: at}
}

func Unverified(signal Signal, target string, state CheckState, detail string, at time.Time) CheckResult {
	return CheckResult{Signal: signal, Target: target, State: state, Detail: detail, ObservedAt: at}
}

// Conflicts reports whether the result actively contradicts the platform
// target, as opposed to simply being unconfigured.
func (r CheckResult) Conflicts() bool {
	return !r.Verified && r.State != StateUnconfigured
}

// AliasOf reports whether the result is a CNAME onto host.
func (r CheckResult) AliasOf(host string) bool {
	return r.Alias != "" && strings.EqualFold(r.Alias, host)
}

// DualResult is the DualDomainVerifier outcome for the apex and www forms.
type DualResult struct {
	Canonical       Canonical   `json:"canonical"`
	Apex            CheckResult `json:"apex"`
	WWW             CheckResult `json:"www"`
	OverallVerified bool        `json:"overall_verified"`
}

// Summary folds the dual result into a single dns CheckResult for a Verdict.
func (d DualResult) Summary() CheckResult {
	primary, secondary := d.Apex, d.WWW
	if d.Canonical == CanonicalWWW {
		primary, secondary = d.WWW, d.Apex
	}

	detail := fmt.Sprintf("%s: %s; %s: %s", primary.Target, primary.Detail, secondary.Target, secondary.Detail)
	observed := primary.ObservedAt
	if secondary.ObservedAt.After(observed) {
		observed = secondary.ObservedAt
	}

	if d.OverallVerified {
		return Verified(SignalDNS, primary.Target, detail, observed)
	}
	state := primary.State
	if primary.Verified {
		state = secondary.State
	}
	return Unverified(SignalDNS, primary.Target, state, detail, observed)
}

// Verdict is the VerificationStrategy output for one tick.
type Verdict struct {
	Verified  bool          `json:"verified"`
	Reason    string        `json:"reason"`
	Signals   []CheckResult `json:"signals"`
	DecidedAt time.Time     `json:"decided_at"`
}
