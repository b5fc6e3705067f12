package core

// DomainStatus is the tagged activation state kept on the tenant record.
type DomainStatus string

const (
	StatusNone                DomainStatus = "none"
	StatusPendingVerification DomainStatus = "pending_verification"
	StatusMonitoring          DomainStatus = "monitoring"
	StatusVerifiedActive      DomainStatus = "verified_active"
	StatusTimedOut            DomainStatus = "timed_out"
)

// transitions lists the allowed moves within a single domain request.
// Submitting a new request resets the machine and is handled separately.
var transitions = map[DomainStatus][]DomainStatus{
	StatusPendingVerification: {StatusMonitoring, StatusNone},
	StatusMonitoring:          {StatusVerifiedActive, StatusTimedOut, StatusNone},
	StatusTimedOut:            {StatusMonitoring, StatusNone},
	StatusVerifiedActive:      {StatusNone},
}

func (s DomainStatus) Valid() bool {
	switch s {
	case StatusNone, StatusPendingVerification, StatusMonitoring, StatusVerifiedActive, StatusTimedOut:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to DomainStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UserMessage is the end state a tenant sees for a status.
func (s DomainStatus) UserMessage() string {
	switch s {
	case StatusPendingVerification, StatusMonitoring:
		return "still verifying"
	case StatusVerifiedActive:
		return "active"
	case StatusTimedOut:
		return "timed out, contact support"
	default:
		return "no custom domain"
	}
}
