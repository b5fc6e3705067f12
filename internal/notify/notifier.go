// Package notify delivers the three tenant-facing events of a domain
// activation: setup instructions, activation success and timeout help.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSetupInstructions EventType = "setup_instructions"
	EventActivationSuccess EventType = "activation_success"
	EventTimeoutHelp       EventType = "timeout_help"
)

type Event struct {
	Type       EventType
	TenantID   uuid.UUID
	RequestID  uuid.UUID
	SessionID  uuid.UUID
	Email      string
	TenantName string
	Hostname   string
	Canonical  string

	// Setup instructions
	CNAMETarget   string
	ARecords      []string
	RegistrarHint string

	// Timeout help
	Reason string

	OccurredAt time.Time
}

// DedupKey scopes an event: setup and success happen once per request,
// timeout help once per monitoring session.
func (e Event) DedupKey() string {
	if e.Type == EventTimeoutHelp {
		return e.SessionID.String()
	}
	return e.RequestID.String()
}

// Notifier is the delivery collaborator. Implementations must not retry on
// their own; Once decides whether an event may be sent.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to several notifiers and reports the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
