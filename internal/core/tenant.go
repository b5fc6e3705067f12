package core

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the slice of the tenant record this service owns: the current
// custom domain request and its activation status.
type Tenant struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`

	Domain              *DomainRequest `json:"domain,omitempty"`
	Status              DomainStatus   `json:"status"`
	MonitoringStartedAt *time.Time     `json:"monitoring_started_at,omitempty"`
	VerifiedAt          *time.Time     `json:"verified_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentRequest reports whether requestID is still the tenant's live request.
func (t *Tenant) CurrentRequest(requestID uuid.UUID) bool {
	return t.Domain != nil && t.Domain.ID == requestID
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.Domain != nil {
		d := *t.Domain
		c.Domain = &d
	}
	if t.MonitoringStartedAt != nil {
		ts := *t.MonitoringStartedAt
		c.MonitoringStartedAt = &ts
	}
	if t.VerifiedAt != nil {
		ts := *t.VerifiedAt
		c.VerifiedAt = &ts
	}
	return &c
}
