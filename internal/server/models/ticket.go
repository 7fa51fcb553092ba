package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusPending   TicketStatus = "Pending"
	StatusVerified  TicketStatus = "Verified"
	StatusCancelled TicketStatus = "Cancelled"
	StatusCompleted TicketStatus = "Completed"
)

// Valid reports whether s is one of the four known states.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no client action can move the ticket further.
func (s TicketStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Ticket is a client engagement record stored under tickets/{id}.
//
// Client fields are only populated once the ticket leaves Pending through
// verification. Manually verified tickets carry a placeholder client name
// and no contact details.
type Ticket struct {
	ID        string       `json:"id"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`

	ClientName     string `json:"clientName,omitempty"`
	ClientEmail    string `json:"clientEmail,omitempty"`
	ClientPhone    string `json:"clientPhone,omitempty"`
	WebsiteType    string `json:"websiteType,omitempty"`
	Budget         string `json:"budget,omitempty"`
	HasDomain      string `json:"hasDomain,omitempty"`
	HasHosting     string `json:"hasHosting,omitempty"`
	ProjectDetails string `json:"projectDetails,omitempty"`

	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	ManuallyVerified   bool       `json:"manuallyVerified,omitempty"`
}

// Validate rejects records whose fields contradict their status. Stored
// documents pass through it on every read.
func (t *Ticket) Validate() error {
	switch {
	case t.ID == "":
		return corrupt("missing id")
	case !t.Status.Valid():
		return corrupt("unknown status %q", t.Status)
	case t.CreatedAt.IsZero():
		return corrupt("missing createdAt")
	}

	switch t.Status {
	case StatusPending:
		if t.VerifiedAt != nil || t.CancelledAt != nil || t.CompletedAt != nil {
			return corrupt("pending ticket has transition timestamps")
		}
	case StatusVerified:
		if t.VerifiedAt == nil {
			return corrupt("verified ticket without verifiedAt")
		}
		if t.ClientName == "" {
			return corrupt("verified ticket without clientName")
		}
	case StatusCancelled:
		if t.CancelledAt == nil {
			return corrupt("cancelled ticket without cancelledAt")
		}
		if t.CancellationReason == "" {
			return corrupt("cancelled ticket without cancellationReason")
		}
	case StatusCompleted:
		if t.CompletedAt == nil || t.VerifiedAt == nil {
			return corrupt("completed ticket without completedAt or verifiedAt")
		}
	}
	return nil
}

// HasIdentity reports whether identity equals the stored email or phone.
// The comparison is exact; nothing matches an empty identity.
func (t *Ticket) HasIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	return identity == t.ClientEmail || identity == t.ClientPhone
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: corrupt ticket record: %s", common.ErrorInternal, fmt.Sprintf(format, args...))
}
