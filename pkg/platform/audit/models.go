package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategorySecurity covers events relevant to moderation and abuse forensics.
	// Examples: rejected connections, fail-closed processor errors.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: admitted connections, address set reloads.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the verification pipeline to capture key outcomes.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the player UUID the event concerns.
	Subject   string `json:"subject,omitempty"`
	Name      string `json:"name,omitempty"`
	Address   string `json:"address,omitempty"`
	Processor string `json:"processor,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventConnectionRejected AuditEvent = "connection_rejected"
	EventConnectionAdmitted AuditEvent = "connection_admitted"
	EventProcessorFailed    AuditEvent = "processor_failed"
	EventAddressSetLoaded   AuditEvent = "address_set_loaded"
	EventPunishmentIssued   AuditEvent = "punishment_issued"
	EventPunishmentPardoned AuditEvent = "punishment_pardoned"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConnectionRejected: CategorySecurity,
	EventProcessorFailed:    CategorySecurity,
	EventPunishmentIssued:   CategorySecurity,
	EventPunishmentPardoned: CategorySecurity,

	EventConnectionAdmitted: CategoryOperations,
	EventAddressSetLoaded:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event for action, stamping category and time.
func NewEvent(action AuditEvent, now time.Time) Event {
	return Event{
		Category:  action.Category(),
		Timestamp: now,
		Action:    string(action),
	}
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
