package audit

import "time"

// EventType identifies an audit trail entry.
type EventType string

const (
	EventCreate        EventType = "CREATE"
	EventCheckout      EventType = "CHECKOUT"
	EventCheckin       EventType = "CHECKIN"
	EventRouteReview   EventType = "ROUTE_REVIEW"
	EventRouteApproval EventType = "ROUTE_APPROVAL"
	EventAssign        EventType = "ASSIGN"
	EventReview        EventType = "REVIEW"
	EventApprove       EventType = "APPROVE"
	EventReject        EventType = "REJECT"
	EventEffective     EventType = "EFFECTIVE"
	EventRelease       EventType = "RELEASE"
	EventRevert        EventType = "REVERT"
	EventClose         EventType = "CLOSE"
	EventRetire        EventType = "RETIRE"
	EventFix           EventType = "FIX"
	EventStatusChange  EventType = "STATUS_CHANGE"
)

// Event is one append-only audit trail entry
type Event struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentType string    `json:"document_type"`
	Type         EventType `json:"event"`
	Actor        string    `json:"user"`
	Version      string    `json:"version"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	Details      string    `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time `json:"ts"`
}

// IsComment reports whether the event carries reviewer feedback.
func (e Event) IsComment() bool {
	return (e.Type == EventReview || e.Type == EventReject) && e.Comment != ""
}
