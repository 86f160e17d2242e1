package audit

import "time"

// Event is an immutable, append-only reconciliation audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id is required for every reconciliation event.
// - Audit is best-effort; reconciliation never blocks on audit failures.
type Event struct {
	ID     string    `json:"id" db:"id"`
	Type   EventType `json:"type" db:"type"`
	CallID string    `json:"call_id" db:"call_id"`

	// Track and RetryCount capture the retry state at the time of the event.
	Track      string `json:"track,omitempty" db:"track"`
	RetryCount int    `json:"retry_count" db:"retry_count"`

	// ActorUserID and ActorRole are set for operator-initiated events only.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeProcessed         EventType = "call_processed"
	EventTypeDiscarded         EventType = "call_discarded"
	EventTypeTrackSwitched     EventType = "track_switched"
	EventTypePermanentlyFailed EventType = "call_permanently_failed"
)
