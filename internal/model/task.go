package model

import "time"

// Status is the lifecycle state of a task record. Transitions are
// monotonic: Active -> Completed -> Archived. Archived is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// CanTransition reports whether a record may move from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusCompleted
	case StatusCompleted:
		return next == StatusArchived
	default:
		return false
	}
}

// TaskRecord is the unit of persisted work derived from one message.
type TaskRecord struct {
	// ID is the internal unique identifier for this record.
	ID string `json:"id" db:"id"`

	// SourceUID is the message's stable identifier within its mailbox
	// folder. It is the sole dedup key and is never reused, even after
	// the record itself is deleted.
	SourceUID string `json:"source_uid" db:"source_uid"`

	// From is the sender address of the originating message.
	From string `json:"from" db:"from_field"`

	// Subject is the original message subject line.
	Subject string `json:"subject" db:"subject"`

	// Snippet is the first body line of the message, for detail views.
	Snippet string `json:"snippet" db:"snippet"`

	// Summary is the generated single-line actionable summary. It is
	// immutable once set.
	Summary string `json:"summary" db:"summary"`

	// Status is the current lifecycle state (use Status* constants).
	Status Status `json:"status" db:"status"`

	// ReceivedAt is when the message arrived at the mail source.
	ReceivedAt time.Time `json:"received_at" db:"received_at"`

	// CreatedAt is when the record was admitted by the pipeline.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// CompletedAt is set when the record transitions to Completed.
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// ArchivedAt is set when the retention sweeper archives the record.
	ArchivedAt *time.Time `json:"archived_at,omitempty" db:"archived_at"`
}
