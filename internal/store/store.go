// Package store persists task records and the seen-UID set that backs
// the pipeline's dedup guarantee.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/peytonb/inboxtasks/internal/model"
)

// Invariant violations at the store boundary. Callers absorb these
// per-item; any other error from a mutating operation is a persistence
// I/O failure and aborts the caller's cycle.
var (
	// ErrDuplicateUID is returned by Insert when the source UID is
	// already tracked, in any status or even after deletion.
	ErrDuplicateUID = errors.New("duplicate source UID")

	// ErrInvalidTransition is returned when a status change would move
	// backward or skip a state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when no record has the given source UID.
	ErrNotFound = errors.New("record not found")
)

// Counts holds the record totals shown on the status line.
type Counts struct {
	Active    int
	Completed int
}

// Store is the persistence contract for task records. All mutating
// operations are serialized by the implementation; reads reflect the
// latest committed state.
type Store interface {
	// Insert admits a new record and permanently marks its source UID
	// as seen, atomically. Fails with ErrDuplicateUID if the UID is
	// already tracked.
	Insert(ctx context.Context, rec model.TaskRecord) error

	// Complete transitions Active -> Completed and sets completed_at.
	// Fails with ErrInvalidTransition unless the record is Active.
	Complete(ctx context.Context, sourceUID string) error

	// Archive transitions Completed -> Archived. Fails with
	// ErrInvalidTransition unless the record is Completed.
	Archive(ctx context.Context, sourceUID string) error

	// ArchiveOlderThan archives every Completed record whose
	// completed_at is at least window in the past. Returns the number
	// of records archived.
	ArchiveOlderThan(ctx context.Context, window time.Duration) (int, error)

	// ArchiveAllCompleted archives every Completed record regardless
	// of age (the bulk "clear completed" operation).
	ArchiveAllCompleted(ctx context.Context) (int, error)

	// Delete physically removes the record. The source UID stays in
	// the seen-UID set forever, so the message can never be
	// re-admitted.
	Delete(ctx context.Context, sourceUID string) error

	// ListActive returns the non-archived records (Active and
	// Completed) ordered by received_at descending.
	ListActive(ctx context.Context) ([]model.TaskRecord, error)

	// ListAll returns every record, including Archived, ordered by
	// received_at descending.
	ListAll(ctx context.Context) ([]model.TaskRecord, error)

	// Counts returns the Active and Completed record totals.
	Counts(ctx context.Context) (Counts, error)

	// HasSeenUID reports whether the source UID is tracked, regardless
	// of whether a record still exists for it.
	HasSeenUID(ctx context.Context, sourceUID string) (bool, error)

	// MarkSeenUID records a source UID without a task record, used for
	// messages dropped by classification or retry exhaustion.
	MarkSeenUID(ctx context.Context, sourceUID string) error

	// GetMetadata returns the stored value for key, or "" when unset.
	GetMetadata(ctx context.Context, key string) (string, error)

	// SetMetadata stores a key/value pair, replacing any prior value.
	SetMetadata(ctx context.Context, key, value string) error

	Close() error
}
