package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peytonb/inboxtasks/internal/model"
	"github.com/peytonb/inboxtasks/internal/store"
	"github.com/peytonb/inboxtasks/tests/testutil"
)

func record(uid string, receivedAt time.Time) model.TaskRecord {
	return model.TaskRecord{
		SourceUID:  uid,
		From:       "alice@example.com",
		Subject:    "Quarterly report",
		Snippet:    "Please review the attached report",
		Summary:    "Review the quarterly report",
		Status:     model.StatusActive,
		ReceivedAt: receivedAt,
	}
}

func TestInsertRejectsDuplicateUID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("101", time.Now())))

	err := s.Insert(ctx, record("101", time.Now()))
	require.ErrorIs(t, err, store.ErrDuplicateUID)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Active)
}

func TestInsertRejectsUIDSeenWithoutRecord(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkSeenUID(ctx, "55"))

	err := s.Insert(ctx, record("55", time.Now()))
	require.ErrorIs(t, err, store.ErrDuplicateUID)
}

func TestLifecycleTransitions(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("7", time.Now())))

	// Archiving an active record skips a state.
	err := s.Archive(ctx, "7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.Complete(ctx, "7"))

	// Completing twice moves backward.
	err = s.Complete(ctx, "7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.Archive(ctx, "7"))

	// Archived is terminal.
	err = s.Complete(ctx, "7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)
	err = s.Archive(ctx, "7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestTransitionsOnMissingRecord(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.Complete(ctx, "nope"), store.ErrNotFound)
	require.ErrorIs(t, s.Archive(ctx, "nope"), store.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "nope"), store.ErrNotFound)
}

func TestDeleteKeepsUIDSeen(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("42", time.Now())))
	require.NoError(t, s.Delete(ctx, "42"))

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	seen, err := s.HasSeenUID(ctx, "42")
	require.NoError(t, err)
	assert.True(t, seen, "deleted record's UID must stay tracked")

	err = s.Insert(ctx, record("42", time.Now()))
	require.ErrorIs(t, err, store.ErrDuplicateUID)
}

func TestArchiveOlderThanTouchesOnlyStaleCompleted(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	// An active record, a freshly completed one, and one completed
	// beyond the window.
	require.NoError(t, s.Insert(ctx, record("1", time.Now())))
	require.NoError(t, s.Insert(ctx, record("2", time.Now())))
	require.NoError(t, s.Insert(ctx, record("3", time.Now())))
	require.NoError(t, s.Complete(ctx, "2"))
	require.NoError(t, s.Complete(ctx, "3"))

	// Backdate record 3's completion beyond a 12h window.
	backdate(t, s, "3", time.Now().Add(-13*time.Hour))

	n, err := s.ArchiveOlderThan(ctx, 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	statuses := statusByUID(t, s)
	assert.Equal(t, model.StatusActive, statuses["1"])
	assert.Equal(t, model.StatusCompleted, statuses["2"])
	assert.Equal(t, model.StatusArchived, statuses["3"])
}

func TestArchiveAllCompleted(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("1", time.Now())))
	require.NoError(t, s.Insert(ctx, record("2", time.Now())))
	require.NoError(t, s.Insert(ctx, record("3", time.Now())))
	require.NoError(t, s.Complete(ctx, "1"))
	require.NoError(t, s.Complete(ctx, "2"))

	n, err := s.ArchiveAllCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	statuses := statusByUID(t, s)
	assert.Equal(t, model.StatusArchived, statuses["1"])
	assert.Equal(t, model.StatusArchived, statuses["2"])
	assert.Equal(t, model.StatusActive, statuses["3"])
}

func TestListActiveOrderingAndFiltering(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, record("1", base)))
	require.NoError(t, s.Insert(ctx, record("2", base.Add(2*time.Hour))))
	require.NoError(t, s.Insert(ctx, record("3", base.Add(time.Hour))))
	require.NoError(t, s.Complete(ctx, "3"))

	// Archived records disappear from the active view.
	require.NoError(t, s.Complete(ctx, "1"))
	require.NoError(t, s.Archive(ctx, "1"))

	records, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].SourceUID)
	assert.Equal(t, "3", records[1].SourceUID)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMetadataRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, "last_uid")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetMetadata(ctx, "last_uid", "120"))
	require.NoError(t, s.SetMetadata(ctx, "last_uid", "140"))

	v, err = s.GetMetadata(ctx, "last_uid")
	require.NoError(t, err)
	assert.Equal(t, "140", v)
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, record("9", time.Now())))
	require.NoError(t, s.MarkSeenUID(ctx, "10"))
	require.NoError(t, s.SetMetadata(ctx, "last_uid", "10"))
	require.NoError(t, s.Close())

	s = testutil.NewTestStoreAt(t, path)

	seen, err := s.HasSeenUID(ctx, "9")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.HasSeenUID(ctx, "10")
	require.NoError(t, err)
	assert.True(t, seen)

	v, err := s.GetMetadata(ctx, "last_uid")
	require.NoError(t, err)
	assert.Equal(t, "10", v)

	records, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9", records[0].SourceUID)

	_ = os.Remove(path)
}

// backdate rewrites a record's completed_at directly; the public API
// deliberately has no way to do this.
func backdate(t *testing.T, s *store.SQLiteStore, uid string, at time.Time) {
	t.Helper()
	_, err := s.DB().Exec(
		"UPDATE tasks SET completed_at = ? WHERE source_uid = ?", at.UTC(), uid,
	)
	require.NoError(t, err)
}

func statusByUID(t *testing.T, s *store.SQLiteStore) map[string]model.Status {
	t.Helper()
	records, err := s.ListAll(context.Background())
	require.NoError(t, err)

	out := make(map[string]model.Status, len(records))
	for _, rec := range records {
		out[rec.SourceUID] = rec.Status
	}
	return out
}
