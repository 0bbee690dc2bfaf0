package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/peytonb/inboxtasks/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations. A single
// connection is used so mutating operations are serialized.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection keeps all writes serialized.
	db.SetMaxOpenConns(1)

	// Enable WAL mode so a crash mid-write never loses committed rows.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and migrations tooling.
func (s *SQLiteStore) DB() *sqlx.DB {
	return s.db
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Insert admits a new record and marks its UID seen in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, rec model.TaskRecord) error {
	if rec.SourceUID == "" {
		return fmt.Errorf("record source UID must not be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Final dedup guard; the pipeline pre-checks, the store enforces.
	var seen int
	err = tx.GetContext(ctx, &seen,
		"SELECT COUNT(*) FROM seen_uids WHERE source_uid = ?", rec.SourceUID,
	)
	if err != nil {
		return fmt.Errorf("checking seen UID %s: %w", rec.SourceUID, err)
	}
	if seen > 0 {
		return fmt.Errorf("inserting record for UID %s: %w", rec.SourceUID, ErrDuplicateUID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (
			id, source_uid, from_field, subject, snippet, summary,
			status, received_at, created_at, completed_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceUID, rec.From, rec.Subject, rec.Snippet, rec.Summary,
		string(rec.Status), rec.ReceivedAt.UTC(), rec.CreatedAt.UTC(),
		rec.CompletedAt, rec.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting record for UID %s: %w", rec.SourceUID, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO seen_uids (source_uid, seen_at) VALUES (?, ?)",
		rec.SourceUID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking UID %s seen: %w", rec.SourceUID, err)
	}

	return tx.Commit()
}

// Complete transitions Active -> Completed and sets completed_at.
func (s *SQLiteStore) Complete(ctx context.Context, sourceUID string) error {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ?
		WHERE source_uid = ? AND status = ?`,
		string(model.StatusCompleted), now,
		sourceUID, string(model.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("completing record %s: %w", sourceUID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return s.transitionFailure(ctx, sourceUID, "completing")
	}
	return nil
}

// Archive transitions Completed -> Archived.
func (s *SQLiteStore) Archive(ctx context.Context, sourceUID string) error {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, archived_at = ?
		WHERE source_uid = ? AND status = ?`,
		string(model.StatusArchived), now,
		sourceUID, string(model.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("archiving record %s: %w", sourceUID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return s.transitionFailure(ctx, sourceUID, "archiving")
	}
	return nil
}

// transitionFailure distinguishes a missing record from one in the
// wrong state after an UPDATE matched no rows.
func (s *SQLiteStore) transitionFailure(
	ctx context.Context,
	sourceUID, op string,
) error {
	var status string
	err := s.db.GetContext(ctx, &status,
		"SELECT status FROM tasks WHERE source_uid = ?", sourceUID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s record %s: %w", op, sourceUID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s record %s: %w", op, sourceUID, err)
	}
	return fmt.Errorf("%s record %s in status %s: %w", op, sourceUID, status, ErrInvalidTransition)
}

// ArchiveOlderThan archives Completed records whose completed_at is at
// least window in the past.
func (s *SQLiteStore) ArchiveOlderThan(
	ctx context.Context,
	window time.Duration,
) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-window)

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, archived_at = ?
		WHERE status = ? AND completed_at IS NOT NULL AND completed_at <= ?`,
		string(model.StatusArchived), now,
		string(model.StatusCompleted), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("archiving records older than %s: %w", window, err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ArchiveAllCompleted archives every Completed record.
func (s *SQLiteStore) ArchiveAllCompleted(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, archived_at = ?
		WHERE status = ?`,
		string(model.StatusArchived), now,
		string(model.StatusCompleted),
	)
	if err != nil {
		return 0, fmt.Errorf("archiving completed records: %w", err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// Delete physically removes the record; its UID stays in seen_uids.
func (s *SQLiteStore) Delete(ctx context.Context, sourceUID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE source_uid = ?", sourceUID,
	)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", sourceUID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting record %s: %w", sourceUID, ErrNotFound)
	}
	return nil
}

// ListActive returns non-archived records, newest received first.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]model.TaskRecord, error) {
	return s.list(ctx, `
		SELECT * FROM tasks WHERE status != ?
		ORDER BY received_at DESC`,
		string(model.StatusArchived),
	)
}

// ListAll returns every record, newest received first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.TaskRecord, error) {
	return s.list(ctx, "SELECT * FROM tasks ORDER BY received_at DESC")
}

func (s *SQLiteStore) list(
	ctx context.Context,
	query string,
	args ...interface{},
) ([]model.TaskRecord, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []model.TaskRecord
	for rows.Next() {
		var rec model.TaskRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Counts returns the Active and Completed record totals.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts

	err := s.db.GetContext(ctx, &c.Active,
		"SELECT COUNT(*) FROM tasks WHERE status = ?",
		string(model.StatusActive),
	)
	if err != nil {
		return Counts{}, fmt.Errorf("counting active records: %w", err)
	}

	err = s.db.GetContext(ctx, &c.Completed,
		"SELECT COUNT(*) FROM tasks WHERE status = ?",
		string(model.StatusCompleted),
	)
	if err != nil {
		return Counts{}, fmt.Errorf("counting completed records: %w", err)
	}

	return c, nil
}

// HasSeenUID reports whether the UID has ever been tracked.
func (s *SQLiteStore) HasSeenUID(ctx context.Context, sourceUID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM seen_uids WHERE source_uid = ?", sourceUID,
	)
	if err != nil {
		return false, fmt.Errorf("checking seen UID %s: %w", sourceUID, err)
	}
	return count > 0, nil
}

// MarkSeenUID records a UID without a task record.
func (s *SQLiteStore) MarkSeenUID(ctx context.Context, sourceUID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seen_uids (source_uid, seen_at) VALUES (?, ?)",
		sourceUID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking UID %s seen: %w", sourceUID, err)
	}
	return nil
}

// GetMetadata returns the stored value for key, or "" when unset.
func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM metadata WHERE key = ?", key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a key/value pair, replacing any prior value.
func (s *SQLiteStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing metadata %q: %w", key, err)
	}
	return nil
}
