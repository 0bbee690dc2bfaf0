// Package testutil holds shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/peytonb/inboxtasks/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations
// applied, closed automatically when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return NewTestStoreAt(t, ":memory:")
}

// NewTestStoreAt opens a SQLiteStore at path, for tests that need a
// file-backed store (reopen scenarios, watermark persistence). The
// store is closed when the test completes.
func NewTestStoreAt(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store at %s: %v", path, err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
