// Package testutil provides shared test helpers for setting up journal stores.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestService creates an entry service over a temporary store, with the
// weekday origin at Monday.
func TestService(t *testing.T) (*journal.Service, *store.Store) {
	t.Helper()
	st := TestStore(t)
	svc, err := journal.NewService(st, 0)
	if err != nil {
		t.Fatal(err)
	}
	return svc, st
}
