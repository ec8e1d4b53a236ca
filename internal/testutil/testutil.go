// Package testutil provides shared test helpers for setting up catalogs and
// waiting on asynchronous replicas.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/arbor/internal/catalog"
)

// TestCatalog creates a temporary SQLite catalog that is automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "arbor-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SharedCatalog opens n connections to one temporary catalog file, the way
// replicas sharing a catalog do.
func SharedCatalog(t *testing.T, n int) []*catalog.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	out := make([]*catalog.DB, n)
	for i := range out {
		db, err := catalog.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		out[i] = db
	}
	return out
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
