package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
	"github.com/mwantia/snapdu/index/indextest"
)

func TestSQLiteBackend(t *testing.T) {
	indextest.RunBackendTests(t, func(t *testing.T) func(namespace string) (index.Backend, error) {
		path := filepath.Join(t.TempDir(), "index.sqlite")
		return func(namespace string) (index.Backend, error) {
			return NewSQLiteBackend(path, namespace)
		}
	})
}

func TestSQLiteBackend_Memory(t *testing.T) {
	backend := indextest.Open(t, func(namespace string) (index.Backend, error) {
		return NewSQLiteBackend(MemoryPath, namespace)
	}, "repo")

	indextest.Ingest(t, backend, indextest.Snapshot("s1"),
		data.File{Path: "/a/b.txt", Size: 100},
		data.File{Path: "/a/c.txt", Size: 300},
	)

	entries, err := backend.MaxSizesUnder(t.Context(), "/")
	if err != nil {
		t.Fatalf("MaxSizesUnder failed: %v", err)
	}
	indextest.Expect(t, entries, "a=300")
}

func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "index.sqlite")

	backend, err := NewSQLiteBackend(path, "repo")
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := backend.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	indextest.Ingest(t, backend, indextest.Snapshot("s1"), data.File{Path: "/var/log/syslog", Size: 2048})
	if err := backend.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := indextest.Open(t, func(namespace string) (index.Backend, error) {
		return NewSQLiteBackend(path, namespace)
	}, "repo")

	snapshots, err := reopened.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].ID != "s1" {
		t.Fatalf("Expected snapshot s1 after reopen, got %v", snapshots)
	}

	entries, err := reopened.MaxSizesUnder(ctx, "/var/log")
	if err != nil {
		t.Fatalf("MaxSizesUnder failed: %v", err)
	}
	indextest.Expect(t, entries, "syslog=2048")
}

func TestSQLiteBackend_ClosedBackend(t *testing.T) {
	ctx := t.Context()

	backend, err := NewSQLiteBackend(MemoryPath, "repo")
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := backend.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	tx, err := backend.Begin(ctx, indextest.Snapshot("s1"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := backend.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := tx.Finish(ctx); err != data.ErrIndexNotOpen {
		t.Errorf("Expected ErrIndexNotOpen, got %v", err)
	}
}
