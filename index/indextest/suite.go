// Package indextest holds the behaviour every index backend must share.
package indextest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

// Factory prepares storage for a single test and returns a constructor for
// backends sharing that storage, one per namespace.
type Factory func(t *testing.T) func(namespace string) (index.Backend, error)

// Open creates and opens a backend, closing it when the test ends.
func Open(t *testing.T, factory func(namespace string) (index.Backend, error), namespace string) index.Backend {
	t.Helper()

	backend, err := factory(namespace)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}

	if err := backend.Open(t.Context()); err != nil {
		t.Fatalf("Backend open failed: %v", err)
	}

	t.Cleanup(func() {
		backend.Close(context.Background())
	})

	return backend
}

// Ingest indexes a snapshot with the given files in one transaction.
func Ingest(t *testing.T, backend index.Backend, snapshot *data.Snapshot, files ...data.File) {
	t.Helper()
	ctx := t.Context()

	tx, err := backend.Begin(ctx, snapshot)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	for _, file := range files {
		if err := tx.Insert(ctx, file); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := tx.Finish(ctx); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
}

// Snapshot returns a snapshot with a stable time derived from its id.
func Snapshot(id string) *data.Snapshot {
	var offset int
	for _, c := range id {
		offset += int(c)
	}

	return &data.Snapshot{
		ID:       id,
		ShortID:  id[:min(len(id), 8)],
		Time:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute),
		Hostname: "host",
		Paths:    []string{"/"},
	}
}

// Expect compares query results against name=size pairs in order.
func Expect(t *testing.T, got []*data.Entry, want ...string) {
	t.Helper()

	actual := make([]string, 0, len(got))
	for _, entry := range got {
		actual = append(actual, fmt.Sprintf("%s=%d", entry.Name, entry.Size))
	}

	if !slices.Equal(actual, want) {
		t.Errorf("Expected %v, got %v", want, actual)
	}
}

func query(t *testing.T, backend index.Backend, path string) []*data.Entry {
	t.Helper()

	entries, err := backend.MaxSizesUnder(t.Context(), path)
	if err != nil {
		t.Fatalf("MaxSizesUnder(%q) failed: %v", path, err)
	}

	return entries
}

func snapshotIDs(t *testing.T, backend index.Backend) []string {
	t.Helper()

	snapshots, err := backend.Snapshots(t.Context())
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}

	ids := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)

	return ids
}

// RunBackendTests runs the shared behaviour checks against a backend implementation.
func RunBackendTests(t *testing.T, factory Factory) {
	t.Run("Aggregation", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")

		Ingest(tst, backend, Snapshot("s1"),
			data.File{Path: "/a/b.txt", Size: 100},
			data.File{Path: "/a/c.txt", Size: 300},
			data.File{Path: "/d.txt", Size: 50},
		)

		Expect(tst, query(tst, backend, "/"), "a=300", "d.txt=50")
		Expect(tst, query(tst, backend, "/a"), "c.txt=300", "b.txt=100")
	})

	t.Run("MaximumAcrossSnapshots", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")

		Ingest(tst, backend, Snapshot("s1"), data.File{Path: "/x/big", Size: 1000})
		Ingest(tst, backend, Snapshot("s2"), data.File{Path: "/x/small", Size: 10})

		Expect(tst, query(tst, backend, "/"), "x=1000")
		Expect(tst, query(tst, backend, "/x"), "big=1000", "small=10")

		if err := backend.DeleteSnapshot(tst.Context(), "s1"); err != nil {
			tst.Fatalf("DeleteSnapshot failed: %v", err)
		}

		Expect(tst, query(tst, backend, "/"), "x=10")
		Expect(tst, query(tst, backend, "/x"), "small=10")

		if ids := snapshotIDs(tst, backend); !slices.Equal(ids, []string{"s2"}) {
			tst.Errorf("Expected [s2], got %v", ids)
		}
	})

	t.Run("DeleteUnknownSnapshot", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")

		if err := backend.DeleteSnapshot(tst.Context(), "missing"); err != nil {
			tst.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("InvisibleUntilFinish", func(tst *testing.T) {
		ctx := tst.Context()
		backend := Open(tst, factory(tst), "repo")

		tx, err := backend.Begin(ctx, Snapshot("s1"))
		if err != nil {
			tst.Fatalf("Begin failed: %v", err)
		}
		if tx.ID() == "" {
			tst.Errorf("Expected transaction id")
		}
		if tx.Snapshot().ID != "s1" {
			tst.Errorf("Expected snapshot s1, got %s", tx.Snapshot().ID)
		}

		if err := tx.Insert(ctx, data.File{Path: "/a/b", Size: 5}); err != nil {
			tst.Fatalf("Insert failed: %v", err)
		}

		Expect(tst, query(tst, backend, "/"))
		if ids := snapshotIDs(tst, backend); len(ids) != 0 {
			tst.Errorf("Expected no snapshots, got %v", ids)
		}

		if err := tx.Finish(ctx); err != nil {
			tst.Fatalf("Finish failed: %v", err)
		}

		Expect(tst, query(tst, backend, "/"), "a=5")
	})

	t.Run("AbortAndReingest", func(tst *testing.T) {
		ctx := tst.Context()
		backend := Open(tst, factory(tst), "repo")

		tx, err := backend.Begin(ctx, Snapshot("s1"))
		if err != nil {
			tst.Fatalf("Begin failed: %v", err)
		}
		if err := tx.Insert(ctx, data.File{Path: "/partial", Size: 999}); err != nil {
			tst.Fatalf("Insert failed: %v", err)
		}
		if err := tx.Abort(ctx); err != nil {
			tst.Fatalf("Abort failed: %v", err)
		}

		Expect(tst, query(tst, backend, "/"))
		if ids := snapshotIDs(tst, backend); len(ids) != 0 {
			tst.Errorf("Expected no snapshots, got %v", ids)
		}

		Ingest(tst, backend, Snapshot("s1"), data.File{Path: "/full", Size: 1})
		Expect(tst, query(tst, backend, "/"), "full=1")
	})

	t.Run("BeginExisting", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")
		Ingest(tst, backend, Snapshot("s1"), data.File{Path: "/f", Size: 1})

		if _, err := backend.Begin(tst.Context(), Snapshot("s1")); !errors.Is(err, data.ErrSnapshotExists) {
			tst.Errorf("Expected ErrSnapshotExists, got %v", err)
		}
	})

	t.Run("SingleActiveTransaction", func(tst *testing.T) {
		ctx := tst.Context()
		backend := Open(tst, factory(tst), "repo")

		tx, err := backend.Begin(ctx, Snapshot("s1"))
		if err != nil {
			tst.Fatalf("Begin failed: %v", err)
		}

		if _, err := backend.Begin(ctx, Snapshot("s2")); !errors.Is(err, data.ErrTransactionActive) {
			tst.Errorf("Expected ErrTransactionActive, got %v", err)
		}

		if err := tx.Abort(ctx); err != nil {
			tst.Fatalf("Abort failed: %v", err)
		}

		Ingest(tst, backend, Snapshot("s2"), data.File{Path: "/f", Size: 2})
	})

	t.Run("ClosedTransaction", func(tst *testing.T) {
		ctx := tst.Context()
		backend := Open(tst, factory(tst), "repo")

		tx, err := backend.Begin(ctx, Snapshot("s1"))
		if err != nil {
			tst.Fatalf("Begin failed: %v", err)
		}
		if err := tx.Finish(ctx); err != nil {
			tst.Fatalf("Finish failed: %v", err)
		}

		if err := tx.Insert(ctx, data.File{Path: "/late", Size: 1}); !errors.Is(err, data.ErrTransactionClosed) {
			tst.Errorf("Expected ErrTransactionClosed on insert, got %v", err)
		}
		if err := tx.Finish(ctx); !errors.Is(err, data.ErrTransactionClosed) {
			tst.Errorf("Expected ErrTransactionClosed on finish, got %v", err)
		}
		if err := tx.Abort(ctx); err != nil {
			tst.Errorf("Expected abort after finish to be a no-op, got %v", err)
		}

		// An empty snapshot still counts as indexed
		if ids := snapshotIDs(tst, backend); !slices.Equal(ids, []string{"s1"}) {
			tst.Errorf("Expected [s1], got %v", ids)
		}
	})

	t.Run("InvalidSnapshot", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")

		if _, err := backend.Begin(tst.Context(), &data.Snapshot{}); !errors.Is(err, data.ErrInvalidSnapshot) {
			tst.Errorf("Expected ErrInvalidSnapshot, got %v", err)
		}
	})

	t.Run("QueryFileAndMissingPath", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")
		Ingest(tst, backend, Snapshot("s1"), data.File{Path: "/dir/file.bin", Size: 42})

		if _, err := backend.MaxSizesUnder(tst.Context(), "/dir/file.bin"); !errors.Is(err, data.ErrNotDirectory) {
			tst.Errorf("Expected ErrNotDirectory, got %v", err)
		}

		Expect(tst, query(tst, backend, "/missing"))
		Expect(tst, query(tst, backend, "/dir/missing/deeper"))
	})

	t.Run("PathNormalization", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")
		Ingest(tst, backend, Snapshot("s1"), data.File{Path: "/home/user/a", Size: 7})

		Expect(tst, query(tst, backend, ""), "home=7")
		Expect(tst, query(tst, backend, "home/user/"), "a=7")
		Expect(tst, query(tst, backend, "/home//user/."), "a=7")
	})

	t.Run("DeepNesting", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")
		Ingest(tst, backend, Snapshot("s1"),
			data.File{Path: "/1/2/3/4/5/6/leaf", Size: 64},
			data.File{Path: "/1/2/other", Size: 16},
		)

		Expect(tst, query(tst, backend, "/1"), "2=64")
		Expect(tst, query(tst, backend, "/1/2"), "3=64", "other=16")
		Expect(tst, query(tst, backend, "/1/2/3/4/5/6"), "leaf=64")
	})

	t.Run("ZeroSizeAndTies", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")
		Ingest(tst, backend, Snapshot("s1"),
			data.File{Path: "/empty", Size: 0},
			data.File{Path: "/b", Size: 3},
			data.File{Path: "/a", Size: 3},
		)

		Expect(tst, query(tst, backend, "/"), "a=3", "b=3", "empty=0")
	})

	t.Run("SnapshotMetadata", func(tst *testing.T) {
		backend := Open(tst, factory(tst), "repo")

		snapshot := Snapshot("0123456789abcdef")
		snapshot.Tags = []string{"daily"}
		Ingest(tst, backend, snapshot)

		snapshots, err := backend.Snapshots(tst.Context())
		if err != nil {
			tst.Fatalf("Snapshots failed: %v", err)
		}
		if len(snapshots) != 1 {
			tst.Fatalf("Expected 1 snapshot, got %d", len(snapshots))
		}

		got := snapshots[0]
		if !got.Equal(snapshot) {
			tst.Errorf("Expected snapshot %s, got %s", snapshot.ID, got.ID)
		}
		if !got.Time.Equal(snapshot.Time) {
			tst.Errorf("Expected time %v, got %v", snapshot.Time, got.Time)
		}
		if got.Hostname != "host" || !slices.Equal(got.Tags, []string{"daily"}) {
			tst.Errorf("Expected metadata to pass through, got %+v", got)
		}
	})

	t.Run("NamespaceIsolation", func(tst *testing.T) {
		newBackend := factory(tst)
		first := Open(tst, newBackend, "first")
		second := Open(tst, newBackend, "second")

		Ingest(tst, first, Snapshot("s1"), data.File{Path: "/only-first", Size: 1})
		Ingest(tst, second, Snapshot("s1"), data.File{Path: "/only-second", Size: 2})

		Expect(tst, query(tst, first, "/"), "only-first=1")
		Expect(tst, query(tst, second, "/"), "only-second=2")

		if err := first.DeleteSnapshot(tst.Context(), "s1"); err != nil {
			tst.Fatalf("DeleteSnapshot failed: %v", err)
		}

		Expect(tst, query(tst, first, "/"))
		Expect(tst, query(tst, second, "/"), "only-second=2")
	})

	t.Run("Settings", func(tst *testing.T) {
		newBackend := factory(tst)
		first := Open(tst, newBackend, "first")
		second := Open(tst, newBackend, "second")
		ctx := tst.Context()

		if value, err := first.Setting(ctx, "exclude"); err != nil || value != "" {
			tst.Fatalf("Expected unset setting to be empty, got %q (%v)", value, err)
		}

		for _, value := range []string{"tmp/**", "tmp/**\ncache/**"} {
			if err := first.PutSetting(ctx, "exclude", value); err != nil {
				tst.Fatalf("PutSetting failed: %v", err)
			}
			if got, err := first.Setting(ctx, "exclude"); err != nil || got != value {
				tst.Errorf("Expected %q, got %q (%v)", value, got, err)
			}
		}

		if value, err := second.Setting(ctx, "exclude"); err != nil || value != "" {
			tst.Errorf("Settings must not leak across namespaces, got %q (%v)", value, err)
		}
	})

	t.Run("NotOpen", func(tst *testing.T) {
		backend, err := factory(tst)("repo")
		if err != nil {
			tst.Fatalf("Backend init failed: %v", err)
		}

		if _, err := backend.MaxSizesUnder(tst.Context(), "/"); !errors.Is(err, data.ErrIndexNotOpen) {
			tst.Errorf("Expected ErrIndexNotOpen, got %v", err)
		}
		if _, err := backend.Setting(tst.Context(), "exclude"); !errors.Is(err, data.ErrIndexNotOpen) {
			tst.Errorf("Expected ErrIndexNotOpen from Setting, got %v", err)
		}
	})
}
