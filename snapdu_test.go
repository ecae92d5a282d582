package snapdu

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
	"github.com/mwantia/snapdu/index/ephemeral"
	"github.com/mwantia/snapdu/index/sqlite"
	"github.com/mwantia/snapdu/log"
)

var errListing = errors.New("listing interrupted")

// fakeSource serves a scripted catalog and listings.
type fakeSource struct {
	mu        sync.Mutex
	config    *data.RepositoryConfig
	snapshots []*data.Snapshot
	files     map[string][]data.File
	// failAfter makes the listing of a snapshot fail after n records
	failAfter map[string]int
	calls     []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		config:    &data.RepositoryConfig{ID: "5a8f0c", Version: 2},
		files:     make(map[string][]data.File),
		failAfter: make(map[string]int),
	}
}

func (fs *fakeSource) add(id string, files ...data.File) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.snapshots = append(fs.snapshots, &data.Snapshot{
		ID:   id,
		Time: time.Date(2024, 1, len(fs.snapshots)+1, 0, 0, 0, 0, time.UTC),
	})
	fs.files[id] = files
}

func (fs *fakeSource) remove(id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.snapshots = slices.DeleteFunc(fs.snapshots, func(s *data.Snapshot) bool {
		return s.ID == id
	})
}

func (fs *fakeSource) lsCalls() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return slices.Clone(fs.calls)
}

func (fs *fakeSource) Config(ctx context.Context) (*data.RepositoryConfig, error) {
	return fs.config, nil
}

func (fs *fakeSource) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return slices.Clone(fs.snapshots), nil
}

func (fs *fakeSource) Ls(ctx context.Context, snapshotID string) (Listing, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.calls = append(fs.calls, snapshotID)
	failAt, fails := fs.failAfter[snapshotID]
	if !fails {
		failAt = -1
	}

	return &fakeListing{
		files:  fs.files[snapshotID],
		failAt: failAt,
	}, nil
}

type fakeListing struct {
	files  []data.File
	pos    int
	failAt int
	err    error
	record data.File
	bytes  int64
}

func (fl *fakeListing) Next() bool {
	if fl.err != nil || fl.pos >= len(fl.files) {
		return false
	}
	if fl.pos == fl.failAt {
		fl.err = errListing
		return false
	}

	fl.record = fl.files[fl.pos]
	fl.bytes += int64(len(fl.record.Path) + 32)
	fl.pos++
	return true
}

func (fl *fakeListing) Record() data.File { return fl.record }
func (fl *fakeListing) Err() error        { return fl.err }
func (fl *fakeListing) BytesRead() int64  { return fl.bytes }
func (fl *fakeListing) Close() error      { return nil }

// failingBackend rejects every deletion.
type failingBackend struct {
	index.Backend
}

func (fb *failingBackend) DeleteSnapshot(ctx context.Context, id string) error {
	return fmt.Errorf("delete %s rejected", id)
}

// TestIndexFactory creates a new unopened backend for testing.
type TestIndexFactory func(t *testing.T) (index.Backend, error)

// GetTestIndexFactories returns all local backend implementations to test.
func GetTestIndexFactories() map[string]TestIndexFactory {
	return map[string]TestIndexFactory{
		"ephemeral": func(t *testing.T) (index.Backend, error) {
			return ephemeral.NewEphemeralBackend(), nil
		},
		"sqlite": func(t *testing.T) (index.Backend, error) {
			return sqlite.NewSQLiteBackend(sqlite.MemoryPath, "5a8f0c")
		},
	}
}

func newTestEngine(tst *testing.T, source *fakeSource, backend index.Backend, opts ...EngineOption) *Engine {
	tst.Helper()

	opts = append([]EngineOption{
		WithSource(source),
		WithIndex(backend),
		WithLogger(log.Discard()),
	}, opts...)

	engine, err := NewEngine(opts...)
	if err != nil {
		tst.Fatalf("NewEngine failed: %v", err)
	}

	if err := engine.Open(tst.Context()); err != nil {
		tst.Fatalf("Open failed: %v", err)
	}
	tst.Cleanup(func() {
		engine.Close(context.Background())
	})

	return engine
}

func expectEntries(tst *testing.T, engine *Engine, path string, want ...string) {
	tst.Helper()

	entries, err := engine.MaxSizesUnder(tst.Context(), path)
	if err != nil {
		tst.Fatalf("MaxSizesUnder(%q) failed: %v", path, err)
	}

	got := make([]string, 0, len(entries))
	for _, entry := range entries {
		got = append(got, fmt.Sprintf("%s=%d", entry.Name, entry.Size))
	}

	if !slices.Equal(got, want) {
		tst.Errorf("MaxSizesUnder(%q): expected %v, got %v", path, want, got)
	}
}

func expectIndexed(tst *testing.T, engine *Engine, want ...string) {
	tst.Helper()

	snapshots, err := engine.Snapshots(tst.Context())
	if err != nil {
		tst.Fatalf("Snapshots failed: %v", err)
	}

	got := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		got = append(got, s.ID)
	}
	slices.Sort(got)

	if !slices.Equal(got, want) {
		tst.Errorf("Expected indexed snapshots %v, got %v", want, got)
	}
}

func TestEngine_SyncFetchesMissing(t *testing.T) {
	for name, factory := range GetTestIndexFactories() {
		t.Run(name, func(tst *testing.T) {
			backend, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}

			source := newFakeSource()
			source.add("s1",
				data.File{Path: "/a/b.txt", Size: 100},
				data.File{Path: "/a/c.txt", Size: 300},
				data.File{Path: "/d.txt", Size: 50},
			)
			source.add("s2", data.File{Path: "/a/b.txt", Size: 500})

			engine := newTestEngine(tst, source, backend)
			if engine.RepositoryID() != "5a8f0c" {
				tst.Errorf("Expected repository id 5a8f0c, got %q", engine.RepositoryID())
			}

			result, err := engine.Sync(tst.Context())
			if err != nil {
				tst.Fatalf("Sync failed: %v", err)
			}

			if len(result.Fetched) != 2 || result.Unchanged != 0 || len(result.Deleted) != 0 {
				tst.Errorf("Unexpected result %+v", result)
			}
			if result.Fetched[0].Files != 3 || result.Fetched[0].BytesRead == 0 {
				tst.Errorf("Unexpected ingest result %+v", result.Fetched[0])
			}

			// Fetched in remote order
			if calls := source.lsCalls(); !slices.Equal(calls, []string{"s1", "s2"}) {
				tst.Errorf("Expected listings [s1 s2], got %v", calls)
			}

			expectIndexed(tst, engine, "s1", "s2")
			expectEntries(tst, engine, "/", "a=500", "d.txt=50")
			expectEntries(tst, engine, "/a", "b.txt=500", "c.txt=300")
		})
	}
}

func TestEngine_SyncIsIdempotent(t *testing.T) {
	for name, factory := range GetTestIndexFactories() {
		t.Run(name, func(tst *testing.T) {
			backend, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}

			source := newFakeSource()
			source.add("s1", data.File{Path: "/x", Size: 1})
			engine := newTestEngine(tst, source, backend)

			if _, err := engine.Sync(tst.Context()); err != nil {
				tst.Fatalf("First sync failed: %v", err)
			}

			result, err := engine.Sync(tst.Context())
			if err != nil {
				tst.Fatalf("Second sync failed: %v", err)
			}

			if len(result.Fetched) != 0 || len(result.Deleted) != 0 || result.Unchanged != 1 {
				tst.Errorf("Expected no work on second sync, got %+v", result)
			}
			if calls := source.lsCalls(); len(calls) != 1 {
				tst.Errorf("Expected a single listing, got %v", calls)
			}

			expectEntries(tst, engine, "/", "x=1")
		})
	}
}

func TestEngine_SyncDeletesMissing(t *testing.T) {
	for name, factory := range GetTestIndexFactories() {
		t.Run(name, func(tst *testing.T) {
			backend, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}

			source := newFakeSource()
			source.add("s1", data.File{Path: "/x/big", Size: 1000})
			source.add("s2", data.File{Path: "/x/small", Size: 10})
			engine := newTestEngine(tst, source, backend)

			if _, err := engine.Sync(tst.Context()); err != nil {
				tst.Fatalf("Sync failed: %v", err)
			}
			expectEntries(tst, engine, "/", "x=1000")

			source.remove("s1")
			result, err := engine.Sync(tst.Context())
			if err != nil {
				tst.Fatalf("Sync failed: %v", err)
			}

			if !slices.Equal(result.Deleted, []string{"s1"}) {
				tst.Errorf("Expected [s1] deleted, got %v", result.Deleted)
			}

			expectIndexed(tst, engine, "s2")
			expectEntries(tst, engine, "/", "x=10")
			expectEntries(tst, engine, "/x", "small=10")
		})
	}
}

func TestEngine_FailedIngestionIsAtomic(t *testing.T) {
	for name, factory := range GetTestIndexFactories() {
		t.Run(name, func(tst *testing.T) {
			backend, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}

			source := newFakeSource()
			source.add("s1", data.File{Path: "/ok", Size: 1})
			source.add("s2",
				data.File{Path: "/partial/a", Size: 999},
				data.File{Path: "/partial/b", Size: 5},
			)
			source.add("s3", data.File{Path: "/never", Size: 3})
			source.failAfter["s2"] = 1

			engine := newTestEngine(tst, source, backend)

			result, err := engine.Sync(tst.Context())
			if !errors.Is(err, errListing) {
				tst.Fatalf("Expected listing error, got %v", err)
			}
			if !strings.Contains(err.Error(), "s2") {
				tst.Errorf("Expected error to name the snapshot, got %v", err)
			}
			if result == nil || len(result.Fetched) != 1 {
				tst.Errorf("Expected one snapshot fetched before failure, got %+v", result)
			}

			// Fail fast: s3 was never listed
			if calls := source.lsCalls(); !slices.Equal(calls, []string{"s1", "s2"}) {
				tst.Errorf("Expected listings [s1 s2], got %v", calls)
			}

			expectIndexed(tst, engine, "s1")
			expectEntries(tst, engine, "/", "ok=1")

			delete(source.failAfter, "s2")
			if _, err := engine.Sync(tst.Context()); err != nil {
				tst.Fatalf("Retry sync failed: %v", err)
			}

			expectIndexed(tst, engine, "s1", "s2", "s3")
			expectEntries(tst, engine, "/partial", "a=999", "b=5")
		})
	}
}

func TestEngine_DeletionFailureStopsSync(t *testing.T) {
	ctx := t.Context()
	backend := ephemeral.NewEphemeralBackend()

	source := newFakeSource()
	source.add("s1", data.File{Path: "/x", Size: 1})
	engine := newTestEngine(t, source, backend)

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Swap in a backend that shares storage but refuses deletions
	engine.mu.Lock()
	engine.backend = &failingBackend{Backend: backend}
	engine.mu.Unlock()

	source.remove("s1")
	source.add("s2", data.File{Path: "/y", Size: 2})

	if _, err := engine.Sync(ctx); err == nil {
		t.Fatalf("Expected sync to fail")
	}

	if calls := source.lsCalls(); !slices.Equal(calls, []string{"s1"}) {
		t.Errorf("Expected no listing after failed deletion, got %v", calls)
	}
	expectIndexed(t, engine, "s1")
}

func TestEngine_Exclude(t *testing.T) {
	source := newFakeSource()
	source.add("s1",
		data.File{Path: "/home/user/.cache/huge", Size: 9000},
		data.File{Path: "/home/user/docs/report.pdf", Size: 40},
		data.File{Path: "/srv/app/node_modules/lib/index.js", Size: 700},
		data.File{Path: "/srv/app/main.js", Size: 7},
	)

	engine := newTestEngine(t, source, ephemeral.NewEphemeralBackend(),
		WithExclude("home/*/.cache", "**/node_modules"),
	)

	result, err := engine.Sync(t.Context())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if fetched := result.Fetched[0]; fetched.Files != 2 || fetched.Excluded != 2 {
		t.Errorf("Expected 2 files and 2 excluded, got %+v", fetched)
	}

	expectEntries(t, engine, "/home/user", "docs=40")
	expectEntries(t, engine, "/srv/app", "main.js=7")
}

func TestEngine_ExcludeChangeReingests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	source := newFakeSource()
	source.add("s1",
		data.File{Path: "/tmp/huge.iso", Size: 900},
		data.File{Path: "/home/a", Size: 10},
	)

	syncWith := func(wantFetched int, opts ...EngineOption) *Engine {
		t.Helper()

		backend, err := sqlite.NewSQLiteBackend(path, "5a8f0c")
		if err != nil {
			t.Fatalf("Backend init failed: %v", err)
		}

		engine := newTestEngine(t, source, backend, opts...)
		result, err := engine.Sync(t.Context())
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if len(result.Fetched) != wantFetched {
			t.Errorf("Expected %d fetched, got %+v", wantFetched, result)
		}

		return engine
	}

	engine := syncWith(1)
	expectEntries(t, engine, "/", "tmp=900", "home=10")
	engine.Close(t.Context())

	// New patterns drop the snapshots filtered with the old ones
	engine = syncWith(1, WithExclude("tmp/**"))
	expectEntries(t, engine, "/", "home=10")
	engine.Close(t.Context())

	// Equivalent patterns keep the index
	engine = syncWith(0, WithExclude("/tmp/**", "tmp/**"))
	expectEntries(t, engine, "/", "home=10")
	engine.Close(t.Context())

	engine = syncWith(1)
	expectEntries(t, engine, "/", "tmp=900", "home=10")
}

func TestExcludeFingerprint(t *testing.T) {
	if excludeFingerprint(nil) != "" {
		t.Errorf("Expected empty fingerprint without patterns")
	}

	a := excludeFingerprint([]string{"/tmp/**", "**/node_modules"})
	b := excludeFingerprint([]string{"**/node_modules", "tmp/**", "tmp/**"})
	if a != b {
		t.Errorf("Expected equivalent pattern sets to match, got %q and %q", a, b)
	}
}

func TestEngine_InvalidExclude(t *testing.T) {
	if _, err := NewEngine(WithExclude("[unclosed"), WithLogger(log.Discard())); !errors.Is(err, ErrInvalidExclude) {
		t.Errorf("Expected ErrInvalidExclude, got %v", err)
	}
}

func TestEngine_Reconcile(t *testing.T) {
	ctx := t.Context()
	source := newFakeSource()
	source.add("old", data.File{Path: "/f", Size: 1})
	source.add("kept", data.File{Path: "/g", Size: 2})

	engine := newTestEngine(t, source, ephemeral.NewEphemeralBackend())
	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	remote := []*data.Snapshot{{ID: "c"}, {ID: "kept"}, {ID: "a"}, {ID: "c"}, {ID: "b"}}
	missing, err := engine.Reconcile(ctx, remote)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	ids := make([]string, 0, len(missing))
	for _, s := range missing {
		ids = append(ids, s.ID)
	}

	if !slices.Equal(ids, []string{"c", "a", "b"}) {
		t.Errorf("Expected [c a b] in remote order, got %v", ids)
	}

	expectIndexed(t, engine, "kept")
}

func TestEngine_IngestExisting(t *testing.T) {
	source := newFakeSource()
	source.add("s1", data.File{Path: "/f", Size: 1})

	engine := newTestEngine(t, source, ephemeral.NewEphemeralBackend())
	if _, err := engine.Sync(t.Context()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if _, err := engine.Ingest(t.Context(), &data.Snapshot{ID: "s1"}); !errors.Is(err, data.ErrSnapshotExists) {
		t.Errorf("Expected ErrSnapshotExists, got %v", err)
	}
}

func TestEngine_NotOpen(t *testing.T) {
	engine, err := NewEngine(WithSource(newFakeSource()), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if _, err := engine.MaxSizesUnder(t.Context(), "/"); !errors.Is(err, data.ErrIndexNotOpen) {
		t.Errorf("Expected ErrIndexNotOpen, got %v", err)
	}
	if _, err := engine.Sync(t.Context()); !errors.Is(err, data.ErrIndexNotOpen) {
		t.Errorf("Expected ErrIndexNotOpen, got %v", err)
	}
	if engine.RepositoryID() != "" {
		t.Errorf("Expected no repository id before open")
	}
}

func TestEngine_OpenRequiresRepositoryID(t *testing.T) {
	source := newFakeSource()
	source.config = &data.RepositoryConfig{}

	engine, err := NewEngine(WithSource(source), WithIndexAddress(EphemeralAddress), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if err := engine.Open(t.Context()); !errors.Is(err, ErrMissingRepositoryID) {
		t.Errorf("Expected ErrMissingRepositoryID, got %v", err)
	}
}

func TestEngine_DefaultIndexPerRepository(t *testing.T) {
	ctx := t.Context()
	cacheDir := t.TempDir()

	open := func(id string) *Engine {
		source := newFakeSource()
		source.config = &data.RepositoryConfig{ID: id}
		source.add(id, data.File{Path: "/" + id, Size: 1})

		engine, err := NewEngine(WithSource(source), WithCacheDir(cacheDir), WithLogger(log.Discard()))
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		if err := engine.Open(ctx); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		t.Cleanup(func() {
			engine.Close(context.Background())
		})

		if _, err := engine.Sync(ctx); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		return engine
	}

	first := open("aaaa")
	second := open("bbbb")

	expectEntries(t, first, "/", "aaaa=1")
	expectEntries(t, second, "/", "bbbb=1")
}
