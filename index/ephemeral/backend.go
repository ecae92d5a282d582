package ephemeral

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
	"github.com/tidwall/btree"
)

const separator = "\x00"

// EphemeralBackend keeps the size index in memory only. Node keys are
// "<parent>\x00<name>\x00<snapshot>", so all children of one directory
// form a contiguous range within the B-tree.
type EphemeralBackend struct {
	mu sync.RWMutex

	nodes     *btree.Map[string, uint64]
	owned     map[string][]string
	snapshots map[string]*data.Snapshot
	settings  map[string]string
	opened    bool
	active    *ephemeralTransaction
}

func NewEphemeralBackend() *EphemeralBackend {
	return &EphemeralBackend{
		nodes:     btree.NewMap[string, uint64](0),
		owned:     make(map[string][]string),
		snapshots: make(map[string]*data.Snapshot),
		settings:  make(map[string]string),
	}
}

// Returns the identifier name defined for this backend
func (*EphemeralBackend) Name() string {
	return "ephemeral"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (eb *EphemeralBackend) Open(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.opened = true
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (eb *EphemeralBackend) Close(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nodes.Clear()
	clear(eb.owned)
	clear(eb.snapshots)
	clear(eb.settings)

	eb.opened = false
	eb.active = nil
	return nil
}

func nodeKey(parent, name, snapshot string) string {
	return parent + separator + name + separator + snapshot
}

func (eb *EphemeralBackend) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if !eb.opened {
		return nil, data.ErrIndexNotOpen
	}

	snapshots := make([]*data.Snapshot, 0, len(eb.snapshots))
	for _, snapshot := range eb.snapshots {
		snapshots = append(snapshots, snapshot)
	}

	index.SortSnapshots(snapshots)
	return snapshots, nil
}

func (eb *EphemeralBackend) DeleteSnapshot(ctx context.Context, id string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if !eb.opened {
		return data.ErrIndexNotOpen
	}

	delete(eb.snapshots, id)
	for _, key := range eb.owned[id] {
		eb.nodes.Delete(key)
	}
	delete(eb.owned, id)

	return nil
}

func (eb *EphemeralBackend) Begin(ctx context.Context, snapshot *data.Snapshot) (index.Transaction, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if !eb.opened {
		return nil, data.ErrIndexNotOpen
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if eb.active != nil {
		return nil, data.ErrTransactionActive
	}
	if _, exists := eb.snapshots[snapshot.ID]; exists {
		return nil, fmt.Errorf("%w: %s", data.ErrSnapshotExists, snapshot.ID)
	}

	tx := &ephemeralTransaction{
		backend:   eb,
		id:        data.NewTransactionID(),
		snapshot:  snapshot,
		aggregate: index.NewAggregate(),
	}
	eb.active = tx

	return tx, nil
}

func (eb *EphemeralBackend) Setting(ctx context.Context, key string) (string, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if !eb.opened {
		return "", data.ErrIndexNotOpen
	}

	return eb.settings[key], nil
}

func (eb *EphemeralBackend) PutSetting(ctx context.Context, key, value string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if !eb.opened {
		return data.ErrIndexNotOpen
	}

	eb.settings[key] = value
	return nil
}

func (eb *EphemeralBackend) MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if !eb.opened {
		return nil, data.ErrIndexNotOpen
	}

	dir := data.CleanPath(path)
	prefix := dir + separator

	sizes := make(map[string]uint64)
	eb.nodes.Ascend(prefix, func(key string, size uint64) bool {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			return false
		}

		name, snapshot, _ := strings.Cut(rest, separator)
		if _, present := eb.snapshots[snapshot]; !present {
			return true
		}

		if current, ok := sizes[name]; !ok || size > current {
			sizes[name] = size
		}
		return true
	})

	if len(sizes) == 0 && dir != data.RootPath && eb.isRecorded(dir) {
		return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, dir)
	}

	return data.EntriesFromMap(sizes), nil
}

// isRecorded checks whether path was observed by any finished snapshot.
// MUST be called while holding at least a read lock.
func (eb *EphemeralBackend) isRecorded(path string) bool {
	parent, name := data.SplitPath(path)
	for id := range eb.snapshots {
		if _, ok := eb.nodes.Get(nodeKey(parent, name, id)); ok {
			return true
		}
	}

	return false
}

type ephemeralTransaction struct {
	backend   *EphemeralBackend
	id        string
	snapshot  *data.Snapshot
	aggregate *index.Aggregate
	closed    bool
}

func (tx *ephemeralTransaction) ID() string {
	return tx.id
}

func (tx *ephemeralTransaction) Snapshot() *data.Snapshot {
	return tx.snapshot
}

func (tx *ephemeralTransaction) Insert(ctx context.Context, file data.File) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	tx.aggregate.Add(file)
	return nil
}

func (tx *ephemeralTransaction) Finish(ctx context.Context) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	eb := tx.backend
	eb.mu.Lock()
	defer eb.mu.Unlock()

	tx.closed = true
	eb.active = nil

	if !eb.opened {
		return data.ErrIndexNotOpen
	}

	keys := make([]string, 0, tx.aggregate.Nodes())
	for dir, children := range tx.aggregate.Directories() {
		for name, size := range children {
			key := nodeKey(dir, name, tx.snapshot.ID)
			eb.nodes.Set(key, size)
			keys = append(keys, key)
		}
	}

	eb.owned[tx.snapshot.ID] = keys
	eb.snapshots[tx.snapshot.ID] = tx.snapshot

	return nil
}

func (tx *ephemeralTransaction) Abort(ctx context.Context) error {
	if tx.closed {
		return nil
	}

	eb := tx.backend
	eb.mu.Lock()
	defer eb.mu.Unlock()

	tx.closed = true
	eb.active = nil
	return nil
}
