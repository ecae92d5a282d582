package index

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/snapdu/data"
)

// KeyValueStore is the storage primitive used by key/value based backends.
// Keys are slash separated; implementations map them onto their own key space.
type KeyValueStore interface {
	// Name returns the identifier name defined for this store
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// DeleteTree removes all keys starting with prefix.
	DeleteTree(ctx context.Context, prefix string) error
}

// KVBackend stores the size index in a KeyValueStore:
//
//	<namespace>/snapshots/<id>       membership record, written last
//	<namespace>/nodes/<id>/<dir>     child name -> max size of one directory
//	<namespace>/settings/<key>       namespace wide value
//
// A snapshot is visible only through its membership record, so node values
// written by an unfinished transaction are never reported.
type KVBackend struct {
	mu    sync.RWMutex
	store KeyValueStore

	namespace string
	root      string
	opened    bool
	active    *kvTransaction
}

type kvMembership struct {
	Snapshot      json.RawMessage `json:"snapshot"`
	TransactionID string          `json:"transaction_id"`
	IndexedAt     time.Time       `json:"indexed_at"`
}

func NewKVBackend(store KeyValueStore, namespace string) *KVBackend {
	return &KVBackend{
		store:     store,
		namespace: namespace,
		root:      url.PathEscape(namespace) + "/",
	}
}

// Name returns the identifier name of the underlying store
func (kb *KVBackend) Name() string {
	return kb.store.Name()
}

func (kb *KVBackend) Open(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if err := kb.store.Open(ctx); err != nil {
		return fmt.Errorf("%w: %v", data.ErrIndexUnavailable, err)
	}

	kb.opened = true
	return nil
}

func (kb *KVBackend) Close(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	kb.opened = false
	kb.active = nil
	return kb.store.Close(ctx)
}

func (kb *KVBackend) snapshotsPrefix() string {
	return kb.root + "snapshots/"
}

func (kb *KVBackend) snapshotKey(id string) string {
	return kb.snapshotsPrefix() + url.PathEscape(id)
}

func (kb *KVBackend) nodesPrefix(id string) string {
	return kb.root + "nodes/" + url.PathEscape(id) + "/"
}

func (kb *KVBackend) nodeKey(id, dir string) string {
	return kb.nodesPrefix(id) + url.PathEscape(dir)
}

func (kb *KVBackend) settingKey(key string) string {
	return kb.root + "settings/" + url.PathEscape(key)
}

// memberIDs returns the ids of all finished snapshots.
// MUST be called while holding at least a read lock.
func (kb *KVBackend) memberIDs(ctx context.Context) ([]string, error) {
	keys, err := kb.store.Keys(ctx, kb.snapshotsPrefix())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id, err := url.PathUnescape(strings.TrimPrefix(key, kb.snapshotsPrefix()))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (kb *KVBackend) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if !kb.opened {
		return nil, data.ErrIndexNotOpen
	}

	ids, err := kb.memberIDs(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*data.Snapshot, 0, len(ids))
	for _, id := range ids {
		value, ok, err := kb.store.Get(ctx, kb.snapshotKey(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var member kvMembership
		if err := json.Unmarshal(value, &member); err != nil {
			return nil, fmt.Errorf("failed to decode membership of '%s': %w", id, err)
		}

		snapshot, err := data.DecodeSnapshot(id, member.Snapshot)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	SortSnapshots(snapshots)
	return snapshots, nil
}

func (kb *KVBackend) DeleteSnapshot(ctx context.Context, id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if !kb.opened {
		return data.ErrIndexNotOpen
	}

	// Membership goes first so the snapshot stops contributing immediately
	if err := kb.store.Delete(ctx, kb.snapshotKey(id)); err != nil {
		return err
	}

	return kb.store.DeleteTree(ctx, kb.nodesPrefix(id))
}

func (kb *KVBackend) Begin(ctx context.Context, snapshot *data.Snapshot) (Transaction, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if !kb.opened {
		return nil, data.ErrIndexNotOpen
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if kb.active != nil {
		return nil, data.ErrTransactionActive
	}

	_, exists, err := kb.store.Get(ctx, kb.snapshotKey(snapshot.ID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", data.ErrSnapshotExists, snapshot.ID)
	}

	// Leftovers of an interrupted Finish are invisible but still occupy space
	if err := kb.store.DeleteTree(ctx, kb.nodesPrefix(snapshot.ID)); err != nil {
		return nil, err
	}

	tx := &kvTransaction{
		backend:   kb,
		id:        data.NewTransactionID(),
		snapshot:  snapshot,
		aggregate: NewAggregate(),
	}
	kb.active = tx

	return tx, nil
}

func (kb *KVBackend) Setting(ctx context.Context, key string) (string, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if !kb.opened {
		return "", data.ErrIndexNotOpen
	}

	value, _, err := kb.store.Get(ctx, kb.settingKey(key))
	if err != nil {
		return "", err
	}

	return string(value), nil
}

func (kb *KVBackend) PutSetting(ctx context.Context, key, value string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if !kb.opened {
		return data.ErrIndexNotOpen
	}

	return kb.store.Put(ctx, kb.settingKey(key), []byte(value))
}

func (kb *KVBackend) MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if !kb.opened {
		return nil, data.ErrIndexNotOpen
	}

	ids, err := kb.memberIDs(ctx)
	if err != nil {
		return nil, err
	}

	dir := data.CleanPath(path)
	sizes := make(map[string]uint64)
	for _, id := range ids {
		children, err := kb.readChildren(ctx, id, dir)
		if err != nil {
			return nil, err
		}
		Merge(sizes, children)
	}

	if len(sizes) == 0 && dir != data.RootPath {
		parent, name := data.SplitPath(dir)
		for _, id := range ids {
			children, err := kb.readChildren(ctx, id, parent)
			if err != nil {
				return nil, err
			}
			if _, ok := children[name]; ok {
				return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, dir)
			}
		}
	}

	return data.EntriesFromMap(sizes), nil
}

func (kb *KVBackend) readChildren(ctx context.Context, id, dir string) (map[string]uint64, error) {
	value, ok, err := kb.store.Get(ctx, kb.nodeKey(id, dir))
	if err != nil || !ok {
		return nil, err
	}

	var children map[string]uint64
	if err := json.Unmarshal(value, &children); err != nil {
		return nil, fmt.Errorf("failed to decode directory '%s' of '%s': %w", dir, id, err)
	}

	return children, nil
}

// SortSnapshots orders snapshots chronologically, ties broken by id.
func SortSnapshots(snapshots []*data.Snapshot) {
	slices.SortFunc(snapshots, func(a, b *data.Snapshot) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

type kvTransaction struct {
	backend   *KVBackend
	id        string
	snapshot  *data.Snapshot
	aggregate *Aggregate
	closed    bool
}

func (tx *kvTransaction) ID() string {
	return tx.id
}

func (tx *kvTransaction) Snapshot() *data.Snapshot {
	return tx.snapshot
}

func (tx *kvTransaction) Insert(ctx context.Context, file data.File) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	tx.aggregate.Add(file)
	return nil
}

func (tx *kvTransaction) Finish(ctx context.Context) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	kb := tx.backend
	kb.mu.Lock()
	defer kb.mu.Unlock()

	tx.closed = true
	kb.active = nil

	if err := tx.write(ctx); err != nil {
		errs := &data.Errors{}
		errs.Add(err)
		errs.Add(kb.store.DeleteTree(ctx, kb.nodesPrefix(tx.snapshot.ID)))
		return errs.Errors()
	}

	return nil
}

// write stores every directory first and the membership record last.
// MUST be called while holding a write lock.
func (tx *kvTransaction) write(ctx context.Context) error {
	kb := tx.backend
	for dir, children := range tx.aggregate.Directories() {
		value, err := json.Marshal(children)
		if err != nil {
			return err
		}
		if err := kb.store.Put(ctx, kb.nodeKey(tx.snapshot.ID, dir), value); err != nil {
			return err
		}
	}

	raw, err := data.EncodeSnapshot(tx.snapshot)
	if err != nil {
		return err
	}

	member, err := json.Marshal(kvMembership{
		Snapshot:      raw,
		TransactionID: tx.id,
		IndexedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return kb.store.Put(ctx, kb.snapshotKey(tx.snapshot.ID), member)
}

func (tx *kvTransaction) Abort(ctx context.Context) error {
	if tx.closed {
		return nil
	}

	kb := tx.backend
	kb.mu.Lock()
	defer kb.mu.Unlock()

	tx.closed = true
	kb.active = nil
	tx.aggregate = NewAggregate()
	return nil
}
