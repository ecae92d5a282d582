package sqlite

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

type sqliteTransaction struct {
	backend   *SQLiteBackend
	id        string
	snapshot  *data.Snapshot
	aggregate *index.Aggregate
	closed    bool
}

func (sb *SQLiteBackend) Begin(ctx context.Context, snapshot *data.Snapshot) (index.Transaction, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.opened {
		return nil, data.ErrIndexNotOpen
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if sb.active != nil {
		return nil, data.ErrTransactionActive
	}

	exists, err := sb.exists(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", data.ErrSnapshotExists, snapshot.ID)
	}

	tx := &sqliteTransaction{
		backend:   sb,
		id:        data.NewTransactionID(),
		snapshot:  snapshot,
		aggregate: index.NewAggregate(),
	}
	sb.active = tx

	return tx, nil
}

func (tx *sqliteTransaction) ID() string {
	return tx.id
}

func (tx *sqliteTransaction) Snapshot() *data.Snapshot {
	return tx.snapshot
}

func (tx *sqliteTransaction) Insert(ctx context.Context, file data.File) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}
	if file.Size > math.MaxInt64 {
		return fmt.Errorf("file size of '%s' exceeds storable range", file.Path)
	}

	tx.aggregate.Add(file)
	return nil
}

func (tx *sqliteTransaction) Finish(ctx context.Context) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	sb := tx.backend
	sb.mu.Lock()
	defer sb.mu.Unlock()

	tx.closed = true
	sb.active = nil

	if !sb.opened {
		return data.ErrIndexNotOpen
	}

	return tx.commit(ctx)
}

// commit writes all nodes and the membership row in one database transaction.
// MUST be called while holding a write lock.
func (tx *sqliteTransaction) commit(ctx context.Context) error {
	sb := tx.backend
	raw, err := data.EncodeSnapshot(tx.snapshot)
	if err != nil {
		return err
	}

	dbtx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO snapdu_nodes (namespace, snapshot_id, parent, name, size)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for dir, children := range tx.aggregate.Directories() {
		for name, size := range children {
			if _, err := stmt.ExecContext(ctx, sb.namespace, tx.snapshot.ID, dir, name, int64(size)); err != nil {
				return fmt.Errorf("failed to insert '%s': %w", data.JoinPath(dir, name), err)
			}
		}
	}

	if _, err := dbtx.ExecContext(ctx, `
		INSERT INTO snapdu_snapshots (namespace, id, time, transaction_id, indexed_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sb.namespace, tx.snapshot.ID, tx.snapshot.Time.UnixNano(), tx.id, time.Now().Unix(), string(raw)); err != nil {
		return err
	}

	return dbtx.Commit()
}

func (tx *sqliteTransaction) Abort(ctx context.Context) error {
	if tx.closed {
		return nil
	}

	sb := tx.backend
	sb.mu.Lock()
	defer sb.mu.Unlock()

	tx.closed = true
	sb.active = nil
	return nil
}
