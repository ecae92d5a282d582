package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

type postgresTransaction struct {
	backend   *PostgresBackend
	id        string
	snapshot  *data.Snapshot
	aggregate *index.Aggregate
	closed    bool
}

func (pb *PostgresBackend) Begin(ctx context.Context, snapshot *data.Snapshot) (index.Transaction, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.opened {
		return nil, data.ErrIndexNotOpen
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if pb.active != nil {
		return nil, data.ErrTransactionActive
	}

	exists, err := pb.exists(ctx, snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", data.ErrSnapshotExists, snapshot.ID)
	}

	tx := &postgresTransaction{
		backend:   pb,
		id:        data.NewTransactionID(),
		snapshot:  snapshot,
		aggregate: index.NewAggregate(),
	}
	pb.active = tx

	return tx, nil
}

func (tx *postgresTransaction) ID() string {
	return tx.id
}

func (tx *postgresTransaction) Snapshot() *data.Snapshot {
	return tx.snapshot
}

func (tx *postgresTransaction) Insert(ctx context.Context, file data.File) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}
	if file.Size > math.MaxInt64 {
		return fmt.Errorf("file size of '%s' exceeds storable range", file.Path)
	}

	tx.aggregate.Add(file)
	return nil
}

func (tx *postgresTransaction) Finish(ctx context.Context) error {
	if tx.closed {
		return data.ErrTransactionClosed
	}

	pb := tx.backend
	pb.mu.Lock()
	defer pb.mu.Unlock()

	tx.closed = true
	pb.active = nil

	if !pb.opened {
		return data.ErrIndexNotOpen
	}

	raw, err := data.EncodeSnapshot(tx.snapshot)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pb.pool, func(dbtx pgx.Tx) error {
		batch := &pgx.Batch{}
		for dir, children := range tx.aggregate.Directories() {
			for name, size := range children {
				batch.Queue(`
					INSERT INTO snapdu_nodes (namespace, snapshot_id, parent, name, size)
					VALUES ($1, $2, $3, $4, $5)
				`, pb.namespace, tx.snapshot.ID, dir, name, int64(size))

				if batch.Len() >= batchSize {
					if err := dbtx.SendBatch(ctx, batch).Close(); err != nil {
						return fmt.Errorf("failed to insert nodes: %w", err)
					}
					batch = &pgx.Batch{}
				}
			}
		}

		if batch.Len() > 0 {
			if err := dbtx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert nodes: %w", err)
			}
		}

		if _, err := dbtx.Exec(ctx, `
			INSERT INTO snapdu_snapshots (namespace, id, time, transaction_id, indexed_at, snapshot)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		`, pb.namespace, tx.snapshot.ID, tx.snapshot.Time, tx.id, time.Now(), string(raw)); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		return nil
	})
}

func (tx *postgresTransaction) Abort(ctx context.Context) error {
	if tx.closed {
		return nil
	}

	pb := tx.backend
	pb.mu.Lock()
	defer pb.mu.Unlock()

	tx.closed = true
	pb.active = nil
	return nil
}
