package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/snapdu/data"
)

func (pb *PostgresBackend) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if !pb.opened {
		return nil, data.ErrIndexNotOpen
	}

	rows, err := pb.pool.Query(ctx, `
		SELECT id, snapshot::text FROM snapdu_snapshots
		WHERE namespace = $1 ORDER BY time, id
	`, pb.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*data.Snapshot, error) {
		var id, raw string
		if err := row.Scan(&id, &raw); err != nil {
			return nil, err
		}
		return data.DecodeSnapshot(id, []byte(raw))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}

	return snapshots, nil
}

func (pb *PostgresBackend) DeleteSnapshot(ctx context.Context, id string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.opened {
		return data.ErrIndexNotOpen
	}

	return pgx.BeginFunc(ctx, pb.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM snapdu_snapshots WHERE namespace = $1 AND id = $2", pb.namespace, id); err != nil {
			return fmt.Errorf("failed to delete snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM snapdu_nodes WHERE namespace = $1 AND snapshot_id = $2", pb.namespace, id); err != nil {
			return fmt.Errorf("failed to delete nodes: %w", err)
		}

		return nil
	})
}

// exists checks for a membership record.
// MUST be called while holding at least a read lock.
func (pb *PostgresBackend) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := pb.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM snapdu_snapshots WHERE namespace = $1 AND id = $2)
	`, pb.namespace, id).Scan(&exists)

	return exists, err
}
