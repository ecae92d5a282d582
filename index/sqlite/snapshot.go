package sqlite

import (
	"context"

	"github.com/mwantia/snapdu/data"
)

func (sb *SQLiteBackend) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if !sb.opened {
		return nil, data.ErrIndexNotOpen
	}

	rows, err := sb.db.QueryContext(ctx, `
		SELECT id, snapshot FROM snapdu_snapshots
		WHERE namespace = ? ORDER BY time, id
	`, sb.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*data.Snapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}

		snapshot, err := data.DecodeSnapshot(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, rows.Err()
}

func (sb *SQLiteBackend) DeleteSnapshot(ctx context.Context, id string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.opened {
		return data.ErrIndexNotOpen
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapdu_snapshots WHERE namespace = ? AND id = ?", sb.namespace, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapdu_nodes WHERE namespace = ? AND snapshot_id = ?", sb.namespace, id); err != nil {
		return err
	}

	return tx.Commit()
}

// exists checks for a membership record.
// MUST be called while holding at least a read lock.
func (sb *SQLiteBackend) exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := sb.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM snapdu_snapshots WHERE namespace = ? AND id = ?
	`, sb.namespace, id).Scan(&count)

	return count > 0, err
}
