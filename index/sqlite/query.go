package sqlite

import (
	"context"
	"fmt"

	"github.com/mwantia/snapdu/data"
)

func (sb *SQLiteBackend) MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if !sb.opened {
		return nil, data.ErrIndexNotOpen
	}

	dir := data.CleanPath(path)
	rows, err := sb.db.QueryContext(ctx, `
		SELECT n.name, MAX(n.size) FROM snapdu_nodes n
		JOIN snapdu_snapshots s ON s.namespace = n.namespace AND s.id = n.snapshot_id
		WHERE n.namespace = ? AND n.parent = ?
		GROUP BY n.name
	`, sb.namespace, dir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := make(map[string]uint64)
	for rows.Next() {
		var name string
		var size int64
		if err := rows.Scan(&name, &size); err != nil {
			return nil, err
		}
		sizes[name] = uint64(size)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sizes) == 0 && dir != data.RootPath {
		file, err := sb.isRecorded(ctx, dir)
		if err != nil {
			return nil, err
		}
		if file {
			return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, dir)
		}
	}

	return data.EntriesFromMap(sizes), nil
}

// isRecorded checks whether path was observed by any finished snapshot.
func (sb *SQLiteBackend) isRecorded(ctx context.Context, path string) (bool, error) {
	parent, name := data.SplitPath(path)

	var count int
	err := sb.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM snapdu_nodes n
		JOIN snapdu_snapshots s ON s.namespace = n.namespace AND s.id = n.snapshot_id
		WHERE n.namespace = ? AND n.parent = ? AND n.name = ?
	`, sb.namespace, parent, name).Scan(&count)

	return count > 0, err
}
