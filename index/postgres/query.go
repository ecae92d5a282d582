package postgres

import (
	"context"
	"fmt"

	"github.com/mwantia/snapdu/data"
)

func (pb *PostgresBackend) MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if !pb.opened {
		return nil, data.ErrIndexNotOpen
	}

	dir := data.CleanPath(path)
	rows, err := pb.pool.Query(ctx, `
		SELECT n.name, MAX(n.size) FROM snapdu_nodes n
		JOIN snapdu_snapshots s ON s.namespace = n.namespace AND s.id = n.snapshot_id
		WHERE n.namespace = $1 AND n.parent = $2
		GROUP BY n.name
	`, pb.namespace, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	sizes := make(map[string]uint64)
	for rows.Next() {
		var name string
		var size int64
		if err := rows.Scan(&name, &size); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		sizes[name] = uint64(size)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sizes) == 0 && dir != data.RootPath {
		parent, name := data.SplitPath(dir)

		var recorded bool
		if err := pb.pool.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM snapdu_nodes n
				JOIN snapdu_snapshots s ON s.namespace = n.namespace AND s.id = n.snapshot_id
				WHERE n.namespace = $1 AND n.parent = $2 AND n.name = $3
			)
		`, pb.namespace, parent, name).Scan(&recorded); err != nil {
			return nil, fmt.Errorf("failed to query path: %w", err)
		}

		if recorded {
			return nil, fmt.Errorf("%w: %s", data.ErrNotDirectory, dir)
		}
	}

	return data.EntriesFromMap(sizes), nil
}
