package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mwantia/snapdu/data"
)

func (sb *SQLiteBackend) Setting(ctx context.Context, key string) (string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if !sb.opened {
		return "", data.ErrIndexNotOpen
	}

	var value string
	err := sb.db.QueryRowContext(ctx, `
		SELECT value FROM snapdu_settings WHERE namespace = ? AND name = ?
	`, sb.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	return value, err
}

func (sb *SQLiteBackend) PutSetting(ctx context.Context, key, value string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.opened {
		return data.ErrIndexNotOpen
	}

	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO snapdu_settings (namespace, name, value) VALUES (?, ?, ?)
		ON CONFLICT (namespace, name) DO UPDATE SET value = excluded.value
	`, sb.namespace, key, value)
	return err
}
