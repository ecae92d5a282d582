package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/snapdu/data"
)

func (pb *PostgresBackend) Setting(ctx context.Context, key string) (string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if !pb.opened {
		return "", data.ErrIndexNotOpen
	}

	var value string
	err := pb.pool.QueryRow(ctx, `
		SELECT value FROM snapdu_settings WHERE namespace = $1 AND name = $2
	`, pb.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting: %w", err)
	}

	return value, nil
}

func (pb *PostgresBackend) PutSetting(ctx context.Context, key, value string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.opened {
		return data.ErrIndexNotOpen
	}

	if _, err := pb.pool.Exec(ctx, `
		INSERT INTO snapdu_settings (namespace, name, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, name) DO UPDATE SET value = EXCLUDED.value
	`, pb.namespace, key, value); err != nil {
		return fmt.Errorf("failed to store setting: %w", err)
	}

	return nil
}
