package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/mwantia/snapdu/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteBackend persists the size index in SQLite tables:
//
// snapdu_snapshots: one row per finished snapshot, the membership record
// snapdu_nodes:     one row per (snapshot, parent, name) with the largest size beneath it
// snapdu_settings:  namespace wide key/value pairs
//
// Several namespaces can share one database file. Observations only count
// while their snapshot has a membership row, which is written in the same
// database transaction as the observations themselves.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	path      string
	namespace string
	opened    bool
	active    *sqliteTransaction
}

// NewSQLiteBackend creates a new SQLite-backed size index.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath, namespace string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" would see its own database
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	return &SQLiteBackend{
		db:        db,
		path:      dbPath,
		namespace: namespace,
	}, nil
}

// dsn appends per-connection pragmas, since a pooled PRAGMA statement only
// reaches a single connection.
func dsn(path string) string {
	if path == MemoryPath {
		return path
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return path + separator + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema(ctx context.Context) error {
	schema := `
	-- Membership records
	CREATE TABLE IF NOT EXISTS snapdu_snapshots (
		namespace TEXT NOT NULL,
		id TEXT NOT NULL,
		time INTEGER NOT NULL,
		transaction_id TEXT NOT NULL,
		indexed_at INTEGER NOT NULL,
		snapshot TEXT NOT NULL,
		PRIMARY KEY (namespace, id)
	);

	-- Per snapshot child maxima
	CREATE TABLE IF NOT EXISTS snapdu_nodes (
		namespace TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		parent TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL CHECK(size >= 0),
		PRIMARY KEY (namespace, snapshot_id, parent, name)
	);
	CREATE INDEX IF NOT EXISTS idx_snapdu_nodes_parent ON snapdu_nodes(namespace, parent, name);

	-- Namespace settings
	CREATE TABLE IF NOT EXISTS snapdu_settings (
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (namespace, name)
	);
	`

	_, err := sb.db.ExecContext(ctx, schema)
	return err
}

// Returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", data.ErrIndexUnavailable, err)
	}

	if err := sb.initSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	sb.opened = true
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.opened = false
	sb.active = nil
	return sb.db.Close()
}
