package index

import (
	"context"

	"github.com/mwantia/snapdu/data"
)

// Backend is the persistent size index of a single repository namespace.
type Backend interface {
	// Name returns the identifier name defined for this backend
	Name() string
	// Open is part of the lifecycle behaviour and prepares storage and schema.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and releases all resources.
	Close(ctx context.Context) error

	// Snapshots lists every snapshot whose ingestion has finished.
	Snapshots(ctx context.Context) ([]*data.Snapshot, error)
	// DeleteSnapshot removes a snapshot and every observation it contributed.
	// Deleting an unknown snapshot is not an error.
	DeleteSnapshot(ctx context.Context, id string) error
	// Begin starts the ingestion of one snapshot. Only one transaction may be active.
	Begin(ctx context.Context, snapshot *data.Snapshot) (Transaction, error)

	// Setting returns a namespace wide value, or "" when it was never stored.
	Setting(ctx context.Context, key string) (string, error)
	// PutSetting stores a namespace wide value, replacing any previous one.
	PutSetting(ctx context.Context, key, value string) error

	// MaxSizesUnder returns each direct child of path with the largest size
	// observed at or beneath it across all indexed snapshots.
	MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error)
}

// Transaction collects the file records of one snapshot. Nothing becomes
// visible before Finish returns successfully.
type Transaction interface {
	// ID returns the unique identifier generated for this transaction.
	ID() string
	// Snapshot returns the snapshot being ingested.
	Snapshot() *data.Snapshot
	// Insert adds one file observation.
	Insert(ctx context.Context, file data.File) error
	// Finish commits all observations together with the snapshot membership.
	Finish(ctx context.Context) error
	// Abort discards the transaction. It is a no-op once the transaction is closed.
	Abort(ctx context.Context) error
}
