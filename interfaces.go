package snapdu

import (
	"context"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/restic"
)

// Source is the remote side of a sync: the repository catalog and the
// per-snapshot file listings.
type Source interface {
	// Config returns the repository config, its id namespaces the local index.
	Config(ctx context.Context) (*data.RepositoryConfig, error)

	// Snapshots returns the complete remote snapshot catalog.
	Snapshots(ctx context.Context) ([]*data.Snapshot, error)

	// Ls starts a listing of every file in the snapshot.
	// The returned listing must be closed by the caller.
	Ls(ctx context.Context, snapshotID string) (Listing, error)
}

// Listing is a one-pass sequence of file records tied to a running listing.
type Listing interface {
	Next() bool
	Record() data.File
	Err() error
	BytesRead() int64
	Close() error
}

// resticSource adapts the command runner to a Source.
type resticSource struct {
	*restic.Restic
}

func (rs *resticSource) Ls(ctx context.Context, snapshotID string) (Listing, error) {
	stream, err := rs.Restic.Ls(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	return stream, nil
}
