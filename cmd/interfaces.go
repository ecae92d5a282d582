package cmd

import (
	"context"
	"io"

	"github.com/mwantia/snapdu"
	"github.com/mwantia/snapdu/data"
)

// API is the part of the engine commands operate on.
type API interface {
	// Sync reconciles the index with the repository and ingests missing snapshots.
	Sync(ctx context.Context) (*snapdu.SyncResult, error)

	// MaxSizesUnder returns the direct children of path with their largest observed size.
	MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error)

	// Snapshots lists the locally indexed snapshots.
	Snapshots(ctx context.Context) ([]*data.Snapshot, error)

	// RepositoryID returns the id of the opened repository.
	RepositoryID() string
}

// Command represents an executable command of the snapdu cli.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls [--bytes] [path]")
	Usage() string

	// Execute runs the command with parsed arguments
	// The writer parameter is where command output should be written
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
