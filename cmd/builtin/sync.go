package builtin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/snapdu"
	"github.com/mwantia/snapdu/cmd"
)

type SyncCommand struct {
}

// Name returns the command identifier
func (sc *SyncCommand) Name() string {
	return "sync"
}

// Description returns human-readable help text
func (sc *SyncCommand) Description() string {
	return "Bring the local index in line with the repository"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (sc *SyncCommand) Usage() string {
	return "sync"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (sc *SyncCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	result, err := api.Sync(ctx)
	if result != nil {
		printSyncResult(writer, result)
	}
	if err != nil {
		return 1, err
	}

	return 0, nil
}

func printSyncResult(writer io.Writer, result *snapdu.SyncResult) {
	for _, id := range result.Deleted {
		fmt.Fprintf(writer, "deleted  %s\n", shortID(id))
	}

	for _, fetched := range result.Fetched {
		fmt.Fprintf(writer, "fetched  %s  %s files, %s listed in %s\n",
			shortID(fetched.SnapshotID),
			humanize.Comma(fetched.Files),
			humanize.Bytes(uint64(fetched.BytesRead)),
			fetched.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(writer, "%d deleted, %d fetched, %d unchanged\n", len(result.Deleted), len(result.Fetched), result.Unchanged)
}

// GetFlags returns the flag set for this command (this is optional)
func (sc *SyncCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
