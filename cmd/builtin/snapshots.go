package builtin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mwantia/snapdu/cmd"
)

type SnapshotsCommand struct {
}

// Name returns the command identifier
func (sc *SnapshotsCommand) Name() string {
	return "snapshots"
}

// Description returns human-readable help text
func (sc *SnapshotsCommand) Description() string {
	return "List the snapshots present in the local index"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (sc *SnapshotsCommand) Usage() string {
	return "snapshots"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (sc *SnapshotsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	snapshots, err := api.Snapshots(ctx)
	if err != nil {
		return 1, err
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTime\tHost\tPaths")
	for _, s := range snapshots {
		id := s.ShortID
		if id == "" {
			id = shortID(s.ID)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, s.Time.Local().Format(time.DateTime), s.Hostname, strings.Join(s.Paths, ", "))
	}

	if err := tw.Flush(); err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "%d snapshots in repository %s\n", len(snapshots), api.RepositoryID())
	return 0, nil
}

// GetFlags returns the flag set for this command (this is optional)
func (sc *SnapshotsCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
