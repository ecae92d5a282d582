package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/snapdu/cmd"
)

type LsCommand struct {
}

// Name returns the command identifier
func (ls *LsCommand) Name() string {
	return "ls"
}

// Description returns human-readable help text
func (ls *LsCommand) Description() string {
	return "List the children of a path with the largest size ever recorded"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (ls *LsCommand) Usage() string {
	return "ls [-b] [-n limit] [path]"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (ls *LsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	path := args.Path()
	entries, err := api.MaxSizesUnder(ctx, path)
	if err != nil {
		return 1, err
	}

	if limit := args.Int("limit"); limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}

	raw := args.Bool("bytes")
	sizes := make([]string, len(entries))
	width := 0
	for i, entry := range entries {
		sizes[i] = formatSize(entry.Size, raw)
		width = max(width, len(sizes[i]))
	}

	for i, entry := range entries {
		if _, err := fmt.Fprintf(writer, "%*s  %s\n", width, sizes[i], entry.Name); err != nil {
			return 1, err
		}
	}

	return 0, nil
}

// GetFlags returns the flag set for this command (this is optional)
func (ls *LsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"bytes": {
				Name:        "bytes",
				Short:       "b",
				Type:        "bool",
				Description: "Print sizes in bytes",
			},
			"limit": {
				Name:        "limit",
				Short:       "n",
				Type:        "int",
				Default:     int64(0),
				Description: "Print at most this many entries",
			},
		},
	}
}
