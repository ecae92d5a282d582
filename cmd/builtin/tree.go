package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/disiqueira/gotree/v3"
	"github.com/mwantia/snapdu/cmd"
	"github.com/mwantia/snapdu/data"
)

type TreeCommand struct {
}

// Name returns the command identifier
func (tc *TreeCommand) Name() string {
	return "tree"
}

// Description returns human-readable help text
func (tc *TreeCommand) Description() string {
	return "Render the largest entries below a path as a tree"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (tc *TreeCommand) Usage() string {
	return "tree [-d depth] [-n limit] [-b] [path]"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (tc *TreeCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	path := args.Path()
	depth := args.Int("depth")
	if depth < 1 {
		return 1, fmt.Errorf("depth must be at least 1")
	}

	tree := gotree.New(path)
	if err := tc.render(ctx, api, tree, path, depth, args.Int("limit"), args.Bool("bytes")); err != nil {
		return 1, err
	}

	_, err := io.WriteString(writer, tree.Print())
	return 0, err
}

func (tc *TreeCommand) render(ctx context.Context, api cmd.API, node gotree.Tree, path string, depth, limit int64, raw bool) error {
	entries, err := api.MaxSizesUnder(ctx, path)
	if err != nil {
		return err
	}

	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}

	for _, entry := range entries {
		child := node.Add(fmt.Sprintf("%s (%s)", entry.Name, formatSize(entry.Size, raw)))
		if depth <= 1 {
			continue
		}

		err := tc.render(ctx, api, child, data.JoinPath(path, entry.Name), depth-1, limit, raw)
		if err != nil && !errors.Is(err, data.ErrNotDirectory) {
			return err
		}
	}

	return nil
}

// GetFlags returns the flag set for this command (this is optional)
func (tc *TreeCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"depth": {
				Name:        "depth",
				Short:       "d",
				Type:        "int",
				Default:     int64(2),
				Description: "Number of levels to descend",
			},
			"limit": {
				Name:        "limit",
				Short:       "n",
				Type:        "int",
				Default:     int64(10),
				Description: "Children shown per directory, 0 shows all",
			},
			"bytes": {
				Name:        "bytes",
				Short:       "b",
				Type:        "bool",
				Description: "Print sizes in bytes",
			},
		},
	}
}
