package restic

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/log"
)

const DefaultExecutable = "restic"

// Restic drives the restic command line interface with a fixed set of global flags.
type Restic struct {
	executable      string
	repository      string
	passwordCommand string
	env             []string

	log *log.Logger
}

type ResticOption func(*Restic)

// WithExecutable overrides the restic binary, looked up in PATH when not absolute.
func WithExecutable(executable string) ResticOption {
	return func(r *Restic) {
		if executable != "" {
			r.executable = executable
		}
	}
}

// WithRepository sets the value passed as --repo.
func WithRepository(repository string) ResticOption {
	return func(r *Restic) {
		r.repository = repository
	}
}

// WithPasswordCommand sets the value passed as --password-command.
func WithPasswordCommand(command string) ResticOption {
	return func(r *Restic) {
		r.passwordCommand = command
	}
}

// WithEnv appends KEY=VALUE pairs to the environment of every invocation.
func WithEnv(env ...string) ResticOption {
	return func(r *Restic) {
		r.env = append(r.env, env...)
	}
}

func WithLogger(logger *log.Logger) ResticOption {
	return func(r *Restic) {
		if logger != nil {
			r.log = logger
		}
	}
}

func New(opts ...ResticOption) *Restic {
	r := &Restic{
		executable: DefaultExecutable,
		log:        log.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Config returns the repository config; its id namespaces the local index.
func (r *Restic) Config(ctx context.Context) (*data.RepositoryConfig, error) {
	return runGreedy[*data.RepositoryConfig](ctx, r, "cat", "config")
}

// Snapshots returns the remote snapshot catalog in the order restic reports it.
func (r *Restic) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	return runGreedy[[]*data.Snapshot](ctx, r, "snapshots")
}

// Ls streams the file records of one snapshot. The returned stream must be
// drained or closed, otherwise restic blocks on its full stdout pipe.
func (r *Restic) Ls(ctx context.Context, snapshotID string) (*Stream[data.File], error) {
	return runStream(ctx, r, decodeFile, "ls", snapshotID)
}

// decodeFile accepts objects with a string path and a non-negative integer size.
// Any other valid JSON value is skipped.
func decodeFile(line []byte) (data.File, bool, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal(line, &node); err != nil {
		if !json.Valid(line) {
			return data.File{}, false, err
		}
		return data.File{}, false, nil
	}

	rawPath, ok := node["path"]
	if !ok {
		return data.File{}, false, nil
	}
	rawSize, ok := node["size"]
	if !ok {
		return data.File{}, false, nil
	}

	var path string
	if err := json.Unmarshal(rawPath, &path); err != nil || path == "" {
		return data.File{}, false, nil
	}

	size, err := strconv.ParseUint(string(rawSize), 10, 64)
	if err != nil {
		return data.File{}, false, nil
	}

	return data.File{Path: path, Size: size}, true, nil
}
