// Package snapdu keeps a local size index of every snapshot in a restic
// repository and answers which entries below a path were ever the largest.
package snapdu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
	"github.com/mwantia/snapdu/log"
	"github.com/mwantia/snapdu/restic"
)

// Engine owns the local index of one repository. Sync, Reconcile and Ingest
// are serialized, queries may run concurrently with them.
type Engine struct {
	mu     sync.RWMutex
	writer sync.Mutex
	log    *log.Logger

	options *EngineOptions
	source  Source
	backend index.Backend

	repository *data.RepositoryConfig
}

func NewEngine(opts ...EngineOption) (*Engine, error) {
	options := newDefaultEngineOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewLogger("snapdu", options.LogLevel, options.LogFile, options.NoTerminalLog)
		logger.JSON = options.JSONLog
	}

	source := options.Source
	if source == nil {
		resticOpts := append([]restic.ResticOption{
			restic.WithLogger(logger.Named("restic")),
		}, options.ResticOptions...)

		source = &resticSource{
			Restic: restic.New(resticOpts...),
		}
	}

	return &Engine{
		log:     logger,
		options: options,
		source:  source,
	}, nil
}

// Open reads the repository config and opens the index namespaced by its id.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend != nil {
		return nil
	}

	config, err := e.source.Config(ctx)
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	if config.ID == "" {
		return ErrMissingRepositoryID
	}

	backend := e.options.Index
	if backend == nil {
		backend, err = ParseIndexAddress(e.options.IndexAddress, config.ID, e.options.CacheDir)
		if err != nil {
			return err
		}
	}

	if err := backend.Open(ctx); err != nil {
		return fmt.Errorf("failed to open index '%s': %w", backend.Name(), err)
	}

	if err := e.applyExclude(ctx, backend); err != nil {
		return errors.Join(err, backend.Close(context.WithoutCancel(ctx)))
	}

	e.log.Debug("Opened '%s' index for repository %s", backend.Name(), config.ID)

	e.repository = config
	e.backend = backend
	return nil
}

// Close releases the index. The engine can be opened again afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend == nil {
		return nil
	}

	err := e.backend.Close(ctx)
	e.backend = nil
	return err
}

// RepositoryID returns the id of the opened repository, or "" before Open.
func (e *Engine) RepositoryID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.repository == nil {
		return ""
	}

	return e.repository.ID
}

func (e *Engine) index() (index.Backend, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.backend == nil {
		return nil, data.ErrIndexNotOpen
	}

	return e.backend, nil
}

// MaxSizesUnder returns every direct child of path with the largest size
// observed at or beneath it in any indexed snapshot.
func (e *Engine) MaxSizesUnder(ctx context.Context, path string) ([]*data.Entry, error) {
	backend, err := e.index()
	if err != nil {
		return nil, err
	}

	return backend.MaxSizesUnder(ctx, path)
}

// Snapshots lists the locally indexed snapshots.
func (e *Engine) Snapshots(ctx context.Context) ([]*data.Snapshot, error) {
	backend, err := e.index()
	if err != nil {
		return nil, err
	}

	return backend.Snapshots(ctx)
}
