package snapdu

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mwantia/snapdu/index"
	"github.com/mwantia/snapdu/log"
	"github.com/mwantia/snapdu/restic"
)

// DefaultProgressInterval is the number of records between progress log lines.
const DefaultProgressInterval = 100_000

type EngineOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool
	JSONLog       bool
	Logger        *log.Logger

	Source        Source
	ResticOptions []restic.ResticOption

	IndexAddress string
	CacheDir     string
	Index        index.Backend

	Exclude          []string
	ProgressInterval int
}

type EngineOption func(*EngineOptions) error

func newDefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		LogLevel:         log.Info,
		ProgressInterval: DefaultProgressInterval,
	}
}

func WithLogLevel(logLevel log.LogLevel) EngineOption {
	return func(opts *EngineOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() EngineOption {
	return func(opts *EngineOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) EngineOption {
	return func(opts *EngineOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

func WithJSONLog() EngineOption {
	return func(opts *EngineOptions) error {
		opts.JSONLog = true
		return nil
	}
}

// WithLogger replaces the logger built from the other log options.
func WithLogger(logger *log.Logger) EngineOption {
	return func(opts *EngineOptions) error {
		opts.Logger = logger
		return nil
	}
}

// WithRestic configures the restic command runner used as source.
func WithRestic(resticOpts ...restic.ResticOption) EngineOption {
	return func(opts *EngineOptions) error {
		opts.ResticOptions = append(opts.ResticOptions, resticOpts...)
		return nil
	}
}

// WithSource replaces the restic command runner entirely.
func WithSource(source Source) EngineOption {
	return func(opts *EngineOptions) error {
		if source == nil {
			return fmt.Errorf("%w: source cannot be nil", ErrInvalidOption)
		}

		opts.Source = source
		return nil
	}
}

// WithIndexAddress selects the index backend, see ParseIndexAddress.
func WithIndexAddress(address string) EngineOption {
	return func(opts *EngineOptions) error {
		opts.IndexAddress = address
		return nil
	}
}

func WithCacheDir(cacheDir string) EngineOption {
	return func(opts *EngineOptions) error {
		opts.CacheDir = cacheDir
		return nil
	}
}

// WithIndex uses an already constructed backend instead of resolving an address.
// The engine still opens and closes it.
func WithIndex(backend index.Backend) EngineOption {
	return func(opts *EngineOptions) error {
		if backend == nil {
			return fmt.Errorf("%w: index cannot be nil", ErrInvalidOption)
		}

		opts.Index = backend
		return nil
	}
}

// WithExclude drops every file matching one of the doublestar patterns, or
// lying beneath a directory matching one, before it reaches the index.
// Patterns are matched against the path without its leading slash.
func WithExclude(patterns ...string) EngineOption {
	return func(opts *EngineOptions) error {
		for _, pattern := range patterns {
			if !doublestar.ValidatePattern(normalizePattern(pattern)) {
				return fmt.Errorf("%w: %s", ErrInvalidExclude, pattern)
			}
		}

		opts.Exclude = append(opts.Exclude, patterns...)
		return nil
	}
}

func WithProgressInterval(records int) EngineOption {
	return func(opts *EngineOptions) error {
		if records <= 0 {
			return fmt.Errorf("%w: progress interval must be positive", ErrInvalidOption)
		}

		opts.ProgressInterval = records
		return nil
	}
}
