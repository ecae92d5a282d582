package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mwantia/snapdu"
	"github.com/mwantia/snapdu/log"
	"github.com/mwantia/snapdu/restic"
	"github.com/robfig/cron/v3"
)

// Validate checks every value that would otherwise only fail at runtime.
func (c *Config) Validate() error {
	if _, err := log.Parse(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if c.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
			return fmt.Errorf("watch.schedule: %w", err)
		}
	}

	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(strings.TrimPrefix(pattern, "/")) {
			return fmt.Errorf("exclude: %w: %s", snapdu.ErrInvalidExclude, pattern)
		}
	}

	for _, env := range c.Restic.Env {
		if !strings.Contains(env, "=") {
			return fmt.Errorf("restic.env: expected KEY=VALUE, got '%s'", env)
		}
	}

	return nil
}

// Options maps the configuration onto engine options.
func (c *Config) Options() ([]snapdu.EngineOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	level, _ := log.Parse(c.Logging.Level)
	opts := []snapdu.EngineOption{
		snapdu.WithLogLevel(level),
	}

	if c.Logging.File != "" {
		opts = append(opts, snapdu.WithLogFile(c.Logging.File))
	}
	if c.Logging.JSON {
		opts = append(opts, snapdu.WithJSONLog())
	}
	if c.Logging.NoTerminal {
		opts = append(opts, snapdu.WithoutTerminalLog())
	}

	resticOpts := []restic.ResticOption{}
	if c.Restic.Executable != "" {
		resticOpts = append(resticOpts, restic.WithExecutable(c.Restic.Executable))
	}
	if c.Restic.Repository != "" {
		resticOpts = append(resticOpts, restic.WithRepository(c.Restic.Repository))
	}
	if c.Restic.PasswordCommand != "" {
		resticOpts = append(resticOpts, restic.WithPasswordCommand(c.Restic.PasswordCommand))
	}
	if len(c.Restic.Env) > 0 {
		resticOpts = append(resticOpts, restic.WithEnv(c.Restic.Env...))
	}
	opts = append(opts, snapdu.WithRestic(resticOpts...))

	if c.Index.Address != "" {
		opts = append(opts, snapdu.WithIndexAddress(c.Index.Address))
	}
	if c.Index.CacheDir != "" {
		opts = append(opts, snapdu.WithCacheDir(c.Index.CacheDir))
	}
	if len(c.Exclude) > 0 {
		opts = append(opts, snapdu.WithExclude(c.Exclude...))
	}

	return opts, nil
}
