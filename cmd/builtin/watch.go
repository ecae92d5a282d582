package builtin

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mwantia/snapdu/cmd"
	"github.com/mwantia/snapdu/log"
	"github.com/robfig/cron/v3"
)

type WatchCommand struct {
	Logger *log.Logger
	// Schedule is used when no --schedule flag is given
	Schedule string
}

// Name returns the command identifier
func (wc *WatchCommand) Name() string {
	return "watch"
}

// Description returns human-readable help text
func (wc *WatchCommand) Description() string {
	return "Sync on a cron schedule until interrupted"
}

// Usage returns a usage string for help (e.g. "ls -al [path]")
func (wc *WatchCommand) Usage() string {
	return "watch [-s schedule] [--now]"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (wc *WatchCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	logger := wc.Logger
	if logger == nil {
		logger = log.Discard()
	}
	adapter := &cronLogger{log: logger.Named("watch")}

	run := func() {
		result, err := api.Sync(ctx)
		if result != nil {
			printSyncResult(writer, result)
		}
		if err != nil {
			adapter.log.Error("Sync failed: %v", err)
		}
	}

	// A run still in progress makes the next tick a no-op, keeping a single writer
	scheduler := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	schedule := args.String("schedule")
	if _, err := scheduler.AddFunc(schedule, run); err != nil {
		return 1, fmt.Errorf("invalid schedule '%s': %w", schedule, err)
	}

	if args.Bool("now") {
		run()
	}

	adapter.log.Info("Watching repository %s on schedule '%s'", api.RepositoryID(), schedule)
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()

	return 0, nil
}

// GetFlags returns the flag set for this command (this is optional)
func (wc *WatchCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"schedule": {
				Name:        "schedule",
				Short:       "s",
				Type:        "string",
				Default:     wc.defaultSchedule(),
				Description: "Cron expression or descriptor such as @every 30m",
			},
			"now": {
				Name:        "now",
				Type:        "bool",
				Description: "Sync once before waiting for the first tick",
			},
		},
	}
}

func (wc *WatchCommand) defaultSchedule() string {
	if wc.Schedule == "" {
		return "@hourly"
	}

	return wc.Schedule
}

// cronLogger routes scheduler messages into the leveled logger.
type cronLogger struct {
	log *log.Logger
}

func (cl *cronLogger) Info(msg string, keysAndValues ...any) {
	cl.log.Debug("%s%s", msg, formatKeysAndValues(keysAndValues))
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	cl.log.Error("%s: %v%s", msg, err, formatKeysAndValues(keysAndValues))
}

func formatKeysAndValues(keysAndValues []any) string {
	var sb strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}

	return sb.String()
}
