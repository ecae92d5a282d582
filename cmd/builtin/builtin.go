package builtin

import (
	"github.com/mwantia/snapdu/cmd"
	"github.com/mwantia/snapdu/log"
)

// Builtins returns every builtin command. The schedule sets the default of
// the watch command and may be empty.
func Builtins(logger *log.Logger, schedule string) []cmd.Command {
	return []cmd.Command{
		&SyncCommand{},
		&LsCommand{},
		&TreeCommand{},
		&SnapshotsCommand{},
		&WatchCommand{Logger: logger, Schedule: schedule},
	}
}
