package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwantia/snapdu"
	"github.com/mwantia/snapdu/cmd"
	"github.com/mwantia/snapdu/cmd/builtin"
	"github.com/mwantia/snapdu/config"
	"github.com/mwantia/snapdu/log"
)

func globalFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"config":           {Name: "config", Short: "c", Type: "string", Description: "Path to a YAML config file"},
			"repo":             {Name: "repo", Short: "r", Type: "string", Description: "Repository passed to restic --repo"},
			"password-command": {Name: "password-command", Type: "string", Description: "Command passed to restic --password-command"},
			"restic":           {Name: "restic", Type: "string", Description: "Path of the restic executable"},
			"index":            {Name: "index", Short: "i", Type: "string", Description: "Index address, e.g. sqlite://, :ephemeral:, postgres://..."},
			"cache-dir":        {Name: "cache-dir", Type: "string", Description: "Directory holding the default sqlite index"},
			"exclude":          {Name: "exclude", Short: "e", Type: "stringSlice", Multiple: true, Description: "Doublestar pattern of paths to skip, repeatable"},
			"log-level":        {Name: "log-level", Short: "l", Type: "string", Description: "debug, info, warn or error"},
			"log-file":         {Name: "log-file", Type: "string", Description: "Also write logs into this rotated file"},
			"json-log":         {Name: "json-log", Type: "bool", Description: "Write logs as JSON"},
			"help":             {Name: "help", Short: "h", Type: "bool", Description: "Show this help"},
		},
	}
}

func usage(writer io.Writer, registry *cmd.Registry) {
	fmt.Fprintln(writer, "Usage: snapdu [global flags] <command> [flags] [args]")
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "Commands:")
	registry.PrintUsage(writer)
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "Global flags:")

	flags := globalFlags()
	for _, name := range []string{"config", "repo", "password-command", "restic", "index", "cache-dir", "exclude", "log-level", "log-file", "json-log", "help"} {
		flag := flags.Flags[name]
		label := "--" + flag.Name
		if flag.Short != "" {
			label = "-" + flag.Short + ", " + label
		}
		fmt.Fprintf(writer, "  %-32s %s\n", label, flag.Description)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(args *cmd.CommandArgs) (*config.Config, error) {
	cfg := config.Default()
	if path := args.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnvironment()
	}

	if value := args.String("repo"); value != "" {
		cfg.Restic.Repository = value
	}
	if value := args.String("password-command"); value != "" {
		cfg.Restic.PasswordCommand = value
	}
	if value := args.String("restic"); value != "" {
		cfg.Restic.Executable = value
	}
	if value := args.String("index"); value != "" {
		cfg.Index.Address = value
	}
	if value := args.String("cache-dir"); value != "" {
		cfg.Index.CacheDir = value
	}
	if value := args.String("log-level"); value != "" {
		cfg.Logging.Level = value
	}
	if value := args.String("log-file"); value != "" {
		cfg.Logging.File = value
	}
	if args.Bool("json-log") {
		cfg.Logging.JSON = true
	}
	cfg.Exclude = append(cfg.Exclude, args.Strings("exclude")...)

	return cfg, cfg.Validate()
}

func run(ctx context.Context, argv []string, stdout io.Writer) int {
	registry, err := cmd.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup commands: %v\n", err)
		return 1
	}

	global, err := cmd.NewGlobalParser(globalFlags()).Parse(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	cfg, err := loadConfig(global)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	level, _ := log.Parse(cfg.Logging.Level)
	logger := log.NewLogger("snapdu", level, cfg.Logging.File, cfg.Logging.NoTerminal)
	logger.JSON = cfg.Logging.JSON

	for _, command := range builtin.Builtins(logger, cfg.Watch.Schedule) {
		if err := registry.Register(command); err != nil {
			logger.Error("Failed to register command: %v", err)
			return 1
		}
	}

	if global.Bool("help") || len(global.Args) == 0 {
		usage(stdout, registry)
		if len(global.Args) == 0 && !global.Bool("help") {
			return 2
		}
		return 0
	}

	if _, err := registry.Get(global.Args[0]); err != nil {
		logger.Error("%v", err)
		usage(os.Stderr, registry)
		return 2
	}

	opts, err := cfg.Options()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 2
	}

	engine, err := snapdu.NewEngine(append(opts, snapdu.WithLogger(logger))...)
	if err != nil {
		logger.Error("Failed to create engine: %v", err)
		return 1
	}

	if err := engine.Open(ctx); err != nil {
		logger.Error("Failed to open index: %v", err)
		return 1
	}
	defer engine.Close(context.WithoutCancel(ctx))

	code, err := registry.Execute(ctx, engine, stdout, global.Args...)
	if err != nil {
		logger.Error("%s: %v", global.Args[0], err)
	}

	return code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()

	os.Exit(code)
}
