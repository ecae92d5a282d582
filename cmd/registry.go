package cmd

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
)

// Registry handles command registration, parsing, and execution
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{
		cmds: make(map[string]Command),
	}

	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register registers a custom command
func (r *Registry) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}

	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cmds[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}

	r.cmds[name] = cmd
	return nil
}

// Unregister removes a registered command
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cmds[name]; !exists {
		return fmt.Errorf("command not found: %s", name)
	}

	delete(r.cmds, name)
	return nil
}

// Get returns a command by name
func (r *Registry) Get(name string) (Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.cmds[name]
	if !exists {
		return nil, fmt.Errorf("command not found: %s", name)
	}

	return cmd, nil
}

// List returns all registered commands ordered by name
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]Command, 0, len(r.cmds))
	for _, cmd := range r.cmds {
		commands = append(commands, cmd)
	}

	slices.SortFunc(commands, func(a, b Command) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return commands
}

// Execute parses and executes a command
func (r *Registry) Execute(ctx context.Context, api API, writer io.Writer, args ...string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	cmdName := args[0]
	cmdArgs := args[1:]

	cmd, err := r.Get(cmdName)
	if err != nil {
		return 1, err
	}

	parsedArgs, err := NewParser(cmd.GetFlags()).Parse(cmdArgs)
	if err != nil {
		return 1, fmt.Errorf("parse error: %w", err)
	}

	return cmd.Execute(ctx, api, parsedArgs, writer)
}

// PrintUsage writes every command with its usage and description.
func (r *Registry) PrintUsage(writer io.Writer) {
	for _, cmd := range r.List() {
		fmt.Fprintf(writer, "  %-32s %s\n", cmd.Usage(), cmd.Description())
	}
}
