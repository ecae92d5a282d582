package cmd

import "github.com/mwantia/snapdu/data"

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments (command-specific)
	Args []string

	// Parsed flags
	Flags map[string]any

	// Raw unparsed arguments (for custom parsing)
	Raw []string
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string `json:"name"`              // e.g., "type" or "t"
	Short       string `json:"short"`             // Single-char shorthand (e.g., "t")
	Type        string `json:"type"`              // "string", "bool", "int", "stringSlice"
	Default     any    `json:"default,omitempty"` // Default value
	Required    bool   `json:"required"`          // Must be provided
	Description string `json:"description"`       // Help text
	Multiple    bool   `json:"multiple"`          // Can be specified multiple times
}

func (ca *CommandArgs) String(name string) string {
	value, _ := ca.Flags[name].(string)
	return value
}

func (ca *CommandArgs) Int(name string) int64 {
	value, _ := ca.Flags[name].(int64)
	return value
}

func (ca *CommandArgs) Bool(name string) bool {
	value, _ := ca.Flags[name].(bool)
	return value
}

func (ca *CommandArgs) Strings(name string) []string {
	switch value := ca.Flags[name].(type) {
	case []string:
		return value
	case string:
		return []string{value}
	default:
		return nil
	}
}

// Path returns the first positional argument as cleaned path, or the root.
func (ca *CommandArgs) Path() string {
	if len(ca.Args) == 0 {
		return data.RootPath
	}

	return data.CleanPath(ca.Args[0])
}
