package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses user-defined arguments into flags
type Parser struct {
	flagSet *CommandFlagSet
	// stopAtArg ends flag parsing at the first positional argument
	stopAtArg bool
}

func NewParser(flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = &CommandFlagSet{Flags: make(map[string]*CommandFlag)}
	}

	return &Parser{
		flagSet: flagSet,
	}
}

// NewGlobalParser creates a parser for flags preceding a command name.
// Everything from the first positional argument on is left in Args.
func NewGlobalParser(flagSet *CommandFlagSet) *Parser {
	parser := NewParser(flagSet)
	parser.stopAtArg = true
	return parser
}

func (cp *Parser) Parse(raw []string) (*CommandArgs, error) {
	args := &CommandArgs{
		Flags: make(map[string]any),
		Raw:   raw,
	}

	for flagName, flag := range cp.flagSet.Flags {
		if flag.Default != nil {
			args.Flags[flagName] = flag.Default
		}
	}

	longToName := make(map[string]string)
	shortToName := make(map[string]string)
	for flagName, flag := range cp.flagSet.Flags {
		longToName[flag.Name] = flagName
		if flag.Short != "" {
			shortToName[flag.Short] = flagName
		}
	}

	// Defaults of repeatable flags are replaced, not appended to
	explicit := make(map[string]bool)
	set := func(flagName string, flag *CommandFlag, value string) error {
		coerced, err := coerce(value, flag.Type)
		if err != nil {
			return fmt.Errorf("flag --%s: %w", flag.Name, err)
		}

		if flag.Multiple || flag.Type == "stringSlice" {
			var values []string
			if explicit[flagName] {
				values, _ = args.Flags[flagName].([]string)
			}
			args.Flags[flagName] = append(values, value)
		} else {
			args.Flags[flagName] = coerced
		}

		explicit[flagName] = true
		return nil
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			args.Args = append(args.Args, raw[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "--") {
			key, value, hasValue := parseLongFlag(arg)
			flagName, exists := longToName[key]
			if !exists {
				return nil, fmt.Errorf("unknown flag: --%s", key)
			}

			flag := cp.flagSet.Flags[flagName]
			if flag.Type == "bool" {
				if hasValue {
					if err := set(flagName, flag, value); err != nil {
						return nil, err
					}
				} else {
					args.Flags[flagName] = true
				}
			} else if hasValue {
				if err := set(flagName, flag, value); err != nil {
					return nil, err
				}
			} else if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
				if err := set(flagName, flag, raw[i+1]); err != nil {
					return nil, err
				}
				i++
			} else {
				return nil, fmt.Errorf("flag %s requires a value", key)
			}
			continue
		}

		if strings.HasPrefix(arg, "-") && len(arg) > 1 && arg != "-" {
			shortFlags := arg[1:]

			for j, shortChar := range shortFlags {
				shortStr := string(shortChar)
				flagName, exists := shortToName[shortStr]
				if !exists {
					return nil, fmt.Errorf("unknown flag: -%s", shortStr)
				}

				flag := cp.flagSet.Flags[flagName]

				if flag.Type == "bool" {
					args.Flags[flagName] = true
				} else {
					var value string
					if j+1 < len(shortFlags) {
						value = shortFlags[j+1:]
						if err := set(flagName, flag, value); err != nil {
							return nil, err
						}
						break
					} else if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
						value = raw[i+1]
						if err := set(flagName, flag, value); err != nil {
							return nil, err
						}
						i++
					} else {
						return nil, fmt.Errorf("flag -%s requires a value", shortStr)
					}
				}
			}
			continue
		}

		if cp.stopAtArg {
			args.Args = append(args.Args, raw[i:]...)
			break
		}

		args.Args = append(args.Args, arg)
	}

	for flagName, flag := range cp.flagSet.Flags {
		if flag.Required {
			if _, ok := args.Flags[flagName]; !ok {
				if flag.Short != "" {
					return nil, fmt.Errorf("required flag: -%s / --%s", flag.Short, flag.Name)
				} else {
					return nil, fmt.Errorf("required flag: --%s", flag.Name)
				}
			}
		}
	}

	return args, nil
}

func parseLongFlag(arg string) (key, value string, hasValue bool) {
	arg = strings.TrimPrefix(arg, "--")
	if idx := strings.Index(arg, "="); idx >= 0 {
		return arg[:idx], arg[idx+1:], true
	}
	return arg, "", false
}

func coerce(value string, typeStr string) (any, error) {
	switch typeStr {
	case "string", "stringSlice":
		return value, nil
	case "int":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer '%s'", value)
		}
		return v, nil
	case "bool":
		return value == "true" || value == "1" || value == "yes", nil
	default:
		return value, nil
	}
}
