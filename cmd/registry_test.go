package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

type echoCommand struct{}

func (*echoCommand) Name() string        { return "echo" }
func (*echoCommand) Description() string { return "Print arguments" }
func (*echoCommand) Usage() string       { return "echo [-u] [args...]" }

func (*echoCommand) Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error) {
	line := strings.Join(args.Args, " ")
	if args.Bool("upper") {
		line = strings.ToUpper(line)
	}

	fmt.Fprintln(writer, line)
	return 0, nil
}

func (*echoCommand) GetFlags() *CommandFlagSet {
	return &CommandFlagSet{
		Flags: map[string]*CommandFlag{
			"upper": {Name: "upper", Short: "u", Type: "bool"},
		},
	}
}

func TestRegistry_Execute(t *testing.T) {
	registry, err := NewRegistry(&echoCommand{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	var out bytes.Buffer
	code, err := registry.Execute(t.Context(), nil, &out, "echo", "-u", "hello", "world")
	if err != nil || code != 0 {
		t.Fatalf("Execute failed: %d %v", code, err)
	}

	if out.String() != "HELLO WORLD\n" {
		t.Errorf("Expected upper-cased output, got %q", out.String())
	}
}

func TestRegistry_Errors(t *testing.T) {
	registry, err := NewRegistry(&echoCommand{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if err := registry.Register(&echoCommand{}); err == nil {
		t.Errorf("Expected duplicate registration to fail")
	}
	if code, err := registry.Execute(t.Context(), nil, io.Discard); err == nil || code != 1 {
		t.Errorf("Expected error without command, got %d %v", code, err)
	}
	if _, err := registry.Execute(t.Context(), nil, io.Discard, "missing"); err == nil {
		t.Errorf("Expected unknown command error")
	}
	if _, err := registry.Execute(t.Context(), nil, io.Discard, "echo", "--loud"); err == nil {
		t.Errorf("Expected parse error")
	}

	if err := registry.Unregister("echo"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if len(registry.List()) != 0 {
		t.Errorf("Expected empty registry")
	}
}

func TestRegistry_PrintUsage(t *testing.T) {
	registry, err := NewRegistry(&echoCommand{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	var out bytes.Buffer
	registry.PrintUsage(&out)

	if !strings.Contains(out.String(), "echo [-u] [args...]") || !strings.Contains(out.String(), "Print arguments") {
		t.Errorf("Unexpected usage %q", out.String())
	}
}
