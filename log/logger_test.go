package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("test", Warn, &buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "[test]") {
		t.Errorf("Expected warn message with name, got %q", out)
	}
}

func TestLogger_NamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("snapdu", Debug, &buf).Named("restic")

	l.Debug("launching")

	if !strings.Contains(buf.String(), "[snapdu/restic] launching") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("snapdu", Info, &buf)
	l.JSON = true

	l.Error("failed: %s", "boom")

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry.Level != "ERROR" || entry.Message != "failed: boom" || entry.Service != "snapdu" {
		t.Errorf("Unexpected entry %+v", entry)
	}
}

func TestParse(t *testing.T) {
	for input, want := range map[string]LogLevel{"debug": Debug, "INFO": Info, "warning": Warn, "": Info} {
		got, err := Parse(input)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %v, %v; want %v", input, got, err, want)
		}
	}

	if _, err := Parse("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
