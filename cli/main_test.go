//go:build !windows

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fakeRestic = `#!/bin/sh
while [ $# -gt 0 ]; do
	case "$1" in
		--repo|--password-command) shift 2 ;;
		--json) shift ;;
		*) break ;;
	esac
done

case "$1" in
	cat) echo '{"version":2,"id":"5a8f0c"}' ;;
	snapshots) echo '[{"id":"0123456789abcdef","time":"2024-03-01T10:00:00Z","paths":["/data"],"hostname":"backup"}]' ;;
	ls)
		echo '{"time":"2024-03-01T10:00:00Z","id":"0123456789abcdef","struct_type":"snapshot"}'
		echo '{"name":"big.iso","type":"file","path":"/data/big.iso","size":1048576,"struct_type":"node"}'
		;;
	*) exit 3 ;;
esac
`

func writeFakeRestic(tst *testing.T) string {
	tst.Helper()

	path := filepath.Join(tst.TempDir(), "restic")
	if err := os.WriteFile(path, []byte(fakeRestic), 0o755); err != nil {
		tst.Fatalf("Failed to write fake restic: %v", err)
	}

	return path
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if code := run(t.Context(), []string{"--help"}, &out); code != 0 {
		t.Errorf("Expected exit code 0, got %d", code)
	}

	for _, want := range []string{"Usage: snapdu", "sync", "tree", "--index"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in help:\n%s", want, out.String())
		}
	}
}

func TestRun_NoCommand(t *testing.T) {
	var out bytes.Buffer
	if code := run(t.Context(), nil, &out); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	var out bytes.Buffer
	if code := run(t.Context(), []string{"--unknown", "sync"}, &out); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
	if code := run(t.Context(), []string{"--log-level", "loud", "sync"}, &out); code != 2 {
		t.Errorf("Expected exit code 2 for invalid level, got %d", code)
	}
}

func TestRun_SyncAndList(t *testing.T) {
	exe := writeFakeRestic(t)
	cacheDir := t.TempDir()
	global := []string{"--restic", exe, "--cache-dir", cacheDir, "--log-level", "error"}

	var out bytes.Buffer
	if code := run(t.Context(), append(global, "sync"), &out); code != 0 {
		t.Fatalf("Expected sync to succeed, got %d:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "0 deleted, 1 fetched, 0 unchanged") {
		t.Errorf("Unexpected sync output:\n%s", out.String())
	}

	// The default sqlite index persists between runs
	out.Reset()
	if code := run(t.Context(), append(global, "ls", "--bytes", "/data"), &out); code != 0 {
		t.Fatalf("Expected ls to succeed, got %d", code)
	}
	if strings.TrimSpace(out.String()) != "1048576  big.iso" {
		t.Errorf("Unexpected ls output %q", out.String())
	}

	if _, err := os.Stat(filepath.Join(cacheDir, "5a8f0c.sqlite")); err != nil {
		t.Errorf("Expected index file per repository: %v", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if code := run(t.Context(), []string{"--log-level", "fatal", "du"}, &out); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
}
