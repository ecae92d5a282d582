package restic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// waitDelay bounds how long Wait blocks on pipes still held open by
// children of restic (e.g. the password command) after it exited.
const waitDelay = 5 * time.Second

func (r *Restic) arguments(args ...string) []string {
	global := make([]string, 0, len(args)+5)
	if r.repository != "" {
		global = append(global, "--repo", r.repository)
	}
	if r.passwordCommand != "" {
		global = append(global, "--password-command", r.passwordCommand)
	}
	global = append(global, "--json")

	return append(global, args...)
}

func (r *Restic) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.executable, r.arguments(args...)...)
	// A nil Stdin reads from the null device
	cmd.Stdin = nil
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	detach(cmd)
	return cmd
}

// runGreedy waits for restic to exit and decodes its whole stdout as one JSON value.
func runGreedy[T any](ctx context.Context, r *Restic, args ...string) (T, error) {
	var result T
	var stdout, stderr bytes.Buffer

	cmd := r.command(ctx, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("Running 'restic %s'", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return result, newLaunchError(args, err)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, newRunError(KindExit, args, ctxErr, stderr.Bytes())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, newRunError(KindExit, args, err, stderr.Bytes())
		}
		return result, newRunError(KindIO, args, err, stderr.Bytes())
	}

	if !utf8.Valid(stdout.Bytes()) {
		return result, newRunError(KindDecode, args, errInvalidUTF8, stderr.Bytes())
	}

	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return result, newRunError(KindParse, args, err, stderr.Bytes())
	}

	return result, nil
}

// runStream starts restic and returns a stream decoding one record per stdout line.
func runStream[T any](ctx context.Context, r *Restic, decode func([]byte) (T, bool, error), args ...string) (*Stream[T], error) {
	cmd := r.command(ctx, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newLaunchError(args, err)
	}

	// exec copies stderr on its own goroutine, a chatty stderr never fills its pipe
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	r.log.Debug("Streaming 'restic %s'", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, newLaunchError(args, err)
	}

	return newStream(ctx, cmd, args, stdout, stderr, decode), nil
}
