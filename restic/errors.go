package restic

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies where a restic invocation failed.
type Kind int

const (
	KindLaunch Kind = iota + 1
	KindIO
	KindDecode
	KindParse
	KindExit
)

var (
	ErrLaunch = errors.New("restic: error launching restic process")
	ErrIO     = errors.New("restic: error doing IO")
	ErrDecode = errors.New("restic: error reading output as UTF-8")
	ErrParse  = errors.New("restic: error parsing JSON")
	ErrExit   = errors.New("restic: the restic process exited with an error code")
)

var errInvalidUTF8 = errors.New("output is not valid UTF-8")

func (k Kind) sentinel() error {
	switch k {
	case KindLaunch:
		return ErrLaunch
	case KindIO:
		return ErrIO
	case KindDecode:
		return ErrDecode
	case KindParse:
		return ErrParse
	case KindExit:
		return ErrExit
	default:
		return nil
	}
}

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindParse:
		return "parse"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Error is returned by every failing restic invocation.
// Stderr holds whatever the process wrote to standard error up to the failure.
//
// A process killed because its context ended is reported as KindExit with
// the context error in Err, so both errors.Is(err, ErrExit) and
// errors.Is(err, context.Canceled) hold. The message names the cancellation
// instead of an exit code.
type Error struct {
	Kind      Kind
	Args      []string
	Stderr    string
	HasStderr bool
	Err       error
}

func newLaunchError(args []string, err error) *Error {
	return &Error{
		Kind: KindLaunch,
		Args: args,
		Err:  err,
	}
}

func newRunError(kind Kind, args []string, err error, stderr []byte) *Error {
	return &Error{
		Kind:      kind,
		Args:      args,
		Stderr:    strings.ToValidUTF8(string(stderr), "\uFFFD"),
		HasStderr: true,
		Err:       err,
	}
}

func (e *Error) Error() string {
	var sb strings.Builder

	if e.Canceled() {
		sb.WriteString("restic: the restic process was stopped because its context ended")
	} else {
		sb.WriteString(e.Kind.sentinel().Error())
	}
	if len(e.Args) > 0 {
		fmt.Fprintf(&sb, " (restic %s)", strings.Join(e.Args, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&sb, "\nstderr dump:\n%s", stderr)
	}

	return sb.String()
}

// Canceled reports whether the process was killed by its context.
func (e *Error) Canceled() bool {
	return e.Kind == KindExit && (errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the failure kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}
