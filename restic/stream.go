package restic

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"unicode/utf8"
)

// Stream is a lazy, single pass sequence of records read from one live restic process.
// Records are decoded on demand; nothing is buffered beyond the pipe and one line.
//
//	for stream.Next() {
//		record := stream.Record()
//	}
//	if err := stream.Err(); err != nil {
//		...
//	}
type Stream[T any] struct {
	ctx    context.Context
	cmd    *exec.Cmd
	args   []string
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *bytes.Buffer
	decode func([]byte) (T, bool, error)

	record    T
	bytesRead int64
	err       error
	done      bool
}

func newStream[T any](ctx context.Context, cmd *exec.Cmd, args []string, stdout io.ReadCloser, stderr *bytes.Buffer, decode func([]byte) (T, bool, error)) *Stream[T] {
	return &Stream[T]{
		ctx:    ctx,
		cmd:    cmd,
		args:   args,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
		stderr: stderr,
		decode: decode,
	}
}

// Next advances to the next record. It returns false once the process finished
// or the stream failed; Err reports which one happened.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.bytesRead += int64(len(line))

			line = bytes.TrimRight(line, "\r\n")
			if !utf8.Valid(line) {
				s.fail(KindDecode, errInvalidUTF8)
				return false
			}

			record, ok, err := s.decode(line)
			if err != nil {
				s.fail(KindParse, err)
				return false
			}

			if ok {
				s.record = record
				return true
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				s.finish()
			} else {
				s.fail(KindIO, readErr)
			}
			return false
		}
	}
}

// Record returns the record read by the last successful call to Next.
func (s *Stream[T]) Record() T {
	return s.record
}

// Err returns the terminal error of the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// BytesRead reports how many bytes of stdout have been consumed so far.
func (s *Stream[T]) BytesRead() int64 {
	return s.bytesRead
}

// Close terminates a process that has not been drained yet and reaps it.
// Closing a finished stream is a no-op.
func (s *Stream[T]) Close() error {
	if s.done {
		return nil
	}

	s.done = true
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return newRunError(KindIO, s.args, err, nil)
	}

	// The exit status of a killed process carries no information
	_ = s.cmd.Wait()
	return nil
}

// finish reaps the process after stdout reached EOF and checks its exit status.
func (s *Stream[T]) finish() {
	s.done = true

	if err := s.cmd.Wait(); err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			s.err = newRunError(KindExit, s.args, ctxErr, s.stderr.Bytes())
			return
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.err = newRunError(KindExit, s.args, err, s.stderr.Bytes())
			return
		}
		s.err = newRunError(KindIO, s.args, err, s.stderr.Bytes())
	}
}

// fail stops the process so the stderr written up to this point can be
// collected, then records the terminal error.
func (s *Stream[T]) fail(kind Kind, err error) {
	s.done = true

	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()

	s.err = newRunError(kind, s.args, err, s.stderr.Bytes())
}
