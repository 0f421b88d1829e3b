package capture

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// ErrCaptureFailed is matched by every error describing a command that did not run to a
// successful exit.
var ErrCaptureFailed = errors.New("capture failed")

// SpawnError is returned when the command could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrCaptureFailed }

// ExitError is returned when the command exited with a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Is(target error) bool { return target == ErrCaptureFailed }

// SignalError is returned when the command was terminated by a signal, including a kill
// caused by context cancellation.
type SignalError struct {
	Signal string
}

func (e *SignalError) Error() string {
	return "terminated by signal " + e.Signal
}

func (e *SignalError) Is(target error) bool { return target == ErrCaptureFailed }

// classify turns the result of cmd.Wait into one of the typed errors, filling in the
// exit code and signal name of res.
func classify(err error, res *Result) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.ExitCode = 1
		return &ExitError{Code: 1}
	}

	res.ExitCode = exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		res.Signal = status.Signal().String()
		return &SignalError{Signal: res.Signal}
	}
	return &ExitError{Code: res.ExitCode}
}
