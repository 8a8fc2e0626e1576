// Package exitcode maps lockdir errors to process exit statuses.
//
// # Exit Codes
//
//   - 0: Success
//   - 1: General error (I/O, invalid lock record)
//   - 2: Invalid arguments or usage
//   - 75: Lock busy (EX_TEMPFAIL; configurable for the run command)
//   - 126: Guarded command found but not executable
//   - 127: Guarded command not found
//   - 128+N: Guarded command killed by signal N
//
// A guarded command's own exit status is passed through unchanged, and the
// reaper exits with the number of skipped and failed entries.
package exitcode

import (
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
)

const (
	// Success indicates the command completed successfully.
	Success = 0

	ErrGeneral = 1 // General/unknown error
	ErrUsage   = 2 // Invalid arguments or usage

	// ErrBusy is the default status for a lock held by a live or remote owner.
	ErrBusy = 75

	ErrNotExecutable = 126 // Command found but could not be executed
	ErrNotFound      = 127 // Command not found

	// SignalBase is added to a signal number for a signaled command.
	SignalBase = 128

	// MaxCount caps counted statuses such as the reaper's failure count,
	// keeping them clear of the 126+ range.
	MaxCount = 125
)

// Error wraps an error with a specific exit code.
type Error struct {
	Code  int
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause == nil {
		return "exit status"
	}
	return e.Cause.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches an exit code to an error.
func Wrap(code int, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Code extracts the exit code from an error.
// Errors without an attached code are classified by their sentinel.
func Code(err error) int {
	if err == nil {
		return Success
	}
	var coded *Error
	if lockdirErrors.As(err, &coded) {
		return coded.Code
	}
	var cmdErr *lockdirErrors.CommandError
	if lockdirErrors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	switch {
	case lockdirErrors.Is(err, lockdirErrors.ErrLockBusy), lockdirErrors.Is(err, lockdirErrors.ErrRemoteOwner):
		return ErrBusy
	case lockdirErrors.Is(err, lockdirErrors.ErrInvalidFlag),
		lockdirErrors.Is(err, lockdirErrors.ErrInvalidLockName),
		lockdirErrors.Is(err, lockdirErrors.ErrInvalidConfiguration):
		return ErrUsage
	}
	return ErrGeneral
}

// Count turns a number of failures into an exit status capped at MaxCount.
func Count(n int) int {
	if n <= 0 {
		return Success
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}
