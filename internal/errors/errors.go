package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors that can be used with errors.Is() for error type checking
var (
	// ErrLockBusy indicates a live, valid owner holds the lock
	ErrLockBusy = errors.New("lock busy")

	// ErrLockRecordInvalid indicates the lock's info file is missing, unreadable or malformed
	ErrLockRecordInvalid = errors.New("lock record invalid")

	// ErrRemoteOwner indicates the lock owner is on a different host
	ErrRemoteOwner = errors.New("lock owned by another host")

	// ErrWrappedCommandFailed indicates the guarded command exited non-zero or was signaled
	ErrWrappedCommandFailed = errors.New("guarded command failed")

	// ErrInvalidLockName indicates a lock name that cannot be used as a registry entry
	ErrInvalidLockName = errors.New("invalid lock name")

	// ErrNoSuchLock indicates the named lock does not exist in the registry
	ErrNoSuchLock = errors.New("no such lock")

	// ErrInvalidConfiguration indicates an invalid or conflicting user configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidFlag indicates a command-line flag could not be parsed
	ErrInvalidFlag = errors.New("invalid flag")
)

// New creates a new error with the given message.
// This is a convenience function that wraps errors.New.
func New(message string) error {
	return errors.New(message)
}

// Errorf creates a new formatted error.
// This is a convenience function that wraps fmt.Errorf.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Wrap wraps an error with a message for better context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message for better context.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether target is in err's chain.
// This is a convenience function that wraps errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience function that wraps errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
// This is a convenience function that wraps errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// LockError represents an error that occurred while acquiring, releasing or
// reaping a named lock. It carries the recorded owner when one could be read.
type LockError struct {
	Name string
	Path string
	PID  int
	Host string
	Err  error
}

// Error implements the error interface with details about the lock and its owner.
func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lock %s (pid %d on %s): %v", e.Name, e.PID, e.Host, e.Err)
	}
	return fmt.Sprintf("lock %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *LockError) Unwrap() error {
	return e.Err
}

// NewLockError creates a new LockError with the given parameters.
func NewLockError(name, path string, pid int, host string, err error) *LockError {
	return &LockError{
		Name: name,
		Path: path,
		PID:  pid,
		Host: host,
		Err:  err,
	}
}

// CommandError represents a guarded command that did not exit cleanly.
// Signal is non-empty when the command was terminated by a signal.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Signal   string
	Err      error
}

// Error implements the error interface with the command line and its outcome.
func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.Signal != "" {
		return fmt.Sprintf("%s: killed by %s: %v", cmdline, e.Signal, e.Err)
	}
	return fmt.Sprintf("%s: exit status %d: %v", cmdline, e.ExitCode, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError with the given parameters.
func NewCommandError(command string, args []string, exitCode int, signal string, err error) *CommandError {
	return &CommandError{
		Command:  command,
		Args:     args,
		ExitCode: exitCode,
		Signal:   signal,
		Err:      err,
	}
}

// ConfigError represents an error in the application configuration.
// It includes the parameter name, its value if available, and the underlying error.
type ConfigError struct {
	Parameter string
	Value     interface{}
	Err       error
}

// Error implements the error interface with details about the invalid configuration.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("configuration error for %s = %v: %v", e.Parameter, e.Value, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Parameter, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError with the given parameters.
func NewConfigError(parameter string, value interface{}, err error) *ConfigError {
	return &ConfigError{
		Parameter: parameter,
		Value:     value,
		Err:       err,
	}
}
