package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger defines the logging interface used by the lockdir commands.
//
// Internal messages (Info, Warning, Error) go to the debug log file when one is
// enabled. User-facing messages (InfoToUser, WarningToUser, Success) go to
// stderr, because stdout of a guarded run belongs to the wrapped command.
// StatusMessage is the only method that writes to stdout; it carries command
// output such as the list table.
type Logger interface {
	// Info logs an informational message to the debug log only.
	Info(format string, args ...interface{})

	// Warning logs a warning to the debug log, and to stderr in verbose mode.
	Warning(format string, args ...interface{})

	// Error logs an error message. Errors always reach stderr.
	Error(format string, args ...interface{})

	// InfoToUser shows an informational message unless quiet.
	InfoToUser(format string, args ...interface{})

	// WarningToUser shows a warning regardless of quiet.
	WarningToUser(format string, args ...interface{})

	// Success shows a completion message unless quiet.
	Success(format string, args ...interface{})

	// StatusMessage writes a line of command output to stdout.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the debug log file, if any.
	Close() error
}

// DefaultLogger provides structured logging capability and implements the Logger interface
type DefaultLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	enabled bool
	logFile string
	verbose bool
	quiet   bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
}

// Options configures a DefaultLogger.
type Options struct {
	// Debug enables the slog file log at LogFile.
	Debug   bool
	LogFile string

	// Verbose echoes internal warnings to stderr.
	Verbose bool

	// Quiet suppresses InfoToUser and Success.
	Quiet bool
}

// New creates a new Logger instance writing to the process's standard streams
func New(opts Options) Logger {
	return NewWithOutput(opts, os.Stdout, os.Stderr)
}

// NewWithOutput creates a DefaultLogger with custom output writers
func NewWithOutput(opts Options, stdout, stderr io.Writer) *DefaultLogger {
	var logger *slog.Logger

	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var file *os.File

	if opts.Debug && opts.LogFile != "" {
		logDir := filepath.Dir(opts.LogFile)
		if logDir != "." {
			if err := os.MkdirAll(logDir, 0o700); err != nil {
				_, _ = fmt.Fprintf(stderr, "⚠️ Failed to create log directory: %v\n", err)
			}
		}

		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			file = f
			logger = slog.New(slog.NewTextHandler(f, handlerOpts)).With("pid", os.Getpid())
			logger.Info("lockdir debug logging started")
		} else {
			logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
			_, _ = fmt.Fprintf(stderr, "⚠️ Failed to open log file: %v, using stderr instead\n", err)
		}
	} else {
		logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
	}

	return &DefaultLogger{
		logger:  logger,
		enabled: opts.Debug,
		logFile: opts.LogFile,
		verbose: opts.Verbose,
		quiet:   opts.Quiet,
		stdout:  stdout,
		stderr:  stderr,
		file:    file,
	}
}

// Info logs an informational message (file only)
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	l.logger.Info(fmt.Sprintf(format, args...))
}

// InfoToUser logs an informational message to the file and stderr
func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	if !l.quiet {
		_, _ = fmt.Fprintf(l.stderr, "ℹ️  %s\n", msg)
	}
}

// Success logs a success message to the file and stderr
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	if !l.quiet {
		_, _ = fmt.Fprintf(l.stderr, "✅ %s\n", msg)
	}
}

// Warning logs a warning message
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	if l.verbose {
		_, _ = fmt.Fprintf(l.stderr, "⚠️  %s\n", msg)
	}
}

// WarningToUser logs a warning message to the file and stderr
func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	_, _ = fmt.Fprintf(l.stderr, "⚠️  %s\n", msg)
}

// Error logs an error message
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Error(msg)
	}

	_, _ = fmt.Fprintf(l.stderr, "❌ %s\n", msg)
}

// StatusMessage prints a line to stdout only (no logging)
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintln(l.stdout, fmt.Sprintf(format, args...))
}

// Close ensures any buffered data is written and closes open log file handles
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
