// Package logger provides logging facilities for lockdir.
//
// lockdir shares its terminal with the command it guards, so the logger
// keeps the command's stdout clean: every user-facing message goes to
// stderr, and only StatusMessage writes to stdout.
//
// # Core Components
//
// - Logger: The main interface for logging used throughout the application
// - DefaultLogger: Standard implementation over log/slog
//
// # Log Levels
//
// - Info: Debug log only
// - Warning: Debug log, and stderr when verbose
// - Error: Debug log and stderr
// - InfoToUser, Success: Debug log and stderr unless quiet
// - WarningToUser: Debug log and stderr
// - StatusMessage: stdout only
//
// # Usage
//
//	log := logger.New(logger.Options{
//	    Debug:   cfg.Debug,
//	    LogFile: cfg.LogFile,
//	    Quiet:   cfg.Quiet,
//	})
//	defer log.Close()
//
//	log.Info("Using lock registry %s", dir)
//	log.Success("Removed stale lock %s", name)
//
// # File Logging
//
// With Debug set, messages are also written to LogFile in slog's text
// format, tagged with the process id so that concurrent lockdir processes
// sharing one log can be told apart. If the file cannot be opened the debug
// log falls back to stderr.
//
// # Thread Safety
//
// The DefaultLogger implementation is safe for concurrent use by multiple
// goroutines.
package logger
