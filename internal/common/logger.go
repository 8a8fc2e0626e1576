package common

// Logger is the logging surface the lock, reaper and runner packages need.
// logger.DefaultLogger satisfies it.
type Logger interface {
	// Info logs an informational message (debug log only)
	Info(format string, args ...interface{})

	// Warning logs a warning message
	Warning(format string, args ...interface{})

	// Error logs an error message; it always reaches stderr
	Error(format string, args ...interface{})

	// InfoToUser logs an informational message to the user
	InfoToUser(format string, args ...interface{})

	// WarningToUser logs a warning message to the user
	WarningToUser(format string, args ...interface{})

	// Success logs a success message to the user
	Success(format string, args ...interface{})
}

// NopLogger discards everything. It is the default for library callers that
// do not pass a logger.
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})          {}
func (NopLogger) Warning(string, ...interface{})       {}
func (NopLogger) Error(string, ...interface{})         {}
func (NopLogger) InfoToUser(string, ...interface{})    {}
func (NopLogger) WarningToUser(string, ...interface{}) {}
func (NopLogger) Success(string, ...interface{})       {}
