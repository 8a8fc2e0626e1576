package constants

import "time"

// Registry layout
const (
	// InfoFileName is the file inside a lock directory holding "pid hostname".
	InfoFileName = "info"

	// OwnerFileName holds the optional owner token and process start time.
	OwnerFileName = "owner.toml"

	// ReapLockFileName is the advisory lock that serializes reapers.
	// Entries starting with a dot are never treated as locks.
	ReapLockFileName = ".reap.lock"

	// DefaultRegistryName is the per-user registry directory under $HOME.
	DefaultRegistryName = ".locks"

	// AppName names the config and log directories under the XDG base dirs.
	AppName = "lockdir"
)

// Environment variables
const (
	EnvRegistry     = "LOCKDIR"
	EnvWait         = "LOCKDIR_WAIT"
	EnvTimeout      = "LOCKDIR_TIMEOUT"
	EnvBusyExitCode = "LOCKDIR_BUSY_EXIT_CODE"
	EnvNoReclaim    = "LOCKDIR_NO_RECLAIM"
	EnvDebug        = "LOCKDIR_DEBUG"
	EnvLogFile      = "LOCKDIR_LOG_FILE"
	EnvMetricsFile  = "LOCKDIR_METRICS_FILE"
	EnvQuiet        = "LOCKDIR_QUIET"
	EnvConfigFile   = "LOCKDIR_CONFIG"
	EnvPollInterval = "LOCKDIR_POLL_INTERVAL"
	EnvKillGrace    = "LOCKDIR_KILL_GRACE"

	// EnvHeldLock is exported to a guarded command with the lock directory path.
	EnvHeldLock = "LOCKDIR_LOCK"
)

// Timing defaults
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultKillGrace    = 5 * time.Second

	// InfoSettleTime is how long an acquirer waits for a freshly created lock
	// directory to receive its info file before calling the record invalid.
	InfoSettleTime = 100 * time.Millisecond
)
