// Package config provides configuration handling for lockdir.
//
// # Configuration Sources
//
// Configuration values are loaded with the following precedence:
//
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. The env file named by --env-file
// 4. The TOML config file ($XDG_CONFIG_HOME/lockdir/config.toml or --config)
// 5. Default values (lowest priority)
//
// # Environment Variables
//
//	LOCKDIR                 Lock registry directory (default: $HOME/.locks)
//	LOCKDIR_CONFIG          Config file path
//	LOCKDIR_WAIT            Wait for held locks (true/false)
//	LOCKDIR_TIMEOUT         Wait limit, as a duration or seconds (default: none)
//	LOCKDIR_POLL_INTERVAL   Re-check interval while waiting (default: 500ms)
//	LOCKDIR_BUSY_EXIT_CODE  Exit status when the lock is held (default: 75)
//	LOCKDIR_NO_RECLAIM      Leave dead owners' locks for the reaper (true/false)
//	LOCKDIR_KILL_GRACE      Time before SIGKILL after forwarding a signal (default: 5s)
//	LOCKDIR_METRICS_FILE    Prometheus textfile for reaper counts
//	LOCKDIR_DEBUG           Enable debug logging (true/false)
//	LOCKDIR_LOG_FILE        Debug log path
//	LOCKDIR_QUIET           Hide informational messages (true/false)
//
// An unparsable value is a configuration error, not silently ignored.
//
// # Config File
//
//	registry = "~/.locks"
//	wait = true
//	timeout = "10m"
//	busy_exit_code = 75
//	metrics_file = "/var/lib/node_exporter/textfile/lockdir.prom"
//
// Unknown keys are rejected.
//
// # Thread Safety
//
// Config is not safe for concurrent modification. ThreadSafeConfig wraps it
// for the CLI: flags are bound before parsing, Initialize runs once, and
// Config returns copies afterwards.
package config
