// Package lockdir provides named mutual-exclusion locks for shell commands.
//
// A lock is a directory inside a registry directory. Whoever creates the
// directory holds the lock, and an info file inside it names the owner as
// "pid host". Directory creation is atomic on local filesystems and on NFS,
// so lockdir works for cooperating processes on one machine as well as for
// hosts sharing a registry.
//
// # Quick Start
//
//	# Run a job unless another copy is already running
//	lockdir run nightly -- ./nightly.sh
//
//	# Queue behind the current holder instead
//	lockdir run --wait deploy -- ./deploy.sh
//
//	# See who holds what
//	lockdir list
//
//	# Clean up after processes that crashed while holding a lock
//	lockdir reap
//
// # Module Structure
//
// The module is organized into these packages:
//
//   - cmd/lockdir: Command-line interface
//   - internal/registry: Lock directories and the records inside them
//   - internal/lock: Acquiring, waiting for and releasing locks
//   - internal/reaper: Removing locks of dead owners
//   - internal/runner: Running a command while holding a lock
//   - internal/config: Configuration file, environment and flags
//   - internal/logger: User messages and the debug log
//   - internal/errors, internal/exitcode: Error types and exit statuses
//
// # Stale Locks
//
// A process that dies while holding a lock leaves its directory behind.
// lockdir checks the recorded pid on the recorded host; when that host is
// this one and the process is gone, the lock is stale. run takes stale locks
// over and reap removes them. A lock recorded for another host is never
// considered stale, because its owner cannot be checked from here.
//
// # Platform Support
//
// lockdir runs on Linux, macOS and other Unix-like systems. Liveness checks
// use kill(pid, 0), so Windows is not supported.
package lockdir
