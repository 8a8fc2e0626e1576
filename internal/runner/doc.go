// Package runner runs a command while holding a named lock.
//
// A run moves through Idle, Acquiring, Running, Releasing and Done. If the
// lock cannot be taken the command is never started. Termination signals
// received while the command runs are forwarded to it; if it has not exited
// after the kill grace period it is sent SIGKILL. The lock is released on
// every path out of Run.
//
// The guarded command sees the lock directory in $LOCKDIR_LOCK.
package runner
