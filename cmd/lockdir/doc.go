// Package main implements lockdir, named mutual-exclusion locks for shell
// commands.
//
// Each lock is a directory in a shared registry. Creating the directory takes
// the lock; the info file inside names the owner as "pid host". Because
// directory creation is atomic, two lockdir processes can never both believe
// they hold the same lock, even across hosts sharing the registry over NFS.
//
// # Basic Usage
//
//	lockdir run build -- make all          # fail with status 75 if "build" is held
//	lockdir run --wait deploy ./deploy.sh  # wait for "deploy" to be released
//	lockdir run --wait --timeout 10m nightly ./job.sh
//	lockdir list                           # show held locks and their owners
//	lockdir reap                           # remove locks of dead local owners
//	lockdir reap -i                        # ask before each removal
//	lockdir reap --dry-run build           # only report
//
// # Exit Status
//
// run exits with the guarded command's status, 128+N when the command was
// killed by signal N, 127 or 126 when it could not be started, and the busy
// exit code (75 by default) when the lock is held. Signals received while the
// command runs are forwarded to it; a command that ignores them is killed
// after --kill-grace.
//
// reap exits with the number of locks it skipped or failed to remove, capped
// at 125, so a clean registry gives 0.
//
// Usage errors exit with 2 and any other failure with 1.
//
// # Configuration
//
// Every flag has an environment variable and a config file key; see package
// config. The registry defaults to $HOME/.locks and is shared by every user of
// the same directory.
//
//	LOCKDIR=/shared/locks lockdir run backup -- rsync -a src/ dst/
//
// # Stale Locks
//
// A lock whose owner ran on this host and has exited is stale. run takes such
// a lock over unless --no-reclaim is given; reap removes it. Locks owned by
// other hosts are never touched, since their owners cannot be checked.
package main
