// Package lock acquires and releases named locks in a lock directory registry.
//
// A lock is held by creating its directory with mkdir, which is atomic on
// local filesystems. The acquirer then writes the info file ("pid hostname")
// and an owner file carrying a token and the process start time.
//
// # Acquisition
//
// When the directory already exists the record is classified:
//
//   - invalid (missing or malformed info file): never taken over
//   - remote (owner on another host): busy, the owner cannot be checked
//   - alive (local owner running): busy
//   - dead (local owner gone): removed and re-created once, unless reclaiming
//     is disabled
//
// Fail-fast mode makes one attempt. Wait mode retries whenever the registry
// directory reports a removal (fsnotify) or the poll interval elapses.
//
// # Usage
//
//	reg, err := registry.Open(dir)
//	if err != nil {
//	    return err
//	}
//
//	locker := lock.New(reg, lock.Options{})
//	h, err := locker.Acquire(ctx, "backup")
//	if err != nil {
//	    // errors.Is(err, lockdirErrors.ErrLockBusy) when someone holds it
//	    return err
//	}
//	defer h.Release()
//
// # Liveness
//
// Local owners are checked with signal 0. EPERM counts as alive. When the
// owner file records a process start time, a different start time for the
// same pid means the pid was reused and the owner is dead.
package lock
