// Package errors provides error handling utilities for lockdir.
//
// It defines the sentinel errors callers test with Is, typed errors that
// carry the lock or command involved, and thin wrappers over the standard
// library so that packages import a single errors package.
//
// # Sentinels
//
//   - ErrLockBusy: the lock is held by a live or remote owner
//   - ErrRemoteOwner: the owner runs on another host
//   - ErrLockRecordInvalid: the info file is missing or malformed
//   - ErrNoSuchLock: no directory exists for the name
//   - ErrInvalidLockName: the name is empty, hidden or contains a separator
//   - ErrWrappedCommandFailed: the guarded command failed or was killed
//   - ErrInvalidConfiguration, ErrInvalidFlag: bad settings or arguments
//
// # Usage
//
//	if err != nil {
//	    return errors.Wrap(err, "failed to read info file")
//	}
//
//	if errors.Is(err, errors.ErrLockBusy) {
//	    // another process holds it
//	}
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) {
//	    fmt.Printf("held by pid %d on %s\n", lockErr.PID, lockErr.Host)
//	}
package errors
