// Package constants provides application-wide constant values for lockdir.
//
// This package centralizes the on-disk layout of a lock registry, the
// environment variables lockdir reads, and its timing defaults, so that the
// registry, lock, reaper and runner packages agree on them.
//
// # Core Components
//
//   - Registry layout: lock info file, owner file, reaper lock
//   - Environment variables: registry path and run/reap overrides
//   - Timing: poll interval, kill grace period, info settle time
//
// # Usage
//
//	import "github.com/bashhack/lockdir/internal/constants"
//
//	infoPath := filepath.Join(lockPath, constants.InfoFileName)
package constants
