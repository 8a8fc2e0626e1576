package lock

import (
	"errors"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"

	"github.com/bashhack/lockdir/internal/registry"
)

// Checker answers whether a local process is still running.
type Checker interface {
	// Alive reports whether pid names a running process.
	Alive(pid int) bool

	// StartTime returns the process creation time in milliseconds since the
	// epoch.
	StartTime(pid int) (int64, error)
}

// ProcessChecker checks real processes with signal 0 and gopsutil.
type ProcessChecker struct{}

// Alive sends signal 0 to pid. EPERM means the process exists but belongs to
// another user, so it counts as alive.
func (ProcessChecker) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// StartTime returns the creation time of pid.
func (ProcessChecker) StartTime(pid int) (int64, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	return p.CreateTime()
}

// ownerAlive reports whether the process recorded in info is still the one
// that took the lock. A recorded start time that no longer matches means the
// pid was recycled.
func ownerAlive(checker Checker, info registry.Info, owner *registry.Owner) bool {
	if !checker.Alive(info.PID) {
		return false
	}
	if owner == nil || owner.PID != info.PID || owner.ProcessStart == 0 {
		return true
	}

	start, err := checker.StartTime(info.PID)
	if err != nil {
		// Unknown start time: trust the signal 0 check.
		return true
	}
	return start == owner.ProcessStart
}
