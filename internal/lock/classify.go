package lock

import (
	"github.com/bashhack/lockdir/internal/registry"
)

// State is the ownership status of a lock record as seen from this host.
type State int

const (
	// StateAlive means a running local process owns the lock.
	StateAlive State = iota
	// StateDead means the local owner is no longer running.
	StateDead
	// StateRemote means the owner runs on another host and cannot be checked.
	StateRemote
	// StateInvalid means the info file is missing or malformed.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	case StateRemote:
		return "remote"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classify decides the state of rec. Only the info file decides ownership;
// the owner file can only turn an alive verdict into dead when the pid has
// been reused.
func Classify(reg *registry.Registry, checker Checker, rec registry.Record) State {
	if !rec.Valid() {
		return StateInvalid
	}
	if !reg.IsLocal(rec.Info) {
		return StateRemote
	}
	if checker == nil {
		checker = ProcessChecker{}
	}
	if ownerAlive(checker, rec.Info, rec.Owner) {
		return StateAlive
	}
	return StateDead
}
