package lock

import (
	"os"
	"testing"

	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/registry"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	reg := setupRegistry(t)
	checker := newFakeChecker(100)
	checker.starts[100] = 5000

	tests := map[string]struct {
		rec  registry.Record
		want State
	}{
		"Invalid": {
			rec:  registry.Record{Name: "x", Err: lockdirErrors.ErrLockRecordInvalid},
			want: StateInvalid,
		},
		"Remote": {
			rec:  registry.Record{Name: "x", Info: registry.Info{PID: 100, Host: "beta"}},
			want: StateRemote,
		},
		"Alive": {
			rec:  registry.Record{Name: "x", Info: registry.Info{PID: 100, Host: testHost}},
			want: StateAlive,
		},
		"Dead": {
			rec:  registry.Record{Name: "x", Info: registry.Info{PID: 101, Host: testHost}},
			want: StateDead,
		},
		"AliveMatchingStart": {
			rec: registry.Record{
				Name:  "x",
				Info:  registry.Info{PID: 100, Host: testHost},
				Owner: &registry.Owner{PID: 100, ProcessStart: 5000},
			},
			want: StateAlive,
		},
		"PidReused": {
			rec: registry.Record{
				Name:  "x",
				Info:  registry.Info{PID: 100, Host: testHost},
				Owner: &registry.Owner{PID: 100, ProcessStart: 4000},
			},
			want: StateDead,
		},
		"OwnerForOtherPidIgnored": {
			rec: registry.Record{
				Name:  "x",
				Info:  registry.Info{PID: 100, Host: testHost},
				Owner: &registry.Owner{PID: 99, ProcessStart: 1},
			},
			want: StateAlive,
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(reg, checker, test.rec); got != test.want {
				t.Errorf("Expected %s, got %s", test.want, got)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for state, want := range map[State]string{
		StateAlive:   "alive",
		StateDead:    "dead",
		StateRemote:  "remote",
		StateInvalid: "invalid",
		State(42):    "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State %d: expected %q, got %q", int(state), want, got)
		}
	}
}

func TestProcessChecker(t *testing.T) {
	t.Parallel()

	var p ProcessChecker

	if !p.Alive(os.Getpid()) {
		t.Error("Expected own process to be alive")
	}
	if p.Alive(0) || p.Alive(-1) {
		t.Error("Expected non-positive pids to be reported dead")
	}

	start, err := p.StartTime(os.Getpid())
	if err != nil {
		t.Fatalf("Failed to read own start time: %v", err)
	}
	if start <= 0 {
		t.Errorf("Expected positive start time, got %d", start)
	}

	again, err := p.StartTime(os.Getpid())
	if err != nil || again != start {
		t.Errorf("Expected stable start time %d, got %d (err %v)", start, again, err)
	}
}
