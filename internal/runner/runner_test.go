package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
	"github.com/bashhack/lockdir/internal/lock"
	"github.com/bashhack/lockdir/internal/registry"
)

type fixture struct {
	reg    *registry.Registry
	locker *lock.Locker
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	sigs   chan os.Signal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "locks"))
	require.NoError(t, err)
	return &fixture{
		reg:    reg,
		locker: lock.New(reg, lock.Options{}),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		sigs:   make(chan os.Signal, 4),
	}
}

// runner returns a Runner whose signal subscription is fed by f.sigs.
func (f *fixture) runner(opts Options) *Runner {
	opts.Stdin = bytes.NewReader(nil)
	opts.Stdout = f.stdout
	opts.Stderr = f.stderr
	opts.Notify = func(ch chan<- os.Signal) func() {
		stop := make(chan struct{})
		go func() {
			for {
				select {
				case s := <-f.sigs:
					ch <- s
				case <-stop:
					return
				}
			}
		}()
		return func() { close(stop) }
	}
	return New(f.locker, opts)
}

func (f *fixture) lockGone(t *testing.T, name string) bool {
	t.Helper()
	ok, err := f.reg.Exists(name)
	require.NoError(t, err)
	return !ok
}

// waitForState is called from helper goroutines, so it must not use require.
func waitForState(t *testing.T, r *Runner, want State) bool {
	return assert.Eventually(t, func() bool { return r.State() == want }, 5*time.Second, 5*time.Millisecond)
}

func TestRun_ExitCodes(t *testing.T) {
	t.Parallel()

	notExecutable := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\nexit 0\n"), 0o644))

	tests := map[string]struct {
		argv       []string
		wantCode   int
		wantSignal string
		wantErr    error
	}{
		"Success": {
			argv:     []string{"true"},
			wantCode: 0,
		},
		"Failure": {
			argv:     []string{"false"},
			wantCode: 1,
			wantErr:  lockdirErrors.ErrWrappedCommandFailed,
		},
		"CustomStatus": {
			argv:     []string{"sh", "-c", "exit 7"},
			wantCode: 7,
			wantErr:  lockdirErrors.ErrWrappedCommandFailed,
		},
		"KilledBySignal": {
			argv:       []string{"sh", "-c", "kill -KILL $$"},
			wantCode:   128 + 9,
			wantSignal: "SIGKILL",
			wantErr:    lockdirErrors.ErrWrappedCommandFailed,
		},
		"NotFound": {
			argv:     []string{"lockdir-test-no-such-command"},
			wantCode: exitcode.ErrNotFound,
			wantErr:  lockdirErrors.ErrWrappedCommandFailed,
		},
		"MissingPath": {
			argv:     []string{"/nonexistent/lockdir/bin"},
			wantCode: exitcode.ErrNotFound,
			wantErr:  lockdirErrors.ErrWrappedCommandFailed,
		},
		"NotExecutable": {
			argv:     []string{notExecutable},
			wantCode: exitcode.ErrNotExecutable,
			wantErr:  lockdirErrors.ErrWrappedCommandFailed,
		},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			r := f.runner(Options{})

			code, err := r.Run(context.Background(), "job", test.argv)
			assert.Equal(t, test.wantCode, code)
			if test.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, test.wantErr)
				assert.Equal(t, test.wantCode, exitcode.Code(err))
			}
			if test.wantSignal != "" {
				var cmdErr *lockdirErrors.CommandError
				require.ErrorAs(t, err, &cmdErr)
				assert.Equal(t, test.wantSignal, cmdErr.Signal)
			}

			assert.Equal(t, StateDone, r.State())
			assert.True(t, f.lockGone(t, "job"), "lock must be released")
		})
	}
}

func TestRun_BusyNeverStartsCommand(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		busyExitCode int
		wantCode     int
	}{
		"DefaultCode": {busyExitCode: 0, wantCode: 75},
		"CustomCode":  {busyExitCode: 3, wantCode: 3},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			held, err := f.locker.Acquire(context.Background(), "job")
			require.NoError(t, err)
			defer func() { _ = held.Release() }()

			marker := filepath.Join(t.TempDir(), "ran")
			r := f.runner(Options{BusyExitCode: test.busyExitCode})

			code, err := r.Run(context.Background(), "job", []string{"touch", marker})
			assert.Equal(t, test.wantCode, code)
			assert.ErrorIs(t, err, lockdirErrors.ErrLockBusy)

			_, statErr := os.Stat(marker)
			assert.True(t, os.IsNotExist(statErr), "command must not run without the lock")
			assert.False(t, f.lockGone(t, "job"), "someone else's lock must survive")
		})
	}
}

func TestRun_AcquireErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	code, err := f.runner(Options{}).Run(context.Background(), "../escape", []string{"true"})
	assert.Equal(t, exitcode.ErrUsage, code)
	assert.ErrorIs(t, err, lockdirErrors.ErrInvalidLockName)

	// A lock directory without an info file is never taken over
	_, err = f.reg.Create("broken")
	require.NoError(t, err)
	code, err = f.runner(Options{}).Run(context.Background(), "broken", []string{"true"})
	assert.Equal(t, exitcode.ErrGeneral, code)
	assert.ErrorIs(t, err, lockdirErrors.ErrLockRecordInvalid)

	code, err = f.runner(Options{}).Run(context.Background(), "job", nil)
	assert.Equal(t, exitcode.ErrUsage, code)
	assert.Error(t, err)
}

func TestRun_ExportsLockPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{Env: []string{"PATH=" + os.Getenv("PATH")}})

	code, err := r.Run(context.Background(), "job", []string{"sh", "-c", `printf %s "$` + constants.EnvHeldLock + `"`})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, filepath.Join(f.reg.Dir(), "job"), f.stdout.String())
}

func TestRun_HoldsLockWhileRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{})

	// The command checks the lock from inside: the info file names lockdir's pid.
	script := `cat "$` + constants.EnvHeldLock + `/` + constants.InfoFileName + `"`
	code, err := r.Run(context.Background(), "job", []string{"sh", "-c", script})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	info, err := registry.ParseInfo(f.stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.True(t, f.lockGone(t, "job"))
}

func TestRun_ForwardsSignal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{KillGrace: 5 * time.Second})

	go func() {
		waitForState(t, r, StateRunning)
		f.sigs <- syscall.SIGTERM
	}()

	began := time.Now()
	code, err := r.Run(context.Background(), "job", []string{"sleep", "30"})
	assert.Equal(t, 128+int(syscall.SIGTERM), code)
	assert.ErrorIs(t, err, lockdirErrors.ErrWrappedCommandFailed)
	assert.Less(t, time.Since(began), 10*time.Second)
	assert.True(t, f.lockGone(t, "job"))
}

func TestRun_SignalBeforeStartReleasesLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	marker := filepath.Join(t.TempDir(), "started")

	// The signal is already pending when the lock is taken.
	r := New(f.locker, Options{
		Stdin:  bytes.NewReader(nil),
		Stdout: f.stdout,
		Stderr: f.stderr,
		Notify: func(ch chan<- os.Signal) func() {
			ch <- syscall.SIGTERM
			return func() {}
		},
	})

	code, err := r.Run(context.Background(), "job", []string{"touch", marker})
	assert.Equal(t, 128+int(syscall.SIGTERM), code)

	var cmdErr *lockdirErrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "SIGTERM", cmdErr.Signal)
	assert.NoFileExists(t, marker, "command must not start after a signal")
	assert.True(t, f.lockGone(t, "job"))
	assert.Equal(t, StateDone, r.State())
}

func TestRun_SignalAbortsWait(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	held, err := f.locker.Acquire(context.Background(), "job")
	require.NoError(t, err)
	defer func() {
		_ = held.Release()
	}()

	f.locker = lock.New(f.reg, lock.Options{Wait: true, PollInterval: 20 * time.Millisecond})
	r := f.runner(Options{})
	marker := filepath.Join(t.TempDir(), "started")

	go func() {
		waitForState(t, r, StateAcquiring)
		time.Sleep(50 * time.Millisecond)
		f.sigs <- syscall.SIGINT
	}()

	began := time.Now()
	code, err := r.Run(context.Background(), "job", []string{"touch", marker})
	assert.Equal(t, 128+int(syscall.SIGINT), code)
	assert.Error(t, err)
	assert.Less(t, time.Since(began), 5*time.Second)
	assert.NoFileExists(t, marker)

	ok, err := f.reg.Exists("job")
	require.NoError(t, err)
	assert.True(t, ok, "the holder's lock must survive")
}

func TestRun_KillsAfterGrace(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{KillGrace: 100 * time.Millisecond})

	go func() {
		waitForState(t, r, StateRunning)
		// Let the shell install its trap before signaling
		time.Sleep(200 * time.Millisecond)
		f.sigs <- syscall.SIGTERM
	}()

	code, err := r.Run(context.Background(), "job", []string{"sh", "-c", `trap "" TERM; exec sleep 30`})
	assert.Equal(t, 128+int(syscall.SIGKILL), code)

	var cmdErr *lockdirErrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "SIGKILL", cmdErr.Signal)
	assert.True(t, f.lockGone(t, "job"))
}

func TestRun_InterruptedCleanExitIsNotSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{})

	go func() {
		waitForState(t, r, StateRunning)
		time.Sleep(200 * time.Millisecond)
		f.sigs <- syscall.SIGINT
	}()

	script := `trap "exit 0" INT; while :; do sleep 0.05; done`
	code, err := r.Run(context.Background(), "job", []string{"sh", "-c", script})
	assert.Equal(t, 128+int(syscall.SIGINT), code)
	assert.ErrorIs(t, err, lockdirErrors.ErrWrappedCommandFailed)
	assert.True(t, f.lockGone(t, "job"))
}

func TestRun_ContextCancelTerminatesCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := f.runner(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		waitForState(t, r, StateRunning)
		cancel()
	}()

	code, _ := r.Run(ctx, "job", []string{"sleep", "30"})
	assert.Equal(t, 128+int(syscall.SIGTERM), code)
	assert.True(t, f.lockGone(t, "job"))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "acquiring", StateAcquiring.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "releasing", StateReleasing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(-1).String())
}
