package runner

import (
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bashhack/lockdir/internal/common"
	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
	"github.com/bashhack/lockdir/internal/lock"
)

// State is the lifecycle position of a guarded run.
type State int

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateAcquiring means Run is taking or waiting for the lock.
	StateAcquiring
	// StateRunning means the command has started under the lock.
	StateRunning
	// StateReleasing means the command is gone and the lock is being removed.
	StateReleasing
	// StateDone means the lock is released, or was never taken.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRunning:
		return "running"
	case StateReleasing:
		return "releasing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Acquirer takes a named lock. *lock.Locker implements it.
type Acquirer interface {
	Acquire(ctx context.Context, name string) (*lock.Handle, error)
}

// NotifyFunc subscribes ch to termination signals and returns a function
// that unsubscribes it.
type NotifyFunc func(ch chan<- os.Signal) (stop func())

// ForwardedSignals are relayed to the guarded command.
var ForwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// Options configures a Runner.
type Options struct {
	// BusyExitCode is returned when the lock is held. Zero means 75.
	BusyExitCode int

	// KillGrace is how long a signaled command may take to exit before it
	// is killed. Zero means five seconds.
	KillGrace time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Env is the command's base environment. Nil means os.Environ().
	Env []string

	// Notify defaults to signal.Notify on ForwardedSignals.
	Notify NotifyFunc

	Logger common.Logger
}

// Runner runs a command while holding a named lock.
type Runner struct {
	acq    Acquirer
	opts   Options
	logger common.Logger

	mu    sync.Mutex
	state State
}

// New creates a Runner that takes locks through acq.
func New(acq Acquirer, opts Options) *Runner {
	if opts.BusyExitCode == 0 {
		opts.BusyExitCode = exitcode.ErrBusy
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = constants.DefaultKillGrace
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Notify == nil {
		opts.Notify = func(ch chan<- os.Signal) func() {
			signal.Notify(ch, ForwardedSignals...)
			return func() { signal.Stop(ch) }
		}
	}

	var log common.Logger = common.NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}

	return &Runner{acq: acq, opts: opts, logger: log}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run acquires the lock called name, runs argv while holding it, and
// releases it. The returned code is the status lockdir should exit with: the
// command's own status, 128+N when it was killed by signal N, 127 or 126 when
// it could not be started, and BusyExitCode when the lock is held.
//
// The command is never started without the lock, and the lock is always
// released before Run returns.
func (r *Runner) Run(ctx context.Context, name string, argv []string) (code int, err error) {
	if len(argv) == 0 {
		r.setState(StateDone)
		return exitcode.ErrUsage, lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "no command to run")
	}

	// Subscribed until after the release, so no signal between acquiring
	// and releasing can kill lockdir while it holds the lock.
	sigCh := make(chan os.Signal, 4)
	stop := r.opts.Notify(sigCh)
	defer stop()

	r.setState(StateAcquiring)
	h, sig, err := r.acquire(ctx, name, sigCh)
	if err != nil {
		r.setState(StateDone)
		switch {
		case sig != 0:
			return interrupted(argv, sig, err)
		case lockdirErrors.Is(err, lockdirErrors.ErrLockBusy):
			return r.opts.BusyExitCode, err
		case lockdirErrors.Is(err, lockdirErrors.ErrInvalidLockName):
			return exitcode.ErrUsage, err
		default:
			return exitcode.ErrGeneral, err
		}
	}

	defer func() {
		r.setState(StateReleasing)
		if rerr := h.Release(); rerr != nil {
			r.logger.Error("Failed to release lock %s: %v", name, rerr)
			if err == nil {
				err = rerr
			}
			if code == exitcode.Success {
				code = exitcode.ErrGeneral
			}
		}
		r.setState(StateDone)
	}()

	if sig == 0 {
		select {
		case s := <-sigCh:
			sig, _ = s.(syscall.Signal)
		default:
		}
	}
	if sig != 0 {
		r.logger.Warning("Received %s before starting %s, releasing lock %s", unix.SignalName(sig), argv[0], name)
		return interrupted(argv, sig, lockdirErrors.Wrap(lockdirErrors.ErrWrappedCommandFailed, "not started"))
	}

	return r.execute(ctx, h.Path(), argv, sigCh)
}

// acquire takes the lock while watching sigCh. A signal cancels a pending
// wait and is returned so the caller can exit 128+N.
func (r *Runner) acquire(ctx context.Context, name string, sigCh <-chan os.Signal) (*lock.Handle, syscall.Signal, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	caught := make(chan syscall.Signal, 1)
	go func() {
		defer close(caught)
		select {
		case s := <-sigCh:
			if sig, ok := s.(syscall.Signal); ok {
				caught <- sig
			}
			cancel()
		case <-done:
		}
	}()

	h, err := r.acq.Acquire(actx, name)
	close(done)
	return h, <-caught, err
}

// interrupted reports a run cut short by sig before the command started.
func interrupted(argv []string, sig syscall.Signal, err error) (int, error) {
	code := exitcode.SignalBase + int(sig)
	return code, lockdirErrors.NewCommandError(argv[0], argv[1:], code, unix.SignalName(sig), err)
}

func (r *Runner) execute(ctx context.Context, lockPath string, argv []string, sigCh <-chan os.Signal) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = r.opts.Stdin
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = r.opts.Stderr

	env := r.opts.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(append([]string(nil), env...), constants.EnvHeldLock+"="+lockPath)

	if err := cmd.Start(); err != nil {
		return startFailure(argv, err)
	}
	r.setState(StateRunning)
	r.logger.Info("Started %s (pid %d) under %s", argv[0], cmd.Process.Pid, lockPath)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var forwarded syscall.Signal
	var killTimer <-chan time.Time
	ctxDone := ctx.Done()

	forward := func(sig syscall.Signal) {
		r.logger.Warning("Forwarding %s to %s (pid %d)", unix.SignalName(sig), argv[0], cmd.Process.Pid)
		_ = cmd.Process.Signal(sig)
		if forwarded == 0 {
			forwarded = sig
			killTimer = time.After(r.opts.KillGrace)
		}
	}

	for {
		select {
		case werr := <-done:
			return exitStatus(argv, werr, forwarded)
		case sig := <-sigCh:
			if s, ok := sig.(syscall.Signal); ok {
				forward(s)
			}
		case <-ctxDone:
			ctxDone = nil
			forward(syscall.SIGTERM)
		case <-killTimer:
			killTimer = nil
			r.logger.WarningToUser("%s did not exit %s after %s, killing it",
				argv[0], r.opts.KillGrace, unix.SignalName(forwarded))
			_ = cmd.Process.Kill()
		}
	}
}

// exitStatus maps the result of cmd.Wait to a shell-style exit status.
func exitStatus(argv []string, werr error, forwarded syscall.Signal) (int, error) {
	command, args := argv[0], argv[1:]

	if werr == nil {
		if forwarded != 0 {
			code := exitcode.SignalBase + int(forwarded)
			return code, lockdirErrors.NewCommandError(command, args, code, unix.SignalName(forwarded),
				lockdirErrors.Wrap(lockdirErrors.ErrWrappedCommandFailed, "interrupted"))
		}
		return exitcode.Success, nil
	}

	var exitErr *exec.ExitError
	if !lockdirErrors.As(werr, &exitErr) {
		return exitcode.ErrGeneral, lockdirErrors.NewCommandError(command, args, 0, "",
			lockdirErrors.Wrap(werr, "failed to wait for command"))
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		code := exitcode.SignalBase + int(ws.Signal())
		return code, lockdirErrors.NewCommandError(command, args, code, unix.SignalName(ws.Signal()),
			lockdirErrors.ErrWrappedCommandFailed)
	}

	code := exitErr.ExitCode()
	return code, lockdirErrors.NewCommandError(command, args, code, "", lockdirErrors.ErrWrappedCommandFailed)
}

// startFailure follows the shell: 127 when the command does not exist, 126
// when it exists but cannot be executed.
func startFailure(argv []string, err error) (int, error) {
	code := exitcode.ErrNotExecutable
	if lockdirErrors.Is(err, exec.ErrNotFound) || lockdirErrors.Is(err, fs.ErrNotExist) {
		code = exitcode.ErrNotFound
	}
	return code, lockdirErrors.NewCommandError(argv[0], argv[1:], code, "",
		lockdirErrors.Wrap(lockdirErrors.ErrWrappedCommandFailed, err.Error()))
}
