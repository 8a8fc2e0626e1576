package lock

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/bashhack/lockdir/internal/common"
	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/registry"
)

// Options configures a Locker.
type Options struct {
	// Wait makes Acquire block until the lock is free instead of failing fast.
	Wait bool

	// Timeout bounds a waiting Acquire. Zero means no limit.
	Timeout time.Duration

	// PollInterval is the fallback re-check period while waiting.
	PollInterval time.Duration

	// NoReclaim leaves locks of dead local owners in place for the reaper.
	NoReclaim bool

	// SettleTime is how long a lock directory may exist without an info file
	// before it is treated as invalid.
	SettleTime time.Duration

	// Command is recorded in the owner file.
	Command []string

	Checker Checker
	Logger  common.Logger
}

// Locker acquires named locks in a registry on behalf of this process.
type Locker struct {
	reg     *registry.Registry
	opts    Options
	pid     int
	checker Checker
	logger  common.Logger
}

// New creates a Locker for reg.
func New(reg *registry.Registry, opts Options) *Locker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.DefaultPollInterval
	}
	if opts.SettleTime <= 0 {
		opts.SettleTime = constants.InfoSettleTime
	}

	checker := opts.Checker
	if checker == nil {
		checker = ProcessChecker{}
	}

	var log common.Logger = common.NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}

	return &Locker{
		reg:     reg,
		opts:    opts,
		pid:     os.Getpid(),
		checker: checker,
		logger:  log,
	}
}

// Acquire takes the lock called name. In wait mode it blocks until the lock
// is acquired, ctx is done, or the timeout elapses.
func (l *Locker) Acquire(ctx context.Context, name string) (*Handle, error) {
	if !l.opts.Wait {
		return l.TryAcquire(ctx, name)
	}
	return l.wait(ctx, name)
}

// TryAcquire makes a single attempt to take the lock called name.
//
// An existing lock with a missing or malformed info file is never taken
// over. A dead local owner's lock is removed and re-created once unless
// NoReclaim is set.
func (l *Locker) TryAcquire(ctx context.Context, name string) (*Handle, error) {
	path, err := l.reg.Create(name)
	if err == nil {
		return l.claim(name, path)
	}
	if !lockdirErrors.Is(err, fs.ErrExist) {
		if lockdirErrors.Is(err, lockdirErrors.ErrInvalidLockName) {
			return nil, err
		}
		return nil, lockdirErrors.NewLockError(name, path, 0, "",
			lockdirErrors.Wrap(err, "failed to create lock directory"))
	}

	rec, err := l.inspectSettled(ctx, name)
	if lockdirErrors.Is(err, lockdirErrors.ErrNoSuchLock) {
		// Released between our mkdir and the inspection.
		return l.createOnce(name)
	}
	if err != nil {
		return nil, err
	}

	switch Classify(l.reg, l.checker, rec) {
	case StateInvalid:
		return nil, lockdirErrors.NewLockError(name, rec.Path, 0, "", rec.Err)
	case StateRemote:
		return nil, lockdirErrors.NewLockError(name, rec.Path, rec.Info.PID, rec.Info.Host,
			fmt.Errorf("%w: %w", lockdirErrors.ErrLockBusy, lockdirErrors.ErrRemoteOwner))
	case StateAlive:
		return nil, lockdirErrors.NewLockError(name, rec.Path, rec.Info.PID, rec.Info.Host, lockdirErrors.ErrLockBusy)
	}

	if l.opts.NoReclaim {
		return nil, lockdirErrors.NewLockError(name, rec.Path, rec.Info.PID, rec.Info.Host,
			lockdirErrors.Wrap(lockdirErrors.ErrLockBusy, "owner is not running; run lockdir reap"))
	}
	return l.reclaim(rec)
}

// inspectSettled reads the existing record, giving an acquirer that has just
// created the directory a short window to write its info file.
func (l *Locker) inspectSettled(ctx context.Context, name string) (registry.Record, error) {
	deadline := time.Now().Add(l.opts.SettleTime)
	for {
		rec, err := l.reg.Inspect(name)
		if err != nil {
			return rec, err
		}
		if rec.Valid() || !lockdirErrors.Is(rec.Err, fs.ErrNotExist) || time.Now().After(deadline) {
			return rec, nil
		}

		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// reclaim removes a dead owner's lock and retries mkdir exactly once. The
// removal happens under the registry's reaper lock after re-reading the
// record, so two reclaimers cannot remove each other's fresh locks. A reaper
// may hold that lock for as long as an operator answers prompts, so reclaim
// never waits for it: a held reaper lock means busy.
func (l *Locker) reclaim(stale registry.Record) (*Handle, error) {
	unlock, ok, err := l.reg.TryExclusive()
	if err != nil {
		return nil, lockdirErrors.NewLockError(stale.Name, stale.Path, stale.Info.PID, stale.Info.Host, err)
	}
	if !ok {
		return nil, lockdirErrors.NewLockError(stale.Name, stale.Path, stale.Info.PID, stale.Info.Host,
			lockdirErrors.Wrap(lockdirErrors.ErrLockBusy, "owner is not running and a reaper is active"))
	}
	defer unlock()

	current, err := l.reg.Inspect(stale.Name)
	switch {
	case lockdirErrors.Is(err, lockdirErrors.ErrNoSuchLock):
		return l.createOnce(stale.Name)
	case err != nil:
		return nil, err
	case !sameRecord(current, stale) || Classify(l.reg, l.checker, current) != StateDead:
		return nil, lockdirErrors.NewLockError(stale.Name, current.Path, current.Info.PID, current.Info.Host,
			lockdirErrors.ErrLockBusy)
	}

	if err := l.reg.Remove(stale.Name); err != nil {
		return nil, err
	}
	l.logger.Warning("Reclaimed stale lock %s from dead pid %d", stale.Name, stale.Info.PID)

	return l.createOnce(stale.Name)
}

func (l *Locker) createOnce(name string) (*Handle, error) {
	path, err := l.reg.Create(name)
	if err != nil {
		if lockdirErrors.Is(err, fs.ErrExist) {
			return nil, lockdirErrors.NewLockError(name, path, 0, "",
				lockdirErrors.Wrap(lockdirErrors.ErrLockBusy, "lost the race for a freed lock"))
		}
		return nil, lockdirErrors.NewLockError(name, path, 0, "",
			lockdirErrors.Wrap(err, "failed to create lock directory"))
	}
	return l.claim(name, path)
}

// claim writes the info and owner files into a freshly created lock
// directory.
func (l *Locker) claim(name, path string) (*Handle, error) {
	info := registry.Info{PID: l.pid, Host: l.reg.Hostname()}

	if err := l.reg.WriteInfo(name, info); err != nil {
		_ = os.RemoveAll(path)
		return nil, lockdirErrors.NewLockError(name, path, info.PID, info.Host, err)
	}

	owner := registry.Owner{
		Token:      uuid.NewString(),
		PID:        info.PID,
		Host:       info.Host,
		AcquiredAt: time.Now().UTC().Truncate(time.Millisecond),
		Command:    l.opts.Command,
	}
	if start, err := l.checker.StartTime(l.pid); err == nil {
		owner.ProcessStart = start
	}

	token := owner.Token
	if err := l.reg.WriteOwner(name, owner); err != nil {
		// The info file alone is a valid lock.
		l.logger.Warning("Failed to write owner file for %s: %v", name, err)
		token = ""
	}

	l.logger.Info("Acquired lock %s at %s", name, path)

	return &Handle{
		reg:    l.reg,
		name:   name,
		path:   path,
		info:   info,
		token:  token,
		logger: l.logger,
	}, nil
}

func (l *Locker) wait(ctx context.Context, name string) (*Handle, error) {
	parent := ctx
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() {
			_ = watcher.Close()
		}()
		if err := watcher.Add(l.reg.Dir()); err == nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		} else {
			l.logger.Warning("Cannot watch %s, polling instead: %v", l.reg.Dir(), err)
		}
	} else {
		l.logger.Warning("Cannot create file watcher, polling instead: %v", err)
	}

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	// The timeout can expire during an attempt as well as between attempts;
	// either way it is reported as busy.
	timedOut := func(err error) bool {
		return parent.Err() == nil && lockdirErrors.Is(err, context.DeadlineExceeded)
	}
	timeoutErr := func() error {
		return lockdirErrors.NewLockError(name, filepath.Join(l.reg.Dir(), name), 0, "",
			lockdirErrors.Wrapf(lockdirErrors.ErrLockBusy, "timed out after %s", l.opts.Timeout))
	}

	announced := false
	for {
		h, err := l.TryAcquire(ctx, name)
		if err == nil {
			return h, nil
		}
		if timedOut(err) {
			return nil, timeoutErr()
		}
		if !lockdirErrors.Is(err, lockdirErrors.ErrLockBusy) {
			return nil, err
		}
		if !announced {
			l.logger.InfoToUser("Waiting for lock %s: %v", name, err)
			announced = true
		}

		if werr := l.waitForChange(ctx, name, events, watchErrs, ticker.C); werr != nil {
			if timedOut(werr) {
				return nil, timeoutErr()
			}
			return nil, lockdirErrors.Wrapf(werr, "gave up waiting for lock %s", name)
		}
	}
}

// waitForChange blocks until the lock entry changes on disk, the poll ticker
// fires, or ctx is done.
func (l *Locker) waitForChange(ctx context.Context, name string, events <-chan fsnotify.Event,
	watchErrs <-chan error, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) == name && ev.Has(fsnotify.Remove|fsnotify.Rename) {
				return nil
			}
		case werr, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			l.logger.Warning("File watcher error: %v", werr)
		}
	}
}

func sameRecord(a, b registry.Record) bool {
	if a.Info != b.Info {
		return false
	}
	if a.Owner == nil || b.Owner == nil {
		return a.Owner == nil && b.Owner == nil
	}
	return a.Owner.Token == b.Owner.Token
}
