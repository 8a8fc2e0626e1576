package reaper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bashhack/lockdir/internal/common"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
	"github.com/bashhack/lockdir/internal/lock"
	"github.com/bashhack/lockdir/internal/registry"
)

// Outcome is what the reaper did with one lock.
type Outcome int

const (
	// Removed means the stale lock directory was deleted.
	Removed Outcome = iota
	// WouldRemove means the lock is stale but this was a dry run.
	WouldRemove
	// Gone means the lock disappeared before it could be removed.
	Gone
	// Skipped means the lock was left in place: alive, remote, declined or changed.
	Skipped
	// Failed means the record could not be read or removed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case WouldRemove:
		return "would remove"
	case Gone:
		return "gone"
	case Skipped:
		return "skipped"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Entry reports the handling of a single lock.
type Entry struct {
	Name    string
	Info    registry.Info
	State   lock.State
	Outcome Outcome
	Reason  string
	Err     error
}

// Report collects the entries of one reaper pass.
type Report struct {
	Started time.Time
	Entries []Entry
}

func (r *Report) count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Removed returns the number of removed locks.
func (r *Report) Removed() int { return r.count(Removed) }

// Skipped returns the number of locks left in place.
func (r *Report) Skipped() int { return r.count(Skipped) }

// Errors returns the number of locks that could not be processed.
func (r *Report) Errors() int { return r.count(Failed) }

// ExitStatus is the number of skipped and failed entries, capped at 125.
func (r *Report) ExitStatus() int {
	return exitcode.Count(r.Skipped() + r.Errors())
}

// Options configures a Reaper.
type Options struct {
	// Interactive asks the Confirmer before each removal.
	Interactive bool

	// DryRun reports stale locks without removing them.
	DryRun bool

	// MetricsFile, when set, receives the report in Prometheus text format.
	MetricsFile string

	Confirmer Confirmer
	Checker   lock.Checker
	Logger    common.Logger
}

// Reaper removes locks whose local owner is no longer running.
type Reaper struct {
	reg    *registry.Registry
	opts   Options
	logger common.Logger
	now    func() time.Time
}

// New creates a Reaper for reg.
func New(reg *registry.Registry, opts Options) *Reaper {
	if opts.Checker == nil {
		opts.Checker = lock.ProcessChecker{}
	}
	if opts.Interactive && opts.Confirmer == nil {
		opts.Confirmer = NewPromptConfirmer(os.Stdin, os.Stderr)
	}

	var log common.Logger = common.NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}

	return &Reaper{
		reg:    reg,
		opts:   opts,
		logger: log,
		now:    time.Now,
	}
}

// Reap processes the named locks, or every lock in the registry when names is
// empty. Per-lock problems are recorded in the report and never stop the
// pass; the returned error covers only failures affecting the whole pass.
func (r *Reaper) Reap(ctx context.Context, names []string) (*Report, error) {
	unlock, err := r.reg.Exclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &Report{Started: r.now()}

	records, entries, err := r.collect(names)
	if err != nil {
		return nil, err
	}
	report.Entries = append(report.Entries, entries...)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry := r.process(rec)
		r.announce(entry)
		report.Entries = append(report.Entries, entry)
	}

	if r.opts.MetricsFile != "" {
		if err := WriteMetrics(r.opts.MetricsFile, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// collect resolves the records to process. Names that cannot be inspected
// become failed entries right away.
func (r *Reaper) collect(names []string) ([]registry.Record, []Entry, error) {
	if len(names) == 0 {
		records, err := r.reg.List()
		return records, nil, err
	}

	var records []registry.Record
	var entries []Entry
	for _, name := range names {
		rec, err := r.reg.Inspect(name)
		if err != nil {
			entry := Entry{Name: name, State: lock.StateInvalid, Outcome: Failed, Reason: "cannot inspect", Err: err}
			if lockdirErrors.Is(err, lockdirErrors.ErrNoSuchLock) {
				entry.Reason = "no such lock"
			}
			r.announce(entry)
			entries = append(entries, entry)
			continue
		}
		records = append(records, rec)
	}
	return records, entries, nil
}

func (r *Reaper) process(rec registry.Record) Entry {
	entry := Entry{Name: rec.Name, Info: rec.Info}

	entry.State = lock.Classify(r.reg, r.opts.Checker, rec)
	switch entry.State {
	case lock.StateInvalid:
		entry.Outcome = Failed
		entry.Reason = "invalid lock record"
		entry.Err = lockdirErrors.NewLockError(rec.Name, rec.Path, 0, "", rec.Err)
		return entry
	case lock.StateRemote:
		entry.Outcome = Skipped
		entry.Reason = fmt.Sprintf("owned by pid %d on remote host %s", rec.Info.PID, rec.Info.Host)
		entry.Err = lockdirErrors.NewLockError(rec.Name, rec.Path, rec.Info.PID, rec.Info.Host, lockdirErrors.ErrRemoteOwner)
		return entry
	case lock.StateAlive:
		entry.Outcome = Skipped
		entry.Reason = fmt.Sprintf("owner pid %d is alive", rec.Info.PID)
		entry.Err = lockdirErrors.NewLockError(rec.Name, rec.Path, rec.Info.PID, rec.Info.Host, lockdirErrors.ErrLockBusy)
		return entry
	}

	if r.opts.Interactive {
		question := fmt.Sprintf("Remove stale lock %s (pid %d on %s)?", rec.Name, rec.Info.PID, rec.Info.Host)
		if !r.opts.Confirmer.Confirm(question) {
			entry.Outcome = Skipped
			entry.Reason = "declined by operator"
			return entry
		}
	}

	if r.opts.DryRun {
		entry.Outcome = WouldRemove
		entry.Reason = fmt.Sprintf("owner pid %d is not running", rec.Info.PID)
		return entry
	}

	// The prompt may have taken a while; make sure we remove what we judged.
	current, err := r.reg.Inspect(rec.Name)
	switch {
	case lockdirErrors.Is(err, lockdirErrors.ErrNoSuchLock):
		entry.Outcome = Gone
		entry.Reason = "already removed"
		return entry
	case err != nil:
		entry.Outcome = Failed
		entry.Reason = "cannot re-read lock"
		entry.Err = err
		return entry
	case !current.Valid() || current.Info != rec.Info || ownerToken(current) != ownerToken(rec):
		entry.Outcome = Skipped
		entry.Reason = "lock changed while reaping"
		return entry
	}

	if err := r.reg.Remove(rec.Name); err != nil {
		entry.Outcome = Failed
		entry.Reason = "remove failed"
		entry.Err = err
		return entry
	}

	entry.Outcome = Removed
	entry.Reason = fmt.Sprintf("owner pid %d is not running", rec.Info.PID)
	return entry
}

func (r *Reaper) announce(e Entry) {
	switch e.Outcome {
	case Removed:
		r.logger.Success("Removed stale lock %s: %s", e.Name, e.Reason)
	case WouldRemove:
		r.logger.InfoToUser("Would remove stale lock %s: %s", e.Name, e.Reason)
	case Gone:
		r.logger.Info("Lock %s was %s", e.Name, e.Reason)
	case Skipped:
		r.logger.WarningToUser("Skipped lock %s: %s", e.Name, e.Reason)
	case Failed:
		if e.Err != nil {
			r.logger.Error("Lock %s: %s: %v", e.Name, e.Reason, e.Err)
		} else {
			r.logger.Error("Lock %s: %s", e.Name, e.Reason)
		}
	}
}

func ownerToken(rec registry.Record) string {
	if rec.Owner == nil {
		return ""
	}
	return rec.Owner.Token
}
