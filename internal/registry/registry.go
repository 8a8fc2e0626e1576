package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
)

// Registry is a handle on one lock registry directory. Every lock is a
// subdirectory named after the lock; its existence is the lock.
type Registry struct {
	dir  string
	host string
}

// Option customizes a Registry at Open time.
type Option func(*Registry)

// WithHostname overrides the hostname recorded in and compared against info
// files. Tests use it to simulate locks owned by other hosts.
func WithHostname(host string) Option {
	return func(r *Registry) {
		r.host = host
	}
}

// Open returns a Registry rooted at dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Registry, error) {
	if dir == "" {
		return nil, lockdirErrors.NewConfigError("registry", dir, lockdirErrors.ErrInvalidConfiguration)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, lockdirErrors.Wrapf(err, "failed to resolve registry path %s", dir)
	}

	if err := os.MkdirAll(absDir, 0o700); err != nil {
		return nil, lockdirErrors.Wrapf(err, "failed to create registry %s", absDir)
	}

	r := &Registry{dir: absDir}
	for _, opt := range opts {
		opt(r)
	}

	if r.host == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, lockdirErrors.Wrap(err, "failed to look up hostname")
		}
		r.host = host
	}

	return r, nil
}

// Dir returns the absolute registry directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Hostname returns the host this registry handle considers local.
func (r *Registry) Hostname() string {
	return r.host
}

// IsLocal reports whether info was written by a process on this host.
func (r *Registry) IsLocal(info Info) bool {
	return info.Host == r.host
}

// ValidateName checks that name can be used as a single registry entry.
func ValidateName(name string) error {
	switch {
	case name == "":
		return lockdirErrors.Wrap(lockdirErrors.ErrInvalidLockName, "empty name")
	case strings.ContainsAny(name, "/\x00"):
		return lockdirErrors.Wrapf(lockdirErrors.ErrInvalidLockName, "%q contains a path separator or NUL", name)
	case strings.HasPrefix(name, "."):
		return lockdirErrors.Wrapf(lockdirErrors.ErrInvalidLockName, "%q starts with a dot", name)
	}
	return nil
}

// Path returns the lock directory for name.
func (r *Registry) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, name), nil
}

// Create atomically creates the lock directory for name. An existing lock
// yields an error matching fs.ErrExist.
func (r *Registry) Create(name string) (string, error) {
	path, err := r.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(path, 0o700); err != nil {
		return path, err
	}
	return path, nil
}

// Exists reports whether a registry entry named name exists.
func (r *Registry) Exists(name string) (bool, error) {
	path, err := r.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Remove deletes the lock directory for name. A missing lock is not an error.
func (r *Registry) Remove(name string) error {
	path, err := r.Path(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return lockdirErrors.NewLockError(name, path, 0, "", lockdirErrors.Wrap(err, "failed to remove lock directory"))
	}
	return nil
}

// Inspect reads a single record. A missing lock yields ErrNoSuchLock; a
// present lock with a bad info file is returned with Record.Err set.
func (r *Registry) Inspect(name string) (Record, error) {
	path, err := r.Path(name)
	if err != nil {
		return Record{}, err
	}

	st, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, lockdirErrors.NewLockError(name, path, 0, "", lockdirErrors.ErrNoSuchLock)
		}
		return Record{}, lockdirErrors.NewLockError(name, path, 0, "", err)
	}

	return r.record(name, path, st), nil
}

// List returns every lock record in the registry, sorted by name. Hidden
// entries are registry bookkeeping and are skipped.
func (r *Registry) List() ([]Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, lockdirErrors.Wrapf(err, "failed to read registry %s", r.dir)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		st, err := os.Lstat(path)
		if err != nil {
			// Removed between ReadDir and Lstat: released, not an error.
			if os.IsNotExist(err) {
				continue
			}
			records = append(records, Record{Name: entry.Name(), Path: path, Err: invalid(err)})
			continue
		}
		records = append(records, r.record(entry.Name(), path, st))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

func (r *Registry) record(name, path string, st fs.FileInfo) Record {
	rec := Record{Name: name, Path: path, Created: st.ModTime()}

	if !st.IsDir() {
		rec.Err = invalid(fmt.Errorf("%s is not a directory", path))
		return rec
	}

	info, err := r.ReadInfo(name)
	if err != nil {
		rec.Err = err
		return rec
	}
	rec.Info = info

	owner, err := r.ReadOwner(name)
	if err == nil {
		rec.Owner = owner
	}
	return rec
}

// Exclusive takes the registry's advisory reaper lock, waiting until ctx is
// done. Only code that removes other processes' locks takes it; acquirers
// never do.
func (r *Registry) Exclusive(ctx context.Context) (func(), error) {
	fl := flock.New(filepath.Join(r.dir, constants.ReapLockFileName))

	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, lockdirErrors.Wrap(err, "failed to lock registry for reaping")
	}
	if !locked {
		return nil, lockdirErrors.New("failed to lock registry for reaping")
	}

	return func() {
		_ = fl.Unlock()
	}, nil
}

// TryExclusive takes the reaper lock only if it is free right now. ok is
// false when another process holds it.
func (r *Registry) TryExclusive() (unlock func(), ok bool, err error) {
	fl := flock.New(filepath.Join(r.dir, constants.ReapLockFileName))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, lockdirErrors.Wrap(err, "failed to lock registry for reaping")
	}
	if !locked {
		return nil, false, nil
	}

	return func() {
		_ = fl.Unlock()
	}, true, nil
}
