package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
)

// Info is the content of a lock's info file: "pid hostname" on one line.
// It is the sole source of truth for ownership.
type Info struct {
	PID  int
	Host string
}

// String formats the info file line, including the trailing newline.
func (i Info) String() string {
	return fmt.Sprintf("%d %s\n", i.PID, i.Host)
}

// ParseInfo parses info file content. Anything other than exactly two fields
// with a positive pid is malformed.
func ParseInfo(data []byte) (Info, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return Info{}, invalid(fmt.Errorf("info file is empty"))
	}
	if len(fields) != 2 {
		return Info{}, invalid(fmt.Errorf("info file has %d fields, want 2", len(fields)))
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return Info{}, invalid(fmt.Errorf("invalid pid %q", fields[0]))
	}

	return Info{PID: pid, Host: fields[1]}, nil
}

// Owner is optional metadata stored next to the info file. Locks created by
// other tools have no owner file; its absence never invalidates a record.
type Owner struct {
	// Token identifies the acquiring handle, so release never removes a lock
	// that has since been reaped and re-acquired by someone else.
	Token string `toml:"token"`
	PID   int    `toml:"pid"`
	Host  string `toml:"host"`

	// ProcessStart is the owner's process start time in milliseconds since
	// the epoch, used to detect pid reuse. Zero when unknown.
	ProcessStart int64     `toml:"process_start_ms,omitempty"`
	AcquiredAt   time.Time `toml:"acquired_at"`
	Command      []string  `toml:"command,omitempty"`
}

// Record is one entry of the registry.
type Record struct {
	Name    string
	Path    string
	Info    Info
	Owner   *Owner
	Created time.Time

	// Err is set when the info file is missing, unreadable or malformed.
	// It wraps ErrLockRecordInvalid.
	Err error
}

// Valid reports whether the record's info file was read successfully.
func (r Record) Valid() bool {
	return r.Err == nil
}

// ReadInfo reads and parses the info file of lock name.
func (r *Registry) ReadInfo(name string) (Info, error) {
	path, err := r.Path(name)
	if err != nil {
		return Info{}, err
	}

	data, err := os.ReadFile(filepath.Join(path, constants.InfoFileName))
	if err != nil {
		return Info{}, invalid(err)
	}
	return ParseInfo(data)
}

// WriteInfo writes the info file of lock name. The content is written to a
// temporary file and renamed into place so readers never see a partial line.
func (r *Registry) WriteInfo(name string, info Info) error {
	path, err := r.Path(name)
	if err != nil {
		return err
	}
	return writeAtomic(path, constants.InfoFileName, []byte(info.String()))
}

// ReadOwner reads the owner file of lock name. A missing owner file returns
// (nil, nil).
func (r *Registry) ReadOwner(name string) (*Owner, error) {
	path, err := r.Path(name)
	if err != nil {
		return nil, err
	}

	var owner Owner
	if _, err := toml.DecodeFile(filepath.Join(path, constants.OwnerFileName), &owner); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, lockdirErrors.Wrapf(err, "failed to read owner file of %s", name)
	}
	return &owner, nil
}

// WriteOwner writes the owner file of lock name.
func (r *Registry) WriteOwner(name string, owner Owner) error {
	path, err := r.Path(name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(owner); err != nil {
		return lockdirErrors.Wrap(err, "failed to encode owner file")
	}
	return writeAtomic(path, constants.OwnerFileName, buf.Bytes())
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return lockdirErrors.Wrapf(err, "failed to create %s", name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return lockdirErrors.Wrapf(err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return lockdirErrors.Wrapf(err, "failed to close %s", name)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return lockdirErrors.Wrapf(err, "failed to install %s", name)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", lockdirErrors.ErrLockRecordInvalid, err)
}
