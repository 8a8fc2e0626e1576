package lock

import (
	"sync"

	"github.com/bashhack/lockdir/internal/common"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/registry"
)

// Handle is a held lock. It is safe to call Release from several goroutines.
type Handle struct {
	reg    *registry.Registry
	name   string
	path   string
	info   registry.Info
	token  string
	logger common.Logger

	mu       sync.Mutex
	released bool
}

// Name returns the lock name.
func (h *Handle) Name() string {
	return h.name
}

// Path returns the lock directory.
func (h *Handle) Path() string {
	return h.path
}

// Token returns the owner token written at acquisition, or "" when the owner
// file could not be written.
func (h *Handle) Token() string {
	return h.token
}

// Release removes the lock directory if it still belongs to this handle.
// Later calls are no-ops. A lock that has since been removed or re-acquired
// by another process is left alone and is not an error.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}

	rec, err := h.reg.Inspect(h.name)
	if lockdirErrors.Is(err, lockdirErrors.ErrNoSuchLock) {
		h.logger.Warning("Lock %s was already removed", h.name)
		h.released = true
		return nil
	}
	if err != nil {
		return err
	}

	if !h.owns(rec) {
		h.logger.Warning("Lock %s now belongs to pid %d on %s, leaving it in place",
			h.name, rec.Info.PID, rec.Info.Host)
		h.released = true
		return nil
	}

	if err := h.reg.Remove(h.name); err != nil {
		return err
	}
	h.released = true
	h.logger.Info("Released lock %s", h.name)
	return nil
}

func (h *Handle) owns(rec registry.Record) bool {
	if h.token != "" && rec.Owner != nil {
		return rec.Owner.Token == h.token
	}
	return rec.Valid() && rec.Info == h.info
}
