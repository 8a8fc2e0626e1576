package config

import (
	"fmt"
	"sync"

	"github.com/spf13/pflag"
)

// ThreadSafeConfig provides thread-safe access to configuration settings.
// Flags are bound to it before parsing; after Initialize the configuration is
// read-only and Config hands out copies.
type ThreadSafeConfig struct {
	mu    sync.RWMutex
	cfg   Config
	ready bool
}

// NewThreadSafeConfig creates a new thread-safe configuration with default values.
func NewThreadSafeConfig() *ThreadSafeConfig {
	return &ThreadSafeConfig{
		cfg: *New(),
	}
}

// WithVersionInfo sets the version info on the config and returns the config.
// This follows the builder pattern for configuration setup.
func (c *ThreadSafeConfig) WithVersionInfo(info VersionInfo) *ThreadSafeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		panic("cannot modify config after initialization")
	}

	c.cfg.VersionInfo = info
	return c
}

// BindGlobalFlags binds the shared flags to the underlying config.
func (c *ThreadSafeConfig) BindGlobalFlags(fs *pflag.FlagSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetupGlobalFlags(fs)
}

// BindRunFlags binds the run command's flags to the underlying config.
func (c *ThreadSafeConfig) BindRunFlags(fs *pflag.FlagSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetupRunFlags(fs)
}

// BindReapFlags binds the reap command's flags to the underlying config.
func (c *ThreadSafeConfig) BindReapFlags(fs *pflag.FlagSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetupReapFlags(fs)
}

// Initialize loads the config file, env file and environment under the
// parsed flags in fs, then validates. It must be called once, after flag
// parsing.
func (c *ThreadSafeConfig) Initialize(fs *pflag.FlagSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return fmt.Errorf("config already initialized")
	}

	if err := c.cfg.Load(fs); err != nil {
		return err
	}

	c.ready = true
	return nil
}

// Config returns a copy of the current configuration.
// This method is safe for concurrent use and can be called
// from any goroutine after Initialize() has been called.
func (c *ThreadSafeConfig) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready {
		panic("config accessed before initialization")
	}

	return c.cfg
}

// VersionInfo returns the build metadata. Unlike Config it is available
// before Initialize.
func (c *ThreadSafeConfig) VersionInfo() VersionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.VersionInfo
}

// IsReady returns whether the configuration has been successfully initialized
// and is ready for use.
func (c *ThreadSafeConfig) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}
