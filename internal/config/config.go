package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bashhack/lockdir/internal/constants"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
)

// Config holds all lockdir settings.
// Values come from defaults, the config file, an env file, the environment
// and command-line flags, in increasing order of precedence.
type Config struct {
	// Registry

	// RegistryDir is the directory holding one subdirectory per held lock.
	// Defaults to $HOME/.locks.
	RegistryDir string `toml:"registry"`

	// Acquisition

	// Wait makes run block until the lock is free instead of failing fast.
	Wait bool `toml:"wait"`

	// Timeout bounds a waiting run. Zero waits forever.
	Timeout time.Duration `toml:"timeout"`

	// PollInterval is how often a waiting run re-checks the lock when no
	// filesystem event arrives.
	PollInterval time.Duration `toml:"poll_interval"`

	// NoReclaim leaves a dead local owner's lock for the reaper instead of
	// taking it over.
	NoReclaim bool `toml:"no_reclaim"`

	// Guarded command

	// BusyExitCode is the exit status of run when the lock is held.
	BusyExitCode int `toml:"busy_exit_code"`

	// KillGrace is how long a signaled command may take to exit before
	// SIGKILL.
	KillGrace time.Duration `toml:"kill_grace"`

	// Reaper

	// Interactive asks before removing each stale lock. Flag only.
	Interactive bool `toml:"-"`

	// DryRun reports stale locks without removing them. Flag only.
	DryRun bool `toml:"-"`

	// MetricsFile receives reaper counts in Prometheus text format.
	MetricsFile string `toml:"metrics_file"`

	// Output

	Debug   bool   `toml:"debug"`
	LogFile string `toml:"log_file"`
	Quiet   bool   `toml:"quiet"`

	// Sources

	// ConfigFile is the TOML config file. Empty means the default location,
	// which may be absent.
	ConfigFile string `toml:"-"`

	// EnvFile is an optional dotenv file read before the environment.
	EnvFile string `toml:"-"`

	// VersionInfo is injected at build time.
	VersionInfo VersionInfo `toml:"-"`
}

// VersionInfo contains build-time version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		PollInterval: constants.DefaultPollInterval,
		BusyExitCode: exitcode.ErrBusy,
		KillGrace:    constants.DefaultKillGrace,

		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// SetupGlobalFlags binds the flags shared by every command.
func (c *Config) SetupGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.RegistryDir, "registry", c.RegistryDir, "Lock registry directory (default: $HOME/.locks, env "+constants.EnvRegistry+")")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Config file (default: $XDG_CONFIG_HOME/lockdir/config.toml)")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Read environment variables from a dotenv file")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Write a debug log")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Debug log path (default: $XDG_DATA_HOME/lockdir/logs/lockdir.log)")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "Hide informational messages")
}

// SetupRunFlags binds the flags of the run command.
func (c *Config) SetupRunFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Wait, "wait", "w", c.Wait, "Wait for the lock instead of failing when it is held")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Give up waiting after this long (0 = no limit)")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Re-check interval while waiting")
	fs.IntVar(&c.BusyExitCode, "busy-exit-code", c.BusyExitCode, "Exit status when the lock is held")
	fs.BoolVar(&c.NoReclaim, "no-reclaim", c.NoReclaim, "Do not take over locks of dead local owners")
	fs.DurationVar(&c.KillGrace, "kill-grace", c.KillGrace, "Time a signaled command gets before SIGKILL")
}

// SetupReapFlags binds the flags of the reap command.
func (c *Config) SetupReapFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Interactive, "interactive", "i", c.Interactive, "Ask before removing each stale lock")
	fs.BoolVarP(&c.DryRun, "dry-run", "n", c.DryRun, "Report stale locks without removing them")
	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Write reaper counts to this Prometheus textfile")
}

// Load fills the config from the config file, env file and environment, then
// re-applies every flag the user set on fs so flags keep the last word.
func (c *Config) Load(fs *pflag.FlagSet) error {
	changed := map[string]string{}
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
	}

	if path, ok := os.LookupEnv(constants.EnvConfigFile); ok && c.ConfigFile == "" {
		c.ConfigFile = path
	}
	if err := c.LoadFile(); err != nil {
		return err
	}

	fileEnv := map[string]string{}
	if c.EnvFile != "" {
		var err error
		fileEnv, err = godotenv.Read(c.EnvFile)
		if err != nil {
			return lockdirErrors.NewConfigError("env-file", c.EnvFile, lockdirErrors.Wrap(err, "cannot read env file"))
		}
	}
	if err := c.LoadFromEnvironment(envLookup(fileEnv)); err != nil {
		return err
	}

	for name, value := range changed {
		if err := fs.Set(name, value); err != nil {
			return lockdirErrors.NewConfigError(name, value, lockdirErrors.Wrap(lockdirErrors.ErrInvalidFlag, err.Error()))
		}
	}

	return c.Finalize()
}

// LoadFile decodes the TOML config file into c. A missing file is an error
// only when it was named explicitly.
func (c *Config) LoadFile() error {
	path := c.ConfigFile
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return lockdirErrors.NewConfigError("config", path, lockdirErrors.Wrap(err, "cannot read config file"))
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return lockdirErrors.NewConfigError("config", path,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, err.Error()))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return lockdirErrors.NewConfigError("config", path,
			lockdirErrors.Wrapf(lockdirErrors.ErrInvalidConfiguration, "unknown keys: %s", strings.Join(keys, ", ")))
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadFromEnvironment updates config from environment variables. A value
// that cannot be parsed is an error rather than silently ignored.
func (c *Config) LoadFromEnvironment(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var err error
	c.RegistryDir = getEnvString(lookup, constants.EnvRegistry, c.RegistryDir)
	c.LogFile = getEnvString(lookup, constants.EnvLogFile, c.LogFile)
	c.MetricsFile = getEnvString(lookup, constants.EnvMetricsFile, c.MetricsFile)

	if c.Wait, err = getEnvBool(lookup, constants.EnvWait, c.Wait); err != nil {
		return err
	}
	if c.NoReclaim, err = getEnvBool(lookup, constants.EnvNoReclaim, c.NoReclaim); err != nil {
		return err
	}
	if c.Debug, err = getEnvBool(lookup, constants.EnvDebug, c.Debug); err != nil {
		return err
	}
	if c.Quiet, err = getEnvBool(lookup, constants.EnvQuiet, c.Quiet); err != nil {
		return err
	}
	if c.Timeout, err = getEnvDuration(lookup, constants.EnvTimeout, c.Timeout); err != nil {
		return err
	}
	if c.PollInterval, err = getEnvDuration(lookup, constants.EnvPollInterval, c.PollInterval); err != nil {
		return err
	}
	if c.KillGrace, err = getEnvDuration(lookup, constants.EnvKillGrace, c.KillGrace); err != nil {
		return err
	}
	if c.BusyExitCode, err = getEnvInt(lookup, constants.EnvBusyExitCode, c.BusyExitCode); err != nil {
		return err
	}
	return nil
}

// Finalize validates the configuration and resolves default paths.
func (c *Config) Finalize() error {
	if c.Timeout < 0 {
		return lockdirErrors.NewConfigError("timeout", c.Timeout,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "must not be negative"))
	}
	if c.PollInterval <= 0 {
		return lockdirErrors.NewConfigError("poll-interval", c.PollInterval,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "must be greater than 0"))
	}
	if c.KillGrace <= 0 {
		return lockdirErrors.NewConfigError("kill-grace", c.KillGrace,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "must be greater than 0"))
	}
	if c.BusyExitCode < 1 || c.BusyExitCode > 255 {
		return lockdirErrors.NewConfigError("busy-exit-code", c.BusyExitCode,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "must be between 1 and 255"))
	}
	if c.Interactive && c.DryRun {
		return lockdirErrors.NewConfigError("interactive", true,
			lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, "cannot be combined with --dry-run"))
	}

	if c.RegistryDir == "" {
		c.RegistryDir = DefaultRegistryDir()
	}
	dir, err := filepath.Abs(expandHome(c.RegistryDir))
	if err != nil {
		return lockdirErrors.NewConfigError("registry", c.RegistryDir, lockdirErrors.Wrap(err, "failed to resolve absolute path"))
	}
	c.RegistryDir = dir

	if c.LogFile == "" {
		c.LogFile = filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), constants.AppName, "logs", constants.AppName+".log")
	} else {
		c.LogFile = expandHome(c.LogFile)
	}
	c.MetricsFile = expandHome(c.MetricsFile)

	return nil
}

// DefaultRegistryDir returns $HOME/.locks, or a per-user directory under the
// system temp dir when there is no home.
func DefaultRegistryDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, constants.DefaultRegistryName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", constants.AppName, os.Getuid()))
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/lockdir/config.toml.
func DefaultConfigFile() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), constants.AppName, "config.toml")
}

// xdgDir follows the XDG Base Directory Specification: the variable if set,
// otherwise the fallback under the home directory.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// envLookup consults the real environment first, then the env file.
func envLookup(fileEnv map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
}

// getEnvString returns an environment variable string or a default value
func getEnvString(lookup LookupFunc, key, defaultValue string) string {
	if value, exists := lookup(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value
func getEnvInt(lookup LookupFunc, key string, defaultValue int) (int, error) {
	valueStr, exists := lookup(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue, envError(key, valueStr, err)
	}
	return value, nil
}

// getEnvDuration returns an environment variable as a duration or a default
// value. A bare number is taken as seconds.
func getEnvDuration(lookup LookupFunc, key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, exists := lookup(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	valueStr = strings.TrimSpace(valueStr)
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, envError(key, valueStr, err)
	}
	return value, nil
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(lookup LookupFunc, key string, defaultValue bool) (bool, error) {
	valueStr, exists := lookup(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return defaultValue, envError(key, valueStr, fmt.Errorf("not a boolean"))
}

func envError(key, value string, err error) error {
	return lockdirErrors.NewConfigError(key, value, lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, err.Error()))
}
