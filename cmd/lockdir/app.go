package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bashhack/lockdir/internal/config"
	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
	"github.com/bashhack/lockdir/internal/lock"
	"github.com/bashhack/lockdir/internal/logger"
	"github.com/bashhack/lockdir/internal/registry"
	"github.com/bashhack/lockdir/internal/runner"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// AppOptions contains app configuration and dependencies.
// This struct allows injection of both required and optional dependencies,
// enabling flexible configuration and easier testing.
type AppOptions struct {
	// Config holds the application configuration settings (required).
	// The application will panic if this field is nil.
	Config *config.ThreadSafeConfig

	// Optional components

	// Logger provides logging functionality (optional, a default will be created if nil).
	Logger logger.Logger

	// Checker decides whether lock owners are still running (optional,
	// defaults to lock.ProcessChecker).
	Checker lock.Checker

	// Hostname overrides the host recorded in and compared against lock
	// records (optional, defaults to os.Hostname).
	Hostname string

	// I/O dependencies

	// Stdin is handed to the guarded command and read by interactive reaping.
	Stdin io.Reader

	// Stdout belongs to the guarded command; lockdir itself only writes
	// list and version output there.
	Stdout io.Writer

	// Stderr receives every lockdir message.
	Stderr io.Writer

	// System dependencies

	// Exit is the function to terminate the application (optional, defaults to os.Exit).
	Exit func(code int)

	// IsTerminal reports whether w is a terminal (optional, defaults to a
	// golang.org/x/term check on *os.File writers).
	IsTerminal func(w io.Writer) bool

	// Notify subscribes the runner to forwarded signals (optional, defaults
	// to signal.Notify).
	Notify runner.NotifyFunc
}

// App is the main lockdir application.
// It owns the configuration, the logger and the registry shared by all
// commands, and maps command results to exit statuses.
type App struct {
	// Config holds the application configuration and settings.
	Config *config.ThreadSafeConfig

	// Logger provides logging functionality for both internal and user-facing messages.
	Logger logger.Logger

	// Registry is the lock directory, opened during Initialize.
	Registry *registry.Registry

	// Checker checks lock owners for the run, reap and list commands.
	Checker lock.Checker

	// I/O streams

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// System dependencies

	exit       func(code int)
	isTerminal func(w io.Writer) bool
	notify     runner.NotifyFunc
	hostname   string
}

// NewDefaultApp creates an App with standard dependencies.
// This is the primary application constructor for normal usage.
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	opts := AppOptions{
		Config: config.NewThreadSafeConfig().WithVersionInfo(versionInfo),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Exit:   os.Exit,
	}

	return NewApp(opts)
}

// NewApp creates an App with custom dependencies specified in opts.
// It panics if Config is nil. Optional dependencies that are nil get
// defaults here or during Initialize.
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:     opts.Config,
		Logger:     opts.Logger,
		Checker:    opts.Checker,
		Stdin:      opts.Stdin,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
		exit:       opts.Exit,
		isTerminal: opts.IsTerminal,
		notify:     opts.Notify,
		hostname:   opts.Hostname,
	}

	// Set defaults for nil dependencies
	if app.Stdin == nil {
		app.Stdin = os.Stdin
	}
	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.exit == nil {
		app.exit = os.Exit
	}
	if app.isTerminal == nil {
		app.isTerminal = isTerminal
	}
	if app.Checker == nil {
		app.Checker = lock.ProcessChecker{}
	}

	return app
}

// Initialize loads the configuration under the parsed flags in fs and sets
// up the components not provided during construction.
func (a *App) Initialize(fs *pflag.FlagSet) error {
	if err := a.Config.Initialize(fs); err != nil {
		if lockdirErrors.Is(err, lockdirErrors.ErrInvalidConfiguration) || lockdirErrors.Is(err, lockdirErrors.ErrInvalidFlag) {
			return err
		}
		return lockdirErrors.Wrap(lockdirErrors.ErrInvalidConfiguration, err.Error())
	}
	cfg := a.Config.Config()

	if a.Logger == nil {
		a.Logger = logger.NewWithOutput(logger.Options{
			Debug:   cfg.Debug,
			LogFile: cfg.LogFile,
			Verbose: cfg.Debug,
			Quiet:   cfg.Quiet,
		}, a.Stdout, a.Stderr)
	}

	if a.Registry == nil {
		var opts []registry.Option
		if a.hostname != "" {
			opts = append(opts, registry.WithHostname(a.hostname))
		}
		reg, err := registry.Open(cfg.RegistryDir, opts...)
		if err != nil {
			return lockdirErrors.Wrap(err, "failed to open lock registry")
		}
		a.Registry = reg
	}

	a.Logger.Info("Using lock registry %s", a.Registry.Dir())
	return nil
}

// Execute runs the command line in args and returns the exit status.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		a.reportError(err)
	}
	return exitcode.Code(err)
}

// Run executes args and exits the process with the resulting status.
func (a *App) Run(ctx context.Context, args []string) {
	code := a.Execute(ctx, args)
	if err := a.Close(); err != nil && code == exitcode.Success {
		code = exitcode.ErrGeneral
	}
	a.exit(code)
}

// ShowVersion displays version information
func (a *App) ShowVersion() {
	info := a.Config.VersionInfo()
	a.Logger.StatusMessage("lockdir %s (%s) built on %s",
		info.Version,
		info.Commit,
		info.Date)
}

// reportError prints err unless it only carries a status the user has
// already seen, such as the guarded command's own exit code.
func (a *App) reportError(err error) {
	var coded *exitcode.Error
	if lockdirErrors.As(err, &coded) && coded.Cause == nil {
		return
	}
	var cmdErr *lockdirErrors.CommandError
	if lockdirErrors.As(err, &cmdErr) && cmdErr.Signal == "" && cmdErr.ExitCode < exitcode.ErrNotExecutable {
		if a.Logger != nil {
			a.Logger.Info("%v", err)
		}
		return
	}

	if a.Logger != nil {
		a.Logger.Error("Error: %v", err)
		return
	}
	_, _ = fmt.Fprintf(a.Stderr, "❌ Error: %v\n", err)
}

// Close releases resources held by the App
func (a *App) Close() error {
	var errs []error

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return lockdirErrors.Join(errs...)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
