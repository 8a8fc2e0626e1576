package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	lockdirErrors "github.com/bashhack/lockdir/internal/errors"
	"github.com/bashhack/lockdir/internal/exitcode"
	"github.com/bashhack/lockdir/internal/lock"
	"github.com/bashhack/lockdir/internal/logger"
	"github.com/bashhack/lockdir/internal/reaper"
	"github.com/bashhack/lockdir/internal/runner"
	"github.com/spf13/cobra"
)

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lockdir",
		Short: "Named mutual-exclusion locks for shell commands",
		Long: `lockdir runs commands under named locks kept as directories in a shared
registry, and reaps locks left behind by processes that died.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.Initialize(cmd.Flags())
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return lockdirErrors.Wrap(lockdirErrors.ErrInvalidFlag, err.Error())
	})
	a.Config.BindGlobalFlags(root.PersistentFlags())

	root.AddCommand(a.newRunCommand(), a.newReapCommand(), a.newListCommand(), a.newVersionCommand())
	return root
}

func (a *App) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] NAME [--] COMMAND [ARGS...]",
		Short: "Run a command while holding a named lock",
		Long: `Run acquires the lock NAME, runs COMMAND with its arguments while holding it,
and releases the lock when the command exits. lockdir exits with the command's
status, or with the busy exit code when the lock is held by someone else.

The lock's directory is exported to the command as LOCKDIR_LOCK.`,
		Example: `  lockdir run backup -- rsync -a src/ dst/
  lockdir run --wait --timeout 10m deploy ./deploy.sh`,
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.Config.Config()
			name, argv := args[0], args[1:]
			// Flag parsing stops at NAME, so a separator after it is still here.
			if argv[0] == "--" {
				argv = argv[1:]
			}
			if len(argv) == 0 {
				return lockdirErrors.Wrap(lockdirErrors.ErrInvalidFlag, "missing command after --")
			}

			locker := lock.New(a.Registry, lock.Options{
				Wait:         cfg.Wait,
				Timeout:      cfg.Timeout,
				PollInterval: cfg.PollInterval,
				NoReclaim:    cfg.NoReclaim,
				Command:      argv,
				Checker:      a.Checker,
				Logger:       a.Logger,
			})
			r := runner.New(locker, runner.Options{
				BusyExitCode: cfg.BusyExitCode,
				KillGrace:    cfg.KillGrace,
				Stdin:        a.Stdin,
				Stdout:       a.Stdout,
				Stderr:       a.Stderr,
				Notify:       a.notify,
				Logger:       a.Logger,
			})

			code, err := r.Run(cmd.Context(), name, argv)
			if code == exitcode.Success {
				return err
			}
			return exitcode.Wrap(code, err)
		},
	}
	cmd.Flags().SetInterspersed(false)
	a.Config.BindRunFlags(cmd.Flags())
	return cmd
}

func (a *App) newReapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap [flags] [NAME...]",
		Short: "Remove locks whose owner is no longer running",
		Long: `Reap removes the named locks, or every lock in the registry, whose owner was
a process on this host that has exited. Locks of live processes and of other
hosts are skipped, as are records that cannot be read.

lockdir exits with the number of skipped and failed locks, capped at 125.`,
		Example: `  lockdir reap
  lockdir reap --dry-run
  lockdir reap -i build deploy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.Config.Config()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := reaper.Options{
				Interactive: cfg.Interactive,
				DryRun:      cfg.DryRun,
				MetricsFile: cfg.MetricsFile,
				Checker:     a.Checker,
				Logger:      a.Logger,
			}
			if cfg.Interactive {
				opts.Confirmer = reaper.NewPromptConfirmer(a.Stdin, a.Stderr)
			}

			report, err := reaper.New(a.Registry, opts).Reap(ctx, args)
			if err != nil {
				return err
			}

			a.Logger.Info("Reap finished: %d removed, %d skipped, %d errors",
				report.Removed(), report.Skipped(), report.Errors())
			if status := report.ExitStatus(); status != exitcode.Success {
				return exitcode.Wrap(status, nil)
			}
			return nil
		},
	}
	a.Config.BindReapFlags(cmd.Flags())
	return cmd
}

func (a *App) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the locks in the registry",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.Registry.List()
			if err != nil {
				return err
			}
			rows := listRows(a.Registry, a.Checker, records, time.Now())
			render := renderPlain
			if a.isTerminal(a.Stdout) {
				render = renderStyled
			}
			for _, line := range render(rows) {
				a.Logger.StatusMessage("%s", line)
			}
			return nil
		},
	}
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		// Version needs neither configuration nor a registry.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.Logger == nil {
				a.Logger = logger.NewWithOutput(logger.Options{}, a.Stdout, a.Stderr)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			a.ShowVersion()
		},
	}
}

// usageArgs marks argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return lockdirErrors.Wrap(lockdirErrors.ErrInvalidFlag, err.Error())
		}
		return nil
	}
}
