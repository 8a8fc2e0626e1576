package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bashhack/lockdir/internal/config"
	"github.com/bashhack/lockdir/internal/constants"
	"github.com/bashhack/lockdir/internal/registry"
	"github.com/stretchr/testify/require"
)

const testHost = "testhost"

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	InfoCalled          bool
	InfoToUserCalled    bool
	WarningCalled       bool
	WarningToUserCalled bool
	ErrorCalled         bool
	SuccessCalled       bool
	StatusCalled        bool
	CloseCalled         bool
	CloseErr            error
	LastMessage         string
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.InfoCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.WarningCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.ErrorCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) InfoToUser(format string, args ...interface{}) {
	m.InfoToUserCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) WarningToUser(format string, args ...interface{}) {
	m.WarningToUserCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) Success(format string, args ...interface{}) {
	m.SuccessCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) StatusMessage(format string, args ...interface{}) {
	m.StatusCalled = true
	m.LastMessage = fmt.Sprintf(format, args...)
}

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// isolate points HOME and the XDG directories at a temp dir and clears every
// lockdir variable, so the host's configuration cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{
		constants.EnvRegistry, constants.EnvConfigFile, constants.EnvWait, constants.EnvTimeout,
		constants.EnvPollInterval, constants.EnvBusyExitCode, constants.EnvNoReclaim,
		constants.EnvKillGrace, constants.EnvMetricsFile, constants.EnvDebug,
		constants.EnvLogFile, constants.EnvQuiet, constants.EnvHeldLock,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

// noNotify keeps the runner from subscribing the test binary to signals.
func noNotify(chan<- os.Signal) func() {
	return func() {}
}

// NewTestApp creates an App wired to in-memory streams.
func NewTestApp(stdin string) (*App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	app := NewApp(AppOptions{
		Config:   config.NewThreadSafeConfig().WithVersionInfo(config.VersionInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-10-19"}),
		Hostname: testHost,
		Stdin:    strings.NewReader(stdin),
		Stdout:   &stdout,
		Stderr:   &stderr,
		Exit:     func(int) {},
		Notify:   noNotify,
	})
	return app, &stdout, &stderr
}

// WithMockLogger adds a mock logger to the app
func WithMockLogger(app *App, mockLogger *MockLogger) *App {
	app.Logger = mockLogger
	return app
}

// WithTerminal makes the app treat stdout as a terminal or not.
func WithTerminal(app *App, tty bool) *App {
	app.isTerminal = func(io.Writer) bool { return tty }
	return app
}

type result struct {
	code   int
	stdout string
	stderr string
}

// execute runs one lockdir command against the registry in dir. The
// registry flag goes right after the subcommand, where every command
// accepts it.
func execute(t *testing.T, dir, stdin string, args ...string) result {
	t.Helper()
	app, stdout, stderr := NewTestApp(stdin)
	return executeApp(t, app, stdout, stderr, dir, args...)
}

func executeApp(t *testing.T, app *App, stdout, stderr *bytes.Buffer, dir string, args ...string) result {
	t.Helper()
	full := append([]string{args[0], "--registry=" + dir}, args[1:]...)
	code := app.Execute(context.Background(), full)
	require.NoError(t, app.Close())
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// writeLock plants a lock record owned by pid on host.
func writeLock(t *testing.T, dir, name string, pid int, host string) {
	t.Helper()
	reg, err := registry.Open(dir, registry.WithHostname(testHost))
	require.NoError(t, err)
	_, err = reg.Create(name)
	require.NoError(t, err)
	require.NoError(t, reg.WriteInfo(name, registry.Info{PID: pid, Host: host}))
}

// deadPID returns the pid of a process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

// testContext returns a context canceled when the test finishes, like
// testing.T.Context in Go 1.24+.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
