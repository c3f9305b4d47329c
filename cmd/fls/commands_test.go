// Test Type: Integration Test
// Description: Runs the fls command tree against an in-process daemon and real file operations

package fls

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fls/pkg/daemon"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/paths"
	"github.com/arthur-debert/fls/pkg/protocol"
	"github.com/arthur-debert/fls/pkg/testutil"
)

// startDaemon serves a stack at the socket fls derives from the returned
// directory, so commands find it instead of starting their own.
func startDaemon(t *testing.T) (string, <-chan error) {
	t.Helper()

	t.Setenv(paths.EnvFlsConfigDir, t.TempDir())
	t.Setenv(paths.EnvFlsStateDir, t.TempDir())

	socketDir := testutil.ShortSocketDir(t)
	socketPath := paths.SocketPath(socketDir)
	l, err := daemon.Listen(socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- daemon.New(l, socketPath, 100, protocol.DefaultLimits()).Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
		}
	})
	return socketDir, done
}

// run executes one fls command line and returns what it printed.
func run(t *testing.T, socketDir, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--socket-dir", socketDir, "-o", "text"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestPushThenPrint(t *testing.T) {
	socketDir, _ := startDaemon(t)
	root := canonicalTempDir(t)
	a := testutil.CreateFile(t, root, "a.txt", "a")
	b := testutil.CreateFile(t, root, "b.txt", "b")

	out, err := run(t, socketDir, "", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "Pushed `"+a+"'")
	assert.Contains(t, out, "Pushed `"+b+"'")

	out, err = run(t, socketDir, "")
	require.NoError(t, err)
	assert.Equal(t, "2 files in stack\n0: "+b+"\n1: "+a+"\n", out)

	out, err = run(t, socketDir, "", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "0: "+b)
}

func TestPushMissingFile(t *testing.T) {
	socketDir, _ := startDaemon(t)

	_, err := run(t, socketDir, "", "push", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileNotFound))
	assert.Contains(t, UserMessage(err), "does not exist")
}

func TestCopyRunsCommandAndPops(t *testing.T) {
	socketDir, _ := startDaemon(t)
	src := canonicalTempDir(t)
	dst := canonicalTempDir(t)
	a := testutil.CreateFile(t, src, "a.txt", "payload")

	_, err := run(t, socketDir, "", "push", a)
	require.NoError(t, err)

	out, err := run(t, socketDir, "y\n", "cp", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "[Ynd]?")

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.FileExists(t, a)

	out, err = run(t, socketDir, "", "print")
	require.NoError(t, err)
	assert.Equal(t, "0 files in stack\n", out)
}

func TestMoveBatchWithYes(t *testing.T) {
	socketDir, _ := startDaemon(t)
	src := canonicalTempDir(t)
	dst := canonicalTempDir(t)
	a := testutil.CreateFile(t, src, "a.txt", "a")
	b := testutil.CreateFile(t, src, "b.txt", "b")

	_, err := run(t, socketDir, "", a, b)
	require.NoError(t, err)

	_, err = run(t, socketDir, "", "--yes", "mv", "-n", "2", dst)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dst, "a.txt"))
	assert.FileExists(t, filepath.Join(dst, "b.txt"))
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
}

func TestDryRunLeavesStack(t *testing.T) {
	socketDir, _ := startDaemon(t)
	src := canonicalTempDir(t)
	dst := canonicalTempDir(t)
	a := testutil.CreateFile(t, src, "a.txt", "a")

	_, err := run(t, socketDir, "", a)
	require.NoError(t, err)

	out, err := run(t, socketDir, "", "--dry-run", "ln", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run: /bin/ln -s --")
	assert.NoFileExists(t, filepath.Join(dst, "a.txt"))

	out, err = run(t, socketDir, "", "print")
	require.NoError(t, err)
	assert.Contains(t, out, "1 file in stack")
}

func TestDropCount(t *testing.T) {
	socketDir, _ := startDaemon(t)
	root := canonicalTempDir(t)
	a := testutil.CreateFile(t, root, "a.txt", "a")
	b := testutil.CreateFile(t, root, "b.txt", "b")

	_, err := run(t, socketDir, "", a, b)
	require.NoError(t, err)

	out, err := run(t, socketDir, "", "d", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, b+"\n"+a+"\n", out)

	_, err = run(t, socketDir, "", "drop")
	assert.True(t, errors.IsErrorCode(err, errors.ErrCountExceedsDepth))
	assert.Equal(t, "cannot pop, file stack empty", UserMessage(err))
}

func TestBadCount(t *testing.T) {
	socketDir, _ := startDaemon(t)

	_, err := run(t, socketDir, "", "copy", "-n", "0")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestStopEndsDaemon(t *testing.T) {
	socketDir, done := startDaemon(t)

	out, err := run(t, socketDir, "", "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Server shutting down.")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestStopAsksWhenStackNotEmpty(t *testing.T) {
	socketDir, _ := startDaemon(t)
	a := testutil.CreateFile(t, canonicalTempDir(t), "a.txt", "a")

	_, err := run(t, socketDir, "", a)
	require.NoError(t, err)

	out, err := run(t, socketDir, "n\n", "q")
	assert.True(t, errors.IsErrorCode(err, errors.ErrCanceled))
	assert.Contains(t, out, "Stack not empty, still stop daemon [Yn]?")
}

func TestInteractiveRelaysReplies(t *testing.T) {
	socketDir, _ := startDaemon(t)

	out, err := run(t, socketDir, "push\n/tmp/x\nsize\nq\n", "interactive")
	require.NoError(t, err)
	assert.Contains(t, out, "recv> `okay'")
	assert.Contains(t, out, "recv> `/tmp/x'")
	assert.Contains(t, out, "recv> `1'")
}

func TestConfigShowsEffectiveValues(t *testing.T) {
	socketDir, _ := startDaemon(t)

	out, err := run(t, socketDir, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "capacity = 100")
	assert.Contains(t, out, socketDir)
}

func TestConfigTemplateWrite(t *testing.T) {
	socketDir, _ := startDaemon(t)
	target := filepath.Join(t.TempDir(), "sub", "config.toml")

	_, err := run(t, socketDir, "", "--config", target, "config", "--template", "--write")
	require.NoError(t, err)
	assert.FileExists(t, target)

	_, err = run(t, socketDir, "", "--config", target, "config", "--template", "--write")
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
}

func TestUnknownOutputFormat(t *testing.T) {
	socketDir, _ := startDaemon(t)

	_, err := run(t, socketDir, "", "-o", "xml", "print")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestUserMessage(t *testing.T) {
	inner := errors.New(errors.ErrActionInvalid, "command `cp {source}' lacks {dest}")
	outer := errors.Wrap(inner, errors.ErrConfigValid, "invalid copy command")
	assert.Equal(t, "invalid copy command: command `cp {source}' lacks {dest}", UserMessage(outer))

	assert.Equal(t, "cannot bind: permission denied",
		UserMessage(errors.Wrap(os.ErrPermission, errors.ErrDaemonStart, "cannot bind")))
	assert.Equal(t, assert.AnError.Error(), UserMessage(assert.AnError))
}

func TestDaemonContextEndsOnSIGTERM(t *testing.T) {
	ctx, stop := daemonContext(context.Background())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon context was not canceled")
	}
}

func TestClientCommandContextIgnoresSignals(t *testing.T) {
	socketDir, _ := startDaemon(t)
	root := canonicalTempDir(t)
	a := testutil.CreateFile(t, root, "a.txt", "a")

	var seen context.Context
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--socket-dir", socketDir, "-o", "text", "push", a})
	cmd.PersistentPostRun = func(c *cobra.Command, args []string) {
		seen = c.Context()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))
	require.NotNil(t, seen)

	// The client runs on the caller's context as is, with no signal
	// wiring that could cancel it behind a prompt.
	assert.Equal(t, ctx, seen)
}
