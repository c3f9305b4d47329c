package daemon

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/logging"
	"github.com/arthur-debert/fls/pkg/protocol"
)

// InheritedListenerFD is the descriptor number a re-executed daemon finds
// its listening socket on.
const InheritedListenerFD = 3

// BootstrapOptions controls how a client reaches or starts the daemon.
type BootstrapOptions struct {
	SocketPath string
	Limits     protocol.Limits
	// StartupTimeout bounds the wait for the daemon's readiness signal.
	StartupTimeout time.Duration
	// DaemonCommand is the argv that starts a daemon on an inherited
	// listener. Defaults to the running executable with
	// "daemon --inherit-fd".
	DaemonCommand []string
}

// LogPath returns the daemon log file for a socket.
func LogPath(socketPath string) string {
	return socketPath + ".log"
}

// Bootstrap returns a client connected to the daemon at opts.SocketPath,
// starting one if nobody is listening. A socket file left behind by a dead
// daemon is removed and the bind retried once.
func Bootstrap(ctx context.Context, opts BootstrapOptions) (*protocol.Client, error) {
	logger := logging.GetLogger("daemon.bootstrap")

	for attempt := 0; attempt < 2; attempt++ {
		l, err := listenUnix(opts.SocketPath)
		if err == nil {
			logger.Info().Str("socket", opts.SocketPath).Msg("starting daemon")
			startErr := startDaemon(ctx, l, opts)
			_ = l.Close()
			if startErr != nil {
				_ = os.Remove(opts.SocketPath)
				return nil, startErr
			}
			return protocol.Dial(ctx, opts.SocketPath, opts.Limits)
		}

		if !stderrors.Is(err, syscall.EADDRINUSE) {
			return nil, errors.Wrapf(err, errors.ErrDaemonStart, "cannot bind `%s'", opts.SocketPath)
		}

		client, dialErr := protocol.Dial(ctx, opts.SocketPath, opts.Limits)
		if dialErr == nil {
			logger.Debug().Str("socket", opts.SocketPath).Msg("daemon already running")
			return client, nil
		}
		if !stderrors.Is(dialErr, syscall.ECONNREFUSED) || attempt > 0 {
			return nil, dialErr
		}

		logger.Warn().Str("socket", opts.SocketPath).Msg("removing stale socket")
		if err := os.Remove(opts.SocketPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrDaemonStart, "cannot remove stale socket `%s'", opts.SocketPath)
		}
	}
	return nil, errors.Newf(errors.ErrDaemonStart, "could not reach a daemon at `%s'", opts.SocketPath)
}

func listenUnix(path string) (*net.UnixListener, error) {
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	// The daemon owns the socket file from here on.
	l.SetUnlinkOnClose(false)
	return l, nil
}

// startDaemon re-executes the daemon with l on InheritedListenerFD and
// waits for it to signal readiness. A missed signal is logged, not fatal.
func startDaemon(ctx context.Context, l *net.UnixListener, opts BootstrapOptions) error {
	logger := logging.GetLogger("daemon.bootstrap")

	argv := opts.DaemonCommand
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, errors.ErrDaemonStart, "cannot locate fls executable")
		}
		argv = []string{exe, "daemon", "--inherit-fd"}
	}

	lf, err := l.File()
	if err != nil {
		return errors.Wrap(err, errors.ErrDaemonStart, "cannot share listener")
	}
	defer func() {
		_ = lf.Close()
	}()

	logFile, err := os.OpenFile(LogPath(opts.SocketPath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDaemonStart, "cannot open daemon log `%s'", LogPath(opts.SocketPath))
	}
	defer func() {
		_ = logFile.Close()
	}()

	ready := make(chan os.Signal, 1)
	signal.Notify(ready, unix.SIGUSR1)
	defer func() {
		signal.Stop(ready)
		// A signal arriving after the timeout must not kill the client.
		signal.Ignore(unix.SIGUSR1)
	}()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.ExtraFiles = []*os.File{lf}
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.ErrDaemonStart, "cannot start daemon")
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		logger.Warn().Err(err).Msg("failed to release daemon process")
	}

	timeout := opts.StartupTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		logger.Info().Int("pid", pid).Msg("daemon ready")
	case <-timer.C:
		logger.Warn().Int("pid", pid).Dur("timeout", timeout).Msg("Daemon failed to start, continuing anyway")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCanceled, "interrupted while starting daemon")
	}
	return nil
}

// InheritedListener recovers the listener a bootstrapping client passed on
// InheritedListenerFD.
func InheritedListener() (net.Listener, error) {
	f := os.NewFile(InheritedListenerFD, "fls-listener")
	if f == nil {
		return nil, errors.New(errors.ErrDaemonStart, "no inherited listener")
	}
	defer func() {
		_ = f.Close()
	}()

	l, err := net.FileListener(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDaemonStart, "inherited descriptor is not a listener")
	}
	return l, nil
}

// Listen binds the socket directly, for a daemon started in the
// foreground.
func Listen(socketPath string) (net.Listener, error) {
	l, err := listenUnix(socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDaemonStart, "cannot bind `%s'", socketPath)
	}
	return l, nil
}

// NotifyReady tells the parent process the daemon is accepting clients.
func NotifyReady() {
	logger := logging.GetLogger("daemon")
	ppid := os.Getppid()
	if ppid <= 1 {
		return
	}
	logger.Info().Int("ppid", ppid).Msg("signalling parent")
	if err := unix.Kill(ppid, unix.SIGUSR1); err != nil {
		logger.Warn().Err(err).Int("ppid", ppid).Msg("could not signal parent")
	}
}
