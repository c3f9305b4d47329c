// Package daemon owns the file stack and serves it over a Unix socket.
//
// The daemon handles one connection at a time and one command at a time,
// so the stack needs no locking: a client holding the connection sees a
// stack nobody else can touch until it disconnects.
package daemon

import (
	"context"
	stderrors "errors"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/logging"
	"github.com/arthur-debert/fls/pkg/protocol"
	"github.com/arthur-debert/fls/pkg/stack"
)

// Daemon accepts clients on a listener and dispatches their commands.
type Daemon struct {
	listener   net.Listener
	socketPath string
	limits     protocol.Limits
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// New builds a daemon serving a fresh stack of the given capacity on l.
// socketPath, when set, is removed after the daemon stops.
func New(l net.Listener, socketPath string, capacity int, limits protocol.Limits) *Daemon {
	return &Daemon{
		listener:   l,
		socketPath: socketPath,
		limits:     limits,
		dispatcher: NewDispatcher(stack.New(capacity), limits),
		logger:     logging.GetLogger("daemon"),
	}
}

// Serve runs the accept loop until a client sends STOP or ctx is canceled.
// Accept failures are fatal.
func (d *Daemon) Serve(ctx context.Context) error {
	defer d.shutdown()

	stopWatch := context.AfterFunc(ctx, func() {
		_ = d.listener.Close()
	})
	defer stopWatch()

	for {
		d.logger.Info().Msg("waiting for a connection")
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrTransport, "accept failed")
		}

		if d.ServeConn(conn) {
			return nil
		}
	}
}

// ServeConn handles one client until it disconnects, fails, or sends
// STOP. It reports whether the daemon should exit.
func (d *Daemon) ServeConn(conn net.Conn) bool {
	logger := d.logger.With().Str("session", uuid.NewString()).Logger()
	logger.Info().Msg("connected")

	t := protocol.NewTransport(conn, d.limits)
	defer func() {
		_ = t.Close()
	}()

	for {
		cmd, err := t.Receive(t.Limits().MessageMax)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrPeerClosed) {
				logger.Info().Msg("disconnected for closed socket")
			} else {
				logger.Warn().Err(err).Msg("disconnected for read error")
			}
			return false
		}

		logger.Info().Str("command", cmd).Msg("received command")
		if d.dispatcher.Dispatch(t, cmd) {
			return true
		}
	}
}

func (d *Daemon) shutdown() {
	if err := d.listener.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		d.logger.Warn().Err(err).Msg("closing listener")
	}
	if d.socketPath == "" {
		return
	}
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn().Err(err).Str("socket", d.socketPath).Msg("removing socket")
		return
	}
	d.logger.Info().Str("socket", d.socketPath).Msg("all done")
}
