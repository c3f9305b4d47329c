package protocol

import (
	"bufio"
	stderrors "errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/logging"
)

// Transport frames messages over one stream connection.
//
// Reads go through a buffered reader one byte at a time, so several
// messages coalesced into a single segment are split correctly and bytes
// already read past a terminator are kept for the next Receive.
type Transport struct {
	conn   net.Conn
	r      *bufio.Reader
	limits Limits
	logger zerolog.Logger
}

// NewTransport wraps conn. Zero-valued limits fall back to the defaults.
func NewTransport(conn net.Conn, limits Limits) *Transport {
	return &Transport{
		conn:   conn,
		r:      bufio.NewReader(conn),
		limits: limits.withDefaults(),
		logger: logging.GetLogger("protocol.transport"),
	}
}

// Limits returns the limits this transport was built with.
func (t *Transport) Limits() Limits {
	return t.limits
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Send writes text followed by the terminator. A short write is logged and
// reported, never retried.
func (t *Transport) Send(text string) error {
	if strings.IndexByte(text, Terminator) >= 0 {
		return errors.New(errors.ErrProtocol, "message contains a terminator byte").
			WithDetail("message", text)
	}

	t.logger.Debug().Str("message", text).Msg("send")

	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, Terminator)

	n, err := t.conn.Write(buf)
	if err != nil {
		t.logger.Warn().Err(err).Int("written", n).Int("length", len(buf)).Msg("send failed")
		return errors.Wrap(err, errors.ErrTransport, "send failed").
			WithDetail("short", len(buf)-n)
	}
	if n != len(buf) {
		t.logger.Warn().Int("short", len(buf)-n).Msg("short send")
		return errors.Newf(errors.ErrTransport, "send short by %d bytes", len(buf)-n)
	}
	return nil
}

// Receive reads one message of at most limit-1 payload bytes.
//
// A close before any byte yields ErrPeerClosed; a close mid-message yields
// ErrPartialMessage. A message that does not fit is drained up to and
// including its terminator and reported as ErrMessageTooLong, leaving the
// reader on a message boundary.
func (t *Transport) Receive(limit int) (string, error) {
	if limit < 1 {
		return "", errors.Newf(errors.ErrInvalidInput, "unacceptable buffer size of %d", limit)
	}

	buf := make([]byte, 0, min(limit, 256))
	var lost string
	overflowed := false

	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return "", t.readFailure(err, buf, overflowed)
		}

		if b == Terminator {
			if overflowed {
				return "", errors.Newf(errors.ErrMessageTooLong, "message exceeds %d bytes", limit-1).
					WithDetail("lost", lost)
			}
			msg := string(buf)
			t.logger.Debug().Str("message", msg).Msg("recv")
			return msg, nil
		}

		if overflowed {
			continue
		}

		if len(buf) >= limit-1 {
			overflowed = true
			lost = string(buf)
			t.logger.Warn().
				Int("limit", limit).
				Str("lost", lost).
				Msg("filled buffer before terminator, discarding up to next terminator")
			continue
		}

		t.logger.Trace().Uint8("byte", b).Int("length", len(buf)+1).Msg("recv byte")
		buf = append(buf, b)
	}
}

func (t *Transport) readFailure(err error, buf []byte, overflowed bool) error {
	if stderrors.Is(err, io.EOF) {
		if len(buf) == 0 && !overflowed {
			t.logger.Debug().Msg("peer closed the connection")
			return errors.Wrap(err, errors.ErrPeerClosed, "peer closed the connection")
		}
		t.logger.Warn().Str("partial", string(buf)).Msg("connection closed mid-message")
		return errors.Wrapf(err, errors.ErrPartialMessage, "connection closed after %d bytes", len(buf)).
			WithDetail("partial", string(buf))
	}
	return errors.Wrap(err, errors.ErrTransport, "receive failed")
}

// ReadAck receives one status message and reports whether it is the
// success token.
func (t *Transport) ReadAck() (bool, error) {
	msg, err := t.Receive(t.limits.MessageMax)
	if err != nil {
		return false, err
	}
	return msg == TokenOkay, nil
}

// WaitReady reports whether a Receive would find data within timeout.
// Bytes already buffered count as ready. A closed peer also reads as
// ready, since the next Receive will return promptly.
func (t *Transport) WaitReady(timeout time.Duration) (bool, error) {
	if t.r.Buffered() > 0 {
		return true, nil
	}
	if sc, ok := t.conn.(syscall.Conn); ok {
		if rc, err := sc.SyscallConn(); err == nil {
			return pollReadable(rc, timeout)
		}
	}
	return t.peekReadable(timeout)
}

func pollReadable(rc syscall.RawConn, timeout time.Duration) (bool, error) {
	var (
		n       int
		pollErr error
	)
	ctrlErr := rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		deadline := time.Now().Add(timeout)
		for {
			wait := time.Until(deadline)
			if wait < 0 {
				wait = 0
			}
			n, pollErr = unix.Poll(fds, int(wait.Milliseconds()))
			if pollErr != unix.EINTR {
				return
			}
		}
	})
	if ctrlErr != nil {
		return false, errors.Wrap(ctrlErr, errors.ErrTransport, "readiness probe failed")
	}
	if pollErr != nil {
		return false, errors.Wrap(pollErr, errors.ErrTransport, "readiness probe failed")
	}
	return n > 0, nil
}

func (t *Transport) peekReadable(timeout time.Duration) (bool, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, errors.Wrap(err, errors.ErrTransport, "readiness probe failed")
	}
	defer func() {
		_ = t.conn.SetReadDeadline(time.Time{})
	}()

	_, err := t.r.Peek(1)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, os.ErrDeadlineExceeded):
		return false, nil
	case stderrors.Is(err, io.EOF):
		return true, nil
	default:
		return false, errors.Wrap(err, errors.ErrTransport, "readiness probe failed")
	}
}
