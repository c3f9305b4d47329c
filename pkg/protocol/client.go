package protocol

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/logging"
)

// Client issues commands to the daemon over one connection. Daemon
// rejections come back as coded errors (ErrStackEmpty, ErrStackFull,
// ErrPathTooLong, ErrIndexOutOfRange, ErrUnknownCommand); transport faults
// as ErrTransport, ErrPeerClosed, ErrPartialMessage or ErrMessageTooLong.
type Client struct {
	t      *Transport
	logger zerolog.Logger
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, limits Limits) *Client {
	return &Client{
		t:      NewTransport(conn, limits),
		logger: logging.GetLogger("protocol.client"),
	}
}

// Dial connects to the daemon listening on socketPath.
func Dial(ctx context.Context, socketPath string, limits Limits) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDaemonNotRunning, "no-one listening at `%s'", socketPath).
			WithDetail("socket", socketPath)
	}
	return NewClient(conn, limits), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.t.Close()
}

// Limits returns the message limits in use.
func (c *Client) Limits() Limits {
	return c.t.Limits()
}

// Send writes one raw message.
func (c *Client) Send(text string) error {
	return c.t.Send(text)
}

// Receive reads one raw message bounded by limit.
func (c *Client) Receive(limit int) (string, error) {
	return c.t.Receive(limit)
}

// WaitReady reports whether a reply is pending within timeout.
func (c *Client) WaitReady(timeout time.Duration) (bool, error) {
	return c.t.WaitReady(timeout)
}

// Size returns the current stack depth.
func (c *Client) Size() (int, error) {
	if err := c.t.Send(CmdSize); err != nil {
		return 0, err
	}
	msg, err := c.t.Receive(c.t.limits.MessageMax)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(msg)
	if convErr != nil || n < 0 {
		return 0, errors.Newf(errors.ErrProtocol, "size reply `%s' is not a depth", msg)
	}
	return n, nil
}

// Push stores path on top of the stack and returns the path the daemon
// echoed back. Callers should compare the echo with what they sent.
func (c *Client) Push(path string) (string, error) {
	if err := c.t.Send(CmdPush); err != nil {
		return "", err
	}
	ok, err := c.t.ReadAck()
	if err != nil {
		return "", err
	}
	if !ok {
		reason, err := c.t.Receive(c.t.limits.MessageMax)
		if err != nil {
			return "", err
		}
		return "", rejection(reason)
	}

	if err := c.t.Send(path); err != nil {
		return "", err
	}
	return c.readReply()
}

// Pop removes and returns the top entry.
func (c *Client) Pop() (string, error) {
	if err := c.t.Send(CmdPop); err != nil {
		return "", err
	}
	return c.readReply()
}

// Peek returns the top entry without removing it.
func (c *Client) Peek() (string, error) {
	if err := c.t.Send(CmdPeek); err != nil {
		return "", err
	}
	return c.readReply()
}

// Pick returns the entry index places below the top; 0 is the top.
func (c *Client) Pick(index int) (string, error) {
	if err := c.t.Send(CmdPick); err != nil {
		return "", err
	}
	ok, err := c.t.ReadAck()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.ErrProtocol, "pick was not acknowledged")
	}
	if err := c.t.Send(strconv.Itoa(index)); err != nil {
		return "", err
	}
	return c.readReply()
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() error {
	if err := c.t.Send(CmdStop); err != nil {
		return err
	}
	ok, err := c.t.ReadAck()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrRejected, "daemon refused to stop")
	}
	return nil
}

// readReply reads a status token followed by its payload.
func (c *Client) readReply() (string, error) {
	status, err := c.t.Receive(c.t.limits.MessageMax)
	if err != nil {
		return "", err
	}
	payload, err := c.t.Receive(c.t.limits.PathMax)
	if err != nil {
		return "", err
	}

	switch status {
	case TokenOkay:
		return payload, nil
	case TokenError:
		c.logger.Debug().Str("reason", payload).Msg("daemon rejected command")
		return "", rejection(payload)
	default:
		return "", errors.Newf(errors.ErrProtocol, "unexpected status `%s'", status).
			WithDetail("payload", payload)
	}
}

// rejection maps a reason sent by the daemon to a coded error.
func rejection(reason string) error {
	code := errors.ErrRejected
	switch {
	case reason == ReasonStackEmpty:
		code = errors.ErrStackEmpty
	case reason == ReasonStackFull:
		code = errors.ErrStackFull
	case reason == ReasonPathTooLong:
		code = errors.ErrPathTooLong
	case reason == ReasonNotThatDeep:
		code = errors.ErrIndexOutOfRange
	case strings.HasPrefix(reason, unknownCommandPrefix):
		code = errors.ErrUnknownCommand
	}
	return errors.New(code, reason)
}

var unknownCommandPrefix = strings.SplitN(ReasonUnknownCmdFmt, "`", 2)[0]

// UnknownCommand formats the reason sent for an unrecognized command token.
func UnknownCommand(token string) string {
	return fmt.Sprintf(ReasonUnknownCmdFmt, token)
}
