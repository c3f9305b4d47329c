package daemon

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fls/pkg/logging"
	"github.com/arthur-debert/fls/pkg/protocol"
	"github.com/arthur-debert/fls/pkg/stack"
)

// Dispatcher executes one protocol command against the stack and writes
// the reply. Replies that cannot be delivered are logged and dropped; the
// session loop notices the broken connection on its next read.
type Dispatcher struct {
	stack  *stack.Stack
	limits protocol.Limits
	logger zerolog.Logger
}

// NewDispatcher returns a dispatcher serving s.
func NewDispatcher(s *stack.Stack, limits protocol.Limits) *Dispatcher {
	if limits.MessageMax <= 1 || limits.PathMax <= 1 {
		limits = protocol.DefaultLimits()
	}
	return &Dispatcher{
		stack:  s,
		limits: limits,
		logger: logging.GetLogger("daemon.dispatcher"),
	}
}

// Dispatch runs cmd, reading any follow-up payload from t. It returns true
// when the command was STOP and the daemon should exit.
func (d *Dispatcher) Dispatch(t *protocol.Transport, cmd string) bool {
	switch cmd {
	case protocol.CmdPush:
		d.push(t)
	case protocol.CmdPop:
		d.pop(t)
	case protocol.CmdPeek:
		d.peek(t)
	case protocol.CmdPick:
		d.pick(t)
	case protocol.CmdSize:
		d.reply(t, strconv.Itoa(d.stack.Len()))
	case protocol.CmdStop:
		d.logger.Info().Msg("shutting down")
		d.reply(t, protocol.TokenOkay)
		return true
	default:
		d.logger.Warn().Str("command", cmd).Msg("unknown command")
		d.reply(t, protocol.TokenError, protocol.UnknownCommand(cmd))
	}
	return false
}

func (d *Dispatcher) push(t *protocol.Transport) {
	if d.stack.Full() {
		d.logger.Info().Int("depth", d.stack.Len()).Msg("push refused, stack full")
		d.reply(t, protocol.TokenError, protocol.ReasonStackFull)
		return
	}
	d.reply(t, protocol.TokenOkay)

	path, err := t.Receive(d.limits.PathMax)
	if err != nil {
		d.logger.Info().Err(err).Msg("push failed, could not read path")
		d.reply(t, protocol.TokenError, protocol.ReasonPathTooLong)
		return
	}
	if err := d.stack.Push(path); err != nil {
		d.reply(t, protocol.TokenError, protocol.ReasonStackFull)
		return
	}
	d.logger.Info().Str("path", path).Int("depth", d.stack.Len()).Msg("PUSH")
	d.reply(t, protocol.TokenOkay, path)
}

func (d *Dispatcher) pop(t *protocol.Transport) {
	path, err := d.stack.Pop()
	if err != nil {
		d.logger.Info().Msg("pop refused, stack empty")
		d.reply(t, protocol.TokenError, protocol.ReasonStackEmpty)
		return
	}
	d.logger.Info().Str("path", path).Int("depth", d.stack.Len()).Msg("POP")
	d.reply(t, protocol.TokenOkay, path)
}

func (d *Dispatcher) peek(t *protocol.Transport) {
	path, err := d.stack.Peek()
	if err != nil {
		d.reply(t, protocol.TokenError, protocol.ReasonStackEmpty)
		return
	}
	d.reply(t, protocol.TokenOkay, path)
}

func (d *Dispatcher) pick(t *protocol.Transport) {
	d.reply(t, protocol.TokenOkay)

	raw, err := t.Receive(d.limits.MessageMax)
	if err != nil {
		d.logger.Info().Err(err).Msg("pick failed, could not read index")
		d.reply(t, protocol.TokenError, protocol.ReasonNotThatDeep)
		return
	}

	index, convErr := parseIndex(raw)
	if convErr != nil {
		d.logger.Info().Str("index", raw).Msg("pick refused, bad index")
		d.reply(t, protocol.TokenError, protocol.ReasonNotThatDeep)
		return
	}

	entry, err := d.stack.Pick(index)
	if err != nil {
		d.reply(t, protocol.TokenError, protocol.ReasonNotThatDeep)
		return
	}
	d.reply(t, protocol.TokenOkay, entry)
}

// parseIndex accepts only plain non-negative decimals.
func parseIndex(raw string) (int, error) {
	if raw == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(raw)
}

func (d *Dispatcher) reply(t *protocol.Transport, msgs ...string) {
	for _, msg := range msgs {
		if err := t.Send(msg); err != nil {
			d.logger.Warn().Err(err).Str("message", msg).Msg("reply not delivered")
			return
		}
	}
}
