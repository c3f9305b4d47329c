// Package engine turns a parsed fls action into protocol calls against
// the daemon, filesystem checks, prompts and child processes.
package engine

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/fls/pkg/actions"
	"github.com/arthur-debert/fls/pkg/collision"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/executor"
	"github.com/arthur-debert/fls/pkg/logging"
	"github.com/arthur-debert/fls/pkg/paths"
	"github.com/arthur-debert/fls/pkg/protocol"
	"github.com/arthur-debert/fls/pkg/ui"
	"github.com/arthur-debert/fls/pkg/ui/confirmations"
)

// DefaultProbeInterval bounds the wait for further replies in interactive
// mode.
const DefaultProbeInterval = 200 * time.Millisecond

// StackClient is the daemon connection the engine drives.
// *protocol.Client implements it.
type StackClient interface {
	Size() (int, error)
	Push(path string) (string, error)
	Pop() (string, error)
	Peek() (string, error)
	Pick(index int) (string, error)
	Stop() error

	Send(text string) error
	Receive(limit int) (string, error)
	WaitReady(timeout time.Duration) (bool, error)
	Limits() protocol.Limits
}

// Prompter asks the user to approve operations.
// *confirmations.ConsoleDialog implements it.
type Prompter interface {
	ConfirmBatch(verb string, n int, dest string) (confirmations.Answer, error)
	ConfirmItem(verb, source, dest string) (confirmations.Answer, error)
	ConfirmStop() (bool, error)
}

// Request is one action as given on the command line.
type Request struct {
	Kind actions.Kind
	// Count is how many entries copy, move, symlink and drop act on.
	Count int
	// Files are the push operands.
	Files []string
	// Dest is the copy, move or symlink target; empty means the working
	// directory.
	Dest string
}

// Options wires the engine to its collaborators.
type Options struct {
	Client   StackClient
	Actions  actions.Table
	Runner   executor.Runner
	Prompter Prompter
	Printer  *ui.Printer
	// Input feeds interactive mode. Defaults to os.Stdin.
	Input io.Reader
	// Fs is where collisions are looked up. Defaults to the OS filesystem.
	Fs afero.Fs

	// Yes skips every confirmation.
	Yes bool
	// DryRun reports the pending operation without running or popping it.
	DryRun        bool
	ProbeInterval time.Duration
}

// Engine executes requests over one daemon connection.
type Engine struct {
	client   StackClient
	actions  actions.Table
	runner   executor.Runner
	prompter Prompter
	printer  *ui.Printer
	input    io.Reader
	detector *collision.Detector

	yes           bool
	dryRun        bool
	probeInterval time.Duration
	logger        zerolog.Logger
}

// New creates an engine. Client, Runner and Prompter are required for the
// actions that use them.
func New(opts Options) *Engine {
	e := &Engine{
		client:        opts.Client,
		actions:       opts.Actions,
		runner:        opts.Runner,
		prompter:      opts.Prompter,
		printer:       opts.Printer,
		input:         opts.Input,
		detector:      collision.NewDetector(opts.Fs),
		yes:           opts.Yes,
		dryRun:        opts.DryRun,
		probeInterval: opts.ProbeInterval,
		logger:        logging.GetLogger("engine"),
	}
	if e.actions == nil {
		e.actions = actions.DefaultTable()
	}
	if e.printer == nil {
		e.printer = ui.NewPrinter(os.Stdout, ui.FormatAuto)
	}
	if e.input == nil {
		e.input = os.Stdin
	}
	if e.probeInterval <= 0 {
		e.probeInterval = DefaultProbeInterval
	}
	return e
}

// Execute runs req to completion.
func (e *Engine) Execute(ctx context.Context, req Request) error {
	def, err := e.actions.Lookup(req.Kind)
	if err != nil {
		return err
	}
	e.logger.Debug().Str("action", string(req.Kind)).Int("count", req.Count).Msg("executing")

	switch req.Kind {
	case actions.Push:
		return e.Push(req.Files)
	case actions.Drop:
		return e.Drop(req.Count)
	case actions.Print:
		return e.Print()
	case actions.Copy, actions.Move, actions.Symlink:
		return e.PopAct(ctx, def, req.Count, req.Dest)
	case actions.Interactive:
		return e.Interactive()
	case actions.Stop:
		return e.Stop()
	}
	return errors.Newf(errors.ErrActionInvalid, "no handler for action %s", req.Kind)
}

// Push resolves each file and pushes it, verifying the daemon's echo.
func (e *Engine) Push(files []string) error {
	if len(files) == 0 {
		return errors.New(errors.ErrInvalidInput, "nothing to push")
	}
	for _, f := range files {
		full, err := paths.AbsPath(f)
		if err != nil {
			return err
		}

		echo, err := e.client.Push(full)
		if err != nil {
			if errors.IsRejection(err) {
				return errors.Wrapf(err, errors.GetErrorCode(err), "Could not push `%s'", full).
					WithDetail("path", full)
			}
			return err
		}
		if echo != full {
			return errors.New(errors.ErrProtocol, "path sent not the same as path pushed").
				WithDetail("sent", full).
				WithDetail("echo", echo)
		}
		e.printer.Printf("Pushed `%s'\n", e.printer.Path(full))
	}
	return nil
}

// Drop pops n entries, printing each.
func (e *Engine) Drop(n int) error {
	if err := e.checkDepth("drop", n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		entry, err := e.client.Pop()
		if err != nil {
			e.printer.Printf("popped %d file%s\n", i, ui.Plural(i))
			return err
		}
		e.printer.Println(entry)
	}
	return nil
}

// Print lists the stack top first.
func (e *Engine) Print() error {
	n, err := e.client.Size()
	if err != nil {
		return err
	}
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entry, err := e.client.Pick(i)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return e.printer.RenderStack(ui.NewStackListing(entries))
}

// Interactive relays raw protocol lines typed by the user and prints every
// reply. A line of just "q" ends the session.
func (e *Engine) Interactive() error {
	limits := e.client.Limits()
	in := bufio.NewReader(e.input)

	for {
		e.printer.Printf("> ")
		line, readErr := in.ReadString('\n')
		if line == "" && readErr != nil {
			e.printer.Println()
			return nil
		}
		line = strings.TrimSuffix(line, "\n")

		if len(line) >= limits.PathMax {
			e.printer.Println("Didn't send, input too long")
			continue
		}
		if line == "q" {
			return nil
		}

		if err := e.client.Send(line); err != nil {
			return err
		}
		if err := e.drainReplies(limits); err != nil {
			return err
		}
		if readErr != nil {
			return nil
		}
	}
}

// drainReplies prints one reply, then keeps printing while more arrive
// within the probe interval.
func (e *Engine) drainReplies(limits protocol.Limits) error {
	for {
		msg, err := e.client.Receive(limits.PathMax)
		switch {
		case err == nil:
			e.printer.Printf("recv> `%s'\n", msg)
		case errors.IsErrorCode(err, errors.ErrMessageTooLong):
			e.printer.Println(e.printer.Warning("reply too long, discarded"))
		case errors.IsErrorCode(err, errors.ErrPeerClosed):
			return errors.Wrap(err, errors.ErrPeerClosed, "Server closed connection")
		default:
			return err
		}

		more, err := e.client.WaitReady(e.probeInterval)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Stop shuts the daemon down, asking first when it still holds entries.
func (e *Engine) Stop() error {
	n, err := e.client.Size()
	if err != nil {
		return err
	}
	if n > 0 && !e.yes {
		ok, err := e.prompter.ConfirmStop()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCanceled, "Canceled by user")
		}
	}

	err = e.client.Stop()
	switch {
	case err == nil:
		e.printer.Println("Server shutting down.")
	case errors.IsRejection(err):
		e.printer.Println("It doesn't want to.")
	default:
		return err
	}
	return nil
}

// checkDepth fails unless the stack holds at least n entries.
func (e *Engine) checkDepth(verb string, n int) error {
	if n < 1 {
		return errors.Newf(errors.ErrInvalidInput, "cannot %s %d files", verb, n)
	}
	depth, err := e.client.Size()
	if err != nil {
		return err
	}
	if n <= depth {
		return nil
	}
	if depth == 0 {
		return errors.New(errors.ErrCountExceedsDepth, "cannot pop, file stack empty")
	}
	return errors.Newf(errors.ErrCountExceedsDepth, "asked to %s %d file%s, only %d in stack",
		verb, n, ui.Plural(n), depth).
		WithDetail("count", n).
		WithDetail("depth", depth)
}
