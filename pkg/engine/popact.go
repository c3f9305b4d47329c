package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/arthur-debert/fls/pkg/actions"
	"github.com/arthur-debert/fls/pkg/collision"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/paths"
	"github.com/arthur-debert/fls/pkg/ui"
	"github.com/arthur-debert/fls/pkg/ui/confirmations"
)

// PendingOperation is the top entry leased to the client for one pop-act
// cycle: it is PEEKed, acted on, and only then POPped. Nothing else can
// change the stack in between because the daemon serves a single
// connection at a time. Serving several clients at once would need an
// explicit lease on the entry.
type PendingOperation struct {
	Action actions.Definition
	Source string
	Dest   string
	Argv   []string
}

const (
	stackNotAltered = "stack not altered"
	stackDebatable  = "stack state debatable"
)

// PopAct applies def to the top n entries, one at a time, into dest.
// Each entry is popped only after its command succeeds.
func (e *Engine) PopAct(ctx context.Context, def actions.Definition, n int, dest string) error {
	verb := def.Verb
	batch := n
	approved := e.yes

	for first := true; n > 0; first = false {
		if err := e.checkDepth(verb, n); err != nil {
			return err
		}

		target, err := paths.RealTarget(dest)
		if err != nil {
			return err
		}
		if first {
			if _, err := e.detector.CheckTarget(target, batch); err != nil {
				return err
			}
		}

		source, err := e.client.Peek()
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrStackEmpty) {
				return errors.Wrapf(err, errors.ErrStackEmpty, "Could not %s; file stack empty", verb)
			}
			return errors.Wrapf(err, errors.GetErrorCode(err), "received error (%s)", stackNotAltered)
		}

		if first {
			report, err := e.detector.Check(e.client, batch, target)
			if err != nil {
				return err
			}
			// Overwrite warnings accompany the prompt; --yes has none.
			if !e.yes {
				e.reportCollisions(report)
			}
		}

		argv, err := def.Generate(source, target)
		if err != nil {
			return err
		}
		op := PendingOperation{Action: def, Source: source, Dest: target, Argv: argv}
		e.logger.Info().Str("src", source).Str("dst", target).Strs("argv", argv).Msg("pending operation")

		if e.dryRun {
			e.printer.Printf("dry run: %s\n", quoteArgv(op.Argv))
			return nil
		}

		act, err := e.confirm(op, first, batch, &approved)
		if err != nil {
			return err
		}

		if act {
			if err := e.runner.Run(ctx, op.Argv); err != nil {
				return errors.Wrapf(err, errors.ErrActionExecute, "%s unsuccessful, aborting... (%s)", verb, stackNotAltered)
			}
		}

		if _, err := e.client.Pop(); err != nil {
			return errors.Wrapf(err, errors.ErrIndeterminate, "could not confirm pop from stack (%s)", stackDebatable).
				WithDetail("source", source)
		}
		n--
	}
	return nil
}

// confirm reports the operation and, unless already approved, asks the
// user. It returns false when the entry should be dropped without acting.
func (e *Engine) confirm(op PendingOperation, first bool, batch int, approved *bool) (bool, error) {
	verb := op.Action.Verb
	source, dest := e.printer.Path(op.Source), e.printer.Path(op.Dest)

	if *approved || !first {
		e.printer.Printf("%s `%s' to `%s'\n", verb, source, dest)
		return true, nil
	}

	var (
		answer confirmations.Answer
		err    error
	)
	if batch > 1 {
		answer, err = e.prompter.ConfirmBatch(verb, batch, dest)
	} else {
		answer, err = e.prompter.ConfirmItem(verb, source, dest)
	}
	if err != nil {
		return false, err
	}

	switch answer {
	case confirmations.No:
		return false, errors.Newf(errors.ErrCanceled, "%s canceled by user", verb)
	case confirmations.Drop:
		e.printer.Printf("drop `%s'\n", op.Source)
		return false, nil
	}

	*approved = true
	if batch > 1 {
		e.printer.Printf("%s `%s' to `%s'\n", verb, source, dest)
	}
	return true, nil
}

// reportCollisions warns about everything the batch would overwrite.
func (e *Engine) reportCollisions(r *collision.Report) {
	if !r.HasCollisions() {
		return
	}
	overwrite := e.printer.Warning("overwrite")
	switch {
	case !r.DestIsDir:
		e.printer.Printf("operation will %s `%s'\n", overwrite, e.printer.Path(r.Dest))
	case len(r.Collisions) == 1:
		e.printer.Printf("operation will %s `%s'\n", overwrite, e.printer.Path(r.Dest+r.Collisions[0]))
	default:
		n := len(r.Collisions)
		e.printer.Printf("operation will %s %d file%s:\n", overwrite, n, ui.Plural(n))
		for _, name := range r.Collisions {
			e.printer.Println(name)
		}
	}
}

// quoteArgv renders argv for display, quoting words a shell would split.
func quoteArgv(argv []string) string {
	words := make([]string, len(argv))
	for i, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\n'\"\\$`;&|<>()*?") {
			words[i] = strconv.Quote(arg)
			continue
		}
		words[i] = arg
	}
	return strings.Join(words, " ")
}
