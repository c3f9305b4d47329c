package executor

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/logging"
)

// Runner runs one argv to completion.
type Runner interface {
	Run(ctx context.Context, argv []string) error
}

// Options contains configuration for the executor
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Logger defaults to the "executor" component logger.
	Logger *zerolog.Logger
}

// Executor spawns child processes wired to the given streams.
type Executor struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger
}

// New creates a new executor instance. Unset streams default to the
// process's own.
func New(opts Options) *Executor {
	logger := logging.GetLogger("executor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	e := &Executor{
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		logger: logger,
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	return e
}

// Run starts argv[0] with the remaining arguments and waits for it. A ctx
// canceled before the start prevents it; canceling later does not.
func (e *Executor) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New(errors.ErrInvalidInput, "empty command")
	}

	logging.LogCommand(argv[0], argv[1:])
	done := logging.LogOperationStart(e.logger, argv[0])
	defer done()

	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCanceled, "`%s' not started", argv[0])
	}

	// Once started the command runs to completion; ctx never reaches it.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Start(); err != nil {
		e.logger.Error().Err(err).Str("command", argv[0]).Msg("could not start command")
		return errors.Wrapf(err, errors.ErrActionExecute, "could not run `%s'", argv[0]).
			WithDetail("argv", argv)
	}

	err := cmd.Wait()
	if err == nil {
		e.logger.Debug().Str("command", argv[0]).Msg("command succeeded")
		return nil
	}
	return e.classify(argv, err)
}

func (e *Executor) classify(argv []string, err error) error {
	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return errors.Wrapf(err, errors.ErrActionExecute, "`%s' failed", argv[0]).
			WithDetail("argv", argv)
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := status.Signal()
		e.logger.Warn().Str("command", argv[0]).Str("signal", sig.String()).Msg("command killed by signal")
		return errors.Newf(errors.ErrActionExecute, "`%s' terminated by signal %d (%s)", argv[0], int(sig), sig).
			WithDetail("argv", argv).
			WithDetail("signal", int(sig))
	}

	code := exitErr.ExitCode()
	e.logger.Warn().Str("command", argv[0]).Int("exit_code", code).Msg("command failed")
	return errors.Newf(errors.ErrActionExecute, "`%s' exited with status %d", argv[0], code).
		WithDetail("argv", argv).
		WithDetail("exit_code", code)
}
