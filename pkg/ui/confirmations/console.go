// Package confirmations asks the user to approve pending operations on a
// line-oriented console.
package confirmations

import (
	"bufio"
	"fmt"
	"io"

	"github.com/arthur-debert/fls/pkg/errors"
)

// Answer is the user's reply to a confirmation prompt.
type Answer int

const (
	// Yes approves the operation. A bare newline means yes.
	Yes Answer = iota
	// No cancels the whole run.
	No
	// Drop discards the entry without performing the action.
	Drop
)

// String returns the answer's name
func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// ConsoleDialog prompts on out and reads answers from in, one per line.
type ConsoleDialog struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleDialog creates a console dialog
func NewConsoleDialog(in io.Reader, out io.Writer) *ConsoleDialog {
	return &ConsoleDialog{in: bufio.NewReader(in), out: out}
}

// ConfirmBatch asks once for a whole batch: "<verb> N files to `dest' [Yn]?"
func (d *ConsoleDialog) ConfirmBatch(verb string, n int, dest string) (Answer, error) {
	return d.ask(fmt.Sprintf("%s %d files to `%s' [Yn]?", verb, n, dest), false)
}

// ConfirmItem asks for a single entry: "<verb> `source' to `dest' [Ynd]?"
func (d *ConsoleDialog) ConfirmItem(verb, source, dest string) (Answer, error) {
	return d.ask(fmt.Sprintf("%s `%s' to `%s' [Ynd]?", verb, source, dest), true)
}

// ConfirmStop asks whether to stop a daemon that still holds entries.
// Anything but yes declines; there is no re-ask.
func (d *ConsoleDialog) ConfirmStop() (bool, error) {
	_, _ = fmt.Fprint(d.out, "Stack not empty, still stop daemon [Yn]?")
	line, err := d.readLine()
	if err != nil {
		return false, err
	}
	return line[0] == '\n' || line[0] == 'Y' || line[0] == 'y', nil
}

func (d *ConsoleDialog) ask(prompt string, allowDrop bool) (Answer, error) {
	for {
		_, _ = fmt.Fprint(d.out, prompt)
		line, err := d.readLine()
		if err != nil {
			return No, err
		}
		switch line[0] {
		case '\n', 'Y', 'y':
			return Yes, nil
		case 'N', 'n':
			return No, nil
		case 'D', 'd':
			if allowDrop {
				return Drop, nil
			}
		}
		_, _ = fmt.Fprintln(d.out, "What?")
	}
}

// readLine returns the next line, never empty. Input that ends without a
// newline still counts as an answer.
func (d *ConsoleDialog) readLine() (string, error) {
	line, err := d.in.ReadString('\n')
	if line != "" {
		return line, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return "", errors.Wrap(err, errors.ErrInvalidInput, "error reading from stdin")
}
