// Package actions maps each fls action to its verb and, for actions that
// run an external program, the command template used to build its argv.
//
// Templates are shell-word strings with two named placeholders, {source}
// and {dest}, each expanded in place inside whichever arguments contain
// it. Expansion never re-splits words, so paths with spaces or shell
// metacharacters reach the program as single arguments.
package actions

import (
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/arthur-debert/fls/pkg/errors"
)

// Kind identifies an action.
type Kind string

const (
	Push        Kind = "push"
	Drop        Kind = "drop"
	Print       Kind = "print"
	Copy        Kind = "copy"
	Move        Kind = "move"
	Symlink     Kind = "symlink"
	Interactive Kind = "interactive"
	Stop        Kind = "stop"
)

// Placeholders recognized in command templates.
const (
	SourcePlaceholder = "{source}"
	DestPlaceholder   = "{dest}"
)

// Default command templates.
const (
	DefaultCopyCommand    = "/bin/cp -r -- {source} {dest}"
	DefaultMoveCommand    = "/bin/mv -- {source} {dest}"
	DefaultSymlinkCommand = "/bin/ln -s -- {source} {dest}"
)

// Definition describes one action.
type Definition struct {
	Kind Kind
	// Verb is used in prompts and messages ("copy 3 files to ...").
	Verb string
	// Argv is the parsed command template; empty for actions that do not
	// run a program.
	Argv []string
}

// RunsCommand reports whether the action spawns an external program.
func (d Definition) RunsCommand() bool {
	return len(d.Argv) > 0
}

// Generate expands the template for one source and destination.
func (d Definition) Generate(source, dest string) ([]string, error) {
	if !d.RunsCommand() {
		return nil, errors.Newf(errors.ErrActionInvalid, "action %s does not run a command", d.Kind)
	}

	argv := make([]string, len(d.Argv))
	r := strings.NewReplacer(SourcePlaceholder, source, DestPlaceholder, dest)
	for i, arg := range d.Argv {
		argv[i] = r.Replace(arg)
	}
	return argv, nil
}

// ParseTemplate splits a command template into words and checks that both
// placeholders appear after the program name.
func ParseTemplate(raw string) ([]string, error) {
	argv, err := shellwords.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrActionInvalid, "cannot parse command `%s'", raw)
	}
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrActionInvalid, "command template is empty")
	}

	args := strings.Join(argv[1:], " ")
	for _, placeholder := range []string{SourcePlaceholder, DestPlaceholder} {
		if !strings.Contains(args, placeholder) {
			return nil, errors.Newf(errors.ErrActionInvalid, "command `%s' lacks %s", raw, placeholder).
				WithDetail("template", raw)
		}
	}
	return argv, nil
}

// Table holds the definition of every action.
type Table map[Kind]Definition

// Commands carries the templates for the actions that run a program.
// Empty fields fall back to the defaults.
type Commands struct {
	Copy    string
	Move    string
	Symlink string
}

// NewTable builds the action table from command templates.
func NewTable(cmds Commands) (Table, error) {
	t := Table{
		Push:        {Kind: Push, Verb: "push"},
		Drop:        {Kind: Drop, Verb: "drop"},
		Print:       {Kind: Print, Verb: "print"},
		Interactive: {Kind: Interactive, Verb: "interactive mode"},
		Stop:        {Kind: Stop, Verb: "terminate daemon"},
	}

	templates := []struct {
		kind     Kind
		raw      string
		fallback string
	}{
		{Copy, cmds.Copy, DefaultCopyCommand},
		{Move, cmds.Move, DefaultMoveCommand},
		{Symlink, cmds.Symlink, DefaultSymlinkCommand},
	}
	for _, tmpl := range templates {
		raw := tmpl.raw
		if strings.TrimSpace(raw) == "" {
			raw = tmpl.fallback
		}
		argv, err := ParseTemplate(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigValid, "invalid %s command", tmpl.kind)
		}
		t[tmpl.kind] = Definition{Kind: tmpl.kind, Verb: string(tmpl.kind), Argv: argv}
	}
	return t, nil
}

// DefaultTable returns the table built from the default templates.
func DefaultTable() Table {
	t, err := NewTable(Commands{})
	if err != nil {
		// The defaults are constants; failing to parse them is a bug.
		panic(err)
	}
	return t
}

// Lookup returns the definition for kind.
func (t Table) Lookup(kind Kind) (Definition, error) {
	d, ok := t[kind]
	if !ok {
		return Definition{}, errors.Newf(errors.ErrActionInvalid, "unknown action %q", kind)
	}
	return d, nil
}
