// Package ui renders fls output: styled paths and warnings for people,
// and the stack listing as text, JSON or YAML.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/fls/pkg/ui/styles"
)

// Printer writes user-facing messages, styling them when the output is a
// color terminal.
type Printer struct {
	out    io.Writer
	format Format
}

// NewPrinter resolves FormatAuto against out. Writers that are not files
// get plain text.
func NewPrinter(out io.Writer, format Format) *Printer {
	if format == FormatAuto {
		format = FormatText
		if f, ok := out.(*os.File); ok {
			format = DetectFormat(f)
		}
	}
	return &Printer{out: out, format: format}
}

// Format returns the resolved output format
func (p *Printer) Format() Format {
	return p.format
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) style(name, s string) string {
	if p.format != FormatTerminal {
		return s
	}
	return styles.GetStyle(name).Render(s)
}

// Path styles a file path
func (p *Printer) Path(s string) string {
	return p.style(styles.Path, s)
}

// Warning styles a warning word or phrase
func (p *Printer) Warning(s string) string {
	return p.style(styles.Warning, s)
}

// Error styles an error message
func (p *Printer) Error(s string) string {
	return p.style(styles.Error, s)
}

// Printf writes a formatted message
func (p *Printer) Printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Println writes a line
func (p *Printer) Println(args ...interface{}) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// StackItem is one entry of a stack listing; index 0 is the top.
type StackItem struct {
	Index int    `json:"index" yaml:"index"`
	Path  string `json:"path" yaml:"path"`
}

// StackListing is the result of the print action.
type StackListing struct {
	Size    int         `json:"size" yaml:"size"`
	Entries []StackItem `json:"entries" yaml:"entries"`
}

// NewStackListing builds a listing from entries ordered top first.
func NewStackListing(entries []string) StackListing {
	listing := StackListing{Size: len(entries), Entries: make([]StackItem, 0, len(entries))}
	for i, e := range entries {
		listing.Entries = append(listing.Entries, StackItem{Index: i, Path: e})
	}
	return listing
}

// RenderStack writes the listing in the printer's format.
func (p *Printer) RenderStack(listing StackListing) error {
	switch p.format {
	case FormatJSON:
		encoder := json.NewEncoder(p.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listing)
	case FormatYAML:
		encoder := yaml.NewEncoder(p.out)
		encoder.SetIndent(2)
		if err := encoder.Encode(listing); err != nil {
			return err
		}
		return encoder.Close()
	}

	p.Printf("%d file%s in stack\n", listing.Size, Plural(listing.Size))
	for _, item := range listing.Entries {
		p.Printf("%s: %s\n", p.style(styles.Index, fmt.Sprint(item.Index)), p.Path(item.Path))
	}
	return nil
}

// Plural returns "s" unless n is one.
func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
