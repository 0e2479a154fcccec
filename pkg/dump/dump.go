// Package dump prints classfiles and dex files as indented, optionally
// coloured text for reading. The output is not meant to be parsed back;
// pkg/asm has the round-trippable syntaxes.
package dump

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
)

// Options selects what a Printer shows.
type Options struct {
	// Verbose adds the constant pool or ID tables, instructions and
	// handler tables.
	Verbose bool
	// Annotations lists annotations on classes and members.
	Annotations bool
	// Filter keeps the classes whose name matches. Nil keeps everything.
	Filter *regexp.Regexp
	Color  bool
}

type theme struct {
	keyword func(a ...any) string
	name    func(a ...any) string
	opcode  func(a ...any) string
	invoke  func(a ...any) string
	branch  func(a ...any) string
	label   func(a ...any) string
	comment func(a ...any) string
}

func newTheme(enabled bool) theme {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return theme{
		keyword: mk(color.FgBlue, color.Bold),
		name:    mk(color.FgGreen),
		opcode:  mk(color.FgCyan),
		invoke:  mk(color.FgMagenta),
		branch:  mk(color.FgYellow),
		label:   mk(color.FgYellow, color.Bold),
		comment: mk(color.Faint),
	}
}

// Printer writes dumps to w. Visitors cannot return errors, so the first
// failure is kept and later output is skipped; check Err when done.
type Printer struct {
	w     io.Writer
	opts  Options
	theme theme
	err   error
}

func New(w io.Writer, opts Options) *Printer {
	return &Printer{w: w, opts: opts, theme: newTheme(opts.Color)}
}

// Err returns the first error met while printing.
func (p *Printer) Err() error { return p.err }

func (p *Printer) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Printer) printf(indent int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, err := fmt.Fprintf(p.w, strings.Repeat("  ", indent)+format+"\n", args...)
	if err != nil {
		p.fail(err)
	}
}

func (p *Printer) blank() { p.printf(0, "") }

// flags joins keyword text, dropping empty parts.
func (p *Printer) flags(parts ...string) string {
	var out []string
	for _, s := range parts {
		if s != "" {
			out = append(out, p.theme.keyword(s))
		}
	}
	return strings.Join(out, " ")
}
