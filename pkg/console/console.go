// Package console prints human-readable progress lines.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	SymbolList    = "📋"
	SymbolFetch   = "🔍"
	SymbolWarn    = "⚠️ "
	SymbolError   = "❌"
	SymbolSuccess = "✅"
)

var (
	stepColor    = lipgloss.AdaptiveColor{Light: "#4A3AA8", Dark: "#7D56F4"}
	warnColor    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FFBF69"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#E71D36"}
	successColor = lipgloss.AdaptiveColor{Light: "#0F9488", Dark: "#2EC4B6"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#626262"}
)

// Printer writes symbol-prefixed lines. Quiet suppresses everything but errors.
type Printer struct {
	out   io.Writer
	quiet bool

	step, warn, err, success, muted lipgloss.Style
}

// NewPrinter styles output for out; non-terminal writers get plain text.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:     out,
		quiet:   quiet,
		step:    r.NewStyle().Foreground(stepColor),
		warn:    r.NewStyle().Foreground(warnColor),
		err:     r.NewStyle().Foreground(errorColor).Bold(true),
		success: r.NewStyle().Foreground(successColor).Bold(true),
		muted:   r.NewStyle().Foreground(mutedColor),
	}
}

func (p *Printer) line(style lipgloss.Style, symbol, format string, args ...interface{}) {
	fmt.Fprintln(p.out, style.Render(symbol+" "+fmt.Sprintf(format, args...)))
}

func (p *Printer) List(format string, args ...interface{}) {
	if !p.quiet {
		p.line(p.step, SymbolList, format, args...)
	}
}

func (p *Printer) Fetch(format string, args ...interface{}) {
	if !p.quiet {
		p.line(p.step, SymbolFetch, format, args...)
	}
}

func (p *Printer) Warn(format string, args ...interface{}) {
	if !p.quiet {
		p.line(p.warn, SymbolWarn, format, args...)
	}
}

func (p *Printer) Error(format string, args ...interface{}) {
	p.line(p.err, SymbolError, format, args...)
}

func (p *Printer) Success(format string, args ...interface{}) {
	if !p.quiet {
		p.line(p.success, SymbolSuccess, format, args...)
	}
}

// Plain prints an unprefixed, muted line.
func (p *Printer) Plain(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintln(p.out, p.muted.Render(fmt.Sprintf(format, args...)))
	}
}
