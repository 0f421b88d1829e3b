// Package render turns decoded runs and statistics into terminal, markdown and HTML
// output.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"chunklog/pkg/textrun"
)

// ColorMode selects whether terminal output carries ANSI colors.
type ColorMode int

const (
	ColorAuto ColorMode = iota // colors when writing to a terminal
	ColorAlways
	ColorNever
)

// ParseColorMode accepts "auto", "always" and "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("unknown color mode %q", s)
	}
}

// NewRenderer returns a lipgloss renderer for w honoring mode.
func NewRenderer(w io.Writer, mode ColorMode) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// futureColor is used for runs that lie after the replay position.
const futureColor = "8"

// ReplayOptions control Replay.
type ReplayOptions struct {
	Color ColorMode
	// At, when set, is the replay position in milliseconds. Runs that begin after it
	// are dimmed.
	At *float64
}

// Replay writes runs to w the way a terminal would have shown them, with SGR colors
// re-applied.
func Replay(w io.Writer, runs []textrun.TextRun, opts ReplayOptions) error {
	r := NewRenderer(w, opts.Color)

	var past []bool
	if opts.At != nil {
		past = textrun.Highlight(runs, *opts.At)
	}

	plain := opts.Color == ColorNever

	var b strings.Builder
	for i, run := range runs {
		text := caretEscape(run.Text)
		if run.Broken {
			text = "<" + run.Text + ">"
		}
		if plain {
			b.WriteString(text)
			continue
		}

		style := runStyle(r, run)
		if past != nil && !past[i] {
			style = r.NewStyle().TabWidth(lipgloss.NoTabConversion).Foreground(lipgloss.Color(futureColor))
		}
		if run.Broken {
			style = style.Reverse(true)
		}

		// Render pads multi-line text into a block, so lines are styled one by one.
		for j, line := range strings.Split(text, "\n") {
			if j > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write replay: %w", err)
	}
	return nil
}

func runStyle(r *lipgloss.Renderer, run textrun.TextRun) lipgloss.Style {
	style := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	if run.Style.FG != textrun.DefaultFG {
		if c, ok := ansiColor(run.Style.FG, 30, 90); ok {
			style = style.Foreground(c)
		}
	}
	if run.Style.BG != textrun.DefaultBG {
		if c, ok := ansiColor(run.Style.BG, 40, 100); ok {
			style = style.Background(c)
		}
	}
	return style
}

// ansiColor maps an SGR color parameter to one of the 16 basic terminal colors.
func ansiColor(code, normal, bright int) (lipgloss.Color, bool) {
	switch {
	case normal <= code && code <= normal+7:
		return lipgloss.Color(strconv.Itoa(code - normal)), true
	case bright <= code && code <= bright+7:
		return lipgloss.Color(strconv.Itoa(code - bright + 8)), true
	default:
		return "", false
	}
}

// caretEscape shows control characters other than newline, carriage return and tab in
// caret notation so replaying a log cannot drive the terminal.
func caretEscape(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case !isControl(r):
			b.WriteRune(r)
		case r == 0x7F:
			b.WriteString("^?")
		default:
			b.WriteByte('^')
			b.WriteRune(r + '@')
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return (r < 0x20 && r != '\n' && r != '\r' && r != '\t') || r == 0x7F
}
