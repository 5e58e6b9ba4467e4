// Package report renders run results for people (streaming, colored) or
// for machines (one JSON document), and maps outcomes to exit codes.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/chojs23/runme/internal/domain"
	"github.com/chojs23/runme/internal/runner"
)

// Format selects the output representation
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatHuman:
		return FormatHuman, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (expected human or json)", s)
}

// ColorMode controls ANSI styling of human output
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color value
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(s)) {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	}
	return "", fmt.Errorf("unknown color mode %q (expected auto, always or never)", s)
}

// Reporter observes a run while it happens and renders the final report
type Reporter interface {
	runner.Observer
	Finish(report *domain.RunReport) error
}

// New creates the reporter for format. Human output streams command output
// to out and captured stderr to errOut.
func New(format Format, out, errOut io.Writer, color ColorMode) Reporter {
	if format == FormatJSON {
		return NewJSON(out)
	}
	return NewHuman(out, errOut, color)
}

// newRenderer builds a lipgloss renderer honoring the color mode
func newRenderer(w io.Writer, mode ColorMode) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	default:
		if !isTerminal(w) || os.Getenv("NO_COLOR") != "" {
			r.SetColorProfile(termenv.Ascii)
		}
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
