// Package cmdline turns a block body into independently executable command
// lines. Only word splitting is performed: quotes and backslash escapes are
// honored, while pipes, redirects, && and variable references stay literal
// argv tokens.
package cmdline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/chojs23/runme/internal/domain"
)

var errNoCommand = errors.New("no command")

// LexError reports a line whose quoting could not be tokenized
type LexError struct {
	Line int
	Text string
	Err  error
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d: cannot split %q: %v", e.Line, e.Text, e.Err)
}

func (e *LexError) Unwrap() error {
	return e.Err
}

// IsCommand reports whether a raw body line produces a command line
func IsCommand(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#")
}

// Split produces the ordered command lines of a block body. Blank and
// comment lines are dropped before numbering, so Number is stable across
// reruns. Lines that fail to tokenize carry a *LexError in Err and are
// never executed.
func Split(body []string) []domain.CommandLine {
	lines := make([]domain.CommandLine, 0, len(body))
	for i, raw := range body {
		if !IsCommand(raw) {
			continue
		}
		text := strings.TrimSpace(raw)
		cl := domain.CommandLine{
			Number:     len(lines) + 1,
			SourceLine: i + 1,
			Text:       text,
		}

		argv, err := shlex.Split(text)
		switch {
		case err != nil:
			cl.Err = &LexError{Line: cl.Number, Text: text, Err: err}
		case len(argv) == 0:
			cl.Err = &LexError{Line: cl.Number, Text: text, Err: errNoCommand}
		default:
			cl.Argv = argv
		}
		lines = append(lines, cl)
	}
	return lines
}
