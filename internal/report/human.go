package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chojs23/runme/internal/domain"
)

// Human streams each command, its output and a pass/fail marker as soon as
// the line completes, then prints per-block and overall summaries
type Human struct {
	out    io.Writer
	errOut io.Writer

	header  lipgloss.Style
	context lipgloss.Style
	command lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
}

// NewHuman creates a streaming reporter
func NewHuman(out, errOut io.Writer, color ColorMode) *Human {
	r := newRenderer(out, color)
	return &Human{
		out:     out,
		errOut:  errOut,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		context: r.NewStyle().Foreground(lipgloss.Color("244")),
		command: r.NewStyle().Bold(true),
		pass:    r.NewStyle().Foreground(lipgloss.Color("42")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("196")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (h *Human) BlockStarted(b *domain.Block, sandbox string) {
	fmt.Fprintf(h.out, "%s %s\n",
		h.header.Render("== "+b.Label()+" =="),
		h.context.Render(blockContext(b, sandbox)))
}

func (h *Human) LineCompleted(b *domain.Block, r domain.LineResult) {
	fmt.Fprintf(h.out, "%s\n", h.command.Render("$ "+r.Command))
	if r.Stdout != "" {
		io.WriteString(h.out, withNewline(r.Stdout))
	}
	if r.Stderr != "" {
		io.WriteString(h.errOut, withNewline(r.Stderr))
	}
	fmt.Fprintln(h.out, h.lineMarker(r))
}

func (h *Human) BlockCompleted(b *domain.Block, r *domain.BlockResult) {
	if r.Status == domain.StatusSkipped {
		fmt.Fprintf(h.out, "%s %s\n", h.muted.Render("- "+b.Label()+" skipped:"), h.muted.Render(r.Reason))
		return
	}

	line := fmt.Sprintf("%s: %s (%s, %s)", b.Label(), r.Status, plural(len(r.LineResults), "line"), formatDuration(r.Duration))
	switch r.Status {
	case domain.StatusSucceeded:
		line = h.pass.Render(line)
	case domain.StatusSandboxError:
		line = h.warn.Render(line + " sandbox error: " + r.Reason)
	default:
		line = h.fail.Render(line + " " + r.Reason)
	}
	fmt.Fprintln(h.out, line)
	if r.CleanupError != "" {
		fmt.Fprintln(h.errOut, h.warn.Render("cleanup failed: "+r.CleanupError))
	}
	fmt.Fprintln(h.out)
}

// Finish prints the overall counts
func (h *Human) Finish(report *domain.RunReport) error {
	s := report.Summary()
	if report.Interrupted {
		fmt.Fprintln(h.out, h.warn.Render("Interrupted."))
	}
	_, err := fmt.Fprintln(h.out, h.summaryStyle(s).Render(SummaryLine(s)))
	return err
}

// SummaryLine renders counts by status, e.g.
// "Summary: 3 blocks | 2 succeeded | 1 failed | 0 skipped | 0 sandbox errors (1.2s)"
func SummaryLine(s domain.Summary) string {
	return fmt.Sprintf("Summary: %s | %d succeeded | %d failed | %d skipped | %s (%s)",
		plural(s.Total, "block"), s.Succeeded, s.Failed, s.Skipped,
		plural(s.SandboxErrors, "sandbox error"), formatDuration(s.Duration))
}

func (h *Human) summaryStyle(s domain.Summary) lipgloss.Style {
	switch {
	case s.SandboxErrors > 0:
		return h.warn
	case s.Failed > 0:
		return h.fail
	}
	return h.pass
}

func (h *Human) lineMarker(r domain.LineResult) string {
	d := formatDuration(r.Duration)
	switch {
	case r.TimedOut:
		return h.fail.Render(fmt.Sprintf("✗ timed out (%s)", d))
	case r.Error != "":
		return h.fail.Render(fmt.Sprintf("✗ %s", r.Error))
	case r.ExitCode != 0:
		return h.fail.Render(fmt.Sprintf("✗ exit %d (%s)", r.ExitCode, d))
	}
	return h.pass.Render(fmt.Sprintf("✓ exit 0 (%s)", d))
}

func blockContext(b *domain.Block, sandbox string) string {
	parts := []string{"[" + b.DisplayLanguage() + "]", b.Location()}
	if b.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", b.Line))
	}
	if sandbox != "" {
		parts = append(parts, sandbox)
	}
	return strings.Join(parts, " · ")
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
