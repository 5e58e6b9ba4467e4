package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chojs23/runme/internal/history"
)

// RenderHistory prints recorded runs, newest first
func RenderHistory(w io.Writer, runs []*history.Run, format Format) error {
	if format == FormatJSON {
		if runs == nil {
			runs = []*history.Run{}
		}
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No recorded runs")
		return err
	}
	for _, r := range runs {
		if _, err := fmt.Fprintln(w, HistoryLine(r, time.Now())); err != nil {
			return err
		}
	}
	return nil
}

// HistoryLine renders one run relative to now
func HistoryLine(r *history.Run, now time.Time) string {
	s := fmt.Sprintf("%s  %-14s exit %-3d %s  %d ok, %d failed, %d skipped, %d sandbox (%s)",
		shortID(r.ID),
		humanize.RelTime(r.StartedAt, now, "ago", "from now"),
		r.ExitCode,
		r.Document,
		r.Succeeded, r.Failed, r.Skipped, r.SandboxErrors,
		formatDuration(time.Duration(r.DurationMS)*time.Millisecond),
	)
	if r.Interrupted {
		s += " interrupted"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
