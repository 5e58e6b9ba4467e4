// Package notify tells the user when a watched document changes outcome.
package notify

import (
	"fmt"
	"sync"

	"github.com/chojs23/runme/internal/domain"
	"github.com/chojs23/runme/internal/report"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title    string
	Message  string
	Type     NotificationType
	Document string // Optional document reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// ForRun builds the notification describing a finished run
func ForRun(r *domain.RunReport, exitCode int) Notification {
	s := r.Summary()
	n := Notification{
		Document: r.Document,
		Message:  report.SummaryLine(s),
	}
	switch exitCode {
	case report.ExitOK:
		n.Type = NotifySuccess
		n.Title = fmt.Sprintf("%s: docs are runnable again", r.Document)
	case report.ExitFailed:
		n.Type = NotifyError
		n.Title = fmt.Sprintf("%s: %d %s failing", r.Document, s.Failed, pluralize(s.Failed, "block", "blocks"))
	case report.ExitSandbox:
		n.Type = NotifyWarning
		n.Title = fmt.Sprintf("%s: sandbox errors", r.Document)
	default:
		n.Type = NotifyInfo
		n.Title = fmt.Sprintf("%s: run interrupted", r.Document)
	}
	return n
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Tracker forwards a notification only when the exit code differs from the
// previous run. The first run is always reported unless it succeeded.
type Tracker struct {
	notifier Notifier

	mu   sync.Mutex
	last int
	seen bool
}

// NewTracker wraps a notifier with change detection
func NewTracker(n Notifier) *Tracker {
	if n == nil {
		n = NoopNotifier{}
	}
	return &Tracker{notifier: n}
}

// Observe records a finished run and notifies on a change of outcome. It
// reports whether a notification was sent.
func (t *Tracker) Observe(r *domain.RunReport, exitCode int) (bool, error) {
	if exitCode == report.ExitInterrupted {
		return false, nil
	}

	t.mu.Lock()
	changed := (!t.seen && exitCode != report.ExitOK) || (t.seen && exitCode != t.last)
	t.last = exitCode
	t.seen = true
	t.mu.Unlock()

	if !changed {
		return false, nil
	}
	return true, t.notifier.Send(ForRun(r, exitCode))
}
