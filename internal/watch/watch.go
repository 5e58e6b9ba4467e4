// Package watch re-runs a document when it changes on disk or on a cron
// schedule. Triggers are delivered one at a time; changes that arrive while a
// run is in progress collapse into a single follow-up run.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce batches rapid editor writes
const DefaultDebounce = 500 * time.Millisecond

// Reason says why a run was triggered
type Reason string

const (
	ReasonInitial  Reason = "initial"
	ReasonChange   Reason = "change"
	ReasonSchedule Reason = "schedule"
)

// Trigger is one request to run the document
type Trigger struct {
	Reason Reason
	At     time.Time
}

// RunFunc handles a trigger. Returning an error stops the watcher.
type RunFunc func(ctx context.Context, t Trigger) error

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Schedule string // five-field cron expression, empty for none
	Logger   *slog.Logger
}

// Watcher monitors a single document
type Watcher struct {
	path     string
	debounce time.Duration
	schedule cron.Schedule
	logger   *slog.Logger

	pending chan Trigger

	mu    sync.Mutex
	timer *time.Timer
}

// ParseSchedule parses a standard five-field cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// New creates a watcher for the document at path
func New(path string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	w := &Watcher{
		path:     abs,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		pending:  make(chan Trigger, 1),
	}
	if opts.Schedule != "" {
		if w.schedule, err = ParseSchedule(opts.Schedule); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Path returns the absolute path being watched
func (w *Watcher) Path() string {
	return w.path
}

// Run calls fn once immediately and again for every change or scheduled
// tick until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	if _, err := os.Stat(w.path); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch the directory so editors that replace the file by rename keep
	// being seen.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.forward(ctx, fsw)
	defer w.stopTimer()

	if err := fn(ctx, Trigger{Reason: ReasonInitial, At: time.Now()}); err != nil {
		return err
	}

	for {
		tick, stop := w.nextTick()
		var t Trigger
		select {
		case <-ctx.Done():
			stop()
			return nil
		case t = <-w.pending:
		case at := <-tick:
			t = Trigger{Reason: ReasonSchedule, At: at}
		}
		stop()

		if err := fn(ctx, t); err != nil {
			return err
		}
	}
}

// nextTick arms a timer for the next scheduled run. Without a schedule the
// returned channel is nil and never fires.
func (w *Watcher) nextTick() (<-chan time.Time, func()) {
	if w.schedule == nil {
		return nil, func() {}
	}
	next := w.schedule.Next(time.Now())
	w.logger.Debug("next scheduled run", "at", next)
	t := time.NewTimer(time.Until(next))
	return t.C, func() { t.Stop() }
}

func (w *Watcher) forward(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("document changed", "op", event.Op.String())
				w.bump()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether an event touches the watched document
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// bump resets the debounce timer
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	select {
	case w.pending <- Trigger{Reason: ReasonChange, At: time.Now()}:
	default:
		// a run is already queued
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
