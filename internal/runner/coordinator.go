// Package runner drives blocks through a sandbox one at a time and turns
// per-line outcomes into block results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chojs23/runme/internal/cmdline"
	"github.com/chojs23/runme/internal/domain"
	"github.com/chojs23/runme/internal/sandbox"
)

// Coordinator runs blocks sequentially. Lines within a block share one
// sandbox handle, so nothing here is safe to interleave.
type Coordinator struct {
	sandbox  sandbox.Sandbox
	observer Observer
	logger   *slog.Logger
}

// New creates a coordinator. A nil observer or logger disables events or logs.
func New(sb sandbox.Sandbox, observer Observer, logger *slog.Logger) *Coordinator {
	if observer == nil {
		observer = NoopObserver{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{sandbox: sb, observer: observer, logger: logger}
}

// Run executes the selected blocks of a document in order. It stops early
// only when ctx is canceled, in which case the report is marked interrupted.
func (c *Coordinator) Run(ctx context.Context, document string, blocks []*domain.Block) *domain.RunReport {
	report := &domain.RunReport{
		Document:  document,
		Sandbox:   c.sandbox.Label(),
		StartedAt: time.Now(),
		Blocks:    blocks,
		Results:   make([]*domain.BlockResult, 0, len(blocks)),
	}

	for _, b := range blocks {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		report.Results = append(report.Results, c.RunBlock(ctx, b))
	}
	if ctx.Err() != nil {
		report.Interrupted = true
	}

	return report
}

// RunBlock drives one block to a terminal status. A fresh result is built
// on every call.
func (c *Coordinator) RunBlock(ctx context.Context, b *domain.Block) *domain.BlockResult {
	start := time.Now()
	res := domain.NewBlockResult(b)

	c.execute(ctx, b, res)

	res.SetDuration(time.Since(start))
	c.logger.Debug("block finished", "block", b.ID, "status", res.Status, "lines", len(res.LineResults))
	c.observer.BlockCompleted(b, res)
	return res
}

func (c *Coordinator) execute(ctx context.Context, b *domain.Block, res *domain.BlockResult) {
	if reason := SkipReason(b); reason != "" {
		c.settle(res, domain.StatusSkipped, reason)
		return
	}

	lines := cmdline.Split(b.BodyLines)
	if len(lines) == 0 {
		c.settle(res, domain.StatusSkipped, "no runnable lines")
		return
	}

	res.Sandbox = c.sandbox.Label()
	c.observer.BlockStarted(b, res.Sandbox)
	c.settle(res, domain.StatusRunning, "")

	handle, err := c.sandbox.Prepare(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.settle(res, domain.StatusFailed, "interrupted")
			return
		}
		c.logger.Debug("prepare failed", "block", b.ID, "error", err)
		c.settle(res, domain.StatusSandboxError, sandboxFailure("prepare", err).Error())
		return
	}
	defer func() {
		if err := c.sandbox.Cleanup(ctx, handle); err != nil {
			c.logger.Warn("sandbox cleanup failed", "block", b.ID, "handle", handle.ID(), "error", err)
			res.CleanupError = err.Error()
		}
	}()

	for _, line := range lines {
		lr, err := c.sandbox.RunLine(ctx, handle, line)
		interrupted := err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil)
		if err != nil && !interrupted {
			c.settle(res, domain.StatusSandboxError, fmt.Sprintf("line %d: %v", line.Number, sandboxFailure("run", err)))
			return
		}

		res.LineResults = append(res.LineResults, lr)
		c.observer.LineCompleted(b, lr)

		switch {
		case interrupted:
			c.settle(res, domain.StatusFailed, fmt.Sprintf("line %d interrupted", line.Number))
			return
		case lr.Failed():
			c.settle(res, domain.StatusFailed, lr.FailureReason())
			return
		}
	}

	c.settle(res, domain.StatusSucceeded, "")
}

func (c *Coordinator) settle(res *domain.BlockResult, to domain.Status, reason string) {
	if err := res.Transition(to); err != nil {
		c.logger.Error("block state", "block", res.BlockID, "error", err)
		return
	}
	if reason != "" {
		res.Reason = reason
	}
}

// sandboxFailure wraps errors that a Sandbox implementation returned without
// classifying them, so every sandbox_error reason names the failed operation.
func sandboxFailure(op string, err error) error {
	if sandbox.IsSandboxError(err) {
		return err
	}
	return &sandbox.Error{Op: op, Err: err}
}

// SkipReason explains why a block will not reach the sandbox, or returns ""
// for blocks that should run
func SkipReason(b *domain.Block) string {
	switch {
	case b.Skip:
		if b.SkipReason != "" {
			return b.SkipReason
		}
		return "marked with runme:ignore"
	case b.Language == "":
		return "no language tag"
	case !domain.IsShellLanguage(b.Language):
		return fmt.Sprintf("language %q is not runnable", b.Language)
	}
	return ""
}
