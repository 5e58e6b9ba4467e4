package domain

import (
	"fmt"
	"time"
)

// NoExitCode is recorded for lines that produced no exit status
// (lex errors, timeouts, interrupts)
const NoExitCode = -1

// LineResult is the outcome of one command line
type LineResult struct {
	Number     int           `json:"number"`
	Command    string        `json:"command"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// SetDuration records the wall-clock time spent on the line
func (r *LineResult) SetDuration(d time.Duration) {
	r.Duration = d
	r.DurationMS = d.Milliseconds()
}

// Failed reports whether the line ends the block with status Failed
func (r *LineResult) Failed() bool {
	return r.ExitCode != 0 || r.TimedOut || r.Error != ""
}

// FailureReason describes why a failed line failed
func (r *LineResult) FailureReason() string {
	switch {
	case r.TimedOut:
		return fmt.Sprintf("line %d timed out after %s", r.Number, r.Duration.Round(time.Millisecond))
	case r.Error != "":
		return fmt.Sprintf("line %d: %s", r.Number, r.Error)
	default:
		return fmt.Sprintf("line %d exited with code %d", r.Number, r.ExitCode)
	}
}

// BlockResult is the outcome of running one block. A new BlockResult is
// created for every execution attempt; results are never reused.
type BlockResult struct {
	BlockID      string        `json:"block_id"`
	Name         string        `json:"name,omitempty"`
	Status       Status        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Sandbox      string        `json:"sandbox,omitempty"`
	LineResults  []LineResult  `json:"line_results"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	CleanupError string        `json:"cleanup_error,omitempty"`
}

// NewBlockResult returns a pending result for b
func NewBlockResult(b *Block) *BlockResult {
	return &BlockResult{
		BlockID:     b.ID,
		Name:        b.Name,
		Status:      StatusPending,
		LineResults: []LineResult{},
	}
}

// Transition moves the result to a new status, enforcing the state machine
func (r *BlockResult) Transition(to Status) error {
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// SetDuration records the total time spent on the block
func (r *BlockResult) SetDuration(d time.Duration) {
	r.Duration = d
	r.DurationMS = d.Milliseconds()
}

// Summary aggregates block results by status
type Summary struct {
	Total         int           `json:"total"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	SandboxErrors int           `json:"sandbox_errors"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
}

// Summarize counts results by terminal status
func Summarize(results []*BlockResult) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		s.Duration += r.Duration
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusSandboxError:
			s.SandboxErrors++
		}
	}
	s.DurationMS = s.Duration.Milliseconds()
	return s
}

// RunReport is everything one `run` invocation produced
type RunReport struct {
	Document    string         `json:"document"`
	Sandbox     string         `json:"sandbox"`
	StartedAt   time.Time      `json:"started_at"`
	Blocks      []*Block       `json:"blocks"`
	Results     []*BlockResult `json:"results"`
	Interrupted bool           `json:"interrupted,omitempty"`
}

// Summary returns the status counts for the report's results
func (r *RunReport) Summary() Summary {
	return Summarize(r.Results)
}
