package report

import "github.com/chojs23/runme/internal/domain"

// Process exit codes. Infrastructure problems are never coalesced with
// script failures.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitSandbox     = 3
	ExitInterrupted = 130
)

// ExitCode maps a run outcome to a process exit code. An interrupt wins,
// then sandbox errors, then failed blocks.
func ExitCode(s domain.Summary, interrupted bool) int {
	switch {
	case interrupted:
		return ExitInterrupted
	case s.SandboxErrors > 0:
		return ExitSandbox
	case s.Failed > 0:
		return ExitFailed
	}
	return ExitOK
}

// ReportExitCode is ExitCode for a finished report
func ReportExitCode(r *domain.RunReport) int {
	return ExitCode(r.Summary(), r.Interrupted)
}
