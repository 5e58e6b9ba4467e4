package domain

import (
	"errors"
	"fmt"
)

// Status represents the lifecycle state of a block within one invocation
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
	StatusSkipped      Status = "skipped"
	StatusSandboxError Status = "sandbox_error"
)

// ErrInvalidTransition is returned when a status change violates the block state machine
var ErrInvalidTransition = errors.New("invalid status transition")

// Terminal reports whether no further transitions are allowed from s
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusSandboxError:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits s -> to.
//
//	pending -> running | skipped | sandbox_error
//	running -> succeeded | failed | sandbox_error
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped || to == StatusSandboxError
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed || to == StatusSandboxError
	}
	return false
}

// DirectiveKind identifies a runme annotation
type DirectiveKind string

const (
	DirectiveName   DirectiveKind = "name"
	DirectiveIgnore DirectiveKind = "ignore"
)

// DirectiveSource records where a directive was found
type DirectiveSource string

const (
	SourceInfo    DirectiveSource = "info"
	SourceComment DirectiveSource = "comment"
)

// Directive is a parsed runme:name / runme:ignore annotation
type Directive struct {
	Kind   DirectiveKind   `json:"kind"`
	Value  string          `json:"value,omitempty"`
	Source DirectiveSource `json:"source"`
}

func (d Directive) String() string {
	if d.Value == "" {
		return fmt.Sprintf("runme:%s (%s)", d.Kind, d.Source)
	}
	return fmt.Sprintf("runme:%s %s (%s)", d.Kind, d.Value, d.Source)
}
