package parser

import "errors"

var (
	// ErrMalformed is returned for documents the markdown parser cannot tokenize
	ErrMalformed = errors.New("malformed document")
	// ErrDuplicateName is returned when two blocks claim the same runme:name
	ErrDuplicateName = errors.New("duplicate block name")
	// ErrNameShadowsID is returned when a runme:name equals another block's id
	ErrNameShadowsID = errors.New("block name shadows a block id")
)

// DiscoveryError aborts a run before any block executes
type DiscoveryError struct {
	Reason   string
	BlockIDs []string
	Err      error
}

func (e *DiscoveryError) Error() string {
	switch {
	case e.Reason != "":
		return "discovery failed: " + e.Reason
	case e.Err != nil:
		return "discovery failed: " + e.Err.Error()
	}
	return "discovery failed"
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
