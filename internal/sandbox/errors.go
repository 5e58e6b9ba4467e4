package sandbox

import (
	"errors"
	"io/fs"
	"os/exec"
)

var (
	ErrEngineUnavailable = errors.New("container engine unavailable")
	ErrImageUnavailable  = errors.New("container image unavailable")
	ErrBinaryNotFound    = errors.New("executable not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotPrepared       = errors.New("sandbox not prepared")
)

// Error is an infrastructure failure: the sandbox could not attempt to
// run the command at all
type Error struct {
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSandboxError reports whether err is an infrastructure failure
func IsSandboxError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// startError classifies a failure to spawn a process
func startError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrBinaryNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	}
	return err
}
