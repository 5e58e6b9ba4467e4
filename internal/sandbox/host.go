package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chojs23/runme/internal/domain"
)

// Host spawns each line directly as a local process
type Host struct {
	config Config
	logger *slog.Logger
}

// NewHost creates a host sandbox
func NewHost(cfg Config, logger *slog.Logger) *Host {
	return &Host{config: cfg.Clone(), logger: orDiscard(logger)}
}

type hostHandle struct {
	dir string
}

func (h *hostHandle) ID() string { return "host:" + h.dir }

func (h *Host) Label() string { return string(KindHost) }

// Prepare resolves and checks the working directory
func (h *Host) Prepare(ctx context.Context) (Handle, error) {
	dir := h.config.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &Error{Op: "prepare", Err: err}
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &Error{Op: "prepare", Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &Error{Op: "prepare", Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Op: "prepare", Err: fmt.Errorf("%s is not a directory", abs)}
	}
	h.logger.Debug("host sandbox prepared", "dir", abs)
	return &hostHandle{dir: abs}, nil
}

// RunLine execs the line's argv with the inherited environment
func (h *Host) RunLine(ctx context.Context, handle Handle, line domain.CommandLine) (domain.LineResult, error) {
	hh, ok := handle.(*hostHandle)
	if !ok || hh == nil {
		return domain.LineResult{}, &Error{Op: "run", Err: ErrNotPrepared}
	}
	if line.Err != nil {
		return lexErrorResult(line), nil
	}

	h.logger.Debug("spawning", "line", line.Number, "argv", line.Argv)
	out, err := execute(ctx, line.Argv, hh.dir, h.config.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return interruptedResult(line, out), err
		}
		switch cause := startError(err); {
		case errors.Is(cause, ErrBinaryNotFound), errors.Is(cause, ErrPermissionDenied):
			return domain.LineResult{}, &Error{Op: "run", Err: cause, Detail: line.Argv[0]}
		default:
			return domain.LineResult{}, &Error{Op: "run", Err: err}
		}
	}
	return lineResult(line, out), nil
}

func (h *Host) Cleanup(ctx context.Context, handle Handle) error {
	return nil
}
