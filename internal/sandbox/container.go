package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chojs23/runme/internal/domain"
)

const cleanupTimeout = 30 * time.Second

// Engine runs container engine subcommands such as "run" or "exec".
// A returned error means the engine could not be invoked at all.
type Engine interface {
	Name() string
	Command(ctx context.Context, args []string, timeout time.Duration) (Output, error)
}

// CLIEngine drives a docker-compatible command line (docker, podman, nerdctl)
type CLIEngine struct {
	Binary string
}

func (e *CLIEngine) Name() string {
	return filepath.Base(e.Binary)
}

func (e *CLIEngine) Command(ctx context.Context, args []string, timeout time.Duration) (Output, error) {
	return execute(ctx, append([]string{e.Binary}, args...), "", timeout)
}

// Container runs every line of a block inside one ephemeral container, so
// files written by earlier lines are visible to later ones
type Container struct {
	config Config
	engine Engine
	logger *slog.Logger
}

// NewContainer creates a container sandbox on top of engine
func NewContainer(cfg Config, engine Engine, logger *slog.Logger) *Container {
	cfg = cfg.Clone()
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	return &Container{config: cfg, engine: engine, logger: orDiscard(logger)}
}

type containerHandle struct {
	id   string
	name string
}

func (h *containerHandle) ID() string { return h.id }

func (c *Container) Label() string {
	return c.engine.Name() + ":" + c.config.Image
}

// Prepare starts a detached container with the working directory mounted at
// /workspace. Extra arguments are passed to the engine verbatim.
func (c *Container) Prepare(ctx context.Context) (Handle, error) {
	dir := c.config.WorkDir
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

	name := "runme-" + uuid.NewString()
	args := []string{
		"run", "-d", "--rm",
		"--name", name,
		"--network=" + c.config.Network,
		"-v", abs + ":" + ContainerWorkdir,
		"-w", ContainerWorkdir,
		"--entrypoint", "tail",
	}
	args = append(args, c.config.ExtraArgs...)
	args = append(args, c.config.Image, "-f", "/dev/null")

	c.logger.Debug("starting container", "engine", c.engine.Name(), "image", c.config.Image, "name", name)
	out, err := c.engine.Command(ctx, args, 0)
	if ctx.Err() != nil {
		// the engine may have created the container before it was stopped
		if rmErr := c.remove(ctx, name); rmErr != nil {
			c.logger.Warn("removing container after interrupted start failed", "name", name, "error", rmErr)
		}
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, c.invokeError("prepare", err)
	}
	if out.ExitCode != 0 {
		return nil, &Error{Op: "prepare", Err: classifyEngineFailure(out.Stderr), Detail: firstLine(out.Stderr)}
	}

	id := strings.TrimSpace(out.Stdout)
	if id == "" {
		id = name
	}
	c.logger.Debug("container started", "id", id)
	return &containerHandle{id: id, name: name}, nil
}

// RunLine execs the line's argv inside the running container
func (c *Container) RunLine(ctx context.Context, handle Handle, line domain.CommandLine) (domain.LineResult, error) {
	ch, ok := handle.(*containerHandle)
	if !ok || ch == nil {
		return domain.LineResult{}, &Error{Op: "run", Err: ErrNotPrepared}
	}
	if line.Err != nil {
		return lexErrorResult(line), nil
	}

	args := append([]string{"exec", "-w", ContainerWorkdir, ch.id}, line.Argv...)
	c.logger.Debug("exec in container", "id", ch.id, "line", line.Number, "argv", line.Argv)
	out, err := c.engine.Command(ctx, args, c.config.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return interruptedResult(line, out), err
		}
		return domain.LineResult{}, c.invokeError("run", err)
	}

	if !out.TimedOut && out.ExitCode != 0 {
		if cause := classifyExecFailure(out); cause != nil {
			return domain.LineResult{}, &Error{Op: "run", Err: cause, Detail: firstLine(out.Stderr)}
		}
	}
	return lineResult(line, out), nil
}

// Cleanup removes the container. It runs even when ctx has been canceled.
func (c *Container) Cleanup(ctx context.Context, handle Handle) error {
	ch, ok := handle.(*containerHandle)
	if !ok || ch == nil {
		return nil
	}

	c.logger.Debug("removing container", "id", ch.id)
	return c.remove(ctx, ch.id)
}

// remove force-removes a container by id or name. It ignores cancellation of
// ctx and treats an already missing container as removed.
func (c *Container) remove(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	out, err := c.engine.Command(ctx, []string{"rm", "-f", ref}, 0)
	if err != nil {
		return c.invokeError("cleanup", err)
	}
	if out.ExitCode != 0 && !strings.Contains(strings.ToLower(out.Stderr), "no such container") {
		return &Error{Op: "cleanup", Err: classifyEngineFailure(out.Stderr), Detail: firstLine(out.Stderr)}
	}
	return nil
}

func (c *Container) invokeError(op string, err error) error {
	if errors.Is(startError(err), ErrBinaryNotFound) {
		return &Error{Op: op, Err: ErrEngineUnavailable, Detail: fmt.Sprintf("%s: executable not found", c.engine.Name())}
	}
	if errors.Is(startError(err), ErrPermissionDenied) {
		return &Error{Op: op, Err: ErrPermissionDenied, Detail: c.engine.Name()}
	}
	return &Error{Op: op, Err: err}
}

// classifyEngineFailure maps engine stderr to a sandbox sentinel
func classifyEngineFailure(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "unable to find image"),
		strings.Contains(s, "pull access denied"),
		strings.Contains(s, "manifest unknown"),
		strings.Contains(s, "repository does not exist"):
		return ErrImageUnavailable
	case strings.Contains(s, "permission denied"):
		return ErrPermissionDenied
	}
	return ErrEngineUnavailable
}

// classifyExecFailure separates engine failures from the command's own
// non-zero exit. The engine reports an exec it could not start with 126 or
// 127; a script's own 127 from a nested shell stays a normal failure.
func classifyExecFailure(out Output) error {
	s := strings.ToLower(out.Stderr)
	switch {
	case (out.ExitCode == 126 || out.ExitCode == 127) && strings.Contains(s, "executable file not found"):
		return ErrBinaryNotFound
	case out.ExitCode == 126 && strings.Contains(s, "permission denied"):
		return ErrPermissionDenied
	case strings.Contains(s, "cannot connect to the docker daemon"),
		strings.Contains(s, "error response from daemon"):
		return ErrEngineUnavailable
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
