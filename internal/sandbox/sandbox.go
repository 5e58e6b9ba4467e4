// Package sandbox executes command lines either directly on the host or
// inside an ephemeral container. A Sandbox only returns an error when it
// cannot attempt execution at all; a command's non-zero exit is a normal
// LineResult.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/chojs23/runme/internal/domain"
)

// Kind selects the sandbox variant
type Kind string

const (
	KindHost      Kind = "host"
	KindContainer Kind = "docker"
	KindWasm      Kind = "wasm"
)

const (
	// DefaultImage is used when no image is configured anywhere
	DefaultImage = "ubuntu:22.04"
	// DefaultEngine is the container engine binary
	DefaultEngine = "docker"
	// DefaultNetwork isolates containers from the network
	DefaultNetwork = "none"
	// ContainerWorkdir is where the document directory is mounted
	ContainerWorkdir = "/workspace"
)

// ParseKind accepts "host", "docker", "container" and "wasm"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "host", "local":
		return KindHost, nil
	case "docker", "container":
		return KindContainer, nil
	case "wasm":
		return KindWasm, nil
	}
	return "", fmt.Errorf("unknown sandbox %q (expected host, docker or wasm)", s)
}

// Config is resolved once per invocation and never mutated afterwards
type Config struct {
	Kind      Kind
	Image     string
	Engine    string
	ExtraArgs []string
	// WorkDir is the host directory commands run in, and the directory
	// mounted into containers
	WorkDir string
	// Timeout bounds each line; zero means unbounded. In a container only
	// the engine client is killed when it expires; the process inside keeps
	// running until Cleanup removes the container at the end of the block.
	Timeout time.Duration
	Network string
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Kind:    KindHost,
		Image:   DefaultImage,
		Engine:  DefaultEngine,
		Network: DefaultNetwork,
	}
}

// Clone returns a deep copy so callers cannot share ExtraArgs
func (c Config) Clone() Config {
	c.ExtraArgs = slices.Clone(c.ExtraArgs)
	return c
}

// Validate checks the fields required by the selected kind
func (c Config) Validate() error {
	switch c.Kind {
	case KindHost, KindWasm:
	case KindContainer:
		if c.Image == "" {
			return fmt.Errorf("docker sandbox requires an image")
		}
		if c.Engine == "" {
			return fmt.Errorf("docker sandbox requires an engine binary")
		}
	default:
		return fmt.Errorf("unknown sandbox kind %q", c.Kind)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Handle is the per-block resource returned by Prepare
type Handle interface {
	ID() string
}

// Sandbox executes the lines of one block at a time. The coordinator owns
// the Handle between Prepare and Cleanup and always calls Cleanup.
type Sandbox interface {
	// Label identifies the backend in results, e.g. "host" or "docker:alpine:3.20"
	Label() string
	Prepare(ctx context.Context) (Handle, error)
	RunLine(ctx context.Context, h Handle, line domain.CommandLine) (domain.LineResult, error)
	Cleanup(ctx context.Context, h Handle) error
}

// New builds the sandbox selected by cfg
func New(cfg Config, logger *slog.Logger) (Sandbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindContainer:
		return NewContainer(cfg, &CLIEngine{Binary: cfg.Engine}, logger), nil
	case KindWasm:
		return NewFallback(cfg, logger), nil
	default:
		return NewHost(cfg, logger), nil
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
