package config

import (
	"fmt"
	"path/filepath"

	"github.com/google/shlex"

	"github.com/chojs23/runme/internal/parser"
	"github.com/chojs23/runme/internal/report"
	"github.com/chojs23/runme/internal/sandbox"
)

// Environment variables consulted by ApplyEnv
const (
	EnvSandbox         = "RUNME_SANDBOX"
	EnvDockerImage     = "RUNME_DOCKER_IMAGE"
	EnvDockerArgs      = "RUNME_DOCKER_ARGS"
	EnvContainerEngine = "RUNME_CONTAINER_ENGINE"
	EnvTimeout         = "RUNME_TIMEOUT"
	EnvFormat          = "RUNME_FORMAT"
	EnvLogLevel        = "RUNME_LOG_LEVEL"
)

// Overrides are values given explicitly on the command line. Empty fields
// leave the lower layers untouched.
type Overrides struct {
	Sandbox   string
	Image     string
	Engine    string
	ExtraArgs []string
	Timeout   string
	Format    string
	Color     string
	Record    bool
	LogLevel  string
	LogFormat string
	Schedule  string
}

// ApplyFrontmatter layers document settings over the config file
func (c *Config) ApplyFrontmatter(s parser.Settings) error {
	setIf(&c.Sandbox.Kind, s.Sandbox)
	setIf(&c.Sandbox.Image, s.Image)
	if s.Timeout != "" {
		d, err := ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("frontmatter runme.timeout: %w", err)
		}
		c.Sandbox.Timeout = Duration{d}
	}
	return nil
}

// ApplyEnv layers environment variables over file and document settings
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setIf(&c.Sandbox.Kind, getenv(EnvSandbox))
	setIf(&c.Sandbox.Image, getenv(EnvDockerImage))
	setIf(&c.Sandbox.Engine, getenv(EnvContainerEngine))
	setIf(&c.Report.Format, getenv(EnvFormat))
	setIf(&c.Log.Level, getenv(EnvLogLevel))

	if v := getenv(EnvDockerArgs); v != "" {
		args, err := shlex.Split(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDockerArgs, err)
		}
		c.Sandbox.ExtraArgs = args
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Sandbox.Timeout = Duration{d}
	}
	return nil
}

// Apply layers command-line flags over everything else
func (c *Config) Apply(o Overrides) error {
	setIf(&c.Sandbox.Kind, o.Sandbox)
	setIf(&c.Sandbox.Image, o.Image)
	setIf(&c.Sandbox.Engine, o.Engine)
	setIf(&c.Report.Format, o.Format)
	setIf(&c.Report.Color, o.Color)
	setIf(&c.Log.Level, o.LogLevel)
	setIf(&c.Log.Format, o.LogFormat)
	setIf(&c.Watch.Schedule, o.Schedule)
	if len(o.ExtraArgs) > 0 {
		c.Sandbox.ExtraArgs = append([]string{}, o.ExtraArgs...)
	}
	if o.Timeout != "" {
		d, err := ParseDuration(o.Timeout)
		if err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
		c.Sandbox.Timeout = Duration{d}
	}
	if o.Record {
		c.History.Enabled = true
	}
	return nil
}

// SandboxFor builds the immutable sandbox configuration for a document.
// Commands run in the document's directory.
func (c *Config) SandboxFor(document string) (sandbox.Config, error) {
	kind, err := sandbox.ParseKind(c.Sandbox.Kind)
	if err != nil {
		return sandbox.Config{}, err
	}
	dir := "."
	if document != "" {
		dir = filepath.Dir(document)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return sandbox.Config{}, err
	}

	cfg := sandbox.Config{
		Kind:      kind,
		Image:     c.Sandbox.Image,
		Engine:    c.Sandbox.Engine,
		ExtraArgs: append([]string{}, c.Sandbox.ExtraArgs...),
		WorkDir:   abs,
		Timeout:   c.Sandbox.Timeout.Duration,
		Network:   c.Sandbox.Network,
	}
	if err := cfg.Validate(); err != nil {
		return sandbox.Config{}, err
	}
	return cfg, nil
}

// Output returns the validated report format and color mode
func (c *Config) Output() (report.Format, report.ColorMode, error) {
	format, err := report.ParseFormat(c.Report.Format)
	if err != nil {
		return "", "", err
	}
	color, err := report.ParseColorMode(c.Report.Color)
	if err != nil {
		return "", "", err
	}
	return format, color, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
