package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/chojs23/runme/internal/report"
	"github.com/chojs23/runme/internal/sandbox"
)

// ProjectConfigName is looked up next to the document being run
const ProjectConfigName = ".runme.toml"

// Config holds all application configuration
type Config struct {
	Sandbox       SandboxConfig       `toml:"sandbox"`
	Report        ReportConfig        `toml:"report"`
	History       HistoryConfig       `toml:"history"`
	Watch         WatchConfig         `toml:"watch"`
	Notifications NotificationsConfig `toml:"notifications"`
	Log           LogConfig           `toml:"log"`
}

// SandboxConfig holds execution settings
type SandboxConfig struct {
	Kind      string   `toml:"kind"`
	Image     string   `toml:"image"`
	Engine    string   `toml:"engine"`
	ExtraArgs []string `toml:"extra_args"`
	Timeout   Duration `toml:"timeout"`
	Network   string   `toml:"network"`
}

// ReportConfig holds output settings
type ReportConfig struct {
	Format string `toml:"format"`
	Color  string `toml:"color"`
}

// HistoryConfig holds run log settings
type HistoryConfig struct {
	Enabled      bool   `toml:"enabled"`
	DatabasePath string `toml:"database_path"`
}

// WatchConfig holds watch mode settings
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
	Schedule string   `toml:"schedule"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// LogConfig holds diagnostic logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as "30s" or "1m30s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDuration accepts Go durations, a bare number of seconds, or "0"/"none"
// for unbounded
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "0", "none", "off":
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("duration %q must not be negative", s)
		}
		return d, nil
	}
	if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Sandbox: SandboxConfig{
			Kind:    string(sandbox.KindHost),
			Image:   sandbox.DefaultImage,
			Engine:  sandbox.DefaultEngine,
			Network: sandbox.DefaultNetwork,
		},
		Report: ReportConfig{
			Format: string(report.FormatHuman),
			Color:  string(report.ColorAuto),
		},
		History: HistoryConfig{
			DatabasePath: filepath.Join(home, ".runme", "history.db"),
		},
		Watch: WatchConfig{
			Debounce: Duration{500 * time.Millisecond},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Expand paths
	cfg.History.DatabasePath = ExpandPath(cfg.History.DatabasePath)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "runme", "config.toml")
}

// ResolvePath picks the config file for a document: an explicit path, else
// .runme.toml beside the document, else the user config
func ResolvePath(explicit, document string) string {
	if explicit != "" {
		return ExpandPath(explicit)
	}
	if document != "" {
		project := filepath.Join(filepath.Dir(document), ProjectConfigName)
		if _, err := os.Stat(project); err == nil {
			return project
		}
	}
	return DefaultConfigPath()
}
