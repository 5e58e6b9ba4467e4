package main

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chojs23/runme/internal/config"
)

// DefaultDocument is run when no file argument is given
const DefaultDocument = "README.md"

// options holds flag values and the process environment for one invocation
type options struct {
	configPath   string
	block        string
	overrides    config.Overrides
	historyLimit int

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func newRootCommand(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	o := &options{stdout: stdout, stderr: stderr, getenv: getenv}

	rootCmd := &cobra.Command{
		Use:   "runme [FILE]",
		Short: "Run the shell snippets in a Markdown document",
		Long: `runme executes the shell code blocks of a Markdown document, line by line,
on the host or in a throwaway container, and reports which snippets no longer work.

Blocks can be named with runme:name=<name> and excluded with runme:ignore, either in
the fence info string or in an HTML comment right above the fence.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          o.runRun,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file path (default .runme.toml beside FILE, then ~/.config/runme/config.toml)")
	flags.StringVarP(&o.block, "block", "b", "", "only this block (id or name)")
	flags.StringVar(&o.overrides.Sandbox, "sandbox", "", "where commands run: host, docker or wasm (host fallback)")
	flags.StringVar(&o.overrides.Image, "docker-image", "", "container image for --sandbox docker")
	flags.StringArrayVar(&o.overrides.ExtraArgs, "docker-arg", nil, "extra argument for the container run command (repeatable)")
	flags.StringVar(&o.overrides.Engine, "container-engine", "", "container CLI binary (docker, podman)")
	flags.StringVar(&o.overrides.Timeout, "timeout", "", "per-line timeout, e.g. 30s (0 = none)")
	flags.StringVar(&o.overrides.Format, "format", "", "output format: human or json")
	flags.StringVar(&o.overrides.Color, "color", "", "color output: auto, always or never")
	flags.BoolVar(&o.overrides.Record, "record", false, "append this run to the history database")
	flags.StringVar(&o.overrides.LogLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	flags.StringVar(&o.overrides.LogFormat, "log-format", "", "diagnostic log format: text or json")

	// run command
	runCmd := &cobra.Command{
		Use:   "run [FILE]",
		Short: "Run the document's shell blocks (default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.runRun,
	}
	rootCmd.AddCommand(runCmd)

	// list command
	listCmd := &cobra.Command{
		Use:   "list [FILE]",
		Short: "List discovered blocks without running them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.runList,
	}
	rootCmd.AddCommand(listCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch [FILE]",
		Short: "Re-run the document whenever it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.runWatch,
	}
	watchCmd.Flags().StringVar(&o.overrides.Schedule, "schedule", "", `also run on a cron schedule, e.g. "*/30 * * * *"`)
	rootCmd.AddCommand(watchCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Args:  cobra.NoArgs,
		RunE:  o.runHistory,
	}
	historyCmd.Flags().IntVarP(&o.historyLimit, "limit", "n", 20, "number of runs to show (0 = all)")
	rootCmd.AddCommand(historyCmd)

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd
}

func documentArg(args []string) string {
	if len(args) == 0 {
		return DefaultDocument
	}
	return args[0]
}

// terminalWidth reads COLUMNS, returning 0 (no truncation) when unset
func (o *options) terminalWidth() int {
	w, err := strconv.Atoi(o.getenv("COLUMNS"))
	if err != nil || w < 0 {
		return 0
	}
	return w
}
