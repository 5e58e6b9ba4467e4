package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/chojs23/runme/internal/config"
	"github.com/chojs23/runme/internal/domain"
	"github.com/chojs23/runme/internal/history"
	"github.com/chojs23/runme/internal/logging"
	"github.com/chojs23/runme/internal/notify"
	"github.com/chojs23/runme/internal/parser"
	"github.com/chojs23/runme/internal/report"
	"github.com/chojs23/runme/internal/runner"
	"github.com/chojs23/runme/internal/sandbox"
	"github.com/chojs23/runme/internal/watch"
)

// settings resolves configuration without a document (history)
func (o *options) settings() (*config.Config, error) {
	cfg, err := config.Load(config.ResolvePath(o.configPath, ""))
	if err != nil {
		return nil, usageError(err)
	}
	if err := o.layer(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load discovers the document and resolves configuration for it:
// flags > env > frontmatter > config file > defaults
func (o *options) load(path string) (*parser.Document, *config.Config, error) {
	cfg, err := config.Load(config.ResolvePath(o.configPath, path))
	if err != nil {
		return nil, nil, usageError(err)
	}

	doc, err := parser.DiscoverFile(path, parser.ExtractOptions{})
	if err != nil {
		return nil, nil, usageError(err)
	}
	if err := cfg.ApplyFrontmatter(doc.Frontmatter.Runme); err != nil {
		return nil, nil, usageError(err)
	}
	if err := o.layer(cfg); err != nil {
		return nil, nil, err
	}
	return doc, cfg, nil
}

func (o *options) layer(cfg *config.Config) error {
	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return usageError(err)
	}
	if err := cfg.Apply(o.overrides); err != nil {
		return usageError(err)
	}
	return nil
}

func (o *options) logger(cfg *config.Config) *slog.Logger {
	return logging.New(o.stderr, cfg.Log.Level, cfg.Log.Format)
}

func (o *options) runRun(cmd *cobra.Command, args []string) error {
	_, code, err := o.runDocument(cmd.Context(), documentArg(args))
	if err != nil {
		return err
	}
	if code != report.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// runDocument performs one full invocation: discover, select, execute,
// report and optionally record. Usage problems come back as an error; run
// outcomes come back as an exit code.
func (o *options) runDocument(ctx context.Context, path string) (*domain.RunReport, int, error) {
	doc, cfg, err := o.load(path)
	if err != nil {
		return nil, report.ExitUsage, err
	}
	logger := o.logger(cfg)

	blocks, err := runner.Select(doc.Blocks, o.block)
	if err != nil {
		return nil, report.ExitUsage, usageError(err)
	}
	sbCfg, err := cfg.SandboxFor(path)
	if err != nil {
		return nil, report.ExitUsage, usageError(err)
	}
	format, color, err := cfg.Output()
	if err != nil {
		return nil, report.ExitUsage, usageError(err)
	}
	sb, err := sandbox.New(sbCfg, logger)
	if err != nil {
		return nil, report.ExitUsage, usageError(err)
	}

	logger.Debug("running document", "path", path, "blocks", len(blocks), "sandbox", sb.Label())
	rep := report.New(format, o.stdout, o.stderr, color)
	result := runner.New(sb, rep, logger).Run(ctx, path, blocks)
	if err := rep.Finish(result); err != nil {
		return result, report.ExitUsage, err
	}

	code := report.ReportExitCode(result)
	if cfg.History.Enabled {
		if err := record(cfg.History.DatabasePath, result, code); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}
	return result, code, nil
}

func record(dbPath string, result *domain.RunReport, code int) error {
	store, err := history.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(result, code)
	return err
}

func (o *options) runList(cmd *cobra.Command, args []string) error {
	path := documentArg(args)
	doc, cfg, err := o.load(path)
	if err != nil {
		return err
	}
	blocks, err := runner.Select(doc.Blocks, o.block)
	if err != nil {
		return usageError(err)
	}
	format, _, err := cfg.Output()
	if err != nil {
		return usageError(err)
	}
	return report.RenderList(o.stdout, path, blocks, format, o.terminalWidth())
}

func (o *options) runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := o.settings()
	if err != nil {
		return err
	}
	format, _, err := cfg.Output()
	if err != nil {
		return usageError(err)
	}

	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(o.historyLimit)
	if err != nil {
		return err
	}
	return report.RenderHistory(o.stdout, runs, format)
}

// runWatch re-runs the document on every change. Each trigger re-reads the
// document and configuration; a broken document is reported and watching
// continues. Interrupting the watcher is a normal exit.
func (o *options) runWatch(cmd *cobra.Command, args []string) error {
	path := documentArg(args)
	_, cfg, err := o.load(path)
	if err != nil {
		return err
	}
	logger := o.logger(cfg)

	w, err := watch.New(path, watch.Options{
		Debounce: cfg.Watch.Debounce.Duration,
		Schedule: cfg.Watch.Schedule,
		Logger:   logger,
	})
	if err != nil {
		return usageError(err)
	}

	tracker := notify.NewTracker(notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	))

	fmt.Fprintf(o.stderr, "Watching %s (Ctrl-C to stop)\n", w.Path())
	err = w.Run(cmd.Context(), func(ctx context.Context, t watch.Trigger) error {
		if t.Reason != watch.ReasonInitial {
			fmt.Fprintf(o.stderr, "\n--- %s run at %s ---\n", t.Reason, t.At.Format(time.Kitchen))
		}
		result, code, err := o.runDocument(ctx, path)
		if err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Code == report.ExitUsage {
				fmt.Fprintln(o.stderr, exitErr.Message)
				return nil
			}
			return err
		}
		if _, err := tracker.Observe(result, code); err != nil {
			logger.Warn("notification failed", "error", err)
		}
		return nil
	})
	if err != nil {
		return usageError(err)
	}
	return nil
}
