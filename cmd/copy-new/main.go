// Package main is the entry point for the copy-new application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/copy-new/internal/cancel"
	"github.com/joe/copy-new/internal/config"
	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/report"
	"github.com/joe/copy-new/internal/runner"
	"github.com/joe/copy-new/internal/tui"
	"github.com/joe/copy-new/internal/watermark"
	pkgerrors "github.com/joe/copy-new/pkg/errors"
)

// Exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitCopyFailures = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	interactive := cfg.TUI && cfg.Mode() == config.ModeOnce && term.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeLog()

	store, err := watermark.Open(cfg.WatermarkPath, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprint(os.Stderr, pkgerrors.FormatSuggestions(err))

		return exitError
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing watermark store", "path", store.Location(), "error", err)
		}
	}()

	controller := cancel.New(logger)

	ctx, stop := controller.Watch(context.Background())
	defer stop()

	logger.Debug("starting",
		"mode", cfg.Mode().String(),
		"source", cfg.SourcePath,
		"dest", cfg.DestPath,
		"watermark", store.Location(),
		"settings", cfg.SettingsFile())

	app := &app{cfg: cfg, store: store, logger: logger}

	if interactive {
		// The alt screen is torn down on exit, so the outcome is repeated on stdout
		summary, err := tui.Run(ctx, app.runWith, controller.Cancel, tui.Options{
			Source:      cfg.SourcePath,
			Dest:        cfg.DestPath,
			AltScreen:   true,
			KeepSummary: true,
			Summary:     os.Stdout,
		})

		return app.exitCode(summary, err)
	}

	app.console = report.NewConsole(os.Stdout)
	app.console.Verbose = cfg.Level() <= slog.LevelDebug

	r := runner.New(app.runOnce, logger)
	r.PollInterval = cfg.PollInterval

	switch cfg.Mode() {
	case config.ModeWatch:
		err = r.Watch(ctx, cfg.SourcePath)
	case config.ModeSchedule:
		err = r.Schedule(ctx, cfg.Schedule)
	default:
		err = r.Once(ctx)
	}

	return app.exitCode(app.last, err)
}

type app struct {
	cfg     *config.Config
	store   watermark.Store
	logger  *slog.Logger
	console *report.Console
	last    *engine.Summary

	reported error
}

func (a *app) exitCode(summary *engine.Summary, err error) int {
	if err != nil {
		// The console has already shown errors that came out of a run.
		if a.console == nil || !errors.Is(err, a.reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		return exitError
	}

	if summary != nil && summary.Failed > 0 {
		return exitCopyFailures
	}

	return exitOK
}

func (a *app) runOnce(ctx context.Context) error {
	summary, err := a.runWith(ctx, a.console)
	a.last = summary
	a.reported = err

	return err
}

func (a *app) runWith(ctx context.Context, emitter engine.EventEmitter) (*engine.Summary, error) {
	e := engine.NewEngine(a.cfg.SourcePath, a.cfg.DestPath, a.cfg.Extension, a.store)
	e.Workers = a.cfg.Workers
	e.DryRun = a.cfg.DryRun
	e.Logger = a.logger
	e.Scanner.Logger = a.logger

	if emitter != nil {
		e.SetEventEmitter(emitter)
	}

	return e.Run(ctx)
}

// newLogger writes text logs to stderr, or only to the log file while the TUI owns the terminal.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	if interactive {
		out = io.Discard
	}

	closeLog := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}

		_, _ = fmt.Fprintf(f, "=== copy-new started: %s ===\n", time.Now().Format(time.RFC3339))

		if interactive {
			out = f
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}

		closeLog = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	return logger, closeLog, nil
}
