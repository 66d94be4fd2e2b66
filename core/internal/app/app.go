// Package app wires a host event source to the report workflow.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"demos-to-discord/core/internal/config"
	"demos-to-discord/core/internal/version"
	"demos-to-discord/core/internal/workflow"
	"demos-to-discord/delivery"
	"demos-to-discord/demos"
	"demos-to-discord/evidence"
	"demos-to-discord/host"
)

type ReportHandler interface {
	Handle(ctx context.Context, evt host.ReportEvent) workflow.Result
}

type StartupChecker interface {
	SendStartup(ctx context.Context) error
}

// App runs one workflow goroutine per report event.
type App struct {
	logger  *zap.Logger
	handler ReportHandler
	startup StartupChecker

	workflows sync.WaitGroup

	client  *delivery.Client
	journal *workflow.Journal
}

// New subscribes to source. startup may be nil.
func New(logger *zap.Logger, source host.EventSource, handler ReportHandler, startup StartupChecker) *App {
	a := &App{
		logger:  logger.Named("app"),
		handler: handler,
		startup: startup,
	}
	source.OnLoad(a.onLoad)
	source.OnReport(a.onReport)
	return a
}

// Build assembles the production components from cfg and subscribes them to
// source.
func Build(logger *zap.Logger, cfg config.Config, source host.EventSource) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var journal *workflow.Journal
	if cfg.JournalPath != "" {
		journal, err = workflow.OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
	}

	client := delivery.New(logger, delivery.Config{
		WebhookURL:  cfg.Webhook,
		WebfrontURL: cfg.WebfrontURL,
		Version:     version.Version,
	})
	orch := workflow.New(logger, workflow.OptionsFromConfig(cfg), workflow.Deps{
		Matcher:    demos.NewMatcher(logger, cfg.Lookback(), loc),
		Stabilizer: evidence.NewDetector(logger),
		Deliverer:  client,
		Journal:    journal,
	})

	a := New(logger, source, orch, client)
	a.client = client
	a.journal = journal

	logger.Info("DemosToDiscord ready",
		zap.String("version", version.Version),
		zap.String("webhook", delivery.RedactURL(cfg.Webhook)),
		zap.String("t5_demo_path", cfg.T5DemoPath),
		zap.String("t6_demo_path", cfg.T6DemoPath),
		zap.Int("max_lookback_minutes", cfg.MaxLookbackMinutes),
		zap.Int("max_wait_minutes", cfg.MaxWaitMinutes),
		zap.String("demo_timezone", loc.String()),
	)
	if cfg.Webhook == "" {
		logger.Warn("Webhook not configured, notifications are disabled")
	}
	return a, nil
}

func (a *App) onLoad(ctx context.Context) {
	if a.startup == nil {
		return
	}
	if err := a.startup.SendStartup(ctx); err != nil {
		a.logger.Warn("Startup check failed", zap.Error(err))
	}
}

func (a *App) onReport(ctx context.Context, evt host.ReportEvent) {
	a.workflows.Add(1)
	go func() {
		defer a.workflows.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("Workflow panicked", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()

		res := a.handler.Handle(ctx, evt)
		a.logger.Debug("Workflow done", zap.String("run_id", res.RunID), zap.String("state", string(res.State)))
	}()
}

// Wait blocks until every running workflow has finished.
func (a *App) Wait() {
	a.workflows.Wait()
}

// Shutdown waits for workflows and pending cleanups, then closes the
// journal.
func (a *App) Shutdown() error {
	a.Wait()
	if a.client != nil {
		a.client.Wait()
	}
	if err := a.journal.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
