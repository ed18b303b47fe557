package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peteski22/sitebridge/internal/config"
)

// handler runs one sync cycle per scheduled invocation.
func handler(ctx context.Context) error {
	logger := slog.Default()
	logger.InfoContext(ctx, "starting sync")

	settings, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	b, err := newAWSBackend(ctx, settings)
	if err != nil {
		return fmt.Errorf("creating AWS backend: %w", err)
	}

	svc, err := newService(settings, b, serviceOptions{
		dryRun:   settings.Sync.DryRun,
		logger:   logger,
		parallel: settings.Sync.Parallel,
	})
	if err != nil {
		return fmt.Errorf("creating sync service: %w", err)
	}

	results := svc.RunCycle(ctx)
	logResults(logger, results)

	report := svc.Report(ctx)
	logger.InfoContext(ctx, "sync complete",
		"health", report.Status.Health,
		"active_connections", report.Status.ActiveConnections,
		"total_providers", report.Status.TotalProviders,
		"recommendations", report.Recommendations)

	return nil
}
