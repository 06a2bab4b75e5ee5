// Package pipeline schedules the league's background work: the periodic
// market refresh and the optional cold-storage export.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the refresh loop and, when configured, the archive cron.
type Orchestrator struct {
	refresher       *Refresher
	archiver        *Archiver
	refreshInterval time.Duration
	archiveCron     string
	logger          *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. archiver may be nil, and a
// zero refreshInterval disables the refresh loop.
func NewOrchestrator(
	refresher *Refresher,
	archiver *Archiver,
	refreshInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		refresher:       refresher,
		archiver:        archiver,
		refreshInterval: refreshInterval,
		archiveCron:     archiveCron,
		logger:          logger.With(slog.String("component", "pipeline")),
	}
}

// Run starts every configured loop and blocks until ctx is cancelled or one
// of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("refresh_interval", o.refreshInterval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.refresher != nil && o.refreshInterval > 0 {
		g.Go(func() error {
			err := o.refresher.RunLoop(ctx, o.refreshInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("refresher: %w", err)
		})
	}

	if o.archiver != nil && o.archiveCron != "" {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
