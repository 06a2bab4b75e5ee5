package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// Archiver exports the league tables to cold storage on a schedule.
type Archiver struct {
	blobArchiver domain.Archiver
	logger       *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver: blobArchiver,
		logger:       logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single export.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting archive run")

	res, err := a.blobArchiver.Export(ctx)
	if err != nil {
		return fmt.Errorf("archive export: %w", err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.String("run_id", res.RunID),
		slog.Int("picks", res.Counts["picks"]),
		slog.Int("market_snapshots", res.Counts["market_snapshots"]),
		slog.Int("scores", res.Counts["scores"]),
	)
	return nil
}

// RunCron runs the archiver on a 5-field cron schedule (UTC) until ctx is
// cancelled, e.g. "0 6 * * *" for every morning at 06:00.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := ParseCron(cronExpr)
	if err != nil {
		return err
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.Next(time.Now().UTC())
		if err != nil {
			return fmt.Errorf("archiver: %w", err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
