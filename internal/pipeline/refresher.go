package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/service"
)

// MarketRefresher appends one snapshot batch per call.
type MarketRefresher interface {
	RefreshMarkets(ctx context.Context) (service.RefreshResult, error)
}

// Refresher drives the market refresh on an interval. It is the only
// scheduler in the system; the refresh itself is synchronous.
type Refresher struct {
	league MarketRefresher
	logger *slog.Logger
}

// NewRefresher creates a new Refresher.
func NewRefresher(league MarketRefresher, logger *slog.Logger) *Refresher {
	return &Refresher{
		league: league,
		logger: logger.With(slog.String("component", "refresher")),
	}
}

// Run executes a single refresh.
func (r *Refresher) Run(ctx context.Context) error {
	res, err := r.league.RefreshMarkets(ctx)
	if err != nil {
		return fmt.Errorf("refresh markets: %w", err)
	}
	r.logger.InfoContext(ctx, "markets refreshed",
		slog.Int("rows", res.Rows),
		slog.Time("observed_at", res.ObservedAt),
	)
	return nil
}

// RunLoop refreshes immediately and then on every tick until ctx is
// cancelled. Gateway faults and a busy write lock are logged and retried on
// the next tick.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresher: interval must be positive, got %s", interval)
	}

	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	err := r.Run(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, domain.ErrGatewayFault), errors.Is(err, domain.ErrLockHeld):
		r.logger.WarnContext(ctx, "market refresh skipped", slog.String("error", err.Error()))
	default:
		r.logger.ErrorContext(ctx, "market refresh failed", slog.String("error", err.Error()))
	}
}
