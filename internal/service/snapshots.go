package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// SnapshotService is the market snapshot history.
type SnapshotService struct {
	snapshots domain.SnapshotStore
	now       func() time.Time
	logger    *slog.Logger
}

// NewSnapshotService creates a SnapshotService. now defaults to time.Now.
func NewSnapshotService(snapshots domain.SnapshotStore, now func() time.Time, logger *slog.Logger) *SnapshotService {
	if now == nil {
		now = time.Now
	}
	return &SnapshotService{
		snapshots: snapshots,
		now:       now,
		logger:    logger.With(slog.String("component", "snapshots")),
	}
}

// Append stores obs as one batch sharing a single observation time, which is
// returned. Identical batches are stored again; history only grows.
func (s *SnapshotService) Append(ctx context.Context, obs []domain.MarketObservation) (time.Time, error) {
	observedAt := s.now().UTC()
	if len(obs) == 0 {
		return observedAt, nil
	}
	if err := s.snapshots.AppendBatch(ctx, obs, observedAt); err != nil {
		return time.Time{}, fmt.Errorf("snapshots: append: %w", err)
	}
	s.logger.DebugContext(ctx, "snapshot appended",
		slog.Int("rows", len(obs)),
		slog.Time("observed_at", observedAt),
	)
	return observedAt, nil
}

// History returns every observation of an event group, oldest first.
func (s *SnapshotService) History(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	rows, err := s.snapshots.ListByEventGroup(ctx, eventGroupID)
	if err != nil {
		return nil, fmt.Errorf("snapshots: history %s: %w", eventGroupID, err)
	}
	return rows, nil
}

// Latest returns the most recent observation slice of an event group.
func (s *SnapshotService) Latest(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	rows, err := s.History(ctx, eventGroupID)
	if err != nil {
		return nil, err
	}
	return domain.LatestSlice(rows), nil
}

// LatestPerInstrument returns the current row of every instrument.
func (s *SnapshotService) LatestPerInstrument(ctx context.Context) (map[string]domain.MarketSnapshot, error) {
	latest, err := s.snapshots.LatestPerInstrument(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshots: latest per instrument: %w", err)
	}
	return latest, nil
}

// All returns the full history across event groups.
func (s *SnapshotService) All(ctx context.Context) ([]domain.MarketSnapshot, error) {
	rows, err := s.snapshots.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshots: list all: %w", err)
	}
	return rows, nil
}
