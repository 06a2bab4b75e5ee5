package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/scoring"
)

// ResolutionService joins the ledger against the current snapshots and
// persists the leaderboard.
type ResolutionService struct {
	picks      domain.PickStore
	snapshots  domain.SnapshotStore
	scores     domain.ScoreStore
	thresholds scoring.Thresholds
	now        func() time.Time
	logger     *slog.Logger
}

// ResolutionConfig configures a ResolutionService. A zero Thresholds uses
// scoring.DefaultThresholds and a nil Now uses time.Now.
type ResolutionConfig struct {
	Picks      domain.PickStore
	Snapshots  domain.SnapshotStore
	Scores     domain.ScoreStore
	Thresholds scoring.Thresholds
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewResolutionService creates a ResolutionService.
func NewResolutionService(cfg ResolutionConfig) *ResolutionService {
	th := cfg.Thresholds
	if th == (scoring.Thresholds{}) {
		th = scoring.DefaultThresholds()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ResolutionService{
		picks:      cfg.Picks,
		snapshots:  cfg.Snapshots,
		scores:     cfg.Scores,
		thresholds: th,
		now:        now,
		logger:     cfg.Logger.With(slog.String("component", "resolution")),
	}
}

// Evaluate resolves every pick against the current snapshots without
// writing anything.
func (s *ResolutionService) Evaluate(ctx context.Context) (scoring.Result, error) {
	picks, err := s.picks.List(ctx)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("resolution: list picks: %w", err)
	}
	latest, err := s.snapshots.LatestPerInstrument(ctx)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("resolution: latest snapshots: %w", err)
	}
	return scoring.Resolve(picks, latest, s.thresholds, s.now().UTC()), nil
}

// Resolve evaluates and replaces the stored scores with the result.
// Participants that no longer have picks lose their score row.
func (s *ResolutionService) Resolve(ctx context.Context) (scoring.Result, error) {
	res, err := s.Evaluate(ctx)
	if err != nil {
		return scoring.Result{}, err
	}

	for _, d := range res.Divergences() {
		s.logger.WarnContext(ctx, "instrument join diverges from title join",
			slog.Int64("pick_id", d.Pick.ID),
			slog.String("participant", d.Pick.Participant),
			slog.String("option", d.Pick.Option),
			slog.String("instrument_id", d.Pick.MarketInstrumentID),
		)
	}

	if err := s.scores.Replace(ctx, res.Scores); err != nil {
		return scoring.Result{}, fmt.Errorf("resolution: store scores: %w", err)
	}
	s.logger.InfoContext(ctx, "scores resolved",
		slog.Int("picks", len(res.Picks)),
		slog.Int("participants", len(res.Scores)),
	)
	return res, nil
}

// Leaderboard returns the stored scores with ranks.
func (s *ResolutionService) Leaderboard(ctx context.Context) ([]scoring.Standing, error) {
	scores, err := s.scores.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolution: list scores: %w", err)
	}
	return scoring.Rank(scores), nil
}

// Breakdown returns the per-participant pick details from a fresh evaluation.
func (s *ResolutionService) Breakdown(ctx context.Context) ([]scoring.ParticipantBreakdown, error) {
	res, err := s.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return scoring.Breakdown(res.Picks), nil
}

// Thresholds returns the configured win/loss prices.
func (s *ResolutionService) Thresholds() scoring.Thresholds {
	return s.thresholds
}
