package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/scoring"
	"github.com/alanyoungcy/mentionleague/internal/service"
)

// League is the part of the league service the HTTP API needs. It is
// declared here so handlers can be tested against a stub.
type League interface {
	Validate(rows []domain.SubmissionRow) []domain.ValidationFailure
	LockIn(ctx context.Context, rows []domain.SubmissionRow) (service.LockResult, error)
	ClearPicks(ctx context.Context) (int64, error)
	Picks(ctx context.Context) ([]domain.Pick, error)
	Options(category domain.Category) []domain.CanonicalOption
	Aliases() []domain.AliasEntry
	EventGroup(category domain.Category) (string, bool)

	RefreshMarkets(ctx context.Context) (service.RefreshResult, error)
	History(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error)
	Latest(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error)
	LatestPerInstrument(ctx context.Context) ([]domain.MarketSnapshot, error)
	ChartSeries(ctx context.Context, category domain.Category, pickedOnly bool) ([]domain.MarketSnapshot, error)

	Finalize(ctx context.Context) (service.FinalizeResult, error)
	Resolve(ctx context.Context) (scoring.Result, error)
	Leaderboard(ctx context.Context) ([]scoring.Standing, error)
	Breakdown(ctx context.Context) ([]scoring.ParticipantBreakdown, error)
	Events(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
}

// ChartRenderer draws a price history image.
type ChartRenderer interface {
	PriceHistory(title string, history []domain.MarketSnapshot) ([]byte, error)
}

// LeagueHandler serves the league endpoints.
type LeagueHandler struct {
	league   League
	charts   ChartRenderer
	archiver domain.Archiver
	logger   *slog.Logger
}

// NewLeagueHandler creates a LeagueHandler. archiver may be nil, in which
// case the archive endpoint answers 503.
func NewLeagueHandler(league League, charts ChartRenderer, archiver domain.Archiver, logger *slog.Logger) *LeagueHandler {
	return &LeagueHandler{
		league:   league,
		charts:   charts,
		archiver: archiver,
		logger:   logger.With(slog.String("handler", "league")),
	}
}

// resolveEvent accepts either a category name or an event ticker.
func (h *LeagueHandler) resolveEvent(param string) (domain.Category, string, bool) {
	if cat, err := domain.ParseCategory(param); err == nil {
		ev, ok := h.league.EventGroup(cat)
		return cat, ev, ok
	}
	for _, cat := range domain.Categories {
		if ev, ok := h.league.EventGroup(cat); ok && strings.EqualFold(ev, param) {
			return cat, ev, true
		}
	}
	return "", "", false
}
