package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// Linker owns the title -> instrument map used to link picks to markets. The
// map starts empty, is filled by the first successful fetch, and is only
// replaced by an explicit Refresh or cleared by Invalidate. A TitleMapCache,
// when configured, shares the map between processes.
type Linker struct {
	gateway MarketGateway
	events  EventGroups
	shared  domain.TitleMapCache
	logger  *slog.Logger

	mu     sync.RWMutex
	titles domain.TitleMap
}

// LinkerConfig configures a Linker. Shared may be nil.
type LinkerConfig struct {
	Gateway MarketGateway
	Events  EventGroups
	Shared  domain.TitleMapCache
	Logger  *slog.Logger
}

// NewLinker creates a Linker with an empty map.
func NewLinker(cfg LinkerConfig) *Linker {
	return &Linker{
		gateway: cfg.Gateway,
		events:  cfg.Events,
		shared:  cfg.Shared,
		logger:  cfg.Logger.With(slog.String("component", "linker")),
		titles:  domain.TitleMap{},
	}
}

// Map returns a copy of the current map without fetching. An empty local map
// is seeded from the shared cache when one is configured.
func (l *Linker) Map(ctx context.Context) domain.TitleMap {
	l.mu.RLock()
	current := l.titles
	l.mu.RUnlock()
	if !current.Empty() || l.shared == nil {
		return current.Clone()
	}

	m, err := l.shared.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.WarnContext(ctx, "shared title map read failed", slog.String("error", err.Error()))
		}
		return current.Clone()
	}
	l.mu.Lock()
	if l.titles.Empty() {
		l.titles = m.Clone()
	}
	out := l.titles.Clone()
	l.mu.Unlock()
	return out
}

// Ensure returns the map, fetching it first when it is still empty. A fetch
// failure leaves the map empty and is returned for the caller to report.
func (l *Linker) Ensure(ctx context.Context) (domain.TitleMap, error) {
	if m := l.Map(ctx); !m.Empty() {
		return m, nil
	}
	if _, err := l.Refresh(ctx); err != nil {
		return domain.TitleMap{}, err
	}
	return l.Map(ctx), nil
}

// Refresh fetches every event group, rebuilds the map from the fetched
// markets and returns the observations per category. On failure the current
// map is kept unchanged.
func (l *Linker) Refresh(ctx context.Context) (map[domain.Category][]domain.MarketObservation, error) {
	fetched, err := l.gateway.FetchObservations(ctx, l.events.keyed())
	if err != nil {
		return nil, fmt.Errorf("linker: refresh: %w", err)
	}

	byCat := make(map[domain.Category][]domain.MarketObservation, len(fetched))
	for key, rows := range fetched {
		byCat[domain.Category(key)] = rows
	}
	l.Install(ctx, byCat)
	return byCat, nil
}

// Install replaces the categories present in obs with maps built from the
// observations' display titles.
func (l *Linker) Install(ctx context.Context, obs map[domain.Category][]domain.MarketObservation) domain.TitleMap {
	l.mu.Lock()
	next := l.titles.Clone()
	for cat, rows := range obs {
		next[cat] = BuildTitleMap(rows)
	}
	l.titles = next
	out := next.Clone()
	l.mu.Unlock()

	if l.shared != nil {
		if err := l.shared.Set(ctx, out); err != nil {
			l.logger.WarnContext(ctx, "shared title map write failed", slog.String("error", err.Error()))
		}
	}
	l.logger.DebugContext(ctx, "title map installed", slog.Int("categories", len(obs)))
	return out
}

// Invalidate empties the map, locally and in the shared cache.
func (l *Linker) Invalidate(ctx context.Context) {
	l.mu.Lock()
	l.titles = domain.TitleMap{}
	l.mu.Unlock()
	if l.shared != nil {
		if err := l.shared.Invalidate(ctx); err != nil {
			l.logger.WarnContext(ctx, "shared title map invalidate failed", slog.String("error", err.Error()))
		}
	}
}

// BuildTitleMap maps each non-empty display title to its instrument id.
func BuildTitleMap(rows []domain.MarketObservation) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.DisplayTitle != "" {
			out[r.DisplayTitle] = r.InstrumentID
		}
	}
	return out
}
