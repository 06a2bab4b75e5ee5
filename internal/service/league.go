package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/catalog"
	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/metrics"
	"github.com/alanyoungcy/mentionleague/internal/scoring"
)

// Notification event types emitted by the league.
const (
	EventPicksLocked   = "picks_locked"
	EventPicksCleared  = "picks_cleared"
	EventRefreshFailed = "refresh_failed"
	EventScoresUpdated = "scores_updated"
)

const (
	writeLockKey = "league:write"
	writeLockTTL = 2 * time.Minute
)

// LeagueService is the entry point for every league operation. Mutating
// operations run one at a time under the write lock when a LockManager is
// configured.
type LeagueService struct {
	ledger     *Ledger
	snapshots  *SnapshotService
	linker     *Linker
	resolution *ResolutionService
	catalog    *catalog.Table
	events     EventGroups

	lock     domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// LeagueConfig wires a LeagueService. Lock, Bus, Audit, Notifier and Metrics
// are optional.
type LeagueConfig struct {
	Ledger     *Ledger
	Snapshots  *SnapshotService
	Linker     *Linker
	Resolution *ResolutionService
	Catalog    *catalog.Table
	Events     EventGroups

	Lock     domain.LockManager
	Bus      domain.SignalBus
	Audit    domain.AuditStore
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewLeagueService creates a LeagueService.
func NewLeagueService(cfg LeagueConfig) *LeagueService {
	return &LeagueService{
		ledger:     cfg.Ledger,
		snapshots:  cfg.Snapshots,
		linker:     cfg.Linker,
		resolution: cfg.Resolution,
		catalog:    cfg.Catalog,
		events:     cfg.Events,
		lock:       cfg.Lock,
		bus:        cfg.Bus,
		audit:      cfg.Audit,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With(slog.String("component", "league")),
	}
}

// LockResult reports a successful lock-in.
type LockResult struct {
	Locked   int    `json:"locked"`
	Unlinked int    `json:"unlinked"`
	Warning  string `json:"warning,omitempty"`
}

// RefreshResult reports a market refresh.
type RefreshResult struct {
	Rows       int       `json:"rows"`
	ObservedAt time.Time `json:"observed_at"`
}

// FinalizeResult reports a finalize run. Warning is set when the refresh
// failed and scores were computed from the snapshots already stored.
type FinalizeResult struct {
	Refresh    *RefreshResult     `json:"refresh,omitempty"`
	Backfilled int                `json:"backfilled"`
	Standings  []scoring.Standing `json:"standings"`
	Warning    string             `json:"warning,omitempty"`
}

// Validate checks an upload without writing anything.
func (s *LeagueService) Validate(rows []domain.SubmissionRow) []domain.ValidationFailure {
	return s.ledger.Validate(rows)
}

// LockIn validates rows and, only if every cell is valid, locks them into
// the ledger. Instrument ids are resolved from the title map, which is
// fetched first when still empty; a fetch failure is reported as a warning
// and the picks are stored unlinked for a later backfill.
func (s *LeagueService) LockIn(ctx context.Context, rows []domain.SubmissionRow) (LockResult, error) {
	if failures := s.ledger.Validate(rows); len(failures) > 0 {
		s.metrics.ValidationFailures(len(failures))
		return LockResult{}, &domain.ValidationError{Failures: failures}
	}

	var res LockResult
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		titles, err := s.linker.Ensure(ctx)
		if err != nil {
			res.Warning = err.Error()
			s.logger.WarnContext(ctx, "title map unavailable, picks stored unlinked",
				slog.String("error", err.Error()))
		}

		picks, err := s.ledger.Lock(ctx, rows, titles)
		if err != nil {
			return err
		}
		res.Locked = len(picks)
		for _, p := range picks {
			if !p.Linked() {
				res.Unlinked++
			}
		}
		return nil
	})
	if err != nil {
		return LockResult{}, err
	}

	s.metrics.PicksLocked(res.Locked)
	s.record(ctx, EventPicksLocked, map[string]any{"locked": res.Locked, "unlinked": res.Unlinked})
	s.publish(ctx, domain.ChannelPicks, map[string]any{"event": EventPicksLocked, "locked": res.Locked})
	s.notify(ctx, EventPicksLocked, "Picks locked", fmt.Sprintf("%d pick(s) locked in", res.Locked))
	return res, nil
}

// ClearPicks deletes every pick. Scores are left until the next resolution.
func (s *LeagueService) ClearPicks(ctx context.Context) (int64, error) {
	var n int64
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.ledger.ClearAll(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.metrics.PicksCleared(n)
	s.record(ctx, EventPicksCleared, map[string]any{"cleared": n})
	s.publish(ctx, domain.ChannelPicks, map[string]any{"event": EventPicksCleared, "cleared": n})
	s.notify(ctx, EventPicksCleared, "Picks cleared", fmt.Sprintf("%d pick(s) removed", n))
	return n, nil
}

// RefreshMarkets fetches every event group, appends one snapshot batch and
// rebuilds the title map. A gateway fault changes nothing and is returned
// wrapped; callers treat it as a warning.
func (s *LeagueService) RefreshMarkets(ctx context.Context) (RefreshResult, error) {
	var res RefreshResult
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.refresh(ctx)
		return err
	})
	return res, err
}

// Backfill links unlinked picks with the current title map.
func (s *LeagueService) Backfill(ctx context.Context) (int, error) {
	var n int
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.backfill(ctx)
		return err
	})
	return n, err
}

// Resolve recomputes and stores the leaderboard from the current state.
func (s *LeagueService) Resolve(ctx context.Context) (scoring.Result, error) {
	var res scoring.Result
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.resolve(ctx)
		return err
	})
	return res, err
}

// Finalize refreshes the markets, backfills instrument ids and resolves. A
// gateway fault skips the refresh and backfill steps but resolution still
// runs on the stored snapshots; the fault is reported as a warning.
func (s *LeagueService) Finalize(ctx context.Context) (FinalizeResult, error) {
	var out FinalizeResult
	err := s.withWriteLock(ctx, func(ctx context.Context) error {
		refreshed, err := s.refresh(ctx)
		switch {
		case err == nil:
			out.Refresh = &refreshed
			n, err := s.backfill(ctx)
			if err != nil {
				return err
			}
			out.Backfilled = n
		case errors.Is(err, domain.ErrGatewayFault):
			out.Warning = err.Error()
		default:
			return err
		}

		res, err := s.resolve(ctx)
		if err != nil {
			return err
		}
		out.Standings = scoring.Rank(res.Scores)
		return nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	return out, nil
}

func (s *LeagueService) refresh(ctx context.Context) (RefreshResult, error) {
	byCat, err := s.linker.Refresh(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayFault) {
			s.metrics.Refresh("gateway_fault")
			s.logger.WarnContext(ctx, "market refresh skipped", slog.String("error", err.Error()))
			s.notify(ctx, EventRefreshFailed, "Market refresh failed", err.Error())
		} else {
			s.metrics.Refresh("error")
		}
		return RefreshResult{}, fmt.Errorf("league: refresh: %w", err)
	}

	var rows []domain.MarketObservation
	for _, cat := range domain.Categories {
		rows = append(rows, byCat[cat]...)
	}
	observedAt, err := s.snapshots.Append(ctx, rows)
	if err != nil {
		s.metrics.Refresh("error")
		return RefreshResult{}, fmt.Errorf("league: refresh: %w", err)
	}

	s.metrics.Refresh("ok")
	s.metrics.SnapshotsAppended(len(rows))
	res := RefreshResult{Rows: len(rows), ObservedAt: observedAt}
	s.record(ctx, "markets_refreshed", map[string]any{"rows": res.Rows})
	s.publish(ctx, domain.ChannelSnapshots, map[string]any{
		"event":       "markets_refreshed",
		"rows":        res.Rows,
		"observed_at": observedAt,
	})
	return res, nil
}

func (s *LeagueService) backfill(ctx context.Context) (int, error) {
	n, err := s.ledger.Backfill(ctx, s.linker.Map(ctx))
	if err != nil {
		return n, err
	}
	s.metrics.Backfilled(n)
	return n, nil
}

func (s *LeagueService) resolve(ctx context.Context) (scoring.Result, error) {
	start := time.Now()
	res, err := s.resolution.Resolve(ctx)
	if err != nil {
		return scoring.Result{}, err
	}

	outcomes := map[string]int{}
	for _, pr := range res.Picks {
		outcomes[string(pr.Outcome)]++
	}
	s.metrics.Resolved(outcomes, len(res.Scores), len(res.Divergences()), time.Since(start))

	standings := scoring.Rank(res.Scores)
	s.record(ctx, EventScoresUpdated, map[string]any{
		"participants": len(res.Scores),
		"picks":        len(res.Picks),
	})
	s.publish(ctx, domain.ChannelScores, map[string]any{
		"event":     EventScoresUpdated,
		"standings": standings,
	})
	s.notify(ctx, EventScoresUpdated, "Leaderboard updated", FormatStandings(standings, 5))
	return res, nil
}

// Options returns the option table of one category.
func (s *LeagueService) Options(category domain.Category) []domain.CanonicalOption {
	return s.catalog.Options(category)
}

// Aliases returns the alias table.
func (s *LeagueService) Aliases() []domain.AliasEntry {
	return s.catalog.Aliases()
}

// Picks returns every locked pick.
func (s *LeagueService) Picks(ctx context.Context) ([]domain.Pick, error) {
	return s.ledger.List(ctx)
}

// EventGroup returns the event group id of a category.
func (s *LeagueService) EventGroup(category domain.Category) (string, bool) {
	id, ok := s.events[category]
	return id, ok && id != ""
}

// History returns the full snapshot history of an event group.
func (s *LeagueService) History(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	return s.snapshots.History(ctx, eventGroupID)
}

// Latest returns the latest snapshot slice of an event group.
func (s *LeagueService) Latest(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	return s.snapshots.Latest(ctx, eventGroupID)
}

// LatestPerInstrument returns the current snapshot of every instrument,
// sorted by event group then title.
func (s *LeagueService) LatestPerInstrument(ctx context.Context) ([]domain.MarketSnapshot, error) {
	latest, err := s.snapshots.LatestPerInstrument(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MarketSnapshot, 0, len(latest))
	for _, snap := range latest {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventGroupID != out[j].EventGroupID {
			return out[i].EventGroupID < out[j].EventGroupID
		}
		return out[i].DisplayTitle < out[j].DisplayTitle
	})
	return out, nil
}

// ChartSeries returns the history of a category's event group, optionally
// restricted to options somebody picked. The filter is ignored when nothing
// in the category has been picked.
func (s *LeagueService) ChartSeries(ctx context.Context, category domain.Category, pickedOnly bool) ([]domain.MarketSnapshot, error) {
	eventGroup, ok := s.EventGroup(category)
	if !ok {
		return nil, fmt.Errorf("league: chart: %w: %s", domain.ErrUnknownCategory, category)
	}
	history, err := s.snapshots.History(ctx, eventGroup)
	if err != nil {
		return nil, err
	}
	if !pickedOnly {
		return history, nil
	}
	picked, err := s.ledger.PickedOptions(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return history, nil
	}
	var out []domain.MarketSnapshot
	for _, snap := range history {
		if picked[snap.DisplayTitle] {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Leaderboard returns the stored standings.
func (s *LeagueService) Leaderboard(ctx context.Context) ([]scoring.Standing, error) {
	return s.resolution.Leaderboard(ctx)
}

// Breakdown returns the per-participant pick breakdown.
func (s *LeagueService) Breakdown(ctx context.Context) ([]scoring.ParticipantBreakdown, error) {
	return s.resolution.Breakdown(ctx)
}

// InvalidateTitleMap drops the cached title map.
func (s *LeagueService) InvalidateTitleMap(ctx context.Context) {
	s.linker.Invalidate(ctx)
}

func (s *LeagueService) withWriteLock(ctx context.Context, fn func(context.Context) error) error {
	if s.lock == nil {
		return fn(ctx)
	}
	unlock, err := s.lock.Acquire(ctx, writeLockKey, writeLockTTL)
	if err != nil {
		return fmt.Errorf("league: acquire write lock: %w", err)
	}
	defer unlock()
	return fn(ctx)
}

func (s *LeagueService) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *LeagueService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal bus payload failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamEvents, data); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("stream", domain.StreamEvents),
			slog.String("error", err.Error()),
		)
	}
}

// Events replays the league event stream after lastID ("0" for the start).
func (s *LeagueService) Events(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if s.bus == nil {
		return nil, nil
	}
	msgs, err := s.bus.StreamRead(ctx, domain.StreamEvents, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("league: events: %w", err)
	}
	return msgs, nil
}

func (s *LeagueService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// FormatStandings renders the top n standings as plain text lines.
func FormatStandings(standings []scoring.Standing, n int) string {
	if len(standings) == 0 {
		return "No participants yet."
	}
	var b strings.Builder
	for i, st := range standings {
		if n > 0 && i >= n {
			fmt.Fprintf(&b, "... and %d more", len(standings)-n)
			break
		}
		fmt.Fprintf(&b, "%d. %s: %d pts (%d correct)\n", st.Rank, st.Participant, st.TotalPoints, st.CorrectPicks)
	}
	return strings.TrimRight(b.String(), "\n")
}
