package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/catalog"
	"github.com/alanyoungcy/mentionleague/internal/domain"
)

const reasonInvalidOption = "not a valid option"

// Ledger is the append-only pick ledger.
type Ledger struct {
	picks   domain.PickStore
	catalog *catalog.Table
	events  EventGroups
	now     func() time.Time
	logger  *slog.Logger
}

// LedgerConfig configures a Ledger. Now defaults to time.Now.
type LedgerConfig struct {
	Picks   domain.PickStore
	Catalog *catalog.Table
	Events  EventGroups
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		picks:   cfg.Picks,
		catalog: cfg.Catalog,
		events:  cfg.Events,
		now:     now,
		logger:  cfg.Logger.With(slog.String("component", "ledger")),
	}
}

// Validate checks every pick cell of rows against the catalog. Placeholder
// cells are ignored. A row with picks but no participant name is reported too.
func (l *Ledger) Validate(rows []domain.SubmissionRow) []domain.ValidationFailure {
	var failures []domain.ValidationFailure
	for _, row := range rows {
		hasPick := false
		for _, cell := range row.Picks {
			if domain.IsPlaceholder(cell.Value) {
				continue
			}
			hasPick = true
			raw := strings.TrimSpace(cell.Value)
			if _, ok := l.catalog.Classify(raw); !ok {
				failures = append(failures, domain.ValidationFailure{
					Row:    row.Row,
					Column: cell.Column,
					Value:  raw,
					Reason: reasonInvalidOption,
				})
			}
		}
		if hasPick && strings.TrimSpace(row.Participant) == "" {
			failures = append(failures, domain.ValidationFailure{
				Row:    row.Row,
				Column: "name",
				Value:  row.Participant,
				Reason: "missing participant name",
			})
		}
	}
	return failures
}

// Lock writes one pick per classifiable cell. Rows without a participant,
// placeholder cells and unclassifiable cells are skipped. Instrument ids come
// from titles and stay empty when the option is not mapped yet. All picks of
// one call share the same lock time and are inserted in one batch.
func (l *Ledger) Lock(ctx context.Context, rows []domain.SubmissionRow, titles domain.TitleMap) ([]domain.Pick, error) {
	lockedAt := l.now().UTC()
	var (
		picks   []domain.Pick
		skipped int
	)
	for _, row := range rows {
		participant := strings.TrimSpace(row.Participant)
		if participant == "" {
			continue
		}
		for _, cell := range row.Picks {
			if domain.IsPlaceholder(cell.Value) {
				continue
			}
			opt, ok := l.catalog.Classify(strings.TrimSpace(cell.Value))
			if !ok {
				skipped++
				continue
			}
			picks = append(picks, domain.Pick{
				SubmittedAt:        strings.TrimSpace(row.SubmittedAt),
				Participant:        participant,
				Option:             opt.Name,
				PointValue:         opt.PointValue,
				MarketInstrumentID: titles.Lookup(opt.Category, opt.Name),
				EventGroupID:       l.events[opt.Category],
				LockedAt:           lockedAt,
			})
		}
	}

	if skipped > 0 {
		l.logger.WarnContext(ctx, "skipped unclassifiable picks", slog.Int("count", skipped))
	}
	if len(picks) == 0 {
		return nil, nil
	}
	if err := l.picks.InsertBatch(ctx, picks); err != nil {
		return nil, fmt.Errorf("ledger: lock: %w", err)
	}
	l.logger.InfoContext(ctx, "picks locked", slog.Int("count", len(picks)))
	return picks, nil
}

// ClearAll deletes every pick.
func (l *Ledger) ClearAll(ctx context.Context) (int64, error) {
	n, err := l.picks.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: clear: %w", err)
	}
	l.logger.InfoContext(ctx, "picks cleared", slog.Int64("count", n))
	return n, nil
}

// Backfill links unlinked picks using titles. Categories are tried in their
// fixed order, restricted to the pick's event group when it has one; the
// first category that maps the option wins. Linked picks are never touched,
// so repeated calls are no-ops once everything is filled.
func (l *Ledger) Backfill(ctx context.Context, titles domain.TitleMap) (int, error) {
	if titles.Empty() {
		return 0, nil
	}
	unlinked, err := l.picks.ListUnlinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: backfill: %w", err)
	}

	linked := 0
	for _, p := range unlinked {
		for _, cat := range domain.Categories {
			eventGroup := l.events[cat]
			if p.EventGroupID != "" && p.EventGroupID != eventGroup {
				continue
			}
			instrument := titles.Lookup(cat, p.Option)
			if instrument == "" {
				continue
			}
			changed, err := l.picks.LinkInstrument(ctx, p.ID, instrument, eventGroup)
			if err != nil {
				return linked, fmt.Errorf("ledger: backfill pick %d: %w", p.ID, err)
			}
			if changed {
				linked++
			}
			break
		}
	}
	if linked > 0 {
		l.logger.InfoContext(ctx, "picks backfilled", slog.Int("count", linked))
	}
	return linked, nil
}

// List returns every pick in ledger order.
func (l *Ledger) List(ctx context.Context) ([]domain.Pick, error) {
	picks, err := l.picks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	return picks, nil
}

// Count returns the number of picks.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	n, err := l.picks.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}

// PickedOptions returns the set of option names picked under category.
func (l *Ledger) PickedOptions(ctx context.Context, category domain.Category) (map[string]bool, error) {
	picks, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, p := range picks {
		if opt, ok := l.catalog.Lookup(p.Option); ok && opt.Category == category {
			out[p.Option] = true
		}
	}
	return out, nil
}
