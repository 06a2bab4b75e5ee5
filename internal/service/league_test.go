package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/catalog"
	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/store/memory"
)

const (
	sayEvent     = "KXTRUMPMENTION-26FEB28"
	mentionEvent = "KXTRUMPMENTION-26MAR02"
)

var errFault = fmt.Errorf("kalshi: get event markets: HTTP 503: %w", domain.ErrGatewayFault)

type fakeGateway struct {
	mu      sync.Mutex
	byEvent map[string][]domain.MarketObservation
	err     error
	calls   int
}

func (f *fakeGateway) FetchObservations(_ context.Context, events map[string]string) (map[string][]domain.MarketObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]domain.MarketObservation, len(events))
	for key, ev := range events {
		out[key] = append([]domain.MarketObservation(nil), f.byEvent[ev]...)
	}
	return out, nil
}

func (f *fakeGateway) set(event string, rows ...domain.MarketObservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byEvent == nil {
		f.byEvent = map[string][]domain.MarketObservation{}
	}
	f.byEvent[event] = rows
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	league    *LeagueService
	ledger    *Ledger
	snapshots *SnapshotService
	linker    *Linker
	picks     *memory.PickStore
	snaps     *memory.SnapshotStore
	scores    *memory.ScoreStore
	audit     *memory.AuditStore
	bus       *memory.SignalBus
	gateway   *fakeGateway
	clock     *clock
	events    EventGroups
	logger    *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		picks:   memory.NewPickStore(),
		snaps:   memory.NewSnapshotStore(),
		scores:  memory.NewScoreStore(),
		audit:   memory.NewAuditStore(),
		bus:     memory.NewSignalBus(0),
		gateway: &fakeGateway{},
		clock:   &clock{now: time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)},
		events:  EventGroups{domain.CategorySay: sayEvent, domain.CategoryMention: mentionEvent},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.build(catalog.Default(), nil)
	return h
}

func (h *harness) build(table *catalog.Table, lock domain.LockManager) {
	h.ledger = NewLedger(LedgerConfig{
		Picks: h.picks, Catalog: table, Events: h.events, Now: h.clock.Now, Logger: h.logger,
	})
	h.snapshots = NewSnapshotService(h.snaps, h.clock.Now, h.logger)
	h.linker = NewLinker(LinkerConfig{Gateway: h.gateway, Events: h.events, Logger: h.logger})
	resolution := NewResolutionService(ResolutionConfig{
		Picks: h.picks, Snapshots: h.snaps, Scores: h.scores, Now: h.clock.Now, Logger: h.logger,
	})
	h.league = NewLeagueService(LeagueConfig{
		Ledger:     h.ledger,
		Snapshots:  h.snapshots,
		Linker:     h.linker,
		Resolution: resolution,
		Catalog:    table,
		Events:     h.events,
		Lock:       lock,
		Bus:        h.bus,
		Audit:      h.audit,
		Logger:     h.logger,
	})
}

func row(n int, name string, picks ...string) domain.SubmissionRow {
	r := domain.SubmissionRow{Row: n, Participant: name, SubmittedAt: "2026-02-27 10:00"}
	for i, p := range picks {
		r.Picks = append(r.Picks, domain.PickCell{Column: fmt.Sprintf("pick_%d", i+1), Value: p})
	}
	return r
}

func obs(event, id, title string, price float64, result string) domain.MarketObservation {
	return domain.MarketObservation{
		InstrumentID: id, EventGroupID: event, DisplayTitle: title,
		YesPrice: price, Status: "active", Result: result,
	}
}

func TestLeague_EndToEndTrillion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.err = errFault

	lock, err := h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Alice", "Trillion — 7 Points")})
	require.NoError(t, err)
	assert.Equal(t, 1, lock.Locked)
	assert.Equal(t, 1, lock.Unlinked)
	assert.NotEmpty(t, lock.Warning)

	h.gateway.err = nil
	h.gateway.set(sayEvent, obs(sayEvent, "X1", "Trillion", 1.0, domain.ResultYes))
	h.clock.Advance(time.Minute)

	fin, err := h.league.Finalize(ctx)
	require.NoError(t, err)
	assert.Empty(t, fin.Warning)
	require.NotNil(t, fin.Refresh)
	assert.Equal(t, 1, fin.Refresh.Rows)
	assert.Equal(t, 1, fin.Backfilled)
	require.Len(t, fin.Standings, 1)

	scores, err := h.scores.List(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "Alice", scores[0].Participant)
	assert.Equal(t, 7, scores[0].TotalPoints)
	assert.Equal(t, 1, scores[0].CorrectPicks)

	picks, err := h.picks.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "X1", picks[0].MarketInstrumentID)
	assert.Equal(t, sayEvent, picks[0].EventGroupID)
}

func TestLeague_LockInLinksFromTitleMap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent, obs(sayEvent, "T1", "Trillion", 0.3, ""))
	h.gateway.set(mentionEvent, obs(mentionEvent, "P1", "Putin", 0.6, ""))

	res, err := h.league.LockIn(ctx, []domain.SubmissionRow{
		row(1, " Alice ", "Trillion", "Putin — 45 Points", "nan", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Locked)
	assert.Zero(t, res.Unlinked)

	picks, err := h.picks.List(ctx)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.Equal(t, "Alice", picks[0].Participant)
	assert.Equal(t, "T1", picks[0].MarketInstrumentID)
	assert.Equal(t, sayEvent, picks[0].EventGroupID)
	assert.Equal(t, "P1", picks[1].MarketInstrumentID)
	assert.Equal(t, mentionEvent, picks[1].EventGroupID)
	assert.Equal(t, 45, picks[1].PointValue)
	assert.Equal(t, h.clock.Now(), picks[0].LockedAt)

	// The map is cached: a second lock-in does not fetch again.
	_, err = h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Bob", "Trillion")})
	require.NoError(t, err)
	assert.Equal(t, 1, h.gateway.calls)
}

func TestLeague_LockInRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.league.LockIn(ctx, []domain.SubmissionRow{
		row(1, "Alice", "Trillion"),
		row(2, "Bob", "Hoax", "Tariffs — 3 Points"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Failures, 1)
	assert.Equal(t, "Row 2, pick_2: 'Tariffs — 3 Points' not a valid option", verr.Failures[0].String())

	n, err := h.picks.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.gateway.calls)
}

func TestLeague_ValidateFlagsMissingName(t *testing.T) {
	h := newHarness(t)
	failures := h.league.Validate([]domain.SubmissionRow{
		row(1, "", "Trillion"),
		row(2, "", "none", " "),
	})
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Row)
	assert.Equal(t, "missing participant name", failures[0].Reason)
}

func TestLedger_LockSkipsUnclassifiable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	picks, err := h.ledger.Lock(ctx, []domain.SubmissionRow{
		row(1, "Alice", "Trillion", "Nonsense"),
		row(2, "", "Hoax"),
	}, domain.TitleMap{})
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "Trillion", picks[0].Option)
	assert.Empty(t, picks[0].MarketInstrumentID)
}

func TestLedger_PointValueFrozenAtLockTime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ledger.Lock(ctx, []domain.SubmissionRow{row(1, "Alice", "Trillion")}, domain.TitleMap{})
	require.NoError(t, err)

	edited, err := catalog.New(map[string]int{"Trillion": 50}, nil, nil)
	require.NoError(t, err)
	h.build(edited, nil)

	picks, err := h.ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 7, picks[0].PointValue)

	require.NoError(t, h.snaps.AppendBatch(ctx, []domain.MarketObservation{
		obs(sayEvent, "X1", "Trillion", 1.0, domain.ResultYes),
	}, h.clock.Now()))
	res, err := h.league.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Scores[0].TotalPoints)
}

func TestLedger_BackfillCategorySearch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.picks.InsertBatch(ctx, []domain.Pick{
		{Participant: "A", Option: "Putin", PointValue: 45},
		{Participant: "B", Option: "Putin", PointValue: 45, EventGroupID: sayEvent},
		{Participant: "C", Option: "Trillion", PointValue: 7, MarketInstrumentID: "OLD", EventGroupID: sayEvent},
	}))

	titles := domain.TitleMap{
		domain.CategorySay:     {"Trillion": "T-NEW"},
		domain.CategoryMention: {"Putin": "P1"},
	}
	n, err := h.ledger.Backfill(ctx, titles)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	picks, err := h.picks.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P1", picks[0].MarketInstrumentID)
	assert.Equal(t, mentionEvent, picks[0].EventGroupID)
	assert.Empty(t, picks[1].MarketInstrumentID, "restricted to the say event group")
	assert.Equal(t, "OLD", picks[2].MarketInstrumentID)

	n, err = h.ledger.Backfill(ctx, titles)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSnapshots_LatestPerInstrumentKeepsSecond(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.snapshots.Append(ctx, []domain.MarketObservation{obs(sayEvent, "X1", "Trillion", 0.40, "")})
	require.NoError(t, err)
	_, err = h.snapshots.Append(ctx, []domain.MarketObservation{obs(sayEvent, "X1", "Trillion", 0.95, "")})
	require.NoError(t, err)

	latest, err := h.snapshots.LatestPerInstrument(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 0.95, latest["X1"].YesPrice)

	history, err := h.snapshots.History(ctx, sayEvent)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSnapshots_LatestSliceUsesMaxObservedAt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.snapshots.Append(ctx, []domain.MarketObservation{
		obs(sayEvent, "B", "Hoax", 0.2, ""),
		obs(sayEvent, "A", "Ballroom", 0.1, ""),
	})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.snapshots.Append(ctx, []domain.MarketObservation{
		obs(sayEvent, "B", "Hoax", 0.3, ""),
		obs(sayEvent, "A", "Ballroom", 0.4, ""),
	})
	require.NoError(t, err)

	latest, err := h.snapshots.Latest(ctx, sayEvent)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Ballroom", latest[0].DisplayTitle)
	assert.Equal(t, 0.4, latest[0].YesPrice)
	assert.Equal(t, h.clock.Now(), latest[1].ObservedAt)
}

func TestLeague_ClearThenResolveEmptiesScores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent, obs(sayEvent, "X1", "Trillion", 1.0, domain.ResultYes))

	_, err := h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Alice", "Trillion")})
	require.NoError(t, err)
	_, err = h.league.Finalize(ctx)
	require.NoError(t, err)
	scores, err := h.scores.List(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	n, err := h.league.ClearPicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := h.league.Resolve(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Scores)
	board, err := h.league.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestLeague_DivergentJoinKeepsInstrument(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent, obs(sayEvent, "X1", "Trillion", 0.5, ""))

	_, err := h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Alice", "Trillion")})
	require.NoError(t, err)

	// The venue renames X1 and lists a new market under the old title.
	h.clock.Advance(time.Minute)
	h.gateway.set(sayEvent,
		obs(sayEvent, "X1", "Trillion (old)", 0.5, ""),
		obs(sayEvent, "X2", "Trillion", 1.0, domain.ResultYes),
	)
	_, err = h.league.RefreshMarkets(ctx)
	require.NoError(t, err)

	res, err := h.league.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, res.Picks, 1)
	assert.True(t, res.Picks[0].Divergent)
	assert.Equal(t, "X1", res.Picks[0].Snapshot.InstrumentID)
	assert.Len(t, res.Divergences(), 1)

	require.Len(t, res.Scores, 1)
	assert.Equal(t, 0, res.Scores[0].TotalPoints)
}

func TestLeague_ResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent,
		obs(sayEvent, "T", "Trillion", 0.99, ""),
		obs(sayEvent, "H", "Hoax", 0.5, ""),
	)
	_, err := h.league.LockIn(ctx, []domain.SubmissionRow{
		row(1, "Alice", "Trillion", "Hoax"),
		row(2, "Bob", "Hoax"),
	})
	require.NoError(t, err)
	_, err = h.league.RefreshMarkets(ctx)
	require.NoError(t, err)

	_, err = h.league.Resolve(ctx)
	require.NoError(t, err)
	first, err := h.scores.List(ctx)
	require.NoError(t, err)

	_, err = h.league.Resolve(ctx)
	require.NoError(t, err)
	second, err := h.scores.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "Alice", first[0].Participant)
	assert.Equal(t, 7, first[0].TotalPoints)
	assert.Equal(t, "Bob", first[1].Participant)
	assert.Zero(t, first[1].TotalPoints)
}

func TestLeague_RefreshFaultChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent, obs(sayEvent, "T", "Trillion", 0.5, ""))
	_, err := h.league.RefreshMarkets(ctx)
	require.NoError(t, err)
	before := h.linker.Map(ctx)

	h.gateway.err = errFault
	_, err = h.league.RefreshMarkets(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGatewayFault)

	all, err := h.snapshots.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, before, h.linker.Map(ctx))
}

func TestLeague_FinalizeWithFaultStillResolves(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.picks.InsertBatch(ctx, []domain.Pick{
		{Participant: "Alice", Option: "Trillion", PointValue: 7},
	}))
	require.NoError(t, h.snaps.AppendBatch(ctx, []domain.MarketObservation{
		obs(sayEvent, "X1", "Trillion", 1.0, ""),
	}, h.clock.Now()))
	h.gateway.err = errFault

	fin, err := h.league.Finalize(ctx)
	require.NoError(t, err)
	assert.Contains(t, fin.Warning, "HTTP 503")
	assert.Nil(t, fin.Refresh)
	require.Len(t, fin.Standings, 1)
	assert.Equal(t, 7, fin.Standings[0].TotalPoints)
}

func TestLeague_ChartSeriesPickedOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent,
		obs(sayEvent, "T", "Trillion", 0.5, ""),
		obs(sayEvent, "H", "Hoax", 0.5, ""),
	)
	_, err := h.league.RefreshMarkets(ctx)
	require.NoError(t, err)

	all, err := h.league.ChartSeries(ctx, domain.CategorySay, true)
	require.NoError(t, err)
	assert.Len(t, all, 2, "no picks yet, filter ignored")

	_, err = h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Alice", "Hoax", "Putin")})
	require.NoError(t, err)

	picked, err := h.league.ChartSeries(ctx, domain.CategorySay, true)
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "Hoax", picked[0].DisplayTitle)
}

func TestLeague_BreakdownCountsPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(sayEvent,
		obs(sayEvent, "T", "Trillion", 1.0, domain.ResultYes),
		obs(sayEvent, "H", "Hoax", 0.4, ""),
	)
	_, err := h.league.LockIn(ctx, []domain.SubmissionRow{row(1, "Alice", "Trillion", "Hoax")})
	require.NoError(t, err)
	_, err = h.league.RefreshMarkets(ctx)
	require.NoError(t, err)

	bd, err := h.league.Breakdown(ctx)
	require.NoError(t, err)
	require.Len(t, bd, 1)
	assert.Equal(t, 7, bd[0].Earned)
	assert.Equal(t, 1, bd[0].Pending)
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestLeague_WriteLockHeld(t *testing.T) {
	h := newHarness(t)
	h.build(catalog.Default(), heldLock{})

	_, err := h.league.Resolve(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestLinker_EnsureAndInvalidate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.set(mentionEvent, obs(mentionEvent, "P1", "Putin", 0.5, ""), obs(mentionEvent, "Z", "", 0.5, ""))

	m, err := h.linker.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P1", m.Lookup(domain.CategoryMention, "Putin"))
	assert.Len(t, m[domain.CategoryMention], 1)

	_, err = h.linker.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.gateway.calls)

	h.linker.Invalidate(ctx)
	assert.True(t, h.linker.Map(ctx).Empty())

	h.gateway.err = errFault
	m, err = h.linker.Ensure(ctx)
	assert.ErrorIs(t, err, domain.ErrGatewayFault)
	assert.True(t, m.Empty())
}

func TestFormatStandings(t *testing.T) {
	assert.Equal(t, "No participants yet.", FormatStandings(nil, 3))
}

func TestLeague_EventsReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gateway.set(sayEvent, obs(sayEvent, "S-TRIL", "Trillion", 0.5, ""))

	sub, cancel := context.WithCancel(ctx)
	defer cancel()
	live, err := h.bus.Subscribe(sub, domain.ChannelScores)
	require.NoError(t, err)

	_, err = h.league.RefreshMarkets(ctx)
	require.NoError(t, err)
	_, err = h.league.Resolve(ctx)
	require.NoError(t, err)

	select {
	case msg := <-live:
		assert.Contains(t, string(msg), EventScoresUpdated)
	case <-time.After(time.Second):
		t.Fatal("no scores event published")
	}

	msgs, err := h.league.Events(ctx, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, string(msgs[0].Payload), "markets_refreshed")
	assert.Contains(t, string(msgs[1].Payload), EventScoresUpdated)

	rest, err := h.league.Events(ctx, msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
