package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

func TestSnapshotStore_LatestPerInstrument(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendBatch(ctx, []domain.MarketObservation{
		{InstrumentID: "X1", EventGroupID: "E", DisplayTitle: "Trillion", YesPrice: 0.40},
		{InstrumentID: "X2", EventGroupID: "E", DisplayTitle: "Hoax", YesPrice: 0.10},
	}, ts))
	// Same timestamp on purpose: the sequence decides, not observedAt.
	require.NoError(t, s.AppendBatch(ctx, []domain.MarketObservation{
		{InstrumentID: "X1", EventGroupID: "E", DisplayTitle: "Trillion", YesPrice: 0.95, YesBid: 0.94, YesAsk: 0.96},
	}, ts))

	latest, err := s.LatestPerInstrument(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 0.95, latest["X1"].YesPrice)
	assert.Equal(t, int64(3), latest["X1"].Seq)
	assert.Equal(t, 0.94, latest["X1"].YesBid)
	assert.Equal(t, 0.96, latest["X1"].YesAsk)

	history, err := s.ListByEventGroup(ctx, "E")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	other, err := s.ListByEventGroup(ctx, "OTHER")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPickStore_LinkAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewPickStore()
	require.NoError(t, s.InsertBatch(ctx, []domain.Pick{
		{Participant: "Alice", Option: "Trillion", PointValue: 7},
		{Participant: "Bob", Option: "Hoax", PointValue: 60, MarketInstrumentID: "H"},
	}))

	unlinked, err := s.ListUnlinked(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, int64(1), unlinked[0].ID)

	ok, err := s.LinkInstrument(ctx, 1, "T", "E")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.LinkInstrument(ctx, 1, "T2", "E")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.LinkInstrument(ctx, 99, "T", "E")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScoreStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := NewScoreStore()
	require.NoError(t, s.Replace(ctx, []domain.ScoreRecord{
		{Participant: "Bo", TotalPoints: 3},
		{Participant: "Al", TotalPoints: 3},
		{Participant: "Cy", TotalPoints: 9},
	}))
	scores, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"Cy", "Al", "Bo"},
		[]string{scores[0].Participant, scores[1].Participant, scores[2].Participant})

	require.NoError(t, s.Replace(ctx, nil))
	scores, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestAuditStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	for _, ev := range []string{"a", "b", "c"} {
		require.NoError(t, s.Log(ctx, ev, nil))
	}
	got, err := s.List(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Event)

	got, err = s.List(ctx, domain.ListOpts{Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Event)
}
