package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/store/memory"
)

type fakeWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func (w *fakeWriter) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	if w.failOn != "" && strings.Contains(key, w.failOn) {
		return "", errors.New("boom")
	}
	full := DefaultPrefix + "/" + key
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[full] = body
	return full, nil
}

func countLines(t *testing.T, b []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var v map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		n++
	}
	return n
}

func TestArchiver_Export(t *testing.T) {
	ctx := context.Background()
	picks := memory.NewPickStore()
	snaps := memory.NewSnapshotStore()
	scores := memory.NewScoreStore()
	audit := memory.NewAuditStore()

	require.NoError(t, picks.InsertBatch(ctx, []domain.Pick{
		{Participant: "Alice", Option: "Trillion", PointValue: 5},
		{Participant: "Bob", Option: "Hoax", PointValue: 2},
	}))
	require.NoError(t, snaps.AppendBatch(ctx, []domain.MarketObservation{
		{InstrumentID: "X1", EventGroupID: "E", DisplayTitle: "Trillion", YesPrice: 0.5},
	}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, scores.Replace(ctx, []domain.ScoreRecord{{Participant: "Alice", TotalPoints: 5}}))

	w := &fakeWriter{}
	a := NewArchiver(w, picks, snaps, scores, audit)
	a.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	res, err := a.Export(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Len(t, res.Paths, 3)
	assert.Equal(t, map[string]int{"picks": 2, "market_snapshots": 1, "scores": 1}, res.Counts)

	for _, p := range res.Paths {
		assert.True(t, strings.HasPrefix(p, "archive/2026-03-02/"+res.RunID+"/"), p)
	}
	assert.Equal(t, 2, countLines(t, w.objects[res.Paths[0]]))
	assert.Equal(t, 1, countLines(t, w.objects[res.Paths[1]]))

	entries, err := audit.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.export", entries[0].Event)
}

func TestArchiver_EmptyTables(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w, memory.NewPickStore(), memory.NewSnapshotStore(), memory.NewScoreStore(), nil)

	res, err := a.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Paths, 3)
	for _, p := range res.Paths {
		assert.Empty(t, w.objects[p])
	}
}

func TestArchiver_UploadFailure(t *testing.T) {
	w := &fakeWriter{failOn: "market_snapshots"}
	a := NewArchiver(w, memory.NewPickStore(), memory.NewSnapshotStore(), memory.NewScoreStore(), nil)

	res, err := a.Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market_snapshots upload")
	assert.Len(t, res.Paths, 1)
}
