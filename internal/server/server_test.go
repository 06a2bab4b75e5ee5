package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/catalog"
	"github.com/alanyoungcy/mentionleague/internal/chart"
	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/metrics"
	"github.com/alanyoungcy/mentionleague/internal/server/handler"
	"github.com/alanyoungcy/mentionleague/internal/service"
	"github.com/alanyoungcy/mentionleague/internal/store/memory"
)

const (
	sayEvent     = "KXTRUMPMENTION-26FEB28"
	mentionEvent = "KXTRUMPMENTION-26MAR02"
)

type stubGateway struct {
	mu  sync.Mutex
	err error
}

func (g *stubGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGateway) FetchObservations(_ context.Context, events map[string]string) (map[string][]domain.MarketObservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	rows := map[string][]domain.MarketObservation{
		sayEvent: {
			{InstrumentID: "S-TRIL", EventGroupID: sayEvent, DisplayTitle: "Trillion", YesPrice: 0.995, Status: "active"},
			{InstrumentID: "S-HOAX", EventGroupID: sayEvent, DisplayTitle: "Hoax", YesPrice: 0.005, Status: "active"},
		},
		mentionEvent: {
			{InstrumentID: "M-BIDEN", EventGroupID: mentionEvent, DisplayTitle: "Biden", YesPrice: 0.5, Status: "active"},
		},
	}
	out := make(map[string][]domain.MarketObservation, len(events))
	for key, ev := range events {
		out[key] = rows[ev]
	}
	return out, nil
}

type testServer struct {
	handler http.Handler
	gateway *stubGateway
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Now().UTC() }

	picks := memory.NewPickStore()
	snaps := memory.NewSnapshotStore()
	scores := memory.NewScoreStore()
	events := service.EventGroups{domain.CategorySay: sayEvent, domain.CategoryMention: mentionEvent}
	table := catalog.Default()
	gw := &stubGateway{}
	m := metrics.New()

	league := service.NewLeagueService(service.LeagueConfig{
		Ledger:    service.NewLedger(service.LedgerConfig{Picks: picks, Catalog: table, Events: events, Now: now, Logger: logger}),
		Snapshots: service.NewSnapshotService(snaps, now, logger),
		Linker:    service.NewLinker(service.LinkerConfig{Gateway: gw, Events: events, Logger: logger}),
		Resolution: service.NewResolutionService(service.ResolutionConfig{
			Picks: picks, Snapshots: snaps, Scores: scores, Now: now, Logger: logger,
		}),
		Catalog: table,
		Events:  events,
		Bus:     memory.NewSignalBus(0),
		Audit:   memory.NewAuditStore(),
		Metrics: m,
		Logger:  logger,
	})

	h := NewHandler(
		Config{APIKey: apiKey},
		Handlers{
			Health: handler.NewHealthHandler(map[string]handler.Pinger{
				"memory": func(context.Context) error { return nil },
			}, logger),
			League: handler.NewLeagueHandler(league, chart.NewRenderer(), nil, logger),
		},
		Deps{Metrics: m},
		logger,
	)
	return &testServer{handler: h, gateway: gw, metrics: m}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, target, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const validSheet = "Timestamp,Your Name:,Pick 1,Pick 2\n" +
	"2026-02-27 10:00,Alice,Trillion - 7 Points,Biden\n" +
	"2026-02-27 11:00,Bob,Hoax,\n"

func TestServer_LeagueFlow(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, uploadRequest(t, "/api/picks/upload", "picks.csv", validSheet))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var locked service.LockResult
	decode(t, rec, &locked)
	assert.Equal(t, 3, locked.Locked)
	assert.Equal(t, 0, locked.Unlinked)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/leaderboard/finalize", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fin service.FinalizeResult
	decode(t, rec, &fin)
	assert.Empty(t, fin.Warning)
	require.NotNil(t, fin.Refresh)
	assert.Equal(t, 3, fin.Refresh.Rows)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var board struct {
		Standings []struct {
			Rank         int    `json:"rank"`
			Participant  string `json:"participant"`
			TotalPoints  int    `json:"total_points"`
			CorrectPicks int    `json:"correct_picks"`
		} `json:"standings"`
	}
	decode(t, rec, &board)
	require.Len(t, board.Standings, 2)
	assert.Equal(t, "Alice", board.Standings[0].Participant)
	assert.Equal(t, 7, board.Standings[0].TotalPoints)
	assert.Equal(t, 1, board.Standings[0].Rank)
	assert.Equal(t, "Bob", board.Standings[1].Participant)
	assert.Equal(t, 0, board.Standings[1].TotalPoints)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/leaderboard/picks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":1`)

	for _, target := range []string{
		"/api/markets/say/history",
		"/api/markets/" + sayEvent + "/latest",
		"/api/markets/latest",
	} {
		rec = ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "S-TRIL", target)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/markets/say/chart.png?picked=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/events?after=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), service.EventScoresUpdated)

	rec = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/picks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":3}`, rec.Body.String())

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/leaderboard/resolve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"standings":[]`)
}

func TestServer_UploadValidation(t *testing.T) {
	ts := newTestServer(t, "")
	bad := "name,pick_1\nAlice,Trillion\nBob,Tariffs\n"

	rec := ts.do(t, uploadRequest(t, "/api/picks/upload?dry_run=1", "picks.csv", bad))
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Valid    bool     `json:"valid"`
		Messages []string `json:"messages"`
	}
	decode(t, rec, &preview)
	assert.False(t, preview.Valid)
	assert.Equal(t, []string{"Row 2, pick_1: 'Tariffs' not a valid option"}, preview.Messages)

	rec = ts.do(t, uploadRequest(t, "/api/picks/upload", "picks.csv", bad))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tariffs")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/picks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)

	rec = ts.do(t, uploadRequest(t, "/api/picks/upload", "picks.csv", "name,pick_1\nAlice,Trillion (7 pts)\n"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trillion (7 pts)")

	rec = ts.do(t, uploadRequest(t, "/api/picks/upload", "picks.txt", bad))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/picks/upload", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ChartWithoutHistory(t *testing.T) {
	ts := newTestServer(t, "")

	for _, target := range []string{
		"/api/markets/say/chart.png",
		"/api/markets/mention/chart.png?picked=1",
	} {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"), target)
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), target)
	}
}

func TestServer_GatewayFault(t *testing.T) {
	ts := newTestServer(t, "")
	ts.gateway.fail(fmt.Errorf("kalshi: get event markets: HTTP 503: %w", domain.ErrGatewayFault))

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/markets/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/leaderboard/finalize", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fin service.FinalizeResult
	decode(t, rec, &fin)
	assert.NotEmpty(t, fin.Warning)
	assert.Nil(t, fin.Refresh)

	ts.gateway.fail(errors.New("unexpected"))
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/markets/refresh", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Routing(t *testing.T) {
	ts := newTestServer(t, "secret")

	tests := []struct {
		name   string
		method string
		target string
		key    string
		want   int
	}{
		{"health is public", http.MethodGet, "/api/health", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"picks need key", http.MethodGet, "/api/picks", "", http.StatusUnauthorized},
		{"picks with key", http.MethodGet, "/api/picks", "secret", http.StatusOK},
		{"options", http.MethodGet, "/api/options", "secret", http.StatusOK},
		{"unknown event", http.MethodGet, "/api/markets/nope/history", "secret", http.StatusNotFound},
		{"archive not configured", http.MethodPost, "/api/archive", "secret", http.StatusServiceUnavailable},
		{"wrong method", http.MethodPut, "/api/picks", "secret", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := ts.do(t, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := ts.do(t, req)
	assert.Contains(t, rec.Body.String(), "mentionleague_http_requests_total")
}
