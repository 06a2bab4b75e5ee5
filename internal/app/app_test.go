package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/config"
	"github.com/alanyoungcy/mentionleague/internal/domain"
)

func kalshiStub(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":"unavailable","message":"down"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("event_ticker") {
		case "KXSAY":
			_, _ = w.Write([]byte(`{"markets":[
				{"ticker":"S-TRIL","event_ticker":"KXSAY","yes_sub_title":"Trillion","last_price_dollars":"0.9950","status":"active"},
				{"ticker":"S-HOAX","event_ticker":"KXSAY","yes_sub_title":"Hoax","last_price_dollars":"0.0050","status":"active"}
			]}`))
		default:
			_, _ = w.Write([]byte(`{"markets":[
				{"ticker":"M-BIDEN","event_ticker":"KXMENTION","yes_sub_title":"Biden","last_price_dollars":"0.5000","status":"active"}
			]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, kalshiURL string, opts Options) (*App, *Dependencies, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage = "memory"
	cfg.Kalshi.BaseURL = kalshiURL
	cfg.Kalshi.RateLimitRPS = 1000
	cfg.Events = config.EventsConfig{Say: "KXSAY", Mention: "KXMENTION"}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(&cfg, opts, logger)
	out := &bytes.Buffer{}
	a.out = out

	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return a, deps, out
}

func writeSheet(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "picks.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestWire_MemoryDefaults(t *testing.T) {
	srv := kalshiStub(t, http.StatusOK)
	_, deps, _ := newTestApp(t, srv.URL, Options{})

	assert.NotNil(t, deps.League)
	assert.NotNil(t, deps.Bus)
	assert.NotNil(t, deps.Limiter)
	assert.Nil(t, deps.Lock)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.Health)
	assert.Equal(t, "KXSAY", deps.Events[domain.CategorySay])
}

func TestWire_CustomCatalog(t *testing.T) {
	cfg := config.Defaults()
	cfg.Catalog.Say = map[string]int{"Tariff": 5}
	cfg.Catalog.Aliases = map[string]string{"Tariffs": "Missing"}

	_, _, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire: catalog")
}

func TestModes_ImportFinalizeClear(t *testing.T) {
	srv := kalshiStub(t, http.StatusOK)
	sheet := writeSheet(t, "Name,Timestamp,Pick 1,Pick 2\nAlice,2026-02-27,Trillion,Biden\nBob,2026-02-27,Hoax,\n")

	a, deps, out := newTestApp(t, srv.URL, Options{ImportFile: sheet})
	ctx := context.Background()

	require.NoError(t, a.ImportMode(ctx, deps))
	assert.Contains(t, out.String(), `"locked": 3`)
	assert.Contains(t, out.String(), `"unlinked": 0`)

	out.Reset()
	require.NoError(t, a.FinalizeMode(ctx, deps))
	assert.Contains(t, out.String(), `"participant": "Alice"`)
	assert.Contains(t, out.String(), `"total_points": 7`)

	board, err := deps.League.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Alice", board[0].Participant)

	out.Reset()
	require.NoError(t, a.ClearMode(ctx, deps))
	assert.Contains(t, out.String(), `"cleared": 3`)
}

func TestImportMode_DryRunReportsFailures(t *testing.T) {
	srv := kalshiStub(t, http.StatusOK)
	sheet := writeSheet(t, "name,pick_1\nAlice,Tariffs\n")

	a, deps, out := newTestApp(t, srv.URL, Options{ImportFile: sheet, DryRun: true})
	err := a.ImportMode(context.Background(), deps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, "Row 1, pick_1: 'Tariffs' not a valid option\n", out.String())

	picks, err := deps.League.Picks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestImportMode_NeedsFile(t *testing.T) {
	srv := kalshiStub(t, http.StatusOK)
	a, deps, _ := newTestApp(t, srv.URL, Options{})
	assert.Error(t, a.ImportMode(context.Background(), deps))
}

func TestRefreshMode_GatewayFaultIsNotFatal(t *testing.T) {
	srv := kalshiStub(t, http.StatusServiceUnavailable)
	a, deps, out := newTestApp(t, srv.URL, Options{})

	require.NoError(t, a.RefreshMode(context.Background(), deps))
	assert.Empty(t, out.String())
}

func TestModes_Unavailable(t *testing.T) {
	srv := kalshiStub(t, http.StatusOK)
	a, deps, _ := newTestApp(t, srv.URL, Options{})
	ctx := context.Background()

	assert.Error(t, a.ArchiveMode(ctx, deps))
	assert.Error(t, a.WatchMode(ctx, deps))

	a.cfg.Mode = "bogus"
	assert.Error(t, a.runMode(ctx, deps))
}
