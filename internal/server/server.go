// Package server exposes the league over a headless HTTP API with a
// WebSocket push channel.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/metrics"
	"github.com/alanyoungcy/mentionleague/internal/server/handler"
	"github.com/alanyoungcy/mentionleague/internal/server/middleware"
	"github.com/alanyoungcy/mentionleague/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	League *handler.LeagueHandler
}

// Deps are the optional collaborators of the server.
type Deps struct {
	Hub     *ws.Hub
	Limiter domain.RateLimiter
	Metrics *metrics.Metrics
}

// Server is the league HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// publicPaths skip API key authentication.
var publicPaths = []string{"/api/health", "/metrics"}

// NewServer creates a Server with every route registered and the middleware
// chain applied.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewHandler builds the routed and wrapped http.Handler.
func NewHandler(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	lh := handlers.League

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/options", lh.Options)

	// Picks.
	mux.HandleFunc("POST /api/picks/upload", lh.UploadPicks)
	mux.HandleFunc("GET /api/picks", lh.ListPicks)
	mux.HandleFunc("DELETE /api/picks", lh.ClearPicks)

	// Markets.
	mux.HandleFunc("POST /api/markets/refresh", lh.RefreshMarkets)
	mux.HandleFunc("GET /api/markets/latest", lh.LatestPerInstrument)
	mux.HandleFunc("GET /api/markets/{event}/history", lh.History)
	mux.HandleFunc("GET /api/markets/{event}/latest", lh.Latest)
	mux.HandleFunc("GET /api/markets/{event}/chart.png", lh.Chart)

	// Leaderboard.
	mux.HandleFunc("GET /api/leaderboard", lh.Leaderboard)
	mux.HandleFunc("GET /api/leaderboard/picks", lh.Breakdown)
	mux.HandleFunc("POST /api/leaderboard/finalize", lh.Finalize)
	mux.HandleFunc("POST /api/leaderboard/resolve", lh.Resolve)

	mux.HandleFunc("POST /api/archive", lh.Archive)
	mux.HandleFunc("GET /api/events", lh.Events)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	if deps.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, time.Minute)(h)
	}
	h = middleware.Auth(cfg.APIKey, publicPaths...)(h)
	h = middleware.Logging(logger, deps.Metrics)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
