package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mentionleague/internal/chart"
	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/ingest"
	"github.com/alanyoungcy/mentionleague/internal/pipeline"
	"github.com/alanyoungcy/mentionleague/internal/server"
	"github.com/alanyoungcy/mentionleague/internal/server/handler"
	"github.com/alanyoungcy/mentionleague/internal/server/ws"
)

// ServerMode serves the HTTP API and dashboard websocket. The background
// refresh loop and scheduled archives run alongside when configured.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(deps.Health, a.logger),
			League: handler.NewLeagueHandler(deps.League, chart.NewRenderer(), deps.Archiver, a.logger),
		},
		server.Deps{
			Hub:     hub,
			Limiter: deps.Limiter,
			Metrics: deps.Metrics,
		},
		a.logger,
	)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if orch := a.newOrchestrator(deps); orch != nil {
		g.Go(func() error {
			return orch.Run(ctx)
		})
	}

	return g.Wait()
}

// WatchMode runs the refresh loop (and scheduled archives) without the HTTP
// server.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Duration("interval", a.cfg.Pipeline.RefreshInterval.Duration),
	)
	orch := a.newOrchestrator(deps)
	if orch == nil {
		return fmt.Errorf("app: watch mode needs pipeline.refresh_interval > 0")
	}
	return orch.Run(ctx)
}

// newOrchestrator returns nil when neither loop is configured.
func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	interval := a.cfg.Pipeline.RefreshInterval.Duration
	var archiver *pipeline.Archiver
	if deps.Archiver != nil && a.cfg.Pipeline.ArchiveCron != "" {
		archiver = pipeline.NewArchiver(deps.Archiver, a.logger)
	}
	if interval <= 0 && archiver == nil {
		return nil
	}
	return pipeline.NewOrchestrator(
		pipeline.NewRefresher(deps.League, a.logger),
		archiver,
		interval,
		a.cfg.Pipeline.ArchiveCron,
		a.logger,
	)
}

// RefreshMode fetches one snapshot batch. A gateway fault is reported as a
// warning and is not fatal.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	res, err := deps.League.RefreshMarkets(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayFault) {
			a.logger.WarnContext(ctx, "refresh skipped", slog.String("error", err.Error()))
			return nil
		}
		return fmt.Errorf("app: refresh: %w", err)
	}
	return a.print(res)
}

// FinalizeMode refreshes, backfills and resolves, then prints the standings.
func (a *App) FinalizeMode(ctx context.Context, deps *Dependencies) error {
	res, err := deps.League.Finalize(ctx)
	if err != nil {
		return fmt.Errorf("app: finalize: %w", err)
	}
	if res.Warning != "" {
		a.logger.WarnContext(ctx, "finalized from stored snapshots", slog.String("warning", res.Warning))
	}
	return a.print(res)
}

// ImportMode locks in a pick sheet from disk. With DryRun set it only
// validates and prints the per-row failures.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	if a.opts.ImportFile == "" {
		return fmt.Errorf("app: import mode needs -file")
	}
	data, err := os.ReadFile(a.opts.ImportFile)
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}
	sheet, err := ingest.Parse(filepath.Base(a.opts.ImportFile), data)
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}

	if a.opts.DryRun {
		failures := deps.League.Validate(sheet.Rows)
		for _, f := range failures {
			fmt.Fprintln(a.out, f.String())
		}
		a.logger.InfoContext(ctx, "import validated",
			slog.Int("rows", len(sheet.Rows)),
			slog.Int("failures", len(failures)),
		)
		if len(failures) > 0 {
			return &domain.ValidationError{Failures: failures}
		}
		return nil
	}

	res, err := deps.League.LockIn(ctx, sheet.Rows)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Failures {
				fmt.Fprintln(a.out, f.String())
			}
		}
		return fmt.Errorf("app: import: %w", err)
	}
	return a.print(res)
}

// ClearMode deletes every locked pick.
func (a *App) ClearMode(ctx context.Context, deps *Dependencies) error {
	n, err := deps.League.ClearPicks(ctx)
	if err != nil {
		return fmt.Errorf("app: clear: %w", err)
	}
	return a.print(map[string]int64{"cleared": n})
}

// ArchiveMode exports the league tables to S3 once.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode needs s3.enabled")
	}
	res, err := deps.Archiver.Export(ctx)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	return a.print(res)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
