package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/mentionleague/internal/blob/s3"
	"github.com/alanyoungcy/mentionleague/internal/cache/redis"
	"github.com/alanyoungcy/mentionleague/internal/catalog"
	"github.com/alanyoungcy/mentionleague/internal/config"
	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/metrics"
	"github.com/alanyoungcy/mentionleague/internal/notify"
	"github.com/alanyoungcy/mentionleague/internal/platform/kalshi"
	"github.com/alanyoungcy/mentionleague/internal/scoring"
	"github.com/alanyoungcy/mentionleague/internal/server/handler"
	"github.com/alanyoungcy/mentionleague/internal/server/middleware"
	"github.com/alanyoungcy/mentionleague/internal/service"
	"github.com/alanyoungcy/mentionleague/internal/store/memory"
	"github.com/alanyoungcy/mentionleague/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Picks     domain.PickStore
	Snapshots domain.SnapshotStore
	Scores    domain.ScoreStore
	Audit     domain.AuditStore

	// Coordination
	Lock      domain.LockManager
	Bus       domain.SignalBus
	Limiter   domain.RateLimiter
	TitleMaps domain.TitleMapCache

	// Archiver is nil unless S3 is enabled.
	Archiver domain.Archiver

	Catalog *catalog.Table
	Events  service.EventGroups
	Gateway *kalshi.Client
	Metrics *metrics.Metrics
	League  *service.LeagueService

	// Health holds one readiness check per external backend.
	Health map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Health:  map[string]handler.Pinger{},
		Events:  service.EventGroups{},
	}
	if cfg.Events.Say != "" {
		deps.Events[domain.CategorySay] = cfg.Events.Say
	}
	if cfg.Events.Mention != "" {
		deps.Events[domain.CategoryMention] = cfg.Events.Mention
	}

	// --- Option catalog ---
	deps.Catalog = catalog.Default()
	if cfg.Catalog.Custom() {
		table, err := catalog.New(cfg.Catalog.Say, cfg.Catalog.Mention, cfg.Catalog.Aliases)
		if err != nil {
			return fail(fmt.Errorf("wire: catalog: %w", err))
		}
		deps.Catalog = table
	}

	// --- Storage ---
	if strings.EqualFold(cfg.Storage, "postgres") {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Picks = postgres.NewPickStore(pool)
		deps.Snapshots = postgres.NewSnapshotStore(pool)
		deps.Scores = postgres.NewScoreStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Health["postgres"] = pgClient.Ping
	} else {
		logger.WarnContext(ctx, "using in-memory storage; league state is lost on exit")
		deps.Picks = memory.NewPickStore()
		deps.Snapshots = memory.NewSnapshotStore()
		deps.Scores = memory.NewScoreStore()
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Lock = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewSignalBusWithMaxLen(redisClient, int64(cfg.Redis.StreamMaxLen))
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.TitleMaps = redis.NewTitleMapCache(redisClient, cfg.Redis.TitleMapTTL.Duration)
		deps.Health["redis"] = redisClient.Ping
	} else {
		deps.Bus = memory.NewSignalBus(cfg.Redis.StreamMaxLen)
		deps.Limiter = middleware.NewLocalLimiter()
	}

	// --- S3 archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,

			Prefix:             cfg.S3.Prefix,
			MultipartThreshold: int64(cfg.S3.MultipartThresholdMB) << 20,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3Client,
			deps.Picks,
			deps.Snapshots,
			deps.Scores,
			deps.Audit,
		)
		deps.Health["s3"] = s3Client.Health
	}

	// --- Market gateway ---
	gw := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey,
		kalshi.WithTimeout(cfg.Kalshi.Timeout.Duration),
		kalshi.WithRateLimit(cfg.Kalshi.RateLimitRPS, cfg.Kalshi.RateBurst),
		kalshi.WithPageLimit(cfg.Kalshi.PageLimit),
		kalshi.WithObserver(deps.Metrics.GatewayRequest),
	)
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			return fail(fmt.Errorf("wire: kalshi key: %w", err))
		}
		if err := gw.SetRSAPrivateKey(pemBytes); err != nil {
			return fail(fmt.Errorf("wire: kalshi key: %w", err))
		}
	}
	deps.Gateway = gw

	// --- League services ---
	now := func() time.Time { return time.Now().UTC() }
	leagueCfg := service.LeagueConfig{
		Ledger: service.NewLedger(service.LedgerConfig{
			Picks:   deps.Picks,
			Catalog: deps.Catalog,
			Events:  deps.Events,
			Now:     now,
			Logger:  logger,
		}),
		Snapshots: service.NewSnapshotService(deps.Snapshots, now, logger),
		Linker: service.NewLinker(service.LinkerConfig{
			Gateway: gw,
			Events:  deps.Events,
			Shared:  deps.TitleMaps,
			Logger:  logger,
		}),
		Resolution: service.NewResolutionService(service.ResolutionConfig{
			Picks:     deps.Picks,
			Snapshots: deps.Snapshots,
			Scores:    deps.Scores,
			Thresholds: scoring.Thresholds{
				WinPrice:  cfg.Resolution.WinPrice,
				LossPrice: cfg.Resolution.LossPrice,
			},
			Now:    now,
			Logger: logger,
		}),
		Catalog: deps.Catalog,
		Events:  deps.Events,
		Lock:    deps.Lock,
		Bus:     deps.Bus,
		Audit:   deps.Audit,
		Metrics: deps.Metrics,
		Logger:  logger,
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if n := notify.NewNotifier(senders, cfg.Notify.Events, logger); n.Enabled() {
		leagueCfg.Notifier = n
	}

	deps.League = service.NewLeagueService(leagueCfg)
	return deps, cleanup, nil
}
