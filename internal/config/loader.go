package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MENTIONLEAGUE_* environment variable overrides,
// and returns the final Config. A missing file is not an error: defaults plus
// environment are used. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MENTIONLEAGUE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "MENTIONLEAGUE_MODE")
	setStr(&cfg.LogLevel, "MENTIONLEAGUE_LOG_LEVEL")
	setStr(&cfg.Storage, "MENTIONLEAGUE_STORAGE")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "MENTIONLEAGUE_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "MENTIONLEAGUE_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "MENTIONLEAGUE_KALSHI_RSA_PRIVATE_KEY_PATH")
	setDuration(&cfg.Kalshi.Timeout, "MENTIONLEAGUE_KALSHI_TIMEOUT")
	setFloat64(&cfg.Kalshi.RateLimitRPS, "MENTIONLEAGUE_KALSHI_RATE_LIMIT_RPS")
	setInt(&cfg.Kalshi.RateBurst, "MENTIONLEAGUE_KALSHI_RATE_BURST")
	setInt(&cfg.Kalshi.PageLimit, "MENTIONLEAGUE_KALSHI_PAGE_LIMIT")

	// ── Events ──
	setStr(&cfg.Events.Say, "MENTIONLEAGUE_EVENTS_SAY")
	setStr(&cfg.Events.Mention, "MENTIONLEAGUE_EVENTS_MENTION")

	// ── Resolution ──
	setFloat64(&cfg.Resolution.WinPrice, "MENTIONLEAGUE_RESOLUTION_WIN_PRICE")
	setFloat64(&cfg.Resolution.LossPrice, "MENTIONLEAGUE_RESOLUTION_LOSS_PRICE")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "MENTIONLEAGUE_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "MENTIONLEAGUE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "MENTIONLEAGUE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "MENTIONLEAGUE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "MENTIONLEAGUE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "MENTIONLEAGUE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "MENTIONLEAGUE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "MENTIONLEAGUE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "MENTIONLEAGUE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "MENTIONLEAGUE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "MENTIONLEAGUE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MENTIONLEAGUE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MENTIONLEAGUE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MENTIONLEAGUE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MENTIONLEAGUE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MENTIONLEAGUE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MENTIONLEAGUE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MENTIONLEAGUE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "MENTIONLEAGUE_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.TitleMapTTL, "MENTIONLEAGUE_REDIS_TITLE_MAP_TTL")
	setInt(&cfg.Redis.StreamMaxLen, "MENTIONLEAGUE_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MENTIONLEAGUE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MENTIONLEAGUE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MENTIONLEAGUE_S3_REGION")
	setStr(&cfg.S3.Bucket, "MENTIONLEAGUE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MENTIONLEAGUE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MENTIONLEAGUE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MENTIONLEAGUE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MENTIONLEAGUE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "MENTIONLEAGUE_S3_PREFIX")
	setInt(&cfg.S3.MultipartThresholdMB, "MENTIONLEAGUE_S3_MULTIPART_THRESHOLD_MB")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MENTIONLEAGUE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MENTIONLEAGUE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MENTIONLEAGUE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MENTIONLEAGUE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MENTIONLEAGUE_SERVER_RATE_LIMIT")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.RefreshInterval, "MENTIONLEAGUE_PIPELINE_REFRESH_INTERVAL")
	setStr(&cfg.Pipeline.ArchiveCron, "MENTIONLEAGUE_PIPELINE_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MENTIONLEAGUE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MENTIONLEAGUE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MENTIONLEAGUE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MENTIONLEAGUE_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
