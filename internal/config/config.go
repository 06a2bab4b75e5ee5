// Package config defines the top-level configuration for the mention league
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MENTIONLEAGUE_* environment variables.
type Config struct {
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	Storage    string           `toml:"storage"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Events     EventsConfig     `toml:"events"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Resolution ResolutionConfig `toml:"resolution"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Notify     NotifyConfig     `toml:"notify"`
}

// KalshiConfig holds the market gateway parameters. The market endpoints are
// public; ApiKey and RsaPrivateKeyPath are only needed for signed requests.
type KalshiConfig struct {
	BaseURL           string   `toml:"base_url"`
	ApiKey            string   `toml:"api_key"`
	RsaPrivateKeyPath string   `toml:"rsa_private_key_path"`
	Timeout           duration `toml:"timeout"`
	RateLimitRPS      float64  `toml:"rate_limit_rps"`
	RateBurst         int      `toml:"rate_burst"`
	PageLimit         int      `toml:"page_limit"`
}

// EventsConfig maps each pick category to its Kalshi event ticker.
type EventsConfig struct {
	Say     string `toml:"say"`
	Mention string `toml:"mention"`
}

// CatalogConfig optionally replaces the built-in option table. When both
// point tables are empty the built-in table is used.
type CatalogConfig struct {
	Say     map[string]int    `toml:"say"`
	Mention map[string]int    `toml:"mention"`
	Aliases map[string]string `toml:"aliases"`
}

// Custom reports whether the catalog overrides the built-in table.
func (c CatalogConfig) Custom() bool {
	return len(c.Say) > 0 || len(c.Mention) > 0
}

// ResolutionConfig holds the price thresholds that settle a pick.
type ResolutionConfig struct {
	WinPrice  float64 `toml:"win_price"`
	LossPrice float64 `toml:"loss_price"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: without
// it the write lock is skipped, events go through an in-process bus and rate
// limiting is per-process.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	KeyPrefix    string   `toml:"key_prefix"`
	TitleMapTTL  duration `toml:"title_map_ttl"`
	StreamMaxLen int      `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters for archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`

	// Prefix namespaces archive keys inside the bucket.
	Prefix string `toml:"prefix"`
	// MultipartThresholdMB is the file size above which archives use
	// multipart uploads. S3 requires at least 5.
	MultipartThresholdMB int `toml:"multipart_threshold_mb"`
}

// PipelineConfig holds the background loop parameters. A zero
// RefreshInterval disables the refresh loop and an empty ArchiveCron
// disables scheduled archives.
type PipelineConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	ArchiveCron     string   `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters. An empty APIKey leaves the API
// open; RateLimit is requests per minute per client, 0 disables it.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     "server",
		LogLevel: "info",
		Storage:  "memory",
		Kalshi: KalshiConfig{
			BaseURL:      "https://api.elections.kalshi.com/trade-api/v2",
			Timeout:      duration{15 * time.Second},
			RateLimitRPS: 10,
			RateBurst:    5,
			PageLimit:    200,
		},
		Events: EventsConfig{
			Say:     "KXTRUMPMENTION-26FEB28",
			Mention: "KXTRUMPMENTION-26MAR02",
		},
		Resolution: ResolutionConfig{
			WinPrice:  0.99,
			LossPrice: 0.01,
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "mentionleague",
			TitleMapTTL:  duration{24 * time.Hour},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:               "mentionleague-archive",
			ForcePathStyle:       true,
			Prefix:               "archive",
			MultipartThresholdMB: 5,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Pipeline: PipelineConfig{
			RefreshInterval: duration{0},
			ArchiveCron:     "0 3 * * *",
		},
		Notify: NotifyConfig{
			Events: []string{"picks_locked", "scores_updated", "refresh_failed"},
		},
	}
}

// Modes lists the accepted values for Config.Mode.
var Modes = []string{"server", "refresh", "finalize", "import", "clear", "archive", "watch"}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validMode(mode string) bool {
	for _, m := range Modes {
		if strings.EqualFold(mode, m) {
			return true
		}
	}
	return false
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validMode(c.Mode) {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: %s)", c.Mode, strings.Join(Modes, ", ")))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	storage := strings.ToLower(c.Storage)
	if storage != "postgres" && storage != "memory" {
		errs = append(errs, fmt.Sprintf("unknown storage %q (valid: postgres, memory)", c.Storage))
	}

	// Kalshi
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.Timeout.Duration <= 0 {
		errs = append(errs, "kalshi: timeout must be > 0")
	}
	if c.Kalshi.RateLimitRPS < 0 || c.Kalshi.RateBurst < 0 {
		errs = append(errs, "kalshi: rate_limit_rps and rate_burst must be >= 0")
	}

	// Events
	if strings.TrimSpace(c.Events.Say) == "" && strings.TrimSpace(c.Events.Mention) == "" {
		errs = append(errs, "events: at least one of say or mention must be set")
	}

	// Resolution
	r := c.Resolution
	if r.WinPrice <= 0 || r.WinPrice > 1 || r.LossPrice < 0 || r.LossPrice >= 1 {
		errs = append(errs, "resolution: win_price and loss_price must lie in [0, 1]")
	} else if r.LossPrice >= r.WinPrice {
		errs = append(errs, "resolution: loss_price must be below win_price")
	}

	// Supabase
	if storage == "postgres" {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.MultipartThresholdMB < 5 {
			errs = append(errs, "s3: multipart_threshold_mb must be >= 5")
		}
	}
	if strings.EqualFold(c.Mode, "archive") && !c.S3.Enabled {
		errs = append(errs, "s3: must be enabled for mode archive")
	}

	// Server
	if c.Server.Enabled || strings.EqualFold(c.Mode, "server") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	// Pipeline
	if c.Pipeline.RefreshInterval.Duration < 0 {
		errs = append(errs, "pipeline: refresh_interval must be >= 0")
	}
	if strings.EqualFold(c.Mode, "watch") && c.Pipeline.RefreshInterval.Duration <= 0 {
		errs = append(errs, "pipeline: refresh_interval must be > 0 for mode watch")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
