package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRADEPULSE_"

// Config represents the top-level application config plus the resolved metric catalog.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Cache     CacheConfig     `koanf:"cache"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Recommend RecommendConfig `koanf:"recommend"`
	Warmup    WarmupConfig    `koanf:"warmup"`
	Log       LogConfig       `koanf:"log"`

	// Catalog is populated by Load after parsing metric files.
	Catalog *aggregation.Catalog `koanf:"-"`
}

type ServerConfig struct {
	Port           int     `koanf:"port"`
	Host           string  `koanf:"host"`
	Mode           string  `koanf:"mode"`           // debug | release
	RateLimitRPS   float64 `koanf:"rate_limit_rps"` // 0 disables limiting
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Type         string        `koanf:"type"`
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	AutoMigrate  bool          `koanf:"auto_migrate"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	FailureRatio float64       `koanf:"failure_ratio"`
	MinRequests  uint32        `koanf:"min_requests"`
}

type CacheConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Backend           string        `koanf:"backend"` // memory | redis
	Capacity          int           `koanf:"capacity"`
	Shards            int           `koanf:"shards"`
	AggregateTTL      time.Duration `koanf:"aggregate_ttl"`
	RecommendationTTL time.Duration `koanf:"recommendation_ttl"`
	Redis             RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	Namespace   string        `koanf:"namespace"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type AnalyticsConfig struct {
	DefaultWindow string        `koanf:"default_window"` // e.g. "30d", parsed on startup
	WindowAlign   time.Duration `koanf:"window_align"`
	DefaultLimit  int           `koanf:"default_limit"`
	MaxLimit      int           `koanf:"max_limit"`
	CatalogDir    string        `koanf:"catalog_dir"`
}

type RecommendConfig struct {
	TopN              int `koanf:"top_n"`
	ForecastHorizon   int `koanf:"forecast_horizon"`
	LeadTimeDays      int `koanf:"lead_time_days"`
	SupplyDays        int `koanf:"supply_days"`
	MinHistoryDays    int `koanf:"min_history_days"`
	InactivityDays    int `koanf:"inactivity_days"`
	SegmentPercentile int `koanf:"segment_percentile"`
	HistoryDays       int `koanf:"history_days"`
	LookbackDays      int `koanf:"lookback_days"`
}

type WarmupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// DefaultWindowSize returns the parsed analytics.default_window.
func (c AnalyticsConfig) DefaultWindowSize() time.Duration {
	spec, err := aggregation.ParseWindowSize(c.DefaultWindow)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return spec.Size
}

// Settings converts the breaker section for storage.NewBreaker.
func (c BreakerConfig) Settings() storage.BreakerSettings {
	return storage.BreakerSettings{
		Name:         "datasource",
		MaxRequests:  c.MaxRequests,
		Interval:     c.Interval,
		Timeout:      c.Timeout,
		FailureRatio: c.FailureRatio,
		MinRequests:  c.MinRequests,
	}
}

// SlogLevel maps log.level onto a slog level. Unknown values fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server.rate_limit_burst must be > 0 when rate limiting is enabled")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be > 0")
	}

	if c.Breaker.Enabled {
		if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
			return fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio)
		}
		if c.Breaker.Timeout <= 0 {
			return fmt.Errorf("breaker.timeout must be > 0")
		}
		if c.Breaker.MaxRequests == 0 {
			return fmt.Errorf("breaker.max_requests must be > 0")
		}
	}

	switch c.Cache.Backend {
	case "memory":
		if c.Cache.Capacity <= 0 {
			return fmt.Errorf("cache.capacity must be > 0")
		}
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache.backend %q (must be memory or redis)", c.Cache.Backend)
	}
	if c.Cache.AggregateTTL < 0 || c.Cache.RecommendationTTL < 0 {
		return fmt.Errorf("cache TTLs must be >= 0")
	}

	if _, err := aggregation.ParseWindowSize(c.Analytics.DefaultWindow); err != nil {
		return fmt.Errorf("invalid analytics.default_window: %w", err)
	}
	if c.Analytics.WindowAlign <= 0 {
		return fmt.Errorf("analytics.window_align must be > 0")
	}
	if c.Analytics.DefaultLimit <= 0 {
		return fmt.Errorf("analytics.default_limit must be > 0")
	}
	if c.Analytics.MaxLimit < c.Analytics.DefaultLimit {
		return fmt.Errorf("analytics.max_limit (%d) must be >= default_limit (%d)", c.Analytics.MaxLimit, c.Analytics.DefaultLimit)
	}

	r := c.Recommend
	if r.TopN < 1 || r.TopN > 24 {
		return fmt.Errorf("recommend.top_n must be between 1 and 24")
	}
	if r.ForecastHorizon < 1 || r.ForecastHorizon > 90 {
		return fmt.Errorf("recommend.forecast_horizon must be between 1 and 90")
	}
	if r.SegmentPercentile < 1 || r.SegmentPercentile > 100 {
		return fmt.Errorf("recommend.segment_percentile must be between 1 and 100")
	}
	if r.LeadTimeDays <= 0 || r.SupplyDays <= 0 || r.InactivityDays <= 0 {
		return fmt.Errorf("recommend lead_time_days, supply_days and inactivity_days must be > 0")
	}
	if r.MinHistoryDays < 0 {
		return fmt.Errorf("recommend.min_history_days must be >= 0")
	}
	if r.HistoryDays < 2*r.ForecastHorizon {
		return fmt.Errorf("recommend.history_days (%d) must cover twice the forecast horizon", r.HistoryDays)
	}
	if r.LookbackDays <= r.InactivityDays {
		return fmt.Errorf("recommend.lookback_days (%d) must exceed inactivity_days (%d)", r.LookbackDays, r.InactivityDays)
	}
	if r.LookbackDays > aggregation.MaxBuckets {
		return fmt.Errorf("recommend.lookback_days must be <= %d", aggregation.MaxBuckets)
	}

	if c.Warmup.Enabled && c.Warmup.Interval <= 0 {
		return fmt.Errorf("warmup.interval must be > 0")
	}
	if c.Warmup.Enabled && c.Analytics.WindowAlign%c.Warmup.Interval != 0 {
		return fmt.Errorf("analytics.window_align (%s) must be a multiple of warmup.interval (%s)", c.Analytics.WindowAlign, c.Warmup.Interval)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	return nil
}

// Load parses config from file + env, validates it, then loads the metric catalog.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                  8080,
		"server.host":                  "0.0.0.0",
		"server.mode":                  "release",
		"server.rate_limit_rps":        50.0,
		"server.rate_limit_burst":      100,
		"database.type":                "postgres",
		"database.dsn":                 "postgres://localhost:5432/tradepulse?sslmode=disable",
		"database.max_open_conns":      25,
		"database.max_idle_conns":      25,
		"database.auto_migrate":        false,
		"database.query_timeout":       5 * time.Second,
		"breaker.enabled":              true,
		"breaker.max_requests":         3,
		"breaker.interval":             time.Minute,
		"breaker.timeout":              30 * time.Second,
		"breaker.failure_ratio":        0.6,
		"breaker.min_requests":         10,
		"cache.enabled":                true,
		"cache.backend":                "memory",
		"cache.capacity":               4096,
		"cache.shards":                 16,
		"cache.aggregate_ttl":          5 * time.Minute,
		"cache.recommendation_ttl":     10 * time.Minute,
		"cache.redis.addr":             "",
		"cache.redis.db":               0,
		"cache.redis.namespace":        "tradepulse",
		"cache.redis.dial_timeout":     2 * time.Second,
		"analytics.default_window":     "30d",
		"analytics.window_align":       5 * time.Minute,
		"analytics.default_limit":      20,
		"analytics.max_limit":          100,
		"analytics.catalog_dir":        "./config/metrics",
		"recommend.top_n":              3,
		"recommend.forecast_horizon":   7,
		"recommend.lead_time_days":     7,
		"recommend.supply_days":        30,
		"recommend.min_history_days":   7,
		"recommend.inactivity_days":    30,
		"recommend.segment_percentile": 80,
		"recommend.history_days":       60,
		"recommend.lookback_days":      1095,
		"warmup.enabled":               false,
		"warmup.interval":              5 * time.Minute,
		"log.level":                    "info",
		"log.format":                   "text",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := aggregation.NewCatalog(cfg.Analytics.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric catalog: %w", err)
	}
	cfg.Catalog = catalog

	return &cfg, nil
}
