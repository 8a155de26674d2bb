package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/tradepulse/internal/analytics"
	"github.com/aevon-lab/tradepulse/internal/cache"
	corecfg "github.com/aevon-lab/tradepulse/internal/core/config"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
	"github.com/aevon-lab/tradepulse/internal/core/storage/postgres"
	"github.com/aevon-lab/tradepulse/internal/migrations"
	"github.com/aevon-lab/tradepulse/internal/recommend"
	"github.com/aevon-lab/tradepulse/internal/server"
	"github.com/aevon-lab/tradepulse/internal/warmup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "tradepulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Bootstrap logger until the configured one is available
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration (and the metric catalog)
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("Loaded config",
		"server", cfg.Server,
		"cache_backend", cfg.Cache.Backend,
		"metrics", len(cfg.Catalog.Names()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.QueryTimeout,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations (local development only, off by default)
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := dbAdapter.ValidateSchema(ctx); err != nil {
		slog.Error("Transactional schema check failed", "error", err)
		os.Exit(1)
	}

	// 2.2. Circuit breaker in front of the data source
	storageMetrics := storage.NewMetrics(registry)
	var source storage.DataSource = dbAdapter
	if cfg.Breaker.Enabled {
		source = storage.NewBreaker(dbAdapter, cfg.Breaker.Settings(), storageMetrics)
	}

	// 3. Initialize Cache
	store, closeStore, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	resultCache := cache.New(store, cache.Options{
		Enabled: cfg.Cache.Enabled,
		Metrics: cache.NewMetrics(registry),
	})

	// 4. Initialize Analytics (aggregation engine + reports)
	analyticsSvc := analytics.NewService(analytics.NewEngine(source), cfg.Catalog, resultCache, analytics.Config{
		DefaultWindow: cfg.Analytics.DefaultWindowSize(),
		WindowAlign:   cfg.Analytics.WindowAlign,
		DefaultLimit:  cfg.Analytics.DefaultLimit,
		MaxLimit:      cfg.Analytics.MaxLimit,
		AggregateTTL:  cfg.Cache.AggregateTTL,
	})

	// 5. Initialize Recommendations (reads cached aggregates through analytics)
	recommendSvc := recommend.NewService(analyticsSvc, cfg.Catalog, resultCache, recommend.Config{
		TopN:              cfg.Recommend.TopN,
		ForecastHorizon:   cfg.Recommend.ForecastHorizon,
		LeadTimeDays:      cfg.Recommend.LeadTimeDays,
		SupplyDays:        cfg.Recommend.SupplyDays,
		MinHistoryDays:    cfg.Recommend.MinHistoryDays,
		InactivityDays:    cfg.Recommend.InactivityDays,
		SegmentPercentile: cfg.Recommend.SegmentPercentile,
		HistoryDays:       cfg.Recommend.HistoryDays,
		LookbackDays:      cfg.Recommend.LookbackDays,
		TTL:               cfg.Cache.RecommendationTTL,
	})

	// 6. Initialize Server
	srv := server.New(server.Options{
		Addr:           fmtAddr(cfg.Server.Host, cfg.Server.Port),
		Mode:           cfg.Server.Mode,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Gatherer:       registry,
		Checks: map[string]server.HealthChecker{
			"database": dbAdapter,
			"cache":    resultCache,
		},
		Cache: resultCache,
	})
	analyticsSvc.RegisterRoutes(srv.API())
	recommendSvc.RegisterRoutes(srv.API())

	// 7. Start cache warm-up in background if enabled
	if cfg.Warmup.Enabled && resultCache.Enabled() {
		scheduler := warmup.NewScheduler(cfg.Warmup.Interval,
			warmup.Warmer{Name: "analytics", Warm: analyticsSvc.Warm},
			warmup.Warmer{Name: "recommend", Warm: recommendSvc.Warm},
		)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Warm-up scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Cache warm-up disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func newLogger(w io.Writer, cfg corecfg.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newCacheStore builds the configured backend. The returned func releases it.
func newCacheStore(ctx context.Context, cfg corecfg.CacheConfig) (cache.Store, func(), error) {
	if cfg.Backend == "redis" {
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Namespace:   cfg.Redis.Namespace,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return cache.NewMemoryStore(cfg.Capacity, cfg.Shards), func() {}, nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
