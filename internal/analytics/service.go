package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/aevon-lab/tradepulse/internal/cache"
	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
)

const maxWindowDays = 3660

// Config holds the report defaults.
type Config struct {
	DefaultWindow time.Duration
	// WindowAlign truncates the default window end so that requests arriving
	// within the same interval share cache keys.
	WindowAlign  time.Duration
	DefaultLimit int
	MaxLimit     int
	AggregateTTL time.Duration
}

// WindowParams are the raw window inputs of a request.
type WindowParams struct {
	Start       string `form:"start"`
	End         string `form:"end"`
	Days        int    `form:"days"`
	Granularity string `form:"granularity"`
}

// Service runs the analytics reports. Every report and every aggregate it
// hands out goes through the cache.
type Service struct {
	engine  *Engine
	catalog *aggregation.Catalog
	cache   *cache.Cache
	cfg     Config
	nowFn   func() time.Time
}

// NewService creates the analytics service. c may be nil to disable caching.
func NewService(engine *Engine, catalog *aggregation.Catalog, c *cache.Cache, cfg Config) *Service {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 30 * 24 * time.Hour
	}
	if cfg.WindowAlign <= 0 {
		cfg.WindowAlign = 5 * time.Minute
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &Service{
		engine:  engine,
		catalog: catalog,
		cache:   c,
		cfg:     cfg,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Catalog returns the metric catalog.
func (s *Service) Catalog() *aggregation.Catalog {
	return s.catalog
}

// Now returns the current time truncated to the window alignment.
func (s *Service) Now() time.Time {
	return s.nowFn().UTC().Truncate(s.cfg.WindowAlign)
}

// Aggregate runs the engine behind the cache with the aggregate TTL.
func (s *Service) Aggregate(ctx context.Context, spec aggregation.MetricSpec, window aggregation.Window, groupBy []string) ([]aggregation.AggregateRow, error) {
	key := cache.NewKey("aggregate").Metric(spec).Window(window).Strings("group_by", groupBy)
	return cache.GetOrCompute(ctx, s.cache, key.String(), s.cfg.AggregateTTL, func(ctx context.Context) ([]aggregation.AggregateRow, error) {
		return s.engine.Aggregate(ctx, spec, window, groupBy)
	})
}

// report caches a whole report under identity "report.<name>".
func report[V any](ctx context.Context, s *Service, key *cache.KeyBuilder, compute func(context.Context) (V, error)) (V, error) {
	return cache.GetOrCompute(ctx, s.cache, key.String(), s.cfg.AggregateTTL, compute)
}

// ResolveWindow turns request parameters into a window. Without an explicit
// end the window ends at Now; without a start it spans Days, or the
// configured default window.
func (s *Service) ResolveWindow(p WindowParams) (aggregation.Window, error) {
	granularity, err := aggregation.ParseGranularity(p.Granularity)
	if err != nil {
		return aggregation.Window{}, err
	}

	end := s.Now()
	if p.End != "" {
		if end, err = parseTime(p.End); err != nil {
			return aggregation.Window{}, err
		}
	}

	if p.Days < 0 || p.Days > maxWindowDays {
		return aggregation.Window{}, aggregation.InvalidSpecf("days must be between 1 and %d", maxWindowDays)
	}

	var start time.Time
	switch {
	case p.Start != "":
		if start, err = parseTime(p.Start); err != nil {
			return aggregation.Window{}, err
		}
	case p.Days > 0:
		start = end.AddDate(0, 0, -p.Days)
	default:
		start = end.Add(-s.cfg.DefaultWindow)
	}

	return aggregation.NewWindow(start, end, granularity)
}

// ResolveLimit applies the default and maximum limits.
func (s *Service) ResolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, aggregation.InvalidSpecf("limit must not be negative")
	case limit == 0:
		return s.cfg.DefaultLimit, nil
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit, nil
	default:
		return limit, nil
	}
}

// DefaultWindow is the window used when a request names none.
func (s *Service) DefaultWindow() aggregation.Window {
	end := s.Now()
	return aggregation.Window{Start: end.Add(-s.cfg.DefaultWindow), End: end, Granularity: aggregation.GranularityDay}
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, aggregation.InvalidSpecf("invalid time %q (use RFC3339 or YYYY-MM-DD)", v)
}
