package recommend

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Overview computes every recommendation kind concurrently. A kind that
// fails is reported in Skipped and never blocks the others; Overview itself
// only fails when ctx is canceled.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		mu  sync.Mutex
		out = Overview{
			Restock:    []Recommendation{},
			Pricing:    []Recommendation{},
			Retention:  []Recommendation{},
			Operations: []Recommendation{},
			Skipped:    []Skipped{},
		}
	)

	skip := func(kind Kind, err error) {
		slog.Warn("[Recommend] Skipping kind", "kind", kind, "error", err)
		mu.Lock()
		out.Skipped = append(out.Skipped, Skipped{Kind: kind, Reason: err.Error()})
		mu.Unlock()
	}

	// Each task reports its own failure, so the group never cancels siblings.
	var g errgroup.Group
	g.Go(func() error {
		res, err := s.BestOrderTime(ctx, 0)
		if err != nil {
			skip(KindBestOrderTime, err)
			return nil
		}
		mu.Lock()
		out.BestOrderTime = &res
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		res, err := s.DemandForecast(ctx, 0)
		if err != nil {
			skip(KindDemandForecast, err)
			return nil
		}
		mu.Lock()
		out.Forecast = &res
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		res, err := s.CustomerSegments(ctx)
		if err != nil {
			skip(KindSegmentation, err)
			return nil
		}
		mu.Lock()
		out.Segments = &res
		mu.Unlock()
		return nil
	})

	lists := []struct {
		kind Kind
		run  func(context.Context) ([]Recommendation, error)
		dst  *[]Recommendation
	}{
		{KindRestock, func(ctx context.Context) ([]Recommendation, error) { return s.Restock(ctx, "") }, &out.Restock},
		{KindPricing, s.Pricing, &out.Pricing},
		{KindRetention, s.Retention, &out.Retention},
		{KindOperations, s.Operations, &out.Operations},
	}
	for _, l := range lists {
		g.Go(func() error {
			res, err := l.run(ctx)
			if err != nil {
				skip(l.kind, err)
				return nil
			}
			mu.Lock()
			*l.dst = res
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return Overview{}, err
	}
	sort.SliceStable(out.Skipped, func(i, j int) bool {
		return kindOrder[out.Skipped[i].Kind] < kindOrder[out.Skipped[j].Kind]
	})
	return out, nil
}

var kindOrder = map[Kind]int{
	KindBestOrderTime:  0,
	KindDemandForecast: 1,
	KindRestock:        2,
	KindPricing:        3,
	KindRetention:      4,
	KindOperations:     5,
	KindSegmentation:   6,
}

// Warm precomputes every recommendation kind. Skipped kinds are already
// logged by Overview and are not reported as failures.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Overview(ctx)
	return err
}
