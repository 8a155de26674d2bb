package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

// ErrDataSourceUnavailable is returned when the transactional store cannot be
// reached in time (timeout, refused connection, open circuit). Callers may retry
// with backoff. An empty result is never reported with this error.
var ErrDataSourceUnavailable = errors.New("data source unavailable")

// Query asks for grouped aggregates of one source within a window.
type Query struct {
	Source   aggregation.SourceType
	Window   aggregation.Window
	GroupBy  []string
	Measures []aggregation.Measure
	Filters  []aggregation.Filter
}

// RawRow is one group returned by a DataSource.
// Group follows Query.GroupBy order; Values is keyed by measure name.
type RawRow struct {
	Group  []string
	Count  int64
	Values map[string]decimal.Decimal
}

// DataSource executes grouped aggregate queries against the transactional store.
// Implementations are read-only.
type DataSource interface {
	Query(ctx context.Context, q Query) ([]RawRow, error)
	Ping(ctx context.Context) error
}

// Unavailable wraps cause so that errors.Is(err, ErrDataSourceUnavailable) holds.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrDataSourceUnavailable, op, cause)
}
