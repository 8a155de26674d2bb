package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker in front of a DataSource.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state counting window
	Timeout      time.Duration // open duration before probing
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "datasource",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  10,
	}
}

// Breaker wraps a DataSource with a circuit breaker. While the circuit is open
// queries fail fast with ErrDataSourceUnavailable instead of waiting on the
// store. Only unavailability counts as a failure; caller errors and
// cancellations never trip the circuit.
type Breaker struct {
	next    DataSource
	cb      *gobreaker.CircuitBreaker[[]RawRow]
	name    string
	metrics *Metrics
}

// NewBreaker wraps next. metrics may be nil.
func NewBreaker(next DataSource, settings BreakerSettings, metrics *Metrics) *Breaker {
	b := &Breaker{next: next, name: settings.Name, metrics: metrics}
	b.cb = gobreaker.NewCircuitBreaker[[]RawRow](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= settings.FailureRatio {
				slog.Warn("[Breaker] Opening circuit",
					"name", settings.Name,
					"failures", counts.TotalFailures,
					"failure_ratio", ratio,
				)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("[Breaker] State transition", "name", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, from.String(), to.String(), stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrDataSourceUnavailable)
		},
	})
	metrics.SetBreakerState(settings.Name, "closed", "closed", 0)
	return b
}

// Query runs q through the circuit breaker.
func (b *Breaker) Query(ctx context.Context, q Query) ([]RawRow, error) {
	start := time.Now()
	rows, err := b.cb.Execute(func() ([]RawRow, error) {
		return b.next.Query(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = Unavailable("circuit "+b.name, err)
	}
	b.metrics.ObserveQuery(string(q.Source), time.Since(start), err)
	return rows, err
}

// Ping bypasses the breaker so health checks report the store's real state.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

// State reports the current circuit state ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
