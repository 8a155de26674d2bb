package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWindowSize(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSize  time.Duration
		wantError bool
	}{
		{name: "minute", input: "1m", wantSize: time.Minute},
		{name: "hour", input: "2h", wantSize: 2 * time.Hour},
		{name: "days suffix", input: "3d", wantSize: 72 * time.Hour},
		{name: "empty invalid", input: "", wantError: true},
		{name: "negative invalid", input: "-1m", wantError: true},
		{name: "zero invalid", input: "0m", wantError: true},
		{name: "bad day format invalid", input: "xd", wantError: true},
		{name: "unknown unit invalid", input: "10x", wantError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := ParseWindowSize(tc.input)
			if tc.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSize, spec.Size)
		})
	}
}

func TestTruncate(t *testing.T) {
	// Wednesday.
	ts := time.Date(2026, 2, 11, 10, 35, 42, 123456789, time.UTC)

	require.Equal(t, time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC), Truncate(ts, GranularityHour))
	require.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), Truncate(ts, GranularityDay))
	require.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), Truncate(ts, GranularityWeek))
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Truncate(ts, GranularityMonth))

	sunday := time.Date(2026, 2, 15, 23, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), Truncate(sunday, GranularityWeek))

	inTokyo := time.Date(2026, 2, 12, 3, 0, 0, 0, time.FixedZone("JST", 9*3600))
	require.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), Truncate(inTokyo, GranularityDay))
}

func TestNewWindow(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	w, err := NewWindow(start, start.Add(48*time.Hour), "")
	require.NoError(t, err)
	require.Equal(t, GranularityDay, w.Granularity)

	_, err = NewWindow(start, start.Add(-time.Second), GranularityDay)
	require.ErrorIs(t, err, ErrInvalidSpecification)

	_, err = NewWindow(start, start.Add(time.Hour), "fortnight")
	require.ErrorIs(t, err, ErrInvalidSpecification)

	_, err = NewWindow(start, start.AddDate(5, 0, 0), GranularityHour)
	require.ErrorIs(t, err, ErrInvalidSpecification)

	w, err = NewWindow(start, start, GranularityHour)
	require.NoError(t, err)
	require.Len(t, w.Buckets(), 1)
}

func TestWindowBuckets(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		g     Granularity
		want  []string
	}{
		{
			name:  "aligned days exclude end bucket",
			start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC),
			g:     GranularityDay,
			want:  []string{"2026-02-01T00:00:00Z", "2026-02-02T00:00:00Z", "2026-02-03T00:00:00Z"},
		},
		{
			name:  "partial days include both edges",
			start: time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC),
			g:     GranularityDay,
			want:  []string{"2026-02-01T00:00:00Z", "2026-02-02T00:00:00Z"},
		},
		{
			name:  "hours",
			start: time.Date(2026, 2, 1, 22, 30, 0, 0, time.UTC),
			end:   time.Date(2026, 2, 2, 1, 0, 0, 0, time.UTC),
			g:     GranularityHour,
			want:  []string{"2026-02-01T22:00:00Z", "2026-02-01T23:00:00Z", "2026-02-02T00:00:00Z"},
		},
		{
			name:  "months",
			start: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			g:     GranularityMonth,
			want:  []string{"2026-01-01T00:00:00Z", "2026-02-01T00:00:00Z", "2026-03-01T00:00:00Z"},
		},
		{
			name:  "weeks start monday",
			start: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC),
			g:     GranularityWeek,
			want:  []string{"2026-02-09T00:00:00Z", "2026-02-16T00:00:00Z"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewWindow(tc.start, tc.end, tc.g)
			require.NoError(t, err)
			require.Equal(t, tc.want, w.BucketLabels())
		})
	}
}

func TestWindowPreviousAndDays(t *testing.T) {
	start := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	w, err := NewWindow(start, start.AddDate(0, 0, 7), GranularityDay)
	require.NoError(t, err)

	prev := w.Previous()
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), prev.Start)
	require.Equal(t, start, prev.End)
	require.Equal(t, w.Duration(), prev.Duration())
	require.Equal(t, 7, w.Days())

	partial, err := NewWindow(start, start.Add(30*time.Hour), GranularityDay)
	require.NoError(t, err)
	require.Equal(t, 2, partial.Days())
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity(" Week ")
	require.NoError(t, err)
	require.Equal(t, GranularityWeek, g)

	g, err = ParseGranularity("")
	require.NoError(t, err)
	require.Equal(t, GranularityDay, g)

	_, err = ParseGranularity("minute")
	require.ErrorIs(t, err, ErrInvalidSpecification)
}
