package aggregation

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the bucket width of a window.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// MaxBuckets caps how many buckets a single window may enumerate.
const MaxBuckets = 10000

// BucketLayout is the canonical text form of a bucket start.
const BucketLayout = time.RFC3339

// ParseGranularity validates a granularity name. Empty means day.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GranularityDay, nil
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	default:
		return "", InvalidSpecf("unsupported granularity %q (must be hour, day, week or month)", s)
	}
}

// Window is a bounded time range plus bucket granularity.
type Window struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Granularity Granularity `json:"granularity"`
}

// NewWindow builds a validated window. Times are normalized to UTC.
func NewWindow(start, end time.Time, granularity Granularity) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC(), Granularity: granularity}
	if w.Granularity == "" {
		w.Granularity = GranularityDay
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// WindowEndingAt returns the window of the given size ending at end.
func WindowEndingAt(end time.Time, size time.Duration, granularity Granularity) (Window, error) {
	return NewWindow(end.Add(-size), end, granularity)
}

// Validate checks ordering, granularity and bucket count.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return InvalidSpecf("window end %s precedes start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	if _, err := ParseGranularity(string(w.Granularity)); err != nil {
		return err
	}
	count := 0
	for cur := Truncate(w.Start, w.Granularity); cur.Before(w.End); cur = Next(cur, w.Granularity) {
		count++
		if count > MaxBuckets {
			return InvalidSpecf("window spans more than %d %s buckets", MaxBuckets, w.Granularity)
		}
	}
	return nil
}

// Duration is End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Days is the window length in whole days, at least 1.
func (w Window) Days() int {
	days := int((w.Duration() + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// Previous returns the adjacent window of equal length ending at Start.
func (w Window) Previous() Window {
	return Window{
		Start:       w.Start.Add(-w.Duration()),
		End:         w.Start,
		Granularity: w.Granularity,
	}
}

// Buckets enumerates bucket starts covering the window, ascending.
// A zero-length window still yields the bucket containing Start.
func (w Window) Buckets() []time.Time {
	cur := Truncate(w.Start, w.Granularity)
	if !cur.Before(w.End) {
		return []time.Time{cur}
	}
	var out []time.Time
	for ; cur.Before(w.End); cur = Next(cur, w.Granularity) {
		out = append(out, cur)
	}
	return out
}

// BucketLabels returns Buckets formatted with BucketLayout.
func (w Window) BucketLabels() []string {
	buckets := w.Buckets()
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = FormatBucket(b)
	}
	return labels
}

// String renders the window for logs and cache keys.
func (w Window) String() string {
	return fmt.Sprintf("%s/%s/%s", w.Start.UTC().Format(time.RFC3339Nano), w.End.UTC().Format(time.RFC3339Nano), w.Granularity)
}

// Truncate returns the start of the bucket containing t.
// Weeks start on Monday; months on day 1.
func Truncate(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := truncateToDay(t)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return truncateToDay(t)
	}
}

// Next returns the start of the bucket after the one starting at t.
func Next(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityHour:
		return t.Add(time.Hour)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// FormatBucket renders a bucket start in canonical form.
func FormatBucket(t time.Time) string {
	return t.UTC().Format(BucketLayout)
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// WindowSpec represents a parsed and validated window size.
type WindowSpec struct {
	Size time.Duration
}

// ParseWindowSize parses a duration string into a WindowSpec.
// Supports Go duration syntax (e.g., "10s", "1m", "1h") plus "Xd" for days.
func ParseWindowSize(s string) (WindowSpec, error) {
	if s == "" {
		return WindowSpec{}, fmt.Errorf("window size must not be empty")
	}

	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return WindowSpec{}, fmt.Errorf("invalid window size %q: %w", s, err)
		}
		if days <= 0 {
			return WindowSpec{}, fmt.Errorf("window size must be positive, got %q", s)
		}
		return WindowSpec{Size: time.Duration(days) * 24 * time.Hour}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return WindowSpec{}, fmt.Errorf("invalid window size %q: %w", s, err)
	}
	if d <= 0 {
		return WindowSpec{}, fmt.Errorf("window size must be positive, got %q", s)
	}
	return WindowSpec{Size: d}, nil
}
