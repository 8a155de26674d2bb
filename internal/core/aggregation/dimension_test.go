package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDimensionNormalize(t *testing.T) {
	tests := []struct {
		dim  string
		in   string
		want string
	}{
		{dim: DimHourOfDay, in: "07", want: "7"},
		{dim: DimHourOfDay, in: "13.0", want: "13"},
		{dim: DimDayOfWeek, in: "monday", want: "Monday"},
		{dim: DimDayOfWeek, in: "7", want: "Sunday"},
		{dim: DimBucket, in: "2026-02-01 00:00:00", want: "2026-02-01T00:00:00Z"},
		{dim: DimBucket, in: "2026-02-01T05:30:00+05:30", want: "2026-02-01T00:00:00Z"},
		{dim: DimStatus, in: "delivered", want: "DELIVERED"},
		{dim: DimPaymentMethod, in: "Cash", want: "cash"},
		{dim: DimCity, in: " Pune ", want: "Pune"},
	}

	src := Sources[SourceOrder]
	for _, tc := range tests {
		t.Run(tc.dim+"/"+tc.in, func(t *testing.T) {
			d, ok := src.Dimension(tc.dim)
			require.True(t, ok)
			require.Equal(t, tc.want, d.Normalize(tc.in))
		})
	}
}

func TestDimensionEnumerate(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	w, err := NewWindow(start, start.AddDate(0, 0, 2), GranularityDay)
	require.NoError(t, err)

	src := Sources[SourceOrder]

	hour, _ := src.Dimension(DimHourOfDay)
	require.True(t, hour.Enumerable())
	require.Len(t, hour.Enumerate(w), 24)
	require.Equal(t, 13, hour.Rank("13"))

	bucket, _ := src.Dimension(DimBucket)
	require.True(t, bucket.Enumerable())
	require.Equal(t, []string{"2026-02-01T00:00:00Z", "2026-02-02T00:00:00Z"}, bucket.Enumerate(w))

	city, _ := src.Dimension(DimCity)
	require.False(t, city.Enumerable())
	require.Nil(t, city.Enumerate(w))
	require.Equal(t, -1, city.Rank("Pune"))
}

func TestLookupSource(t *testing.T) {
	src, err := LookupSource(SourceProduct)
	require.NoError(t, err)
	require.False(t, src.Windowed)
	require.True(t, src.HasField(FieldStock))

	_, err = LookupSource("invoice")
	require.ErrorIs(t, err, ErrInvalidSpecification)
}
