package aggregation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeMetric is a test helper that writes a single metric YAML file into dir.
func writeMetric(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewCatalog_BuiltinsOnly(t *testing.T) {
	catalog, err := NewCatalog(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	require.Len(t, catalog.Names(), len(BuiltinMetrics()))
	for _, name := range catalog.Names() {
		spec, err := catalog.Get(name)
		require.NoError(t, err)
		require.Len(t, spec.Fingerprint, 64, name)
	}
}

func TestNewCatalog_FileOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeMetric(t, dir, "geography.yaml", `
name: "geography"
source: "order"
group_by: ["state"]
measures:
  - name: "revenue"
    field: "total_price"
    op: "sum"
filters:
  - field: "status"
    op: "eq"
    value: "DELIVERED"
rank:
  by: "revenue"
  limit: 10
`)
	writeMetric(t, dir, "notes.txt", "ignored")
	writeMetric(t, dir, "empty.yml", "# nothing here\n")

	builtin, err := NewCatalog("")
	require.NoError(t, err)
	catalog, err := NewCatalog(dir)
	require.NoError(t, err)

	spec, err := catalog.Get(MetricGeography)
	require.NoError(t, err)
	require.Equal(t, []string{DimState}, spec.GroupBy)
	require.Equal(t, &Ranking{By: "revenue", Limit: 10}, spec.Rank)
	require.Equal(t, []Filter{{Field: DimStatus, Op: FilterEq, Value: "DELIVERED"}}, spec.Filters)
	require.NotEqual(t, builtin.MustGet(MetricGeography).Fingerprint, spec.Fingerprint)
}

func TestNewCatalog_RejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown source",
			content: `
name: "bad"
source: "invoice"
`,
		},
		{
			name: "unknown field",
			content: `
name: "bad"
source: "order"
measures:
  - {name: "weight", field: "weight_kg", op: "sum"}
`,
		},
		{
			name: "unknown grouping",
			content: `
name: "bad"
source: "booking"
group_by: ["pincode"]
`,
		},
		{
			name: "unsupported operator",
			content: `
name: "bad"
source: "order"
measures:
  - {name: "revenue", field: "total_price", op: "median"}
`,
		},
		{
			name: "rank by unknown measure",
			content: `
name: "bad"
source: "order"
rank: {by: "profit", limit: 5}
`,
		},
		{
			name:    "malformed yaml",
			content: "name: [",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeMetric(t, dir, "bad.yaml", tc.content)
			_, err := NewCatalog(dir)
			require.Error(t, err)
		})
	}
}

func TestNewCatalog_DuplicateNamesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	body := `
name: "daily_orders"
source: "order"
group_by: ["bucket"]
`
	writeMetric(t, dir, "a.yaml", body)
	writeMetric(t, dir, "b.yaml", body)

	_, err := NewCatalog(dir)
	require.ErrorContains(t, err, "defined in both")
}

func TestCatalog_GetUnknown(t *testing.T) {
	catalog, err := NewCatalog("")
	require.NoError(t, err)

	_, err = catalog.Get("nope")
	require.ErrorIs(t, err, ErrInvalidSpecification)
}

func TestResolveGroupBy(t *testing.T) {
	spec := MetricSpec{Name: "m", Source: SourceOrder}

	dims, err := spec.ResolveGroupBy([]string{DimDayOfWeek, DimHourOfDay})
	require.NoError(t, err)
	require.Equal(t, DimDayOfWeek, dims[0].Name)
	require.Equal(t, DimHourOfDay, dims[1].Name)

	_, err = spec.ResolveGroupBy([]string{DimServiceID})
	require.ErrorIs(t, err, ErrInvalidSpecification)

	_, err = spec.ResolveGroupBy([]string{DimCity, DimCity})
	require.ErrorIs(t, err, ErrInvalidSpecification)
}
