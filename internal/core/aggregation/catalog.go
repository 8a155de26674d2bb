package aggregation

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in metric names.
const (
	MetricPaymentBreakdown   = "payment_breakdown"
	MetricPaymentLosses      = "payment_losses"
	MetricPaymentTrend       = "payment_trend"
	MetricHourlyPayments     = "hourly_payments"
	MetricCustomerPayments   = "customer_payments"
	MetricOrderActivity      = "order_activity"
	MetricOrderFulfilment    = "order_fulfilment"
	MetricOrderStatus        = "order_status"
	MetricProductSales       = "product_sales"
	MetricProductDailyDemand = "product_daily_demand"
	MetricCategorySales      = "category_sales"
	MetricCustomerValue      = "customer_value"
	MetricGeography          = "geography"
	MetricProductCatalog     = "product_catalog"
	MetricBookingActivity    = "booking_activity"
)

var notCancelled = Filter{Field: DimStatus, Op: FilterNe, Value: "CANCELLED"}

// BuiltinMetrics returns the metric definitions compiled into the binary.
func BuiltinMetrics() []MetricSpec {
	return []MetricSpec{
		{
			Name:     MetricPaymentBreakdown,
			Source:   SourcePayment,
			Measures: []Measure{{Name: "amount", Field: FieldAmount, Op: OpSum}},
			Filters:  []Filter{notCancelled},
			GroupBy:  []string{DimPaymentMethod},
		},
		{
			// Failed and refunded orders count as losses whatever their order status.
			Name:     MetricPaymentLosses,
			Source:   SourcePayment,
			Measures: []Measure{{Name: "amount", Field: FieldAmount, Op: OpSum}},
			GroupBy:  []string{DimPaymentMethod},
		},
		{
			Name:     MetricPaymentTrend,
			Source:   SourcePayment,
			Measures: []Measure{{Name: "amount", Field: FieldAmount, Op: OpSum}},
			Filters:  []Filter{notCancelled},
			GroupBy:  []string{DimBucket, DimPaymentMethod},
		},
		{
			Name:     MetricHourlyPayments,
			Source:   SourcePayment,
			Measures: []Measure{{Name: "amount", Field: FieldAmount, Op: OpSum}},
			Filters:  []Filter{notCancelled},
			GroupBy:  []string{DimHourOfDay, DimPaymentMethod},
		},
		{
			Name:     MetricCustomerPayments,
			Source:   SourcePayment,
			Measures: []Measure{{Name: "amount", Field: FieldAmount, Op: OpSum}},
			Filters:  []Filter{notCancelled},
			GroupBy:  []string{DimUserID, DimPaymentMethod},
		},
		{
			Name:   MetricOrderActivity,
			Source: SourceOrder,
			Measures: []Measure{
				{Name: "revenue", Field: FieldTotalPrice, Op: OpSum},
				{Name: "order_value", Field: FieldTotalPrice, Op: OpAvg},
			},
			GroupBy: []string{DimHourOfDay},
		},
		{
			Name:   MetricOrderFulfilment,
			Source: SourceOrder,
			Measures: []Measure{
				{Name: "delivered", Field: FieldDelivered, Op: OpSum},
				{Name: "completion_hours", Field: FieldCompletionHours, Op: OpAvg},
			},
			GroupBy: []string{DimHourOfDay},
		},
		{
			Name:     MetricOrderStatus,
			Source:   SourceOrder,
			Measures: []Measure{{Name: "revenue", Field: FieldTotalPrice, Op: OpSum}},
			GroupBy:  []string{DimStatus},
		},
		{
			Name:   MetricProductSales,
			Source: SourceOrder,
			Measures: []Measure{
				{Name: "units", Field: FieldQuantity, Op: OpSum},
				{Name: "revenue", Field: FieldTotalPrice, Op: OpSum},
			},
			Filters: []Filter{notCancelled},
			GroupBy: []string{DimProductID, DimProductName},
			Rank:    &Ranking{By: OpCount, Limit: 20},
		},
		{
			Name:     MetricProductDailyDemand,
			Source:   SourceOrder,
			Measures: []Measure{{Name: "units", Field: FieldQuantity, Op: OpSum}},
			Filters:  []Filter{notCancelled},
			GroupBy:  []string{DimProductID, DimProductName, DimBucket},
		},
		{
			Name:   MetricCategorySales,
			Source: SourceOrder,
			Measures: []Measure{
				{Name: "revenue", Field: FieldTotalPrice, Op: OpSum},
				{Name: "units", Field: FieldQuantity, Op: OpSum},
			},
			Filters: []Filter{notCancelled},
			GroupBy: []string{DimCategoryID, DimCategoryName},
		},
		{
			Name:   MetricCustomerValue,
			Source: SourceOrder,
			Measures: []Measure{
				{Name: "spent", Field: FieldTotalPrice, Op: OpSum},
				{Name: "order_value", Field: FieldTotalPrice, Op: OpAvg},
				{Name: "first_order", Field: FieldCreatedEpoch, Op: OpMin},
				{Name: "last_order", Field: FieldCreatedEpoch, Op: OpMax},
			},
			Filters: []Filter{notCancelled},
			GroupBy: []string{DimUserID},
		},
		{
			Name:     MetricGeography,
			Source:   SourceOrder,
			Measures: []Measure{{Name: "revenue", Field: FieldTotalPrice, Op: OpSum}},
			GroupBy:  []string{DimCity, DimState},
			Rank:     &Ranking{By: OpCount, Limit: 50},
		},
		{
			Name:   MetricProductCatalog,
			Source: SourceProduct,
			Measures: []Measure{
				{Name: "price", Field: FieldPrice, Op: OpMax},
				{Name: "stock", Field: FieldStock, Op: OpSum},
			},
			GroupBy: []string{DimProductID, DimProductName, DimCategoryID},
		},
		{
			Name:     MetricBookingActivity,
			Source:   SourceBooking,
			Measures: []Measure{{Name: "revenue", Field: FieldPrice, Op: OpSum}},
			GroupBy:  []string{DimBucket},
		},
	}
}

// Catalog holds the metric definitions available to the engine.
// Files in the catalog directory override built-ins with the same name.
type Catalog struct {
	dir   string
	specs map[string]MetricSpec
}

// NewCatalog loads the built-ins, then every *.yaml / *.yml file in dir.
// A missing directory is valid and leaves only the built-ins.
func NewCatalog(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir, specs: make(map[string]MetricSpec)}
	for _, spec := range BuiltinMetrics() {
		data, err := yaml.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("fingerprint metric %q: %w", spec.Name, err)
		}
		spec.Fingerprint = fingerprint(data)
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("built-in metric %q: %w", spec.Name, err)
		}
		c.specs[spec.Name] = spec
	}
	if dir == "" {
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) load() error {
	info, err := os.Stat(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("metric catalog dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("metric catalog path %q is not a directory", c.dir)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading metric catalog dir: %w", err)
	}

	fromFiles := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(c.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading metric file %s: %w", path, err)
		}

		var spec MetricSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parsing metric file %s: %w", path, err)
		}
		if spec.Name == "" {
			continue // comment-only file
		}
		if prev, dup := fromFiles[spec.Name]; dup {
			return fmt.Errorf("metric %q: defined in both %s and %s", spec.Name, prev, path)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("metric file %s: %w", path, err)
		}

		spec.Fingerprint = fingerprint(data)
		fromFiles[spec.Name] = path
		c.specs[spec.Name] = spec
	}
	return nil
}

// Get returns the metric with the given name.
func (c *Catalog) Get(name string) (MetricSpec, error) {
	spec, ok := c.specs[name]
	if !ok {
		return MetricSpec{}, InvalidSpecf("unknown metric %q", name)
	}
	return spec, nil
}

// MustGet is Get for metrics known to be built in.
func (c *Catalog) MustGet(name string) MetricSpec {
	spec, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return spec
}

// Names returns every metric name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fingerprint(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
