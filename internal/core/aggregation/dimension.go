package aggregation

import (
	"strconv"
	"strings"
	"time"
)

// SourceType names a kind of transactional record.
type SourceType string

const (
	SourceOrder   SourceType = "order"
	SourcePayment SourceType = "payment"
	SourceBooking SourceType = "booking"
	SourceProduct SourceType = "product"
)

// Dimension names understood across sources.
const (
	DimHourOfDay     = "hour_of_day"
	DimDayOfWeek     = "day_of_week"
	DimBucket        = "bucket"
	DimStatus        = "status"
	DimPaymentMethod = "payment_method"
	DimProductID     = "product_id"
	DimProductName   = "product_name"
	DimCategoryID    = "category_id"
	DimCategoryName  = "category_name"
	DimUserID        = "user_id"
	DimCity          = "city"
	DimState         = "state"
	DimPincode       = "pincode"
	DimServiceID     = "service_id"
	DimServiceName   = "service_name"
	DimPriceBand     = "price_band"
)

// Numeric fields understood across sources.
const (
	FieldTotalPrice      = "total_price"
	FieldQuantity        = "quantity"
	FieldCompletionHours = "completion_hours"
	FieldDelivered       = "delivered"
	FieldCancelled       = "cancelled"
	FieldCreatedEpoch    = "created_epoch"
	FieldAmount          = "amount"
	FieldPrice           = "price"
	FieldStock           = "stock"
)

// Order lifecycle statuses, in lifecycle order.
var OrderStatuses = []string{"PENDING", "CONFIRMED", "SHIPPED", "OUT_FOR_DELIVERY", "DELIVERED", "CANCELLED", "RETURNED"}

// Booking statuses, in lifecycle order.
var BookingStatuses = []string{"PENDING", "CONFIRMED", "COMPLETED", "CANCELLED"}

// Payment methods derived from the order payment status.
// PENDING is collected on delivery (cash), PAID was settled online.
var PaymentMethods = []string{"cash", "online", "failed", "refunded"}

// Weekdays in natural (ISO) order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// PriceBands are the catalog price ranges, ascending.
var PriceBands = []string{"0-500", "500-1000", "1000-2000", "2000-5000", "5000+"}

// Hours is "0".."23".
var Hours = func() []string {
	out := make([]string, 24)
	for h := range out {
		out[h] = strconv.Itoa(h)
	}
	return out
}()

// Dimension describes one grouping field of a source.
// Values lists every possible value in natural order for bounded
// dimensions; Windowed dimensions enumerate the window buckets instead.
// Dimensions with neither are unbounded and never gap-filled.
type Dimension struct {
	Name      string
	Values    []string
	Windowed  bool
	Normalize func(string) string
}

// Enumerable reports whether every value of the dimension is known up front.
func (d Dimension) Enumerable() bool {
	return d.Windowed || len(d.Values) > 0
}

// Enumerate lists the dimension values for a window, or nil when unbounded.
func (d Dimension) Enumerate(w Window) []string {
	if d.Windowed {
		return w.BucketLabels()
	}
	return d.Values
}

// Rank returns the natural position of v, or -1 when the order is not fixed.
func (d Dimension) Rank(v string) int {
	for i, candidate := range d.Values {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Source describes the dimensions and numeric fields of a record type.
type Source struct {
	Type       SourceType
	Dimensions map[string]Dimension
	Fields     map[string]bool
	// Windowed is false for snapshot sources (the product catalog) whose rows
	// are not filtered by the window.
	Windowed bool
}

// Dimension looks up a grouping field.
func (s Source) Dimension(name string) (Dimension, bool) {
	d, ok := s.Dimensions[name]
	return d, ok
}

// HasField reports whether name is a numeric field of the source.
func (s Source) HasField(name string) bool {
	return s.Fields[name]
}

var (
	hourDim    = Dimension{Name: DimHourOfDay, Values: Hours, Normalize: normalizeHour}
	weekdayDim = Dimension{Name: DimDayOfWeek, Values: Weekdays, Normalize: normalizeWeekday}
	bucketDim  = Dimension{Name: DimBucket, Windowed: true, Normalize: normalizeBucket}
)

func unbounded(name string) Dimension {
	return Dimension{Name: name, Normalize: strings.TrimSpace}
}

func dims(list ...Dimension) map[string]Dimension {
	out := make(map[string]Dimension, len(list))
	for _, d := range list {
		out[d.Name] = d
	}
	return out
}

func fields(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Sources is the registry of queryable record types.
var Sources = map[SourceType]Source{
	SourceOrder: {
		Type:     SourceOrder,
		Windowed: true,
		Dimensions: dims(
			hourDim, weekdayDim, bucketDim,
			Dimension{Name: DimStatus, Values: OrderStatuses, Normalize: strings.ToUpper},
			Dimension{Name: DimPaymentMethod, Values: PaymentMethods, Normalize: strings.ToLower},
			unbounded(DimProductID), unbounded(DimProductName),
			unbounded(DimCategoryID), unbounded(DimCategoryName),
			unbounded(DimUserID), unbounded(DimCity), unbounded(DimState), unbounded(DimPincode),
		),
		Fields: fields(FieldTotalPrice, FieldQuantity, FieldCompletionHours, FieldDelivered, FieldCancelled, FieldCreatedEpoch),
	},
	SourcePayment: {
		Type:     SourcePayment,
		Windowed: true,
		Dimensions: dims(
			hourDim, weekdayDim, bucketDim,
			Dimension{Name: DimPaymentMethod, Values: PaymentMethods, Normalize: strings.ToLower},
			Dimension{Name: DimStatus, Values: OrderStatuses, Normalize: strings.ToUpper},
			unbounded(DimUserID),
		),
		Fields: fields(FieldAmount),
	},
	SourceBooking: {
		Type:     SourceBooking,
		Windowed: true,
		Dimensions: dims(
			hourDim, weekdayDim, bucketDim,
			Dimension{Name: DimStatus, Values: BookingStatuses, Normalize: strings.ToUpper},
			unbounded(DimServiceID), unbounded(DimServiceName),
			unbounded(DimCategoryID), unbounded(DimCategoryName),
			unbounded(DimUserID), unbounded(DimCity),
		),
		Fields: fields(FieldPrice, FieldCreatedEpoch),
	},
	SourceProduct: {
		Type:     SourceProduct,
		Windowed: false,
		Dimensions: dims(
			unbounded(DimProductID), unbounded(DimProductName),
			unbounded(DimCategoryID), unbounded(DimCategoryName),
			Dimension{Name: DimPriceBand, Values: PriceBands, Normalize: strings.TrimSpace},
		),
		Fields: fields(FieldPrice, FieldStock),
	},
}

// LookupSource returns the registered source or ErrInvalidSpecification.
func LookupSource(t SourceType) (Source, error) {
	src, ok := Sources[t]
	if !ok {
		return Source{}, InvalidSpecf("unknown source %q", t)
	}
	return src, nil
}

func normalizeHour(v string) string {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f < 24 {
		return strconv.Itoa(int(f))
	}
	return v
}

func normalizeWeekday(v string) string {
	v = strings.TrimSpace(v)
	for _, day := range Weekdays {
		if strings.EqualFold(day, v) {
			return day
		}
	}
	// ISO day numbers, 1 = Monday.
	if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 7 {
		return Weekdays[n-1]
	}
	return v
}

func normalizeBucket(v string) string {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05-07", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return FormatBucket(t)
		}
	}
	return v
}
