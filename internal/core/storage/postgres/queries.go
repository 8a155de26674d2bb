package postgres

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/aevon-lab/tradepulse/internal/core/storage"
)

// sourceTable maps one aggregation.Source onto SQL.
// Dimension expressions must yield text; field expressions must be numeric.
type sourceTable struct {
	from       string
	timeColumn string // empty for snapshot sources
	dims       map[string]string
	fields     map[string]string
}

const paymentMethodExpr = `CASE o."paymentStatus"::text
			WHEN 'PENDING' THEN 'cash'
			WHEN 'PAID' THEN 'online'
			WHEN 'FAILED' THEN 'failed'
			WHEN 'REFUNDED' THEN 'refunded'
			ELSE LOWER(o."paymentStatus"::text)
		END`

const priceBandExpr = `CASE
			WHEN p.price < 500 THEN '0-500'
			WHEN p.price < 1000 THEN '500-1000'
			WHEN p.price < 2000 THEN '1000-2000'
			WHEN p.price < 5000 THEN '2000-5000'
			ELSE '5000+'
		END`

// Time dimensions are evaluated in UTC, matching the window buckets.
func utc(col string) string { return col + ` AT TIME ZONE 'UTC'` }

func hourExpr(col string) string    { return fmt.Sprintf(`EXTRACT(HOUR FROM %s)::int::text`, utc(col)) }
func weekdayExpr(col string) string { return fmt.Sprintf(`TO_CHAR(%s, 'FMDay')`, utc(col)) }

// bucketPlaceholder is replaced with the window granularity at build time.
const bucketPlaceholder = "{granularity}"

func bucketExpr(col string) string {
	return fmt.Sprintf(`TO_CHAR(date_trunc('%s', %s), 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`, bucketPlaceholder, utc(col))
}

var orderDims = map[string]string{
	aggregation.DimHourOfDay:     hourExpr(`o."createdAt"`),
	aggregation.DimDayOfWeek:     weekdayExpr(`o."createdAt"`),
	aggregation.DimBucket:        bucketExpr(`o."createdAt"`),
	aggregation.DimStatus:        `o.status::text`,
	aggregation.DimPaymentMethod: paymentMethodExpr,
	aggregation.DimProductID:     `o."productId"`,
	aggregation.DimProductName:   `p.name`,
	aggregation.DimCategoryID:    `p."categoryId"`,
	aggregation.DimCategoryName:  `c.name`,
	aggregation.DimUserID:        `o."userId"`,
	aggregation.DimCity:          `a.city`,
	aggregation.DimState:         `a.state`,
	aggregation.DimPincode:       `a.pincode`,
}

var sourceTables = map[aggregation.SourceType]sourceTable{
	aggregation.SourceOrder: {
		from: `"Order" o
		LEFT JOIN "Product" p ON p.id = o."productId"
		LEFT JOIN "Category" c ON c.id = p."categoryId"
		LEFT JOIN "Address" a ON a.id = o."addressId"`,
		timeColumn: `o."createdAt"`,
		dims:       orderDims,
		fields: map[string]string{
			aggregation.FieldTotalPrice:      `o."totalPrice"`,
			aggregation.FieldQuantity:        `o.quantity`,
			aggregation.FieldCompletionHours: `EXTRACT(EPOCH FROM (COALESCE(o."updatedAt", o."createdAt") - o."createdAt")) / 3600`,
			aggregation.FieldDelivered:       `CASE WHEN o.status::text = 'DELIVERED' THEN 1 ELSE 0 END`,
			aggregation.FieldCancelled:       `CASE WHEN o.status::text = 'CANCELLED' THEN 1 ELSE 0 END`,
			aggregation.FieldCreatedEpoch:    `EXTRACT(EPOCH FROM o."createdAt")`,
		},
	},
	aggregation.SourcePayment: {
		from:       `"Order" o`,
		timeColumn: `o."createdAt"`,
		dims: map[string]string{
			aggregation.DimHourOfDay:     hourExpr(`o."createdAt"`),
			aggregation.DimDayOfWeek:     weekdayExpr(`o."createdAt"`),
			aggregation.DimBucket:        bucketExpr(`o."createdAt"`),
			aggregation.DimPaymentMethod: paymentMethodExpr,
			aggregation.DimStatus:        `o.status::text`,
			aggregation.DimUserID:        `o."userId"`,
		},
		fields: map[string]string{
			aggregation.FieldAmount: `o."totalPrice"`,
		},
	},
	aggregation.SourceBooking: {
		from: `"Booking" b
		LEFT JOIN "Service" s ON s.id = b."serviceId"
		LEFT JOIN "Category" c ON c.id = s."categoryId"
		LEFT JOIN "Address" a ON a.id = b."addressId"`,
		timeColumn: `b."createdAt"`,
		dims: map[string]string{
			aggregation.DimHourOfDay:    hourExpr(`b."createdAt"`),
			aggregation.DimDayOfWeek:    weekdayExpr(`b."createdAt"`),
			aggregation.DimBucket:       bucketExpr(`b."createdAt"`),
			aggregation.DimStatus:       `b.status::text`,
			aggregation.DimServiceID:    `b."serviceId"`,
			aggregation.DimServiceName:  `s.name`,
			aggregation.DimCategoryID:   `s."categoryId"`,
			aggregation.DimCategoryName: `c.name`,
			aggregation.DimUserID:       `b."userId"`,
			aggregation.DimCity:         `a.city`,
		},
		fields: map[string]string{
			aggregation.FieldPrice:        `s.price`,
			aggregation.FieldCreatedEpoch: `EXTRACT(EPOCH FROM b."createdAt")`,
		},
	},
	aggregation.SourceProduct: {
		from: `"Product" p
		LEFT JOIN "Category" c ON c.id = p."categoryId"`,
		dims: map[string]string{
			aggregation.DimProductID:    `p.id`,
			aggregation.DimProductName:  `p.name`,
			aggregation.DimCategoryID:   `p."categoryId"`,
			aggregation.DimCategoryName: `c.name`,
			aggregation.DimPriceBand:    priceBandExpr,
		},
		fields: map[string]string{
			aggregation.FieldPrice: `p.price`,
			aggregation.FieldStock: `p.stock`,
		},
	},
}

// builtQuery is a rendered SQL statement and its positional arguments.
type builtQuery struct {
	sql  string
	args []interface{}
}

// buildQuery renders q as a single grouped SELECT. Column order is: one text
// column per group field, row_count, one column per measure.
func buildQuery(q storage.Query) (builtQuery, error) {
	table, ok := sourceTables[q.Source]
	if !ok {
		return builtQuery{}, aggregation.InvalidSpecf("no table mapping for source %q", q.Source)
	}

	var (
		selects []string
		where   []string
		args    []interface{}
	)

	granularity := string(q.Window.Granularity)
	if granularity == "" {
		granularity = string(aggregation.GranularityDay)
	}
	dimExpr := func(name string) (string, error) {
		expr, ok := table.dims[name]
		if !ok {
			return "", aggregation.InvalidSpecf("grouping field %q is not defined on %s", name, q.Source)
		}
		return strings.ReplaceAll(expr, bucketPlaceholder, granularity), nil
	}

	for i, name := range q.GroupBy {
		expr, err := dimExpr(name)
		if err != nil {
			return builtQuery{}, err
		}
		selects = append(selects, fmt.Sprintf("%s AS g%d", expr, i))
	}
	selects = append(selects, "COUNT(*) AS row_count")

	for i, m := range q.Measures {
		expr, ok := table.fields[m.Field]
		if !ok {
			return builtQuery{}, aggregation.InvalidSpecf("field %q is not defined on %s", m.Field, q.Source)
		}
		var agg string
		switch m.Op {
		case aggregation.OpSum, aggregation.OpAvg:
			agg = fmt.Sprintf("COALESCE(SUM(%s), 0)", expr)
		case aggregation.OpMin:
			agg = fmt.Sprintf("MIN(%s)", expr)
		case aggregation.OpMax:
			agg = fmt.Sprintf("MAX(%s)", expr)
		default:
			return builtQuery{}, aggregation.InvalidSpecf("unsupported operator %q on measure %q", m.Op, m.Name)
		}
		selects = append(selects, fmt.Sprintf("%s AS m%d", agg, i))
	}

	if table.timeColumn != "" {
		args = append(args, q.Window.Start, q.Window.End)
		where = append(where, fmt.Sprintf("%s >= $1 AND %s < $2", table.timeColumn, table.timeColumn))
	}

	for _, f := range q.Filters {
		expr, err := dimExpr(f.Field)
		if err != nil {
			return builtQuery{}, err
		}
		op := "="
		if f.Op == aggregation.FilterNe {
			op = "<>"
		}
		args = append(args, f.Value)
		where = append(where, fmt.Sprintf("%s %s $%d", expr, op, len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString("\n\t\tFROM ")
	b.WriteString(table.from)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if n := len(q.GroupBy); n > 0 {
		positions := make([]string, n)
		for i := range positions {
			positions[i] = fmt.Sprint(i + 1)
		}
		b.WriteString("\n\t\tGROUP BY ")
		b.WriteString(strings.Join(positions, ", "))
		b.WriteString("\n\t\tORDER BY ")
		b.WriteString(strings.Join(positions, ", "))
	}

	return builtQuery{sql: b.String(), args: args}, nil
}

// querySchemaCheck verifies the transactional tables exist.
const querySchemaCheck = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'Order'
		)
	`
