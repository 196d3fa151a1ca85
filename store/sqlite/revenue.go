/*
revenue.go - Pre-aggregated revenue report queries

PURPOSE:
  The read side served by the API: total revenue, revenue by product /
  category / region, and period trends over a date range.

REVENUE FORMULA:
  item revenue = quantity * unit_price * (1 - discount), summed
  total        = item revenue + shipping costs of the orders in range
  Shipping belongs to the order, so it is summed once per order and never
  multiplied by line-item count.

AGGREGATION:
  Rows are scanned and summed in Go with decimal.Decimal. SQL SUM over the
  TEXT-stored decimals would silently degrade to floating point.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RevenueTotal is the answer to the total-revenue report.
type RevenueTotal struct {
	StartDate   time.Time       `json:"startDate"`
	EndDate     time.Time       `json:"endDate"`
	ItemRevenue decimal.Decimal `json:"itemRevenue"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
}

// ProductRevenue is one row of the by-product report.
type ProductRevenue struct {
	ProductCode string          `json:"productCode"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// CategoryRevenue is one row of the by-category report.
type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// RegionRevenue is one row of the by-region report; shipping is folded in.
type RegionRevenue struct {
	Region  string          `json:"region"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TrendPoint is one bucket of the trends report.
type TrendPoint struct {
	Period      string          `json:"period"`
	ItemRevenue decimal.Decimal `json:"itemRevenue"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
}

const itemsInRangeQuery = `
	SELECT oi.quantity, oi.unit_price, oi.discount, oi.product_code,
	       o.region, o.date_of_sale
	FROM order_items oi
	JOIN orders o ON oi.order_code = o.code
	WHERE o.date_of_sale >= ? AND o.date_of_sale <= ?
`

const ordersInRangeQuery = `
	SELECT shipping_cost, region, date_of_sale
	FROM orders
	WHERE date_of_sale >= ? AND date_of_sale <= ?
`

// itemRow is one joined line-item row scanned from the range query.
type itemRow struct {
	revenue  decimal.Decimal
	product  string
	region   string
	saleDate time.Time
}

// orderRow is one order row scanned from the range query.
type orderRow struct {
	shipping decimal.Decimal
	region   string
	saleDate time.Time
}

// TotalRevenue computes item revenue plus shipping over the date range.
func (s *Store) TotalRevenue(ctx context.Context, start, end time.Time) (RevenueTotal, error) {
	items, err := s.itemsInRange(ctx, start, end)
	if err != nil {
		return RevenueTotal{}, err
	}
	orders, err := s.ordersInRange(ctx, start, end)
	if err != nil {
		return RevenueTotal{}, err
	}

	itemRevenue := decimal.Zero
	for _, it := range items {
		itemRevenue = itemRevenue.Add(it.revenue)
	}
	shipping := decimal.Zero
	for _, o := range orders {
		shipping = shipping.Add(o.shipping)
	}

	return RevenueTotal{
		StartDate:   start,
		EndDate:     end,
		ItemRevenue: itemRevenue,
		Shipping:    shipping,
		Total:       itemRevenue.Add(shipping),
	}, nil
}

// RevenueByProduct returns the top products by item revenue.
func (s *Store) RevenueByProduct(ctx context.Context, start, end time.Time, top int) ([]ProductRevenue, error) {
	items, err := s.itemsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]decimal.Decimal)
	for _, it := range items {
		byProduct[it.product] = byProduct[it.product].Add(it.revenue)
	}

	out := make([]ProductRevenue, 0, len(byProduct))
	for code, rev := range byProduct {
		out = append(out, ProductRevenue{ProductCode: code, Revenue: rev})
	}
	sortByRevenue(out, func(r ProductRevenue) decimal.Decimal { return r.Revenue })

	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out, nil
}

// RevenueByCategory groups item revenue by the product's category name;
// products without a category land in "Uncategorized".
func (s *Store) RevenueByCategory(ctx context.Context, start, end time.Time) ([]CategoryRevenue, error) {
	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.quantity, oi.unit_price, oi.discount,
		       COALESCE(c.name, 'Uncategorized')
		FROM order_items oi
		JOIN orders o ON oi.order_code = o.code
		LEFT JOIN products p ON oi.product_code = p.code
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE o.date_of_sale >= ? AND o.date_of_sale <= ?
	`, rangeArgs(start, end)...)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}

	byCategory := make(map[string]decimal.Decimal)
	for rows.Next() {
		var quantity int
		var unitPrice, discount, category string
		if err := rows.Scan(&quantity, &unitPrice, &discount, &category); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, err
		}
		byCategory[category] = byCategory[category].Add(lineRevenue(quantity, unitPrice, discount))
	}
	err = rows.Err()
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	out := make([]CategoryRevenue, 0, len(byCategory))
	for name, rev := range byCategory {
		out = append(out, CategoryRevenue{Category: name, Revenue: rev})
	}
	sortByRevenue(out, func(r CategoryRevenue) decimal.Decimal { return r.Revenue })
	return out, nil
}

// RevenueByRegion sums item revenue and shipping per region. Orders with
// no region are reported as "Unknown".
func (s *Store) RevenueByRegion(ctx context.Context, start, end time.Time) ([]RegionRevenue, error) {
	items, err := s.itemsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	orders, err := s.ordersInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byRegion := make(map[string]decimal.Decimal)
	for _, it := range items {
		byRegion[regionKey(it.region)] = byRegion[regionKey(it.region)].Add(it.revenue)
	}
	for _, o := range orders {
		byRegion[regionKey(o.region)] = byRegion[regionKey(o.region)].Add(o.shipping)
	}

	out := make([]RegionRevenue, 0, len(byRegion))
	for region, rev := range byRegion {
		out = append(out, RegionRevenue{Region: region, Revenue: rev})
	}
	sortByRevenue(out, func(r RegionRevenue) decimal.Decimal { return r.Revenue })
	return out, nil
}

// TrendPeriod selects the bucketing of the trends report.
type TrendPeriod string

const (
	TrendMonthly   TrendPeriod = "monthly"
	TrendQuarterly TrendPeriod = "quarterly"
	TrendYearly    TrendPeriod = "yearly"
)

// RevenueTrends buckets item revenue and shipping by calendar period,
// ordered chronologically.
func (s *Store) RevenueTrends(ctx context.Context, start, end time.Time, period TrendPeriod) ([]TrendPoint, error) {
	items, err := s.itemsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	orders, err := s.ordersInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	type bucket struct{ items, shipping decimal.Decimal }
	buckets := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{items: decimal.Zero, shipping: decimal.Zero}
			buckets[key] = b
		}
		return b
	}

	for _, it := range items {
		b := get(periodKey(it.saleDate, period))
		b.items = b.items.Add(it.revenue)
	}
	for _, o := range orders {
		b := get(periodKey(o.saleDate, period))
		b.shipping = b.shipping.Add(o.shipping)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, TrendPoint{
			Period:      k,
			ItemRevenue: b.items,
			Shipping:    b.shipping,
			Total:       b.items.Add(b.shipping),
		})
	}
	return out, nil
}

// =============================================================================
// RANGE SCANS
// =============================================================================

func (s *Store) itemsInRange(ctx context.Context, start, end time.Time) ([]itemRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, itemsInRangeQuery, rangeArgs(start, end)...)
	if err != nil {
		return nil, fmt.Errorf("querying items in range: %w", err)
	}
	defer rows.Close()

	var out []itemRow
	for rows.Next() {
		var quantity int
		var unitPrice, discount, product string
		var region, saleDate sql.NullString
		if err := rows.Scan(&quantity, &unitPrice, &discount, &product, &region, &saleDate); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, saleDate.String)
		out = append(out, itemRow{
			revenue:  lineRevenue(quantity, unitPrice, discount),
			product:  product,
			region:   region.String,
			saleDate: t,
		})
	}
	return out, rows.Err()
}

func (s *Store) ordersInRange(ctx context.Context, start, end time.Time) ([]orderRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, ordersInRangeQuery, rangeArgs(start, end)...)
	if err != nil {
		return nil, fmt.Errorf("querying orders in range: %w", err)
	}
	defer rows.Close()

	var out []orderRow
	for rows.Next() {
		var shipping string
		var region, saleDate sql.NullString
		if err := rows.Scan(&shipping, &region, &saleDate); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, saleDate.String)
		out = append(out, orderRow{
			shipping: parseStoredDecimal(shipping),
			region:   region.String,
			saleDate: t,
		})
	}
	return out, rows.Err()
}

// Helper functions

func sortByRevenue[T any](s []T, revenue func(T) decimal.Decimal) {
	sort.Slice(s, func(i, j int) bool {
		return revenue(s[i]).GreaterThan(revenue(s[j]))
	})
}

func rangeArgs(start, end time.Time) []any {
	// RFC3339 UTC strings order lexicographically, so string comparison in
	// SQL matches time comparison.
	return []any{start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)}
}

func lineRevenue(quantity int, unitPrice, discount string) decimal.Decimal {
	return parseStoredDecimal(unitPrice).
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(decimal.NewFromInt(1).Sub(parseStoredDecimal(discount)))
}

func regionKey(region string) string {
	if region == "" {
		return "Unknown"
	}
	return region
}

func periodKey(t time.Time, period TrendPeriod) string {
	switch period {
	case TrendYearly:
		return t.Format("2006")
	case TrendQuarterly:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	default:
		return t.Format("2006-01")
	}
}
