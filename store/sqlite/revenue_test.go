/*
revenue_test.go - Report query behavior

Fixture: three orders across two regions and two months, one product
without a category, shipping on two orders. Revenue numbers below are
derived by hand from the fixture.
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northwind/sales-engine/sales"
)

// seedReportData loads the shared report fixture:
//
//	order 1001  2025-03-10  EMEA  shipping 5.00
//	  P1 x2 @ 9.99, discount 0.1  -> 17.982
//	  P2 x1 @ 4.00, discount 0    -> 4
//	order 1002  2025-03-20  APAC  shipping 2.50
//	  P1 x3 @ 9.99, discount 0    -> 29.97
//	order 1003  2025-04-05  (no region)  shipping 0
//	  P3 x1 @ 100.00, discount 0.25 -> 75
//
// P1 and P2 belong to category Gadgets; P3 has no category.
func seedReportData(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	catID, err := s.InsertCategory(ctx, sales.Category{Name: "Gadgets"})
	require.NoError(t, err)

	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	day := func(month, day int) *time.Time {
		dt := time.Date(2025, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return &dt
	}

	require.NoError(t, s.InsertBatch(ctx, sales.Batch{
		Products: []sales.Product{
			{Code: "P1", Name: "Widget", CategoryID: &catID},
			{Code: "P2", Name: "Sprocket", CategoryID: &catID},
			{Code: "P3", Name: "Mystery"},
		},
		Orders: []sales.Order{
			{Code: "1001", DateOfSale: day(3, 10), Region: "EMEA", ShippingCost: d("5.00")},
			{Code: "1002", DateOfSale: day(3, 20), Region: "APAC", ShippingCost: d("2.50")},
			{Code: "1003", DateOfSale: day(4, 5), ShippingCost: decimal.Zero},
		},
		Items: []sales.OrderItem{
			{OrderCode: "1001", ProductCode: "P1", Quantity: 2, UnitPrice: d("9.99"), Discount: d("0.1")},
			{OrderCode: "1001", ProductCode: "P2", Quantity: 1, UnitPrice: d("4.00"), Discount: decimal.Zero},
			{OrderCode: "1002", ProductCode: "P1", Quantity: 3, UnitPrice: d("9.99"), Discount: decimal.Zero},
			{OrderCode: "1003", ProductCode: "P3", Quantity: 1, UnitPrice: d("100.00"), Discount: d("0.25")},
		},
	}))
}

var (
	rangeStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
)

func assertRevenue(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"want %s, got %s", want, got)
}

func TestTotalRevenue(t *testing.T) {
	// Item revenue: 17.982 + 4 + 29.97 + 75 = 126.952
	// Shipping:     5.00 + 2.50 = 7.50

	s := newTestStore(t)
	seedReportData(t, s)

	total, err := s.TotalRevenue(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)
	assertRevenue(t, "126.952", total.ItemRevenue)
	assertRevenue(t, "7.50", total.Shipping)
	assertRevenue(t, "134.452", total.Total)
}

func TestTotalRevenue_RangeFiltersOrders(t *testing.T) {
	// Only March: 17.982 + 4 + 29.97 items, 7.50 shipping

	s := newTestStore(t)
	seedReportData(t, s)

	marchEnd := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	total, err := s.TotalRevenue(context.Background(), rangeStart, marchEnd)
	require.NoError(t, err)
	assertRevenue(t, "51.952", total.ItemRevenue)
	assertRevenue(t, "7.50", total.Shipping)
}

func TestTotalRevenue_EmptyRange(t *testing.T) {
	s := newTestStore(t)
	seedReportData(t, s)

	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
	total, err := s.TotalRevenue(context.Background(), start, end)
	require.NoError(t, err)
	assertRevenue(t, "0", total.Total)
}

func TestRevenueByProduct(t *testing.T) {
	// P1: 17.982 + 29.97 = 47.952; P3: 75; P2: 4. Descending by revenue.

	s := newTestStore(t)
	seedReportData(t, s)

	rows, err := s.RevenueByProduct(context.Background(), rangeStart, rangeEnd, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "P3", rows[0].ProductCode)
	assertRevenue(t, "75", rows[0].Revenue)
	assert.Equal(t, "P1", rows[1].ProductCode)
	assertRevenue(t, "47.952", rows[1].Revenue)
	assert.Equal(t, "P2", rows[2].ProductCode)
	assertRevenue(t, "4", rows[2].Revenue)
}

func TestRevenueByProduct_TopN(t *testing.T) {
	s := newTestStore(t)
	seedReportData(t, s)

	rows, err := s.RevenueByProduct(context.Background(), rangeStart, rangeEnd, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P3", rows[0].ProductCode)
}

func TestRevenueByCategory(t *testing.T) {
	// Gadgets: 17.982 + 4 + 29.97 = 51.952; Uncategorized: 75

	s := newTestStore(t)
	seedReportData(t, s)

	rows, err := s.RevenueByCategory(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Uncategorized", rows[0].Category)
	assertRevenue(t, "75", rows[0].Revenue)
	assert.Equal(t, "Gadgets", rows[1].Category)
	assertRevenue(t, "51.952", rows[1].Revenue)
}

func TestRevenueByRegion(t *testing.T) {
	// EMEA: 17.982 + 4 + 5.00 shipping = 26.982
	// APAC: 29.97 + 2.50 shipping = 32.47
	// Unknown: 75

	s := newTestStore(t)
	seedReportData(t, s)

	rows, err := s.RevenueByRegion(context.Background(), rangeStart, rangeEnd)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byRegion := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		byRegion[r.Region] = r.Revenue
	}
	assertRevenue(t, "26.982", byRegion["EMEA"])
	assertRevenue(t, "32.47", byRegion["APAC"])
	assertRevenue(t, "75", byRegion["Unknown"])

	// Descending order.
	assert.Equal(t, "Unknown", rows[0].Region)
}

func TestRevenueTrends_Monthly(t *testing.T) {
	s := newTestStore(t)
	seedReportData(t, s)

	points, err := s.RevenueTrends(context.Background(), rangeStart, rangeEnd, TrendMonthly)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "2025-03", points[0].Period)
	assertRevenue(t, "51.952", points[0].ItemRevenue)
	assertRevenue(t, "7.50", points[0].Shipping)
	assertRevenue(t, "59.452", points[0].Total)

	assert.Equal(t, "2025-04", points[1].Period)
	assertRevenue(t, "75", points[1].ItemRevenue)
	assertRevenue(t, "0", points[1].Shipping)
}

func TestRevenueTrends_QuarterlyAndYearly(t *testing.T) {
	s := newTestStore(t)
	seedReportData(t, s)
	ctx := context.Background()

	quarterly, err := s.RevenueTrends(ctx, rangeStart, rangeEnd, TrendQuarterly)
	require.NoError(t, err)
	require.Len(t, quarterly, 2)
	assert.Equal(t, "2025-Q1", quarterly[0].Period)
	assert.Equal(t, "2025-Q2", quarterly[1].Period)

	yearly, err := s.RevenueTrends(ctx, rangeStart, rangeEnd, TrendYearly)
	require.NoError(t, err)
	require.Len(t, yearly, 1)
	assert.Equal(t, "2025", yearly[0].Period)
	assertRevenue(t, "134.452", yearly[0].Total)
}

func TestPeriodKey(t *testing.T) {
	d := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-08", periodKey(d, TrendMonthly))
	assert.Equal(t, "2025-Q3", periodKey(d, TrendQuarterly))
	assert.Equal(t, "2025", periodKey(d, TrendYearly))
}
