package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHeader_Synonyms(t *testing.T) {
	// All spellings of the order identifier resolve to the same column.
	for _, spelling := range []string{"Order ID", "OrderID", "OrderId", "order id"} {
		cols := mapHeader([]string{spelling, "Product ID"})
		_, ok := cols[colOrderID]
		assert.True(t, ok, "spelling %q should map", spelling)
	}

	// Quantity accepts both "Quantity Sold" and "Quantity".
	cols := mapHeader([]string{"Order ID", "Product ID", "Quantity"})
	idx, ok := cols[colQuantity]
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestMapHeader_UnknownHeadersIgnored(t *testing.T) {
	cols := mapHeader([]string{"Order ID", "Something Else", "Product ID"})
	assert.Equal(t, 0, cols[colOrderID])
	assert.Equal(t, 2, cols[colProductID])
	_, ok := cols[colRegion]
	assert.False(t, ok)
}

func TestParseRow_MissingIdentifiersSkipped(t *testing.T) {
	cols := mapHeader([]string{"Order ID", "Product ID"})

	_, skip := parseRow(cols, []string{"", "P1"})
	assert.Equal(t, skipMissingID, skip)

	_, skip = parseRow(cols, []string{"1001", "  "})
	assert.Equal(t, skipMissingID, skip)

	_, skip = parseRow(cols, []string{"1001", "P1"})
	assert.Equal(t, skipNone, skip)
}

func TestParseRow_NumericDefaults(t *testing.T) {
	// GIVEN: Unparseable quantity, price, discount and shipping
	// THEN: quantity=1, the others 0

	cols := mapHeader([]string{"Order ID", "Product ID", "Quantity Sold", "Unit Price", "Discount", "Shipping Cost"})
	r, skip := parseRow(cols, []string{"1001", "P1", "many", "cheap", "-", "?"})
	require.Equal(t, skipNone, skip)

	assert.Equal(t, 1, r.Quantity)
	assert.True(t, r.UnitPrice.IsZero())
	assert.True(t, r.Discount.IsZero())
	assert.True(t, r.ShippingCost.IsZero())
}

func TestParseRow_NumericValues(t *testing.T) {
	cols := mapHeader([]string{"Order ID", "Product ID", "Quantity Sold", "Unit Price", "Discount", "Shipping Cost"})
	r, skip := parseRow(cols, []string{"1001", "P1", "2", "9.99", "0.1", "5.00"})
	require.Equal(t, skipNone, skip)

	assert.Equal(t, 2, r.Quantity)
	assert.True(t, r.UnitPrice.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, r.Discount.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, r.ShippingCost.Equal(decimal.RequireFromString("5.00")))
}

func TestParseRow_ShortRecordTolerated(t *testing.T) {
	// A ragged row missing trailing columns yields defaults, not a skip.
	cols := mapHeader([]string{"Order ID", "Product ID", "Quantity Sold", "Unit Price"})
	r, skip := parseRow(cols, []string{"1001", "P1"})
	require.Equal(t, skipNone, skip)
	assert.Equal(t, 1, r.Quantity)
	assert.True(t, r.UnitPrice.IsZero())
}

func TestParseDate_Permissive(t *testing.T) {
	cases := map[string]time.Time{
		"2025-03-10":           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		"2025-03-10 14:30:00":  time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
		"2025-03-10T14:30:00Z": time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
		"03/10/2025":           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got := parseDate(input)
		require.NotNil(t, got, "input %q", input)
		assert.True(t, got.Equal(want), "input %q: got %v", input, got)
	}

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("sometime last week"))
}
