/*
parser.go - Header-driven row parsing

PURPOSE:
  Maps a delimited file's header row onto the logical sales columns,
  tolerating the header spellings seen in the wild ("Order ID", "OrderID",
  "OrderId", ...), and parses data rows into typed values with documented
  defaults for anything malformed.

DEFAULTS (per malformed/absent field):
  quantity      1
  unit price    0
  discount      0
  shipping cost 0
  date of sale  absent

Row processing returns a result value (parsed row or skip reason) instead
of an error, so aggregate counts and skip reasons stay observable.
*/
package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Logical columns recognized in input files.
const (
	colOrderID         = "order_id"
	colProductID       = "product_id"
	colCustomerID      = "customer_id"
	colProductName     = "product_name"
	colCategory        = "category"
	colRegion          = "region"
	colDateOfSale      = "date_of_sale"
	colQuantity        = "quantity"
	colUnitPrice       = "unit_price"
	colDiscount        = "discount"
	colShippingCost    = "shipping_cost"
	colPaymentMethod   = "payment_method"
	colCustomerName    = "customer_name"
	colCustomerEmail   = "customer_email"
	colCustomerAddress = "customer_address"
)

// headerSynonyms lists the accepted header spellings per logical column.
// Matching is case-insensitive after trimming.
var headerSynonyms = map[string][]string{
	colOrderID:         {"Order ID", "OrderID", "OrderId"},
	colProductID:       {"Product ID", "ProductID", "ProductId"},
	colCustomerID:      {"Customer ID", "CustomerID", "CustomerId"},
	colProductName:     {"Product Name", "ProductName"},
	colCategory:        {"Category"},
	colRegion:          {"Region"},
	colDateOfSale:      {"Date of Sale", "DateOfSale"},
	colQuantity:        {"Quantity Sold", "Quantity"},
	colUnitPrice:       {"Unit Price", "UnitPrice"},
	colDiscount:        {"Discount"},
	colShippingCost:    {"Shipping Cost", "ShippingCost"},
	colPaymentMethod:   {"Payment Method", "PaymentMethod"},
	colCustomerName:    {"Customer Name", "CustomerName"},
	colCustomerEmail:   {"Customer Email", "CustomerEmail"},
	colCustomerAddress: {"Customer Address", "CustomerAddress"},
}

// columnMap resolves logical columns to field positions for one file.
type columnMap map[string]int

// mapHeader builds a columnMap from the header record. Unknown headers are
// ignored; absent optional columns simply resolve to nothing.
func mapHeader(header []string) columnMap {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(columnMap)
	for logical, spellings := range headerSynonyms {
		for _, s := range spellings {
			if i, ok := byName[strings.ToLower(s)]; ok {
				cols[logical] = i
				break
			}
		}
	}
	return cols
}

// field returns the trimmed value of a logical column in a record, or ""
// when the column is unmapped or the record is short.
func (c columnMap) field(record []string, logical string) string {
	i, ok := c[logical]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// row is one parsed data row.
type row struct {
	OrderID         string
	ProductID       string
	CustomerID      string
	ProductName     string
	Category        string
	Region          string
	DateOfSale      *time.Time
	Quantity        int
	UnitPrice       decimal.Decimal
	Discount        decimal.Decimal
	ShippingCost    decimal.Decimal
	PaymentMethod   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
}

// skipReason explains why a row was not loaded. Empty means the row is good.
type skipReason string

const (
	skipNone      skipReason = ""
	skipMissingID skipReason = "missing order or product identifier"
)

// parseRow converts one record into a row, applying the documented
// defaults for malformed numeric and date fields. Only a missing order or
// product identifier is unrecoverable.
func parseRow(cols columnMap, record []string) (row, skipReason) {
	r := row{
		OrderID:         cols.field(record, colOrderID),
		ProductID:       cols.field(record, colProductID),
		CustomerID:      cols.field(record, colCustomerID),
		ProductName:     cols.field(record, colProductName),
		Category:        cols.field(record, colCategory),
		Region:          cols.field(record, colRegion),
		PaymentMethod:   cols.field(record, colPaymentMethod),
		CustomerName:    cols.field(record, colCustomerName),
		CustomerEmail:   cols.field(record, colCustomerEmail),
		CustomerAddress: cols.field(record, colCustomerAddress),
	}

	if r.OrderID == "" || r.ProductID == "" {
		return row{}, skipMissingID
	}

	r.Quantity = parseQuantity(cols.field(record, colQuantity))
	r.UnitPrice = parseDecimal(cols.field(record, colUnitPrice))
	r.Discount = parseDecimal(cols.field(record, colDiscount))
	r.ShippingCost = parseDecimal(cols.field(record, colShippingCost))
	r.DateOfSale = parseDate(cols.field(record, colDateOfSale))

	return r, skipNone
}

func parseQuantity(s string) int {
	q, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return q
}

// parseDecimal is locale-invariant: "." is the only decimal separator.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// dateLayouts are tried in order when parsing the sale date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// parseDate parses permissively and returns nil when no layout matches.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
