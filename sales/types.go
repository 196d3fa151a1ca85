/*
Package sales provides the core domain model for the sales analytics engine.

PURPOSE:
  This package contains the entity types ingested from sales-transaction
  files, the record-store gateway contract, and the revenue math shared by
  the ingestion engine and the reporting layer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category/Product/Customer/Order/OrderItem: the four dimension entities
    plus the fact rows loaded from delimited files
  - RefreshLog: the audit record of one ingestion run
  - Batch: a group of pending inserts flushed together

DESIGN PRINCIPLES:
  1. Natural keys: Product.Code, Customer.Code and Order.Code are the
     uniqueness constraints; no synthetic keys for dimensions
  2. First-seen wins: repeated natural keys in input never update the
     already-persisted attributes
  3. Precision: Uses decimal.Decimal for every revenue-bearing field to
     avoid floating-point drift across large sums

SEE ALSO:
  - store.go: Gateway interface consumed by the ingestion engine
  - errors.go: Sentinel errors surfaced by gateway implementations
*/
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIMENSION ENTITIES
// =============================================================================

// Category is created lazily the first time a new name is seen during
// ingestion. Names are unique; categories are never updated or deleted here.
type Category struct {
	ID   int64
	Name string
}

// Product is keyed by its natural code (e.g. "P123"). First-seen wins:
// later rows with the same code do not update name or category.
type Product struct {
	Code       string
	Name       string
	CategoryID *int64
}

// Customer is keyed by its natural code (e.g. "C456"). First-seen wins.
type Customer struct {
	Code    string
	Name    string
	Email   string
	Address string
}

// Order is keyed by its natural code. Shipping cost and metadata come from
// the first row seen for that order.
type Order struct {
	Code          string
	CustomerCode  string
	DateOfSale    *time.Time
	Region        string
	ShippingCost  decimal.Decimal
	PaymentMethod string
}

// =============================================================================
// FACT ROWS
// =============================================================================

// OrderItem is one row per source line that passes validation. Items are
// never deduplicated: a file may legitimately contain multiple line items
// for the same order.
type OrderItem struct {
	ID          int64
	OrderCode   string
	ProductCode string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal // fraction, 0.1 means 10% off
}

// Revenue returns quantity * unitPrice * (1 - discount).
func (i OrderItem) Revenue() decimal.Decimal {
	return i.UnitPrice.
		Mul(decimal.NewFromInt(int64(i.Quantity))).
		Mul(decimal.NewFromInt(1).Sub(i.Discount))
}

// Batch is a group of pending inserts flushed to the store together to
// amortize round-trip cost.
type Batch struct {
	Products  []Product
	Customers []Customer
	Orders    []Order
	Items     []OrderItem
}

// Size returns the total number of pending rows in the batch.
func (b Batch) Size() int {
	return len(b.Products) + len(b.Customers) + len(b.Orders) + len(b.Items)
}

// Empty reports whether the batch holds no pending rows.
func (b Batch) Empty() bool { return b.Size() == 0 }

// =============================================================================
// REFRESH LOG - Audit record of one ingestion run
// =============================================================================

type RefreshStatus string

const (
	StatusRunning RefreshStatus = "Running"
	StatusSuccess RefreshStatus = "Success"
	StatusFailed  RefreshStatus = "Failed"
)

// RefreshLog is created with StatusRunning when an ingestion run starts and
// mutated in place when it finishes. Never deleted, so a crash mid-run is
// visible as a log stuck in Running.
type RefreshLog struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RefreshStatus
	Message    string
}
