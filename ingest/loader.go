/*
loader.go - Streaming CSV ingestion engine

PURPOSE:
  Streams a delimited sales-transaction file into the record store:
  resolves or creates the Category/Product/Customer/Order dimensions with
  first-seen-wins semantics, inserts one OrderItem per valid line, commits
  in batches, and books every run in the refresh log.

ALGORITHM:
  1. Take the single ingestion slot (at most one run in flight, ever)
  2. Open a refresh log entry with status Running
  3. Snapshot existing category names and natural keys into run-scoped
     dedup state (valid only for this run)
  4. Stream rows; skip rows missing identifiers, default malformed
     numerics, create dimensions on first sight, always append an item
  5. Flush pending inserts whenever a batch fills; final flush at EOF
  6. Close the refresh log with Success or Failed

ERROR TAXONOMY:
  Row-level     skipped + logged, run continues
  Category      aborts the run (later rows need the id for references)
  Batch flush   aborts the run; previously committed batches stay
  Cancellation  aborts the run; refresh log still closed out as Failed

The in-memory dedup state is owned exclusively by the running invocation
and discarded at run end, which is why the slot lock exists: two
concurrent runs with separate snapshots could double-insert natural keys.
*/
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/northwind/sales-engine/sales"
)

// BatchSize is the number of pending order+item inserts that triggers a
// flush to the store.
const BatchSize = 2000

// LoadResult summarizes one ingestion run for the caller.
type LoadResult struct {
	Success        bool   `json:"success"`
	OrdersInserted int    `json:"ordersInserted"`
	ItemsInserted  int    `json:"itemsInserted"`
	Message        string `json:"message"`
}

// Loader is the CSV ingestion engine. One Loader serializes all ingestion
// runs through a single slot regardless of entry point (queued job, daily
// timer, or a synchronous caller).
type Loader struct {
	store     sales.Store
	batchSize int
	slot      chan struct{} // capacity 1: the run-scoped exclusive lock
}

func NewLoader(store sales.Store) *Loader {
	return &Loader{
		store:     store,
		batchSize: BatchSize,
		slot:      make(chan struct{}, 1),
	}
}

// runState is the dedup state owned by exactly one ingestion run.
type runState struct {
	categories map[string]int64
	products   map[string]struct{}
	customers  map[string]struct{}
	orders     map[string]struct{}

	batch      sales.Batch
	sinceFlush int

	ordersInserted int
	itemsInserted  int
	rowsSkipped    int
}

// LoadFile ingests one file. It blocks until the ingestion slot is free
// (or ctx is cancelled while waiting). On any run-level failure the
// returned result has Success=false and the error is also returned; the
// refresh log is closed out either way.
func (l *Loader) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		err := fmt.Errorf("waiting for ingestion slot: %w", ctx.Err())
		return LoadResult{Success: false, Message: err.Error()}, err
	}
	defer func() { <-l.slot }()

	logID, err := l.store.InsertRefreshLog(ctx, sales.RefreshLog{
		StartedAt: time.Now().UTC(),
		Status:    sales.StatusRunning,
		Message:   fmt.Sprintf("Starting load of %s", path),
	})
	if err != nil {
		err = fmt.Errorf("creating refresh log: %w", err)
		return LoadResult{Success: false, Message: err.Error()}, err
	}

	st, err := l.snapshot(ctx)
	if err == nil {
		err = l.stream(ctx, path, st)
	}
	if err != nil {
		l.closeLog(ctx, logID, sales.StatusFailed, err.Error())
		return LoadResult{
			Success:        false,
			OrdersInserted: st.ordersInserted,
			ItemsInserted:  st.itemsInserted,
			Message:        err.Error(),
		}, err
	}

	msg := fmt.Sprintf("Inserted orders: %d, items: %d", st.ordersInserted, st.itemsInserted)
	l.closeLog(ctx, logID, sales.StatusSuccess, msg)

	return LoadResult{
		Success:        true,
		OrdersInserted: st.ordersInserted,
		ItemsInserted:  st.itemsInserted,
		Message:        msg,
	}, nil
}

// snapshot loads existing category names and natural keys so the row loop
// avoids a store round trip per row.
func (l *Loader) snapshot(ctx context.Context) (*runState, error) {
	st := &runState{}

	var err error
	if st.categories, err = l.store.CategoryNames(ctx); err != nil {
		return st, fmt.Errorf("loading categories: %w", err)
	}
	if st.products, err = l.store.ProductCodes(ctx); err != nil {
		return st, fmt.Errorf("loading product codes: %w", err)
	}
	if st.customers, err = l.store.CustomerCodes(ctx); err != nil {
		return st, fmt.Errorf("loading customer codes: %w", err)
	}
	if st.orders, err = l.store.OrderCodes(ctx); err != nil {
		return st, fmt.Errorf("loading order codes: %w", err)
	}
	return st, nil
}

// stream reads the file line by line and processes each row independently.
// The whole file is never held in memory.
func (l *Loader) stream(ctx context.Context, path string, st *runState) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		// Empty file: zero valid rows is a successful run.
		return l.flush(ctx, st)
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	cols := mapHeader(header)

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load cancelled: %w", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			// Malformed line; unrecoverable for this row only.
			log.Printf("[Loader] line %d: skipping malformed row: %v", line, err)
			st.rowsSkipped++
			continue
		}
		if blankRecord(record) {
			continue
		}

		r, skip := parseRow(cols, record)
		if skip != skipNone {
			log.Printf("[Loader] line %d: skipping row: %s", line, skip)
			st.rowsSkipped++
			continue
		}

		if err := l.processRow(ctx, st, r); err != nil {
			return err
		}
	}

	return l.flush(ctx, st)
}

// processRow applies one parsed row to the run state. Returned errors are
// run-level (category creation, batch flush); there are no row-level
// errors past parsing.
func (l *Loader) processRow(ctx context.Context, st *runState, r row) error {
	categoryID, err := l.resolveCategory(ctx, st, r.Category)
	if err != nil {
		return err
	}

	if _, seen := st.products[r.ProductID]; !seen {
		st.batch.Products = append(st.batch.Products, sales.Product{
			Code:       r.ProductID,
			Name:       r.ProductName,
			CategoryID: categoryID,
		})
		st.products[r.ProductID] = struct{}{}
	}

	if r.CustomerID != "" {
		if _, seen := st.customers[r.CustomerID]; !seen {
			st.batch.Customers = append(st.batch.Customers, sales.Customer{
				Code:    r.CustomerID,
				Name:    r.CustomerName,
				Email:   r.CustomerEmail,
				Address: r.CustomerAddress,
			})
			st.customers[r.CustomerID] = struct{}{}
		}
	}

	if _, seen := st.orders[r.OrderID]; !seen {
		st.batch.Orders = append(st.batch.Orders, sales.Order{
			Code:          r.OrderID,
			CustomerCode:  r.CustomerID,
			DateOfSale:    r.DateOfSale,
			Region:        r.Region,
			ShippingCost:  r.ShippingCost,
			PaymentMethod: r.PaymentMethod,
		})
		st.orders[r.OrderID] = struct{}{}
		st.ordersInserted++
		st.sinceFlush++
	}

	st.batch.Items = append(st.batch.Items, sales.OrderItem{
		OrderCode:   r.OrderID,
		ProductCode: r.ProductID,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Discount:    r.Discount,
	})
	st.itemsInserted++
	st.sinceFlush++

	if st.sinceFlush >= l.batchSize {
		return l.flush(ctx, st)
	}
	return nil
}

// resolveCategory returns the category id for a name, inserting it on
// first sight. The insert commits immediately so the id is usable for
// foreign keys within the same run. A blank name yields no category.
func (l *Loader) resolveCategory(ctx context.Context, st *runState, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := st.categories[name]; ok {
		return &id, nil
	}

	id, err := l.store.InsertCategory(ctx, sales.Category{Name: name})
	if err != nil {
		return nil, fmt.Errorf("creating category %q: %w", name, err)
	}
	st.categories[name] = id
	return &id, nil
}

// flush commits all pending inserts in one store call.
func (l *Loader) flush(ctx context.Context, st *runState) error {
	if st.batch.Empty() {
		return nil
	}

	if err := l.store.InsertBatch(ctx, st.batch); err != nil {
		return fmt.Errorf("flushing batch: %w", err)
	}
	log.Printf("[Loader] Saved batch: orders=%d items=%d", st.ordersInserted, st.itemsInserted)

	st.batch = sales.Batch{}
	st.sinceFlush = 0
	return nil
}

// closeLog records the terminal state of a run. It must succeed even when
// the run was cancelled, so the update runs detached from ctx.
func (l *Loader) closeLog(ctx context.Context, logID int64, status sales.RefreshStatus, message string) {
	err := l.store.UpdateRefreshLog(context.WithoutCancel(ctx), logID, status, message, time.Now().UTC())
	if err != nil {
		log.Printf("[Loader] Failed to close refresh log %d: %v", logID, err)
	}
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
