/*
store.go - Record store gateway contract

PURPOSE:
  Defines the persistence boundary consumed by the ingestion engine. The
  engine only ever talks to this interface; SQLite (store/sqlite) is the
  production implementation and store.Memory backs unit tests.

SNAPSHOT READS:
  CategoryNames/ProductCodes/CustomerCodes/OrderCodes feed the run-scoped
  dedup state loaded once at the start of an ingestion run. The snapshot is
  valid only for that run, which is why at most one run may be in flight.

SEE ALSO:
  - ingest/loader.go: The only consumer of the write side
  - store/sqlite/sqlite.go: Production implementation
*/
package sales

import (
	"context"
	"time"
)

// Store is the record store gateway. Implementations must surface
// ErrDuplicateKey (via errors.Is) on natural-key constraint violations so
// callers can distinguish them from connectivity failures.
type Store interface {
	// InsertRefreshLog persists a new run-log row and returns its id.
	InsertRefreshLog(ctx context.Context, log RefreshLog) (int64, error)

	// UpdateRefreshLog closes out a run-log row with its terminal state.
	UpdateRefreshLog(ctx context.Context, id int64, status RefreshStatus, message string, finishedAt time.Time) error

	// CategoryNames returns every existing category name mapped to its id.
	CategoryNames(ctx context.Context) (map[string]int64, error)

	// ProductCodes returns the set of existing product natural keys.
	ProductCodes(ctx context.Context) (map[string]struct{}, error)

	// CustomerCodes returns the set of existing customer natural keys.
	CustomerCodes(ctx context.Context) (map[string]struct{}, error)

	// OrderCodes returns the set of existing order natural keys.
	OrderCodes(ctx context.Context) (map[string]struct{}, error)

	// InsertCategory persists a category synchronously; the new row must be
	// visible to lookups in the same run immediately.
	InsertCategory(ctx context.Context, c Category) (int64, error)

	// InsertBatch persists all pending rows in one flush. A failure must not
	// roll back previously committed batches.
	InsertBatch(ctx context.Context, b Batch) error
}
