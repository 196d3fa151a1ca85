/*
Package sqlite provides a SQLite-backed implementation of the record store
gateway.

PURPOSE:
  Implements sales.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  categories:    Lazily-created dimension, unique names
  products:      Natural key = code, first-seen wins
  customers:     Natural key = code, first-seen wins
  orders:        Natural key = code, one per distinct order code
  order_items:   Fact rows, one per ingested line, never deduplicated
  refresh_logs:  Audit record per ingestion run

DECIMAL STORAGE:
  Revenue-bearing columns (unit_price, discount, shipping_cost) are stored
  as TEXT and parsed with shopspring/decimal; SQLite floats would lose the
  fixed-point guarantees consumers rely on when aggregating.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The ingestion engine additionally
  holds its own single-run slot, so writes never interleave between runs.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so report reads don't
  block the ingestion writer.

USAGE:
  store, err := sqlite.New("./data/sales.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - sales/store.go: Interface definition
  - revenue.go: Pre-aggregated report queries
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/northwind/sales-engine/sales"
)

// Store implements sales.Store plus the report read side using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name
		ON categories(name);

	-- Products keyed by natural code (e.g. "P123")
	CREATE TABLE IF NOT EXISTS products (
		code TEXT PRIMARY KEY,
		name TEXT,
		category_id INTEGER REFERENCES categories(id)
	);

	-- Customers keyed by natural code (e.g. "C456")
	CREATE TABLE IF NOT EXISTS customers (
		code TEXT PRIMARY KEY,
		name TEXT,
		email TEXT,
		address TEXT
	);

	CREATE TABLE IF NOT EXISTS orders (
		code TEXT PRIMARY KEY,
		customer_code TEXT,
		date_of_sale TEXT,
		region TEXT,
		shipping_cost TEXT NOT NULL DEFAULT '0',
		payment_method TEXT
	);

	-- Hot paths for the revenue report queries
	CREATE INDEX IF NOT EXISTS idx_orders_date_of_sale
		ON orders(date_of_sale);
	CREATE INDEX IF NOT EXISTS idx_orders_region
		ON orders(region);

	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_code TEXT NOT NULL REFERENCES orders(code),
		product_code TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		discount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order
		ON order_items(order_code);
	CREATE INDEX IF NOT EXISTS idx_order_items_product
		ON order_items(product_code);

	CREATE TABLE IF NOT EXISTS refresh_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_logs_status
		ON refresh_logs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REFRESH LOG STORE
// =============================================================================

// InsertRefreshLog persists a new run-log row and returns its id.
func (s *Store) InsertRefreshLog(ctx context.Context, log sales.RefreshLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO refresh_logs (started_at, finished_at, status, message) VALUES (?, ?, ?, ?)",
		log.StartedAt.UTC().Format(time.RFC3339),
		nullTime(log.FinishedAt),
		string(log.Status),
		log.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert refresh log: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRefreshLog closes out a run-log row with its terminal state.
func (s *Store) UpdateRefreshLog(ctx context.Context, id int64, status sales.RefreshStatus, message string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE refresh_logs SET status = ?, message = ?, finished_at = ? WHERE id = ?",
		string(status), message, finishedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sales.ErrRefreshLogNotFound
	}
	return nil
}

// ListRefreshLogs returns the most recent runs first.
func (s *Store) ListRefreshLogs(ctx context.Context, limit int) ([]sales.RefreshLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, status, message FROM refresh_logs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []sales.RefreshLog
	for rows.Next() {
		var l sales.RefreshLog
		var startedAt string
		var finishedAt, message sql.NullString
		var status string
		if err := rows.Scan(&l.ID, &startedAt, &finishedAt, &status, &message); err != nil {
			return nil, err
		}
		l.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		l.Status = sales.RefreshStatus(status)
		l.Message = message.String
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			l.FinishedAt = &t
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// SNAPSHOT READS (run-scoped dedup state)
// =============================================================================

// CategoryNames returns every category name mapped to its id.
func (s *Store) CategoryNames(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// ProductCodes returns the set of existing product natural keys.
func (s *Store) ProductCodes(ctx context.Context) (map[string]struct{}, error) {
	return s.codeSet(ctx, "SELECT code FROM products")
}

// CustomerCodes returns the set of existing customer natural keys.
func (s *Store) CustomerCodes(ctx context.Context) (map[string]struct{}, error) {
	return s.codeSet(ctx, "SELECT code FROM customers")
}

// OrderCodes returns the set of existing order natural keys.
func (s *Store) OrderCodes(ctx context.Context) (map[string]struct{}, error) {
	return s.codeSet(ctx, "SELECT code FROM orders")
}

func (s *Store) codeSet(ctx context.Context, query string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

// =============================================================================
// WRITES
// =============================================================================

// InsertCategory persists a category and returns its id. The row is
// committed immediately and visible to subsequent lookups.
func (s *Store) InsertCategory(ctx context.Context, c sales.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", c.Name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("category %q: %w", c.Name, sales.ErrDuplicateKey)
		}
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	return res.LastInsertId()
}

// InsertBatch persists all pending rows in one database transaction.
// Constraint violations surface as sales.ErrDuplicateKey; previously
// committed batches are unaffected by a failure here.
func (s *Store) InsertBatch(ctx context.Context, b sales.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range b.Products {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO products (code, name, category_id) VALUES (?, ?, ?)",
			p.Code, p.Name, p.CategoryID,
		)
		if err != nil {
			return classifyInsertErr("product", p.Code, err)
		}
	}

	for _, c := range b.Customers {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO customers (code, name, email, address) VALUES (?, ?, ?, ?)",
			c.Code, c.Name, c.Email, c.Address,
		)
		if err != nil {
			return classifyInsertErr("customer", c.Code, err)
		}
	}

	for _, o := range b.Orders {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO orders (code, customer_code, date_of_sale, region, shipping_cost, payment_method) VALUES (?, ?, ?, ?, ?, ?)",
			o.Code, o.CustomerCode, nullTime(o.DateOfSale), o.Region,
			o.ShippingCost.String(), o.PaymentMethod,
		)
		if err != nil {
			return classifyInsertErr("order", o.Code, err)
		}
	}

	for _, item := range b.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_code, product_code, quantity, unit_price, discount) VALUES (?, ?, ?, ?, ?)",
			item.OrderCode, item.ProductCode, item.Quantity,
			item.UnitPrice.String(), item.Discount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item for order %s: %w", item.OrderCode, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// ENTITY READS (used by reports and tests)
// =============================================================================

// GetProduct retrieves a product by code, or nil when absent.
func (s *Store) GetProduct(ctx context.Context, code string) (*sales.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p sales.Product
	var name sql.NullString
	var categoryID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT code, name, category_id FROM products WHERE code = ?", code,
	).Scan(&p.Code, &name, &categoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	return &p, nil
}

// GetCustomer retrieves a customer by code, or nil when absent.
func (s *Store) GetCustomer(ctx context.Context, code string) (*sales.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c sales.Customer
	var name, email, address sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT code, name, email, address FROM customers WHERE code = ?", code,
	).Scan(&c.Code, &name, &email, &address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Name, c.Email, c.Address = name.String, email.String, address.String
	return &c, nil
}

// GetOrder retrieves an order by code, or nil when absent.
func (s *Store) GetOrder(ctx context.Context, code string) (*sales.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o sales.Order
	var customerCode, dateOfSale, region, paymentMethod sql.NullString
	var shipping string
	err := s.db.QueryRowContext(ctx,
		"SELECT code, customer_code, date_of_sale, region, shipping_cost, payment_method FROM orders WHERE code = ?",
		code,
	).Scan(&o.Code, &customerCode, &dateOfSale, &region, &shipping, &paymentMethod)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.CustomerCode = customerCode.String
	o.Region = region.String
	o.PaymentMethod = paymentMethod.String
	o.ShippingCost = parseStoredDecimal(shipping)
	if dateOfSale.Valid {
		t, _ := time.Parse(time.RFC3339, dateOfSale.String)
		o.DateOfSale = &t
	}
	return &o, nil
}

// ItemsByOrder returns all line items for an order.
func (s *Store) ItemsByOrder(ctx context.Context, orderCode string) ([]sales.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, order_code, product_code, quantity, unit_price, discount FROM order_items WHERE order_code = ? ORDER BY id",
		orderCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []sales.OrderItem
	for rows.Next() {
		var item sales.OrderItem
		var unitPrice, discount string
		if err := rows.Scan(&item.ID, &item.OrderCode, &item.ProductCode, &item.Quantity, &unitPrice, &discount); err != nil {
			return nil, err
		}
		item.UnitPrice = parseStoredDecimal(unitPrice)
		item.Discount = parseStoredDecimal(discount)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountRows returns the row count of a core table, for tests and admin.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "categories", "products", "customers", "orders", "order_items", "refresh_logs":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// Helper functions

func classifyInsertErr(kind, code string, err error) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s %s: %w", kind, code, sales.ErrDuplicateKey)
	}
	return fmt.Errorf("failed to insert %s %s: %w", kind, code, err)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
