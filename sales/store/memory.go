// Package store provides sales.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/northwind/sales-engine/sales"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	nextLogID  int64
	nextCatID  int64
	nextItemID int64

	Logs       map[int64]*sales.RefreshLog
	Categories map[string]int64
	Products   map[string]sales.Product
	Customers  map[string]sales.Customer
	Orders     map[string]sales.Order
	Items      []sales.OrderItem

	// FlushCount tracks InsertBatch calls so tests can assert batching.
	FlushCount int

	// FailNextFlush makes the next InsertBatch fail, for error-path tests.
	FailNextFlush error
	// FailNextCategory makes the next InsertCategory fail.
	FailNextCategory error
}

func NewMemory() *Memory {
	return &Memory{
		Logs:       make(map[int64]*sales.RefreshLog),
		Categories: make(map[string]int64),
		Products:   make(map[string]sales.Product),
		Customers:  make(map[string]sales.Customer),
		Orders:     make(map[string]sales.Order),
	}
}

func (m *Memory) InsertRefreshLog(_ context.Context, log sales.RefreshLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLogID++
	log.ID = m.nextLogID
	m.Logs[log.ID] = &log
	return log.ID, nil
}

func (m *Memory) UpdateRefreshLog(_ context.Context, id int64, status sales.RefreshStatus, message string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, ok := m.Logs[id]
	if !ok {
		return sales.ErrRefreshLogNotFound
	}
	log.Status = status
	log.Message = message
	log.FinishedAt = &finishedAt
	return nil
}

func (m *Memory) CategoryNames(_ context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.Categories))
	for name, id := range m.Categories {
		out[name] = id
	}
	return out, nil
}

func (m *Memory) ProductCodes(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return codeSet(m.Products), nil
}

func (m *Memory) CustomerCodes(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return codeSet(m.Customers), nil
}

func (m *Memory) OrderCodes(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return codeSet(m.Orders), nil
}

func (m *Memory) InsertCategory(_ context.Context, c sales.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNextCategory; err != nil {
		m.FailNextCategory = nil
		return 0, err
	}
	if _, exists := m.Categories[c.Name]; exists {
		return 0, sales.ErrDuplicateKey
	}
	m.nextCatID++
	m.Categories[c.Name] = m.nextCatID
	return m.nextCatID, nil
}

func (m *Memory) InsertBatch(_ context.Context, b sales.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNextFlush; err != nil {
		m.FailNextFlush = nil
		return err
	}

	// Check constraints before writing so a failed flush leaves the store
	// untouched, mirroring the transactional SQLite implementation.
	for _, p := range b.Products {
		if _, exists := m.Products[p.Code]; exists {
			return sales.ErrDuplicateKey
		}
	}
	for _, c := range b.Customers {
		if _, exists := m.Customers[c.Code]; exists {
			return sales.ErrDuplicateKey
		}
	}
	for _, o := range b.Orders {
		if _, exists := m.Orders[o.Code]; exists {
			return sales.ErrDuplicateKey
		}
	}

	for _, p := range b.Products {
		m.Products[p.Code] = p
	}
	for _, c := range b.Customers {
		m.Customers[c.Code] = c
	}
	for _, o := range b.Orders {
		m.Orders[o.Code] = o
	}
	for _, item := range b.Items {
		m.nextItemID++
		item.ID = m.nextItemID
		m.Items = append(m.Items, item)
	}

	m.FlushCount++
	return nil
}

func codeSet[T any](byCode map[string]T) map[string]struct{} {
	out := make(map[string]struct{}, len(byCode))
	for code := range byCode {
		out[code] = struct{}{}
	}
	return out
}
