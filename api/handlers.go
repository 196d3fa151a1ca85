/*
handlers.go - HTTP API handlers for the sales analytics engine

PURPOSE:
  Exposes the two surfaces of the system over REST:
  - Refresh: trigger an on-demand ingestion (fire-and-forget via the job
    queue) and inspect the refresh log
  - Revenue: pre-aggregated reports over a date range, answered from the
    cache when a fresh entry exists

CACHING:
  Report responses are cached as serialized JSON under a key derived from
  the report name and query parameters, for CacheTTL (default 30 minutes).
  A cache hit is served verbatim.

ERROR HANDLING:
  Handlers return structured JSON errors. Enqueueing never fails; the
  trigger endpoint answers 202 Accepted as soon as the job is queued.

SEE ALSO:
  - server.go: Route wiring
  - cache.go: Cache abstraction
  - ingest/: The machinery behind the trigger endpoint
*/
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/northwind/sales-engine/ingest"
	"github.com/northwind/sales-engine/store/sqlite"
)

const timeFormat = time.RFC3339

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Queue    *ingest.Queue
	Cache    Cache
	CacheTTL time.Duration
}

// NewHandler creates a handler backed by the given store, queue and cache.
func NewHandler(store *sqlite.Store, queue *ingest.Queue, cache Cache) *Handler {
	return &Handler{
		Store:    store,
		Queue:    queue,
		Cache:    cache,
		CacheTTL: DefaultCacheTTL,
	}
}

// =============================================================================
// REFRESH ENDPOINTS
// =============================================================================

// TriggerRefresh queues an ingestion of a server-side file.
// POST /api/refresh/trigger {"filePath": "/data/sales.csv"}
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeError(w, http.StatusBadRequest, "filePath is required", nil)
		return
	}

	job := ingest.NewIngestJob(req.FilePath)
	h.Queue.Enqueue(job)
	log.Printf("[API] Queued refresh job %s for %s", job.ID, req.FilePath)

	writeJSON(w, http.StatusAccepted, TriggerResponse{
		Message: "Refresh queued",
		File:    req.FilePath,
		JobID:   job.ID.String(),
	})
}

// ListRefreshLogs returns recent ingestion runs, newest first.
// GET /api/refresh/logs?limit=50
func (h *Handler) ListRefreshLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.Store.ListRefreshLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list refresh logs", err)
		return
	}

	dtos := make([]RefreshLogDTO, 0, len(logs))
	for _, l := range logs {
		dtos = append(dtos, toRefreshLogDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REVENUE ENDPOINTS
// =============================================================================

// TotalRevenue reports item revenue + shipping over a date range.
// GET /api/revenue/total?startDate=...&endDate=...
func (h *Handler) TotalRevenue(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	h.cached(w, r, cacheKey("revenue:total", start, end), func() (any, error) {
		return h.Store.TotalRevenue(r.Context(), start, end)
	})
}

// RevenueByProduct reports the top products by revenue.
// GET /api/revenue/by-product?startDate=...&endDate=...&top=50
func (h *Handler) RevenueByProduct(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	top := 50
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			top = n
		}
	}

	key := fmt.Sprintf("%s:top%d", cacheKey("revenue:byproduct", start, end), top)
	h.cached(w, r, key, func() (any, error) {
		return h.Store.RevenueByProduct(r.Context(), start, end, top)
	})
}

// RevenueByCategory reports revenue grouped by product category.
// GET /api/revenue/by-category?startDate=...&endDate=...
func (h *Handler) RevenueByCategory(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	h.cached(w, r, cacheKey("revenue:bycategory", start, end), func() (any, error) {
		return h.Store.RevenueByCategory(r.Context(), start, end)
	})
}

// RevenueByRegion reports revenue (shipping included) grouped by region.
// GET /api/revenue/by-region?startDate=...&endDate=...
func (h *Handler) RevenueByRegion(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	h.cached(w, r, cacheKey("revenue:byregion", start, end), func() (any, error) {
		return h.Store.RevenueByRegion(r.Context(), start, end)
	})
}

// RevenueTrends reports revenue bucketed by calendar period.
// GET /api/revenue/trends?startDate=...&endDate=...&period=monthly
func (h *Handler) RevenueTrends(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	period := sqlite.TrendMonthly
	switch r.URL.Query().Get("period") {
	case "yearly":
		period = sqlite.TrendYearly
	case "quarterly":
		period = sqlite.TrendQuarterly
	}

	key := cacheKey(fmt.Sprintf("revenue:trends:%s", period), start, end)
	h.cached(w, r, key, func() (any, error) {
		return h.Store.RevenueTrends(r.Context(), start, end, period)
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// cached serves the response from cache when fresh, otherwise computes,
// caches and serves it.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key string, compute func() (any, error)) {
	if payload, ok := h.Cache.Get(r.Context(), key); ok {
		log.Printf("[API] Cache hit %s", key)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
		return
	}

	result, err := compute()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute report", err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode report", err)
		return
	}
	h.Cache.Set(r.Context(), key, payload, h.CacheTTL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// dateRange parses and validates startDate/endDate query parameters.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := parseDate(r.URL.Query().Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate (use RFC3339 or YYYY-MM-DD)", err)
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDate(r.URL.Query().Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate (use RFC3339 or YYYY-MM-DD)", err)
		return time.Time{}, time.Time{}, false
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "`startDate` must be < `endDate`", nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func cacheKey(prefix string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", prefix, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
