/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales analytics server: SQLite store, report
  cache, ingestion queue + loader + scheduler, HTTP router, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (environment variables as fallback)
  2. Initialize SQLite store
  3. Connect the report cache (Redis when configured, in-memory otherwise)
  4. Start the ingestion scheduler (worker loop + daily refresh timer)
  5. Start the HTTP server

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080)
  -db            SQLite database path (default: sales.db, ":memory:" works)
  -redis         Redis address for the report cache (empty: in-memory cache)
  -refresh-file  File ingested by the daily refresh (empty: timer skips)
  -refresh-time  Daily refresh time-of-day, UTC "HH:MM" (default: 02:00)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections (30s drain)
  2. Stop the scheduler; the in-flight ingestion run finishes or aborts
     cleanly with its refresh log closed out
  3. Close the database connection
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northwind/sales-engine/api"
	"github.com/northwind/sales-engine/ingest"
	"github.com/northwind/sales-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "sales.db"), "SQLite database path")
	redisAddr := flag.String("redis", envStr("REDIS_ADDR", ""), "Redis address for the report cache")
	refreshFile := flag.String("refresh-file", envStr("DAILY_REFRESH_FILE", ""), "File loaded by the daily refresh")
	refreshTime := flag.String("refresh-time", envStr("DAILY_REFRESH_TIME", "02:00"), "Daily refresh time of day (UTC, HH:MM)")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	var cache api.Cache = api.NewMemoryCache()
	if *redisAddr != "" {
		redisCache, err := api.NewRedisCache(context.Background(), *redisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", *redisAddr, err)
		}
		defer redisCache.Close()
		cache = redisCache
	}

	queue := ingest.NewQueue()
	loader := ingest.NewLoader(store)

	scheduler := ingest.NewScheduler(queue, loader)
	scheduler.RefreshPath = *refreshFile
	if at, err := ingest.ParseTimeOfDay(*refreshTime); err == nil {
		scheduler.RefreshAt = at
	} else {
		log.Printf("Warning: invalid -refresh-time %q, using default: %v", *refreshTime, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, queue, cache)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
