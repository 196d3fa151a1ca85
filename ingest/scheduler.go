/*
scheduler.go - Worker loop and daily refresh timer

PURPOSE:
  Runs the two long-lived duties of the ingestion subsystem:
  - Drain loop: dequeues jobs one at a time and executes them, so one
    failing job never stops the loop or crashes the process
  - Timer loop: fires a daily ingestion of a configured default file at a
    configured UTC time-of-day, rolling to the next day after each firing

DESIGN:
  - The two loops share no mutable state; both funnel into the Loader,
    which owns the single ingestion slot. The timer invokes the Loader
    directly rather than going through the queue, so timer runs are NOT
    ordered relative to queued jobs.
  - Lifecycle: Start/Stop with a stop signal and a WaitGroup; Stop
    returns after the in-flight job has finished.

CONFIGURATION:
  - RefreshPath: file ingested by the daily timer; empty skips silently
  - RefreshAt:   UTC time-of-day offset from midnight (default 02:00)

USAGE:
  sched := ingest.NewScheduler(queue, loader)
  sched.RefreshPath = "/data/sales.csv"
  sched.Start()
  // ... later
  sched.Stop()
*/
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/northwind/sales-engine/sales"
)

// DefaultRefreshAt is the daily refresh time-of-day when none is configured.
const DefaultRefreshAt = 2 * time.Hour

// Scheduler drains the job queue on one worker and fires the daily refresh.
type Scheduler struct {
	Queue       *Queue
	Loader      *Loader
	RefreshPath string
	RefreshAt   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(queue *Queue, loader *Loader) *Scheduler {
	return &Scheduler{
		Queue:     queue,
		Loader:    loader,
		RefreshAt: DefaultRefreshAt,
	}
}

// Start launches the drain and timer loops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return // already running
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.drainLoop(ctx)
	go s.timerLoop(ctx)

	log.Printf("[Scheduler] Started; daily refresh at %s UTC", formatTimeOfDay(s.RefreshAt))
}

// Stop cancels both loops and waits for the in-flight job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	log.Println("[Scheduler] Stopped")
}

// drainLoop executes queued jobs sequentially. A job failure is logged and
// the loop continues; only cancellation terminates it.
func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	log.Println("[Worker] Job loop starting")
	for {
		job, err := s.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Println("[Worker] Job loop stopping")
				return
			}
			log.Printf("[Worker] Dequeue failed: %v", err)
			return
		}

		if err := s.execute(ctx, job); err != nil {
			log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		}
	}
}

// execute runs one job and delivers the result to the enqueuer, if it is
// still listening.
func (s *Scheduler) execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case JobIngestFile:
		if job.FilePath == "" {
			return fmt.Errorf("job %s: %w", job.ID, sales.ErrNoFilePath)
		}
		result, err := s.Loader.LoadFile(ctx, job.FilePath)
		if job.Reply != nil {
			select {
			case job.Reply <- result:
			default:
			}
		}
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// timerLoop sleeps until the next configured time-of-day (UTC), ingests
// the default file, and rolls over to the next day. Failures are logged,
// never fatal.
func (s *Scheduler) timerLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := nextDailyRun(time.Now().UTC(), s.RefreshAt)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if s.RefreshPath == "" {
			continue // nothing configured; skip silently
		}

		log.Printf("[Scheduler] Starting scheduled daily refresh from %s", s.RefreshPath)
		if _, err := s.Loader.LoadFile(ctx, s.RefreshPath); err != nil {
			log.Printf("[Scheduler] Scheduled refresh failed: %v", err)
		}
	}
}

// nextDailyRun computes the first occurrence of timeOfDay (UTC, offset
// from midnight) strictly after now.
func nextDailyRun(now time.Time, timeOfDay time.Duration) time.Time {
	year, month, day := now.Date()
	next := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Add(timeOfDay)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ParseTimeOfDay parses "HH:MM" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

func formatTimeOfDay(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
