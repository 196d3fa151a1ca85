/*
scheduler_test.go - Worker loop and daily timer behavior
*/
package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northwind/sales-engine/sales"
)

// =============================================================================
// DRAIN LOOP
// =============================================================================

func TestScheduler_ExecutesQueuedJobs(t *testing.T) {
	// GIVEN: A running scheduler and a queued ingestion job
	// THEN: The job runs and its result reaches the enqueuer

	loader, mem := newTestLoader()
	queue := NewQueue()
	sched := NewScheduler(queue, loader)
	sched.Start()
	defer sched.Stop()

	path := writeCSV(t, fullHeader,
		"1001,P1,C1,Widget,Gadgets,EMEA,2025-03-10,1,10,0,0,card,,,",
	)

	job := NewIngestJob(path)
	reply := make(chan LoadResult, 1)
	job.Reply = reply
	queue.Enqueue(job)

	select {
	case result := <-reply:
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.OrdersInserted)
	case <-time.After(2 * time.Second):
		t.Fatal("job result never delivered")
	}

	assert.Len(t, mem.Orders, 1)
}

func TestScheduler_FailedJobDoesNotStopTheLoop(t *testing.T) {
	// GIVEN: A job pointing at a missing file followed by a good job
	// THEN: The failure is absorbed and the second job still runs

	loader, mem := newTestLoader()
	queue := NewQueue()
	sched := NewScheduler(queue, loader)
	sched.Start()
	defer sched.Stop()

	queue.Enqueue(NewIngestJob("/data/does-not-exist.csv"))

	good := NewIngestJob(writeCSV(t, fullHeader,
		"1001,P1,C1,Widget,,,,1,10,0,0,,,,",
	))
	reply := make(chan LoadResult, 1)
	good.Reply = reply
	queue.Enqueue(good)

	select {
	case result := <-reply:
		assert.True(t, result.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after the failed job")
	}

	// Both runs were booked, the first as Failed.
	require.Len(t, mem.Logs, 2)
	statuses := map[sales.RefreshStatus]int{}
	for _, l := range mem.Logs {
		statuses[l.Status]++
	}
	assert.Equal(t, 1, statuses[sales.StatusFailed])
	assert.Equal(t, 1, statuses[sales.StatusSuccess])
}

func TestScheduler_StopWaitsForInFlightJob(t *testing.T) {
	// GIVEN: A scheduler with one job in flight
	// WHEN: Stop is called
	// THEN: It returns only after the worker goroutines exit, and a
	//       second Stop is a no-op

	loader, _ := newTestLoader()
	queue := NewQueue()
	sched := NewScheduler(queue, loader)
	sched.Start()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	sched.Stop() // idempotent
}

func TestScheduler_JobWithoutFilePath(t *testing.T) {
	loader, mem := newTestLoader()
	sched := NewScheduler(NewQueue(), loader)

	err := sched.execute(context.Background(), Job{ID: uuid.New(), Kind: JobIngestFile})
	assert.ErrorIs(t, err, sales.ErrNoFilePath)
	assert.Empty(t, mem.Logs, "no run was started")
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	loader, _ := newTestLoader()
	sched := NewScheduler(NewQueue(), loader)

	sched.Start()
	sched.Start() // second call must not spawn duplicate loops
	sched.Stop()
}

// =============================================================================
// DAILY TIMER
// =============================================================================

func TestNextDailyRun(t *testing.T) {
	twoAM := 2 * time.Hour

	t.Run("before the configured time runs today", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC)
		next := nextDailyRun(now, twoAM)
		assert.Equal(t, time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), next)
	})

	t.Run("after the configured time rolls to tomorrow", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
		next := nextDailyRun(now, twoAM)
		assert.Equal(t, time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), next)
	})

	t.Run("exactly at the configured time rolls to tomorrow", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
		next := nextDailyRun(now, twoAM)
		assert.Equal(t, time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), next)
	})

	t.Run("crosses a month boundary", func(t *testing.T) {
		now := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
		next := nextDailyRun(now, twoAM)
		assert.Equal(t, time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC), next)
	})
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "02:00", want: 2 * time.Hour},
		{in: "00:00", want: 0},
		{in: "23:59", want: 23*time.Hour + 59*time.Minute},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatTimeOfDay(t *testing.T) {
	assert.Equal(t, "02:00", formatTimeOfDay(2*time.Hour))
	assert.Equal(t, "14:30", formatTimeOfDay(14*time.Hour+30*time.Minute))
}
