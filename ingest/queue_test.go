package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ORDERING
// =============================================================================

func TestQueue_FIFO(t *testing.T) {
	// GIVEN: Three jobs enqueued in order
	// WHEN: Dequeuing them
	// THEN: They come back in the same order

	q := NewQueue()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q.Enqueue(NewIngestJob(fmt.Sprintf("/data/file-%d.csv", i)))
	}
	require.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("/data/file-%d.csv", i), job.FilePath)
		assert.Equal(t, JobIngestFile, job.Kind)
	}
	assert.Equal(t, 0, q.Len())
}

// =============================================================================
// BLOCKING AND CANCELLATION
// =============================================================================

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	// GIVEN: An empty queue with a blocked consumer
	// WHEN: A producer enqueues a job
	// THEN: The consumer receives it

	q := NewQueue()

	got := make(chan Job, 1)
	go func() {
		job, err := q.Dequeue(context.Background())
		if err == nil {
			got <- job
		}
	}()

	// Give the consumer time to block on an empty queue
	time.Sleep(20 * time.Millisecond)
	q.Enqueue(NewIngestJob("/data/late.csv"))

	select {
	case job := <-got:
		assert.Equal(t, "/data/late.csv", job.FilePath)
	case <-time.After(time.Second):
		t.Fatal("consumer never received the job")
	}
}

func TestQueue_DequeueCancelled(t *testing.T) {
	// GIVEN: An empty queue
	// WHEN: The dequeue context is cancelled
	// THEN: Dequeue returns the context error, not a job

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return after cancellation")
	}
}

// =============================================================================
// CONCURRENT PRODUCERS AND CONSUMERS
// =============================================================================

func TestQueue_EachJobDeliveredExactlyOnce(t *testing.T) {
	// GIVEN: Many producers enqueueing and several consumers draining
	// WHEN: All jobs have been consumed
	// THEN: Every job was delivered to exactly one consumer

	q := NewQueue()
	const producers = 8
	const perProducer = 50
	const total = producers * perProducer

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(NewIngestJob(fmt.Sprintf("/data/p%d-%d.csv", p, i)))
			}
		}(p)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := make(chan string, total)
	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				job, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				seen <- job.FilePath
				if len(seen) == total {
					cancel()
				}
			}
		}()
	}
	consumers.Wait()
	close(seen)

	paths := make(map[string]int)
	for p := range seen {
		paths[p]++
	}
	require.Len(t, paths, total, "every job delivered")
	for p, n := range paths {
		assert.Equal(t, 1, n, "job %s delivered once", p)
	}
}
