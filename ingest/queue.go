/*
Package ingest implements the ingestion pipeline: a single-consumer job
queue, a scheduler that fires ingestion on demand or on a daily timer, and
a streaming CSV loader performing deduplicating inserts with batched
commits and an auditable refresh log.

QUEUE (this file):
  An unbounded FIFO hand-off between producers (HTTP trigger, scheduler)
  and one consumer. Enqueue never blocks and never rejects; Dequeue blocks
  until a job is available or the context is cancelled. Jobs are tagged
  commands rather than opaque closures so the worker loop, logs and tests
  can observe what is queued.

DELIVERY:
  At-most-once. The queue is in-memory and volatile: jobs do not survive a
  process restart.
*/
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobKind tags what a queued job does. Only file ingestion exists today.
type JobKind string

const JobIngestFile JobKind = "ingest-file"

// Job is a unit of work handed to the worker loop.
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	FilePath    string
	SubmittedAt time.Time

	// Reply, when non-nil, receives the load result. The worker sends
	// without blocking, so a caller that stopped listening never wedges
	// the loop. Buffer it (capacity 1) to be sure of delivery.
	Reply chan<- LoadResult
}

// NewIngestJob builds an ingest-file job for the given path.
func NewIngestJob(filePath string) Job {
	return Job{
		ID:          uuid.New(),
		Kind:        JobIngestFile,
		FilePath:    filePath,
		SubmittedAt: time.Now().UTC(),
	}
}

// Queue is an unbounded FIFO job queue. Safe for concurrent producers;
// intended for a single consumer but safe with several (each job is
// delivered to exactly one).
type Queue struct {
	mu    sync.Mutex
	jobs  []Job
	ready chan struct{} // capacity 1, signaled on enqueue
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Enqueue appends a job. It never blocks and never rejects.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.signal()
}

// Dequeue blocks until a job is available or ctx is cancelled, in which
// case it returns ctx.Err().
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			remaining := len(q.jobs)
			q.mu.Unlock()

			// Wake another waiter if work remains; with several
			// consumers a single signal can otherwise be swallowed.
			if remaining > 0 {
				q.signal()
			}
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
