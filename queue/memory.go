package queue

import (
	"context"
	"sync"

	"github.com/Shubbu03/illustrations/domain"
)

// Memory is a process-local persistence queue backed by a buffered
// channel. Enqueue never blocks the caller: a full queue is an error
// surfaced to the originating connection, not backpressure on broadcast.
type Memory struct {
	jobs   chan domain.Job
	mu     sync.Mutex
	closed bool
}

func NewMemory(capacity int) *Memory {
	return &Memory{jobs: make(chan domain.Job, capacity)}
}

func (q *Memory) Enqueue(_ context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Jobs is the worker's consumption side.
func (q *Memory) Jobs() <-chan domain.Job {
	return q.jobs
}

// Close stops accepting jobs and lets the worker drain what remains.
func (q *Memory) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}
