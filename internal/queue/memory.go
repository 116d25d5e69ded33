package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue in process memory with the same at-least-once
// semantics as the Redis queue. It backs tests and queueless development
// runs; it is not durable across restarts.
type MemoryQueue struct {
	mu         sync.Mutex
	ready      chan memoryEntry
	pending    map[string]memoryEntry
	visibility time.Duration
}

type memoryEntry struct {
	id       string
	job      Job
	deadline time.Time
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = time.Minute
	}
	return &MemoryQueue{
		ready:      make(chan memoryEntry, 1024),
		pending:    make(map[string]memoryEntry),
		visibility: visibility,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	entry := memoryEntry{id: uuid.New().String(), job: job}
	select {
	case q.ready <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case entry := <-q.ready:
		entry.deadline = time.Now().Add(q.visibility)
		q.mu.Lock()
		q.pending[entry.id] = entry
		q.mu.Unlock()

		return &Delivery{
			Job: entry.job,
			Ack: func(context.Context) error {
				q.mu.Lock()
				delete(q.pending, entry.id)
				q.mu.Unlock()
				return nil
			},
			Nack: func(ctx context.Context) error {
				q.mu.Lock()
				_, ok := q.pending[entry.id]
				delete(q.pending, entry.id)
				q.mu.Unlock()
				if !ok {
					return nil
				}
				return q.Enqueue(ctx, entry.job)
			},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) ReclaimExpired(ctx context.Context) (int, error) {
	now := time.Now()

	q.mu.Lock()
	var expired []memoryEntry
	for id, entry := range q.pending {
		if entry.deadline.Before(now) {
			expired = append(expired, entry)
			delete(q.pending, id)
		}
	}
	q.mu.Unlock()

	requeued := 0
	for i, entry := range expired {
		if err := q.Enqueue(ctx, entry.job); err != nil {
			// Put the unsent remainder back so no job is lost; it stays
			// past-deadline and the next sweep retries it.
			q.mu.Lock()
			for _, rest := range expired[i:] {
				q.pending[rest.id] = rest
			}
			q.mu.Unlock()
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}
