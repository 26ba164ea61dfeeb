package chain

import (
	"context"
	"sync"
)

// Queue runs units of work strictly one after another in the order they were appended. Each unit
// waits on the future of the unit before it; a failed unit fails every unit behind it, and the
// queue never recovers.
type Queue struct {
	mu   sync.Mutex
	tail *Future
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{tail: Resolved(nil)}
}

// Append schedules work behind the current tail and returns its future, which becomes the new
// tail. work is not run when a predecessor failed; its future carries the predecessor's error.
func (q *Queue) Append(ctx context.Context, work func(ctx context.Context) (any, error)) *Future {
	next := NewFuture()

	q.mu.Lock()
	prev := q.tail
	q.tail = next
	q.mu.Unlock()

	go func() {
		if _, err := prev.Await(ctx); err != nil {
			next.Resolve(nil, err)
			return
		}
		next.Resolve(protect(func() (any, error) { return work(ctx) }))
	}()
	return next
}

// Tail returns the future of the most recently appended unit.
func (q *Queue) Tail() *Future {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tail
}

// Drain waits until the tail is settled and no unit was appended meanwhile. It returns the error
// of the last unit.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		tail := q.Tail()
		if _, err := tail.Await(ctx); err != nil {
			return err
		}
		if q.Tail() == tail {
			return nil
		}
	}
}
