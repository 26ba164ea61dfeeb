package chain

import (
	"context"
	"fmt"
	"sync"
)

// Awaiter is anything whose result can be waited for. Members returning an Awaiter are awaited
// before the chain moves on.
type Awaiter interface {
	Await(ctx context.Context) (any, error)
}

// Future is a value that becomes available once.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

var _ Awaiter = (*Future)(nil)

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already holding v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Resolve(v, nil)
	return f
}

// Failed returns a future already holding err.
func Failed(err error) *Future {
	f := NewFuture()
	f.Resolve(nil, err)
	return f
}

// Go runs fn in its own goroutine and resolves the future with its result. A panic in fn
// becomes an error.
func Go(fn func() (any, error)) *Future {
	f := NewFuture()
	go func() {
		f.Resolve(protect(fn))
	}()
	return f
}

func protect(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("chain: panic: %v", r)
		}
	}()
	return fn()
}

// Resolve settles the future. Only the first call has any effect.
func (f *Future) Resolve(v any, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
