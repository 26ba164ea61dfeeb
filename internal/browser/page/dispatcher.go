package page

import (
	"slices"
	"sync"
)

// Dispatcher fans a signal out to any number of subscribers. Backends own one per signal kind
// (navigation, click events) so subscribers can come and go without touching the driver's own
// listener registration.
type Dispatcher[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(T)
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers fn. The returned func removes it and is safe to call more than once.
func (d *Dispatcher[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// Publish delivers v to every current subscriber, synchronously, in subscription order.
func (d *Dispatcher[T]) Publish(v T) {
	// Copy so subscribers may unsubscribe (or subscribe) from within their callback.
	d.mu.RLock()
	ids := make([]uint64, 0, len(d.subs))
	fns := make(map[uint64]func(T), len(d.subs))
	for id, fn := range d.subs {
		ids = append(ids, id)
		fns[id] = fn
	}
	d.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](v)
	}
}

// Len reports the number of live subscribers.
func (d *Dispatcher[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
