// Package chain composes asynchronous page-object operations into one fluent, strictly ordered
// sequence.
//
// Start wraps a factory producing the root object. Get and Index address members lazily; Call
// appends a unit of work to the chain's queue that, once every earlier unit finished and the root
// resolved, reads the member, invokes it with the parent as receiver and awaits asynchronous
// results. Calls continue on the root unless the member is value-returning (see Registry), in
// which case they yield a detached value handle. Await on any handle waits for everything queued
// so far.
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type handleKind int

const (
	kindRoot handleKind = iota
	kindMember
	kindValue
)

// state is shared by every handle of one chain.
type state struct {
	id       string
	ctx      context.Context
	queue    *Queue
	registry *Registry
	logger   *zap.Logger

	factory func(ctx context.Context) (any, error)
	once    sync.Once
	root    *Future
}

func (s *state) resolveRoot() *Future {
	s.once.Do(func() {
		s.root = Go(func() (any, error) {
			v, err := s.factory(s.ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFactory, err)
			}
			return v, nil
		})
	})
	return s.root
}

// Handle is a deferred reference into a chain: the root object, a member of another handle, or a
// detached value produced by a value-returning call.
type Handle struct {
	st   *state
	kind handleKind

	// Member handles.
	parent   *Handle
	name     string
	key      any
	isIndex  bool
	detached bool

	// Value handles.
	result *Future
}

var _ Awaiter = (*Handle)(nil)

// Option configures a chain.
type Option func(*state)

// WithRegistry sets the value-returning member names. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(s *state) { s.registry = r }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *state) { s.logger = l }
}

// Start begins a chain whose root is produced by factory. The factory runs at most once, when the
// first call or await needs the root. Every queued unit runs with ctx.
func Start(ctx context.Context, factory func(ctx context.Context) (any, error), opts ...Option) *Handle {
	st := &state{
		id:       uuid.NewString(),
		ctx:      ctx,
		queue:    NewQueue(),
		registry: DefaultRegistry(),
		logger:   zap.NewNop(),
		factory:  factory,
	}
	for _, opt := range opts {
		opt(st)
	}
	st.logger = st.logger.Named("chain").With(zap.String("chain_id", st.id))
	return &Handle{st: st, kind: kindRoot}
}

// From starts a chain over an already constructed root.
func From(ctx context.Context, root any, opts ...Option) *Handle {
	return Start(ctx, func(context.Context) (any, error) { return root, nil }, opts...)
}

// ID identifies the chain in logs.
func (h *Handle) ID() string { return h.st.id }

// Root returns the chain's root handle.
func (h *Handle) Root() *Handle {
	return &Handle{st: h.st, kind: kindRoot}
}

// IsValue reports whether h is detached from the root.
func (h *Handle) IsValue() bool { return h.kind == kindValue || h.detached }

// Get addresses the named member of h. Nothing is evaluated until the handle is called or
// awaited.
func (h *Handle) Get(name string) *Handle {
	return &Handle{st: h.st, kind: kindMember, parent: h, name: name, detached: h.IsValue()}
}

// Index addresses h[key]: an element of a slice or map, or a lookup on an Indexer.
func (h *Handle) Index(key any) *Handle {
	return &Handle{st: h.st, kind: kindMember, parent: h, key: key, isIndex: true, detached: h.IsValue()}
}

// Call queues an invocation of the named member of h with args. A leading context.Context
// parameter receives the chain's context. The returned handle is the chain root, or a value
// handle when name is value-returning or h is itself detached.
func (h *Handle) Call(name string, args ...any) *Handle {
	st := h.st
	logger := st.logger.With(zap.String("member", h.path(name)))
	logger.Debug("Queueing call.")

	fut := st.queue.Append(st.ctx, func(ctx context.Context) (any, error) {
		if _, err := st.resolveRoot().Await(ctx); err != nil {
			return nil, err
		}
		parent, err := h.resolve(ctx)
		if err != nil {
			return nil, err
		}
		fn, err := readMember(parent, name)
		if err != nil {
			return nil, err
		}
		result, err := invoke(ctx, fn, name, parent, args)
		if err != nil {
			logger.Debug("Call failed.", zap.Error(err))
			return nil, err
		}
		return h.settle(ctx, result)
	})

	if h.IsValue() || st.registry.IsValue(name) {
		return &Handle{st: st, kind: kindValue, result: fut, detached: true}
	}
	return h.Root()
}

// settle awaits asynchronous results. Handles of this same chain are resolved without waiting on
// the queue, since the calling unit is part of it.
func (h *Handle) settle(ctx context.Context, result any) (any, error) {
	switch r := result.(type) {
	case *Handle:
		if r.st == h.st {
			return r.resolve(ctx)
		}
		return r.Await(ctx)
	case Awaiter:
		return r.Await(ctx)
	}
	return result, nil
}

// resolve evaluates h without waiting on the queue.
func (h *Handle) resolve(ctx context.Context) (any, error) {
	switch h.kind {
	case kindRoot:
		return h.st.resolveRoot().Await(ctx)
	case kindValue:
		return h.result.Await(ctx)
	}

	parent, err := h.parent.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if h.isIndex {
		return readIndex(parent, h.key)
	}
	member, err := readMember(parent, h.name)
	if err != nil {
		return nil, err
	}
	return member.Interface(), nil
}

// Await waits for every unit queued on the chain, including units appended while waiting, and
// returns the value h refers to: the root object, a member, or a computed value.
func (h *Handle) Await(ctx context.Context) (any, error) {
	if err := h.st.queue.Drain(ctx); err != nil {
		return nil, err
	}
	return h.resolve(ctx)
}

// Err waits like Await and returns only the error.
func (h *Handle) Err(ctx context.Context) error {
	_, err := h.Await(ctx)
	return err
}

func (h *Handle) path(leaf string) string {
	var parts []string
	for cur := h; cur != nil && cur.kind == kindMember; cur = cur.parent {
		if cur.isIndex {
			parts = append(parts, fmt.Sprintf("[%v]", cur.key))
		} else {
			parts = append(parts, cur.name)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if leaf != "" {
		parts = append(parts, leaf)
	}
	return strings.Join(parts, ".")
}

// Await waits on h and asserts the result to T.
func Await[T any](ctx context.Context, h *Handle) (T, error) {
	var zero T
	v, err := h.Await(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("chain: result is %T, not %T", v, zero)
	}
	return t, nil
}
