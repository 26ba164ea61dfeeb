package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Test targets --

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type token string

func (t token) Upper() string { return strings.ToUpper(string(t)) }

type section struct {
	rec  *recorder
	Name string
}

func (s *section) Open(ctx context.Context) error {
	s.rec.add("open " + s.Name)
	return nil
}

type fakePage struct {
	rec    *recorder
	Header *section
	Rows   []string
	Counts map[string]int
	Title  string
}

func newFakePage() *fakePage {
	rec := &recorder{}
	return &fakePage{
		rec:    rec,
		Header: &section{rec: rec, Name: "main"},
		Rows:   []string{"a", "b", "c"},
		Counts: map[string]int{"open": 2},
		Title:  "Orders",
	}
}

func (p *fakePage) Step(ctx context.Context, name string, delay time.Duration) error {
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	p.rec.add(name)
	return nil
}

func (p *fakePage) Fail(msg string) error { return errors.New(msg) }

func (p *fakePage) Boom() { panic("kaboom") }

func (p *fakePage) Later(name string) *Future {
	return Go(func() (any, error) {
		time.Sleep(10 * time.Millisecond)
		p.rec.add(name)
		return name, nil
	})
}

func (p *fakePage) ExtractIdentifier(ctx context.Context) (token, error) {
	p.rec.add("extract")
	return token("abc"), nil
}

func (p *fakePage) Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

func startPage(t *testing.T, p *fakePage, opts ...Option) *Handle {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return From(context.Background(), p, opts...)
}

// -- Ordering --

func TestCallsRunInSubmissionOrder(t *testing.T) {
	p := newFakePage()
	h := startPage(t, p)

	// Earlier calls take longer; completion order must still follow submission order.
	h.Call("Step", "first", 30*time.Millisecond).
		Call("Step", "second", 10*time.Millisecond).
		Call("Step", "third", 0)

	v, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, p, v)
	assert.Equal(t, []string{"first", "second", "third"}, p.rec.entries())
}

func TestOrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		delays := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 12).Draw(rt, "delays_ms")
		p := newFakePage()
		h := From(context.Background(), p)

		want := make([]string, len(delays))
		cur := h
		for i, d := range delays {
			want[i] = fmt.Sprintf("step-%d", i)
			cur = cur.Call("Step", want[i], time.Duration(d)*time.Millisecond)
		}
		if _, err := cur.Await(context.Background()); err != nil {
			rt.Fatal(err)
		}
		if got := p.rec.entries(); fmt.Sprint(got) != fmt.Sprint(want) {
			rt.Fatalf("order = %v, want %v", got, want)
		}
	})
}

func TestAwaitIncludesLaterAppends(t *testing.T) {
	p := newFakePage()
	h := startPage(t, p)
	h.Call("Step", "slow", 40*time.Millisecond)

	done := make(chan []string, 1)
	go func() {
		_, err := h.Await(context.Background())
		assert.NoError(t, err)
		done <- p.rec.entries()
	}()

	// Appended while the await above is already pending.
	time.Sleep(5 * time.Millisecond)
	h.Call("Step", "late", 0)

	select {
	case got := <-done:
		assert.Equal(t, []string{"slow", "late"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("await never returned")
	}
}

func TestAsyncResultsAreAwaited(t *testing.T) {
	p := newFakePage()
	h := startPage(t, p)
	h.Call("Later", "async").Call("Step", "after", 0)

	require.NoError(t, h.Err(context.Background()))
	assert.Equal(t, []string{"async", "after"}, p.rec.entries())
}

// -- Factory --

func TestFactoryIsLazyAndMemoized(t *testing.T) {
	var calls atomic.Int32
	p := newFakePage()
	h := Start(context.Background(), func(context.Context) (any, error) {
		calls.Add(1)
		return p, nil
	})

	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, calls.Load(), "factory must not run before it is needed")

	h.Call("Step", "a", 0).Call("Step", "b", 0)
	_, err := h.Await(context.Background())
	require.NoError(t, err)
	_, err = h.Get("Title").Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFactoryFailure(t *testing.T) {
	h := Start(context.Background(), func(context.Context) (any, error) {
		return nil, errors.New("no browser")
	})
	err := h.Call("Step", "never", 0).Err(context.Background())
	assert.ErrorIs(t, err, ErrFactory)
	assert.Contains(t, err.Error(), "no browser")
}

// -- Value handles --

func TestValueReturningCallsDetach(t *testing.T) {
	p := newFakePage()
	h := startPage(t, p)

	v := h.Call("Step", "before", 0).Call("ExtractIdentifier")
	require.True(t, v.IsValue())

	got, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token("abc"), got)

	upper, err := Await[string](context.Background(), v.Call("Upper"))
	require.NoError(t, err)
	assert.Equal(t, "ABC", upper)

	// Calls on a value operate on the value, never on the page.
	err = v.Call("Step", "x", 0).Err(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMember)
	assert.Contains(t, err.Error(), "chain.token")
	assert.NotContains(t, p.rec.entries(), "x")
}

func TestCustomRegistry(t *testing.T) {
	h := startPage(t, newFakePage(), WithRegistry(NewRegistry("Sum")))

	sum, err := Await[int](context.Background(), h.Call("Sum", 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 6, sum)

	// Numbers decoded from YAML or JSON arrive as float64.
	sum, err = Await[int](context.Background(), h.Call("Sum", 4.0, 5.0))
	require.NoError(t, err)
	assert.Equal(t, 9, sum)

	// ExtractIdentifier is not in this registry, so it continues on the root.
	assert.False(t, h.Call("ExtractIdentifier").IsValue())
}

// -- Members --

func TestMemberAccess(t *testing.T) {
	ctx := context.Background()
	p := newFakePage()
	h := startPage(t, p)

	title, err := Await[string](ctx, h.Get("Title"))
	require.NoError(t, err)
	assert.Equal(t, "Orders", title)

	row, err := Await[string](ctx, h.Get("Rows").Index(1))
	require.NoError(t, err)
	assert.Equal(t, "b", row)

	count, err := Await[int](ctx, h.Get("Counts").Index("open"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	next := h.Get("Header").Call("Open")
	assert.False(t, next.IsValue(), "calls on sub-objects continue on the root")
	require.NoError(t, next.Call("Step", "after-open", 0).Err(ctx))
	assert.Equal(t, []string{"open main", "after-open"}, p.rec.entries())

	_, err = h.Get("Rows").Index(9).Await(ctx)
	assert.ErrorIs(t, err, ErrMissingMember)
}

type mapped struct{ rec *recorder }

func (m *mapped) ChainMembers() Mapping {
	return Mapping{
		"go": func(ctx context.Context, where string) error {
			m.rec.add("go " + where)
			return nil
		},
		"label": "static",
	}
}

func TestMappingMembers(t *testing.T) {
	m := &mapped{rec: &recorder{}}
	h := From(context.Background(), m)

	require.NoError(t, h.Call("go", "home").Err(context.Background()))
	assert.Equal(t, []string{"go home"}, m.rec.entries())

	label, err := Await[string](context.Background(), h.Get("label"))
	require.NoError(t, err)
	assert.Equal(t, "static", label)

	err = h.Call("label").Err(context.Background())
	assert.ErrorIs(t, err, ErrNotCallable)
}

// -- Failures --

func TestFailuresPropagate(t *testing.T) {
	tests := []struct {
		name     string
		call     func(h *Handle) *Handle
		sentinel error
		contains []string
	}{
		{
			name:     "missing member",
			call:     func(h *Handle) *Handle { return h.Call("Nope") },
			sentinel: ErrMissingMember,
			contains: []string{`"Nope"`, "*chain.fakePage"},
		},
		{
			name:     "not callable",
			call:     func(h *Handle) *Handle { return h.Call("Title") },
			sentinel: ErrNotCallable,
			contains: []string{`"Title"`},
		},
		{
			name:     "bad arguments",
			call:     func(h *Handle) *Handle { return h.Call("Step", "only-name") },
			sentinel: ErrBadArguments,
			contains: []string{"expects 2 arguments, got 1"},
		},
		{
			name:     "member error",
			call:     func(h *Handle) *Handle { return h.Call("Fail", "handler exploded") },
			contains: []string{"handler exploded"},
		},
		{
			name:     "panic",
			call:     func(h *Handle) *Handle { return h.Call("Boom") },
			contains: []string{"panic", "kaboom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			h := startPage(t, p)

			tail := tt.call(h.Call("Step", "before", 0)).Call("Step", "after", 0)

			err := tail.Err(context.Background())
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
			assert.Equal(t, []string{"before"}, p.rec.entries(), "nothing behind a failure runs")

			// The queue does not recover: later appends fail too.
			assert.Error(t, h.Call("Step", "later", 0).Err(context.Background()))
			assert.NotContains(t, p.rec.entries(), "later")
		})
	}
}

func TestChainContextIsInjected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newFakePage()
	h := From(ctx, p)

	h.Call("Step", "long", time.Hour)
	cancel()

	err := h.Err(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitTyped(t *testing.T) {
	h := startPage(t, newFakePage())
	_, err := Await[int](context.Background(), h.Get("Title"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not int")
}
