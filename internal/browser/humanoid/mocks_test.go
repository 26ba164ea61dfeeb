package humanoid

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/clicksync"
	"github.com/xkilldash9x/pagechain/internal/mocks"
)

// element describes what measureScript reports for a selector in the fake page.
type element struct {
	X, Y, W, H   float64
	TestID       string
	Instrumented bool
}

func (e element) geometry() schemas.ElementGeometry {
	return schemas.ElementGeometry{
		Vertices:     []float64{e.X, e.Y, e.X + e.W, e.Y, e.X + e.W, e.Y + e.H, e.X, e.Y + e.H},
		Width:        e.W,
		Height:       e.H,
		TagName:      "BUTTON",
		TestID:       e.TestID,
		Instrumented: e.Instrumented,
	}
}

// testRig wires a Humanoid to a FakePage that answers the sequencer's scripts.
type testRig struct {
	page     *mocks.FakePage
	cache    *PositionCache
	h        *Humanoid
	elements map[string]element
	// moveErr, when set, is returned for cursor transitions.
	moveErr error
	// moveBlock holds transitions until the context ends, simulating a missing transitionend.
	moveBlock bool
}

func newTestRig(t *testing.T, source AnimationSource) *testRig {
	t.Helper()
	r := &testRig{
		page:     mocks.NewFakePage("page-1"),
		cache:    NewPositionCache(),
		elements: make(map[string]element),
	}
	r.page.EvaluateFunc = r.evaluate
	logger := zaptest.NewLogger(t)
	confirmer := clicksync.New(r.page, clicksync.Options{Strict: true, Timeout: time.Second}, logger)
	r.h = New(r.page, r.cache, source, confirmer, Options{
		Attribute:             "data-testid",
		InstrumentedAttribute: "data-pagechain-instrumented",
		ConfirmTimeout:        200 * time.Millisecond,
	}, logger)
	return r
}

func (r *testRig) evaluate(ctx context.Context, script string, args []any) (any, error) {
	switch script {
	case ensureCursorScript:
		return true, nil
	case measureScript:
		el, ok := r.elements[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return el.geometry(), nil
	case moveCursorScript:
		if r.moveErr != nil {
			return nil, r.moveErr
		}
		if r.moveBlock {
			if ms, _ := args[3].(int64); ms > 0 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
		}
		return true, nil
	}
	return nil, nil
}

func (r *testRig) moves() []mocks.EvalCall {
	return r.page.EvaluationsContaining("transitionend")
}

// transitionMs extracts the duration argument of a recorded move.
func transitionMs(call mocks.EvalCall) int64 {
	switch v := call.Args[3].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return -1
}
