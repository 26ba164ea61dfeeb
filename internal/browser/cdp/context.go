package cdp

import (
	"context"
	"time"
)

// CombineContext derives a context from primary, which carries the chromedp target, that is also
// canceled when secondary is. Values come from primary only.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that keeps ctx's values but not its cancellation. Cleanup that must
// outlive a canceled operation runs under it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
