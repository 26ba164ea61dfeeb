// Package clicksync confirms that an instrumented click handler on the page ran to completion
// before automation continues.
//
// The page side is the click wrapper installed by the browser backends: every instrumented
// handler reports a "before" signal and then exactly one terminal "after" or "error" signal
// through the click-event binding. A Synchronizer listens for the terminal signal of one test
// id. Navigation that tears down the page while a confirmation is pending counts as success,
// since the click already happened.
package clicksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
)

// DefaultTimeout bounds a confirmation wait when the caller passes no timeout.
const DefaultTimeout = 2 * time.Second

var (
	ErrTimeout = errors.New("clicksync: timed out waiting for click confirmation")
	ErrHandler = errors.New("clicksync: click handler failed")
)

// HandlerError carries the message the page reported for a failed click handler.
type HandlerError struct {
	TestID  string
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("clicksync: click handler for %q failed: %s", e.TestID, e.Message)
}

func (e *HandlerError) Unwrap() error { return ErrHandler }

// TimeoutError names the test id and the bound that elapsed.
type TimeoutError struct {
	TestID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("clicksync: no click confirmation for %q within %v", e.TestID, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Options configures a Synchronizer.
type Options struct {
	// Strict sets the page flag that forbids the click wrapper from silently skipping its report.
	Strict bool
	// Timeout is used when a wait is started with a zero timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Synchronizer waits for click confirmations on one page.
type Synchronizer struct {
	page   page.Page
	opts   Options
	logger *zap.Logger
}

// New returns a Synchronizer for p.
func New(p page.Page, opts Options, logger *zap.Logger) *Synchronizer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{page: p, opts: opts, logger: logger.Named("clicksync")}
}

// WaitForClickEvent waits for the terminal signal of testID. It is meant to be called right after
// a click was dispatched; use Arm when the click may complete faster than the listener can be
// registered.
func (s *Synchronizer) WaitForClickEvent(ctx context.Context, testID string, timeout time.Duration) error {
	pending, err := s.Arm(ctx, testID)
	if err != nil {
		return err
	}
	return pending.Wait(ctx, timeout)
}

type outcome struct {
	event     schemas.ClickEvent
	navigated bool
}

// Pending is an armed confirmation. Exactly one of Wait or Cancel must be called to release it.
type Pending struct {
	testID   string
	timeout  time.Duration
	logger   *zap.Logger
	results  chan outcome
	releases []func()
	once     sync.Once
}

// Arm registers the listeners for testID and, in strict mode, sets the page's strict flag first.
func (s *Synchronizer) Arm(ctx context.Context, testID string) (*Pending, error) {
	if testID == "" {
		return nil, errors.New("clicksync: test id is required")
	}

	p := &Pending{
		testID:  testID,
		timeout: s.opts.Timeout,
		logger:  s.logger.With(zap.String("test_id", testID)),
		results: make(chan outcome, 1),
	}

	if s.opts.Strict {
		if err := s.page.Evaluate(ctx, setStrictFlagScript, nil, schemas.StrictClicksFlag); err != nil {
			if !page.IsContextDestroyed(err) {
				return nil, fmt.Errorf("clicksync: failed to enable strict click reporting: %w", err)
			}
			p.logger.Debug("Context destroyed while enabling strict click reporting; treating as navigation.")
			p.deliver(outcome{navigated: true})
		}
	}

	p.releases = append(p.releases,
		s.page.OnClickEvent(func(ev schemas.ClickEvent) {
			if ev.TestID != testID || !ev.Phase.IsTerminal() {
				return
			}
			p.deliver(outcome{event: ev})
		}),
		s.page.OnNavigate(func() {
			p.deliver(outcome{navigated: true})
		}),
	)
	return p, nil
}

// deliver keeps only the first outcome.
func (p *Pending) deliver(o outcome) {
	select {
	case p.results <- o:
	default:
	}
}

// Wait blocks until the armed click is confirmed, fails, or timeout elapses. A zero timeout uses
// the synchronizer's default. Listeners are always released before Wait returns.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) error {
	defer p.Cancel()
	if timeout <= 0 {
		timeout = p.timeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-p.results:
		switch {
		case o.navigated:
			p.logger.Debug("Page navigated while awaiting click confirmation; treating as confirmed.")
			return nil
		case o.event.Phase == schemas.ClickPhaseError:
			return &HandlerError{TestID: p.testID, Message: o.event.Err}
		default:
			return nil
		}
	case <-timer.C:
		return &TimeoutError{TestID: p.testID, Timeout: timeout}
	case <-ctx.Done():
		if page.IsContextDestroyed(context.Cause(ctx)) {
			return nil
		}
		return ctx.Err()
	}
}

// Cancel releases the listeners without waiting. It is safe to call more than once.
func (p *Pending) Cancel() {
	p.once.Do(func() {
		for _, release := range p.releases {
			release()
		}
	})
}

const setStrictFlagScript = `(flag) => { window[flag] = true; }`
