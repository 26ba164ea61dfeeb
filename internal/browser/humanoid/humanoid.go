// Package humanoid drives the visual cursor: it measures a target, animates a marker from the
// last known position to the target's center with a Fitts-scaled duration, and optionally
// performs a confirmed click.
package humanoid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/clicksync"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
)

// ErrInvalidGeometry reports a target that cannot be moved to (no box, or a zero-sized one).
var ErrInvalidGeometry = errors.New("humanoid: invalid element geometry")

// DefaultCursorID is the DOM id of the cursor marker.
const DefaultCursorID = "__pagechain_cursor"

// transitionSlack is how much longer than the computed duration the sequencer waits for the
// page to report the end of a transition before moving on.
const transitionSlack = 250 * time.Millisecond

// Options configures a Humanoid.
type Options struct {
	// Attribute is the identifier attribute read from targets (e.g. data-testid).
	Attribute string
	// InstrumentedAttribute marks targets whose click handlers report completion.
	InstrumentedAttribute string
	// ConfirmTimeout bounds click confirmation. Zero uses the synchronizer's default.
	ConfirmTimeout time.Duration
	// CursorID defaults to DefaultCursorID.
	CursorID string
}

// Humanoid is the cursor animation sequencer for one page.
type Humanoid struct {
	logger *zap.Logger
	page   page.Page
	cache  *PositionCache
	source AnimationSource
	clicks *clicksync.Synchronizer
	opts   Options

	// mu guards cursorFor, the page instance the marker was last created for. It is cleared on
	// navigation, so the marker is re-created on the next move. generation counts resets.
	mu         sync.Mutex
	cursorFor  string
	generation uint64
}

// New creates a sequencer. A nil cache gets a private one; a nil source uses DefaultTiming.
func New(p page.Page, cache *PositionCache, source AnimationSource, clicks *clicksync.Synchronizer, opts Options, logger *zap.Logger) *Humanoid {
	if cache == nil {
		cache = NewPositionCache()
	}
	if opts.CursorID == "" {
		opts.CursorID = DefaultCursorID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Humanoid{
		logger: logger.Named("humanoid"),
		page:   p,
		cache:  cache,
		source: source,
		clicks: clicks,
		opts:   opts,
	}
}

// Position returns the last cursor position.
func (h *Humanoid) Position() Vector2D {
	return h.cache.Position()
}

// ResetCursor forgets that the marker exists. Wired to the page's navigation signal.
func (h *Humanoid) ResetCursor() {
	h.mu.Lock()
	h.cursorFor = ""
	h.generation++
	h.mu.Unlock()
}

// Timing resolves the current animation configuration.
func (h *Humanoid) Timing(ctx context.Context) (Timing, error) {
	if h.source == nil {
		return DefaultTiming, nil
	}
	cfg, ok, err := h.source.Animation(ctx)
	if err != nil {
		return Timing{}, err
	}
	if !ok {
		return DefaultTiming, nil
	}
	return ResolveTiming(cfg), nil
}

// TypeDelay is the configured pause between key presses.
func (h *Humanoid) TypeDelay(ctx context.Context) (time.Duration, error) {
	t, err := h.Timing(ctx)
	if err != nil {
		return 0, err
	}
	return t.TypeDelay, nil
}

// ensureCursor creates the marker once per page instance.
func (h *Humanoid) ensureCursor(ctx context.Context) error {
	id := h.page.InstanceID()
	h.mu.Lock()
	ready := h.cursorFor == id
	gen := h.generation
	h.mu.Unlock()
	if ready {
		return nil
	}

	var created bool
	if err := h.page.Evaluate(ctx, ensureCursorScript, &created, h.opts.CursorID); err != nil {
		return fmt.Errorf("humanoid: failed to create cursor marker: %w", err)
	}
	h.mu.Lock()
	// A navigation during the evaluate may have replaced the document that got the marker.
	if h.generation == gen {
		h.cursorFor = id
	}
	h.mu.Unlock()
	return nil
}

// measure scrolls the target into view and returns its geometry and center.
func (h *Humanoid) measure(ctx context.Context, selector string) (*schemas.ElementGeometry, Vector2D, error) {
	var geo *schemas.ElementGeometry
	if err := h.page.Evaluate(ctx, measureScript, &geo, selector, h.opts.Attribute, h.opts.InstrumentedAttribute); err != nil {
		return nil, Vector2D{}, fmt.Errorf("humanoid: geometry retrieval failed for '%s': %w", selector, err)
	}
	if geo == nil {
		return nil, Vector2D{}, fmt.Errorf("humanoid: '%s': %w", selector, page.ErrElementNotFound)
	}
	center, ok := boxToCenter(geo)
	if !ok {
		return nil, Vector2D{}, fmt.Errorf("humanoid: '%s': %w", selector, ErrInvalidGeometry)
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		h.logger.Debug("Element found but has zero size.",
			zap.String("selector", selector),
			zap.Float64("width", geo.Width),
			zap.Float64("height", geo.Height))
		return nil, Vector2D{}, fmt.Errorf("humanoid: '%s' has zero size: %w", selector, ErrInvalidGeometry)
	}
	return geo, center, nil
}

// boxToCenter averages the four vertices of a box.
func boxToCenter(geo *schemas.ElementGeometry) (Vector2D, bool) {
	if geo == nil || len(geo.Vertices) < 8 {
		return Vector2D{}, false
	}
	v := geo.Vertices
	return Vector2D{X: (v[0] + v[2] + v[4] + v[6]) / 4, Y: (v[1] + v[3] + v[5] + v[7]) / 4}, true
}

// MoveAndOptionallyClick moves the cursor marker to the element matched by selector and, when
// shouldClick is set, clicks it.
//
// pace scales the movement time; zero or negative snaps without animating. A non-empty
// annotation is shown next to the target. When waitForConfirmation is set and the target is
// instrumented and carries an identifier, the call returns only after the page confirmed the
// click handler finished.
func (h *Humanoid) MoveAndOptionallyClick(ctx context.Context, selector string, shouldClick bool, pace float64, annotation string, waitForConfirmation bool) error {
	if err := h.ensureCursor(ctx); err != nil {
		return err
	}

	timing, err := h.Timing(ctx)
	if err != nil {
		return err
	}

	geo, center, err := h.measure(ctx, selector)
	if err != nil {
		return err
	}

	from := h.cache.Position()
	distance := from.Dist(center)
	duration := MovementDuration(timing, pace, distance, min(geo.Width, geo.Height))

	if annotation != "" {
		if err := h.page.Evaluate(ctx, annotateScript, nil, annotation, center.X, center.Y, annotationTTL(duration).Milliseconds()); err != nil {
			h.logger.Debug("Failed to attach annotation.", zap.String("selector", selector), zap.Error(err))
		}
	}

	if distance > 0 && !timing.Disabled {
		if err := h.transition(ctx, center, duration, timing.Transition); err != nil {
			return err
		}
	}
	h.cache.Set(center)

	h.logger.Debug("Cursor moved.",
		zap.String("selector", selector),
		zap.Float64("distance", distance),
		zap.Duration("duration", duration))

	if !shouldClick {
		return nil
	}
	return h.click(ctx, selector, geo, timing, waitForConfirmation)
}

// transition animates the marker and waits for the page to report completion, giving up after
// the duration plus transitionSlack.
func (h *Humanoid) transition(ctx context.Context, to Vector2D, duration time.Duration, easing string) error {
	if duration <= 0 {
		return h.page.Evaluate(ctx, moveCursorScript, nil, h.opts.CursorID, to.X, to.Y, 0, easing)
	}

	waitCtx, cancel := context.WithTimeout(ctx, duration+transitionSlack)
	defer cancel()

	err := h.page.Evaluate(waitCtx, moveCursorScript, nil, h.opts.CursorID, to.X, to.Y, duration.Milliseconds(), easing)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case waitCtx.Err() != nil:
		h.logger.Debug("Transition end not reported in time; continuing.", zap.Duration("duration", duration))
		return nil
	case page.IsContextDestroyed(err):
		// The page went away mid-move; the next move re-creates the marker.
		return nil
	default:
		return fmt.Errorf("humanoid: cursor transition failed: %w", err)
	}
}

func (h *Humanoid) click(ctx context.Context, selector string, geo *schemas.ElementGeometry, timing Timing, waitForConfirmation bool) error {
	confirm := waitForConfirmation && geo.Instrumented && geo.TestID != "" && h.clicks != nil

	// Arm before dispatching so a handler that finishes inside the click is still observed.
	var pending *clicksync.Pending
	if confirm {
		var err error
		if pending, err = h.clicks.Arm(ctx, geo.TestID); err != nil {
			return err
		}
	}

	if !timing.Disabled {
		if err := h.page.Evaluate(ctx, pulseScript, nil, h.opts.CursorID, timing.ClickDelay.Milliseconds()); err != nil {
			h.logger.Debug("Click pulse failed.", zap.Error(err))
		}
	}

	err := h.page.Click(ctx, selector, page.ClickOptions{Force: true, Delay: timing.ClickDelay})
	if err != nil {
		if pending != nil {
			pending.Cancel()
		}
		if page.IsContextDestroyed(err) {
			h.logger.Debug("Click navigated away before the driver returned.", zap.String("selector", selector))
			return nil
		}
		return fmt.Errorf("humanoid: click on '%s' failed: %w", selector, err)
	}

	if pending == nil {
		return nil
	}
	return pending.Wait(ctx, h.opts.ConfirmTimeout)
}
