package humanoid

import (
	"math"
	"time"

	"github.com/xkilldash9x/pagechain/api/schemas"
)

// Timing is an animation configuration resolved against the defaults.
type Timing struct {
	Disabled   bool
	Duration   time.Duration
	Transition string
	ClickDelay time.Duration
	TypeDelay  time.Duration
}

// DefaultTiming applies to any section the animation source leaves out.
var DefaultTiming = Timing{
	Duration:   350 * time.Millisecond,
	Transition: "cubic-bezier(0.22, 1, 0.36, 1)",
	ClickDelay: 50 * time.Millisecond,
	TypeDelay:  25 * time.Millisecond,
}

// ResolveTiming fills in defaults for the sections cfg omits. A disabled config resolves to
// zero timings.
func ResolveTiming(cfg schemas.AnimationConfig) Timing {
	if cfg.Disabled {
		return Timing{Disabled: true}
	}
	t := DefaultTiming
	if p := cfg.Pointer; p != nil {
		t.Duration = millis(p.DurationMs)
		t.ClickDelay = millis(p.ClickDelayMs)
		if p.TransitionStyle != "" {
			t.Transition = p.TransitionStyle
		}
	}
	if k := cfg.Keyboard; k != nil {
		t.TypeDelay = millis(k.TypeDelayMs)
	}
	return t
}

func millis(ms float64) time.Duration {
	if ms <= 0 || math.IsNaN(ms) {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

const (
	// minTargetWidth keeps tiny targets from producing a huge index of difficulty.
	minTargetWidth = 20.0
	// referenceDistance is the travel that takes exactly the configured duration for a
	// minimum-width target.
	referenceDistance = 400.0
	minFittsScale     = 0.35
	maxFittsScale     = 1.75
)

// fittsScale scales the configured duration by the Fitts index of difficulty log2(1 + d/W)
// relative to the reference distance.
func fittsScale(distance, width float64) float64 {
	w := math.Max(width, minTargetWidth)
	id := math.Log2(1 + distance/w)
	ref := math.Log2(1 + referenceDistance/minTargetWidth)
	return math.Min(math.Max(id/ref, minFittsScale), maxFittsScale)
}

// MovementDuration is the time a move of distance pixels to a target width pixels wide should
// take. Disabled animation, a non-positive pace and a zero distance all yield zero.
func MovementDuration(t Timing, pace, distance, width float64) time.Duration {
	if t.Disabled || t.Duration <= 0 || pace <= 0 || distance <= 0 || math.IsNaN(pace) {
		return 0
	}
	return time.Duration(float64(t.Duration) * pace * fittsScale(distance, width))
}

// annotationTTL keeps a label on screen for a multiple of the movement time.
func annotationTTL(movement time.Duration) time.Duration {
	const minTTL = 1500 * time.Millisecond
	return max(4*movement, minTTL)
}
