package humanoid

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/config"
)

func TestResolveTiming(t *testing.T) {
	tests := []struct {
		name string
		cfg  schemas.AnimationConfig
		want Timing
	}{
		{"disabled", schemas.AnimationConfig{Disabled: true}, Timing{Disabled: true}},
		{"empty uses defaults", schemas.AnimationConfig{}, DefaultTiming},
		{
			"pointer only",
			schemas.AnimationConfig{Pointer: &schemas.PointerAnimation{DurationMs: 100, ClickDelayMs: 5}},
			Timing{Duration: 100 * time.Millisecond, Transition: DefaultTiming.Transition, ClickDelay: 5 * time.Millisecond, TypeDelay: DefaultTiming.TypeDelay},
		},
		{
			"keyboard only",
			schemas.AnimationConfig{Keyboard: &schemas.KeyboardAnimation{TypeDelayMs: 80}},
			Timing{Duration: DefaultTiming.Duration, Transition: DefaultTiming.Transition, ClickDelay: DefaultTiming.ClickDelay, TypeDelay: 80 * time.Millisecond},
		},
		{
			"negative values clamp to zero",
			schemas.AnimationConfig{Pointer: &schemas.PointerAnimation{DurationMs: -5, TransitionStyle: "ease"}},
			Timing{Transition: "ease", TypeDelay: DefaultTiming.TypeDelay},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ResolveTiming(tt.cfg)); diff != "" {
				t.Errorf("ResolveTiming() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMovementDuration(t *testing.T) {
	base := Timing{Duration: 400 * time.Millisecond}

	assert.Zero(t, MovementDuration(Timing{Disabled: true, Duration: time.Second}, 1, 500, 20))
	assert.Zero(t, MovementDuration(base, 0, 500, 20))
	assert.Zero(t, MovementDuration(base, -2, 500, 20))
	assert.Zero(t, MovementDuration(base, 1, 0, 20))
	assert.Zero(t, MovementDuration(base, math.NaN(), 500, 20))

	// The reference distance to a minimum-width target takes exactly the configured time.
	assert.Equal(t, 400*time.Millisecond, MovementDuration(base, 1, referenceDistance, minTargetWidth))

	// Longer travel takes longer, wider targets are faster.
	assert.Greater(t, MovementDuration(base, 1, 300, 20), MovementDuration(base, 1, 100, 20))
	assert.Less(t, MovementDuration(base, 1, 300, 200), MovementDuration(base, 1, 300, 20))
}

func TestMovementDurationBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Duration(rapid.IntRange(1, 5000).Draw(t, "base_ms")) * time.Millisecond
		pace := rapid.Float64Range(0.01, 10).Draw(t, "pace")
		distance := rapid.Float64Range(0.001, 1e5).Draw(t, "distance")
		width := rapid.Float64Range(0, 2000).Draw(t, "width")

		got := MovementDuration(Timing{Duration: base}, pace, distance, width)
		lo := time.Duration(float64(base) * pace * minFittsScale)
		hi := time.Duration(float64(base) * pace * maxFittsScale)
		if got < lo-1 || got > hi+1 {
			t.Fatalf("duration %v outside [%v, %v]", got, lo, hi)
		}
	})
}

func TestAnnotationTTL(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, annotationTTL(0))
	assert.Equal(t, 2*time.Second, annotationTTL(500*time.Millisecond))
}

func TestAnimationSources(t *testing.T) {
	ctx := context.Background()

	t.Run("env source", func(t *testing.T) {
		t.Setenv(AnimationEnv, "")
		_, ok, err := EnvSource{}.Animation(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		t.Setenv(AnimationEnv, "false")
		cfg, ok, err := EnvSource{}.Animation(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, cfg.Disabled)

		t.Setenv("CUSTOM_ANIMATION", `{"pointer":{"durationMs":120}}`)
		cfg, ok, err = EnvSource{Key: "CUSTOM_ANIMATION"}.Animation(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, cfg.Pointer)
		assert.Equal(t, 120.0, cfg.Pointer.DurationMs)
	})

	t.Run("config source follows setters", func(t *testing.T) {
		c := config.NewDefaultConfig()
		src := ConfigSource{Config: c}

		cfg, ok, err := src.Animation(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, cfg.Disabled)

		c.SetAnimationEnabled(false)
		cfg, _, _ = src.Animation(ctx)
		assert.True(t, cfg.Disabled)

		_, ok, _ = ConfigSource{}.Animation(ctx)
		assert.False(t, ok)
	})

	t.Run("first of falls through sources without an opinion", func(t *testing.T) {
		t.Setenv(AnimationEnv, "")
		src := FirstOf(nil, EnvSource{}, Disabled, enabledSource)
		cfg, ok, err := src.Animation(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, cfg.Disabled)

		t.Setenv(AnimationEnv, "true")
		_, _, err = src.Animation(ctx)
		assert.Error(t, err, "errors stop the search")

		_, ok, err = FirstOf().Animation(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPositionCache(t *testing.T) {
	c := NewPositionCache()
	assert.Equal(t, Vector2D{}, c.Position())

	c.Set(Vector2D{X: 3, Y: 4})
	assert.Equal(t, 3.0, c.X())
	assert.Equal(t, 4.0, c.Y())
	assert.Equal(t, 5.0, c.Position().Mag())

	c.Reset()
	assert.Equal(t, Vector2D{}, c.Position())
}
