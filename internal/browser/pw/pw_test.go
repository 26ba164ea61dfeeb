package pw

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/config"
)

func TestTimeoutMs(t *testing.T) {
	t.Run("no deadline", func(t *testing.T) {
		assert.Nil(t, timeoutMs(context.Background(), 0))
		got := timeoutMs(context.Background(), 1500*time.Millisecond)
		require.NotNil(t, got)
		assert.Equal(t, 1500.0, *got)
	})

	t.Run("deadline sooner than timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		got := timeoutMs(ctx, time.Minute)
		require.NotNil(t, got)
		assert.LessOrEqual(t, *got, 200.0)
		assert.Greater(t, *got, 0.0)
	})

	t.Run("deadline bounds unlimited", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		got := timeoutMs(ctx, 0)
		require.NotNil(t, got)
		assert.LessOrEqual(t, *got, 1000.0)
	})

	t.Run("expired deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		got := timeoutMs(ctx, time.Minute)
		require.NotNil(t, got)
		assert.Equal(t, 1.0, *got)
	})
}

func TestMillis(t *testing.T) {
	assert.Nil(t, millis(0))
	assert.Nil(t, millis(-time.Second))
	assert.Equal(t, 40.0, *millis(40 * time.Millisecond))
}

func TestSpreadExpression(t *testing.T) {
	assert.Equal(t, "(args) => ((a, b) => a + b)(...args)", spreadExpression("(a, b) => a + b"))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(context.Background(), nil))

	err := translate(context.Background(), errors.New("Execution context was destroyed, most likely because of a navigation"))
	assert.ErrorIs(t, err, page.ErrContextDestroyed)

	plain := errors.New("strict mode violation")
	assert.Same(t, plain, translate(context.Background(), plain))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, translate(ctx, plain), context.Canceled)
}

func TestOptions(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, Args: []string{"--lang=en"}, WindowWidth: 1024, WindowHeight: 768}

	launch := launchOptions(cfg)
	require.NotNil(t, launch.Headless)
	assert.True(t, *launch.Headless)
	assert.Equal(t, []string{"--disable-dev-shm-usage", "--lang=en"}, launch.Args)

	ctxOpts := contextOptions(cfg)
	require.NotNil(t, ctxOpts.Viewport)
	assert.Equal(t, 1024, ctxOpts.Viewport.Width)
	assert.Equal(t, 768, ctxOpts.Viewport.Height)

	assert.Nil(t, contextOptions(config.BrowserConfig{}).Viewport)
}

func TestBindingPublishesClickEvents(t *testing.T) {
	p := newPage(nil, nil, config.BrowserConfig{}, zaptest.NewLogger(t))

	var got []schemas.ClickEvent
	defer p.OnClickEvent(func(ev schemas.ClickEvent) { got = append(got, ev) })()

	p.onBinding(`{"testId":"save","phase":"before"}`)
	p.onBinding(`{"testId":"save","phase":"after"}`)
	p.onBinding("garbage")
	p.onBinding(42)
	p.onBinding()

	require.Len(t, got, 2)
	assert.Equal(t, schemas.ClickPhaseBefore, got[0].Phase)
	assert.Equal(t, schemas.ClickPhaseAfter, got[1].Phase)
}

// TestPlaywrightRoundTrip needs installed playwright browsers. It runs only when
// PAGECHAIN_PLAYWRIGHT is set.
func TestPlaywrightRoundTrip(t *testing.T) {
	if os.Getenv("PAGECHAIN_PLAYWRIGHT") == "" {
		t.Skip("PAGECHAIN_PLAYWRIGHT not set")
	}
	cfg := config.NewDefaultConfig().Browser()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := Launch(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)

	events := make(chan schemas.ClickEvent, 8)
	defer p.OnClickEvent(func(ev schemas.ClickEvent) { events <- ev })()

	html := `data:text/html,<button data-testid="go" data-pagechain-instrumented onclick="this.textContent='done'">go</button>`
	require.NoError(t, p.Navigate(ctx, html))

	var sum int
	require.NoError(t, p.Evaluate(ctx, "(a, b) => a + b", &sum, 2, 3))
	assert.Equal(t, 5, sum)

	sel := page.AttrSelector("data-testid", "go")
	require.NoError(t, p.Click(ctx, sel, page.ClickOptions{Force: true}))

	var text string
	require.NoError(t, p.Evaluate(ctx, "(s) => document.querySelector(s).textContent", &text, sel))
	assert.Equal(t, "done", text)
}
