// Package cdp implements page.Page over the Chrome DevTools Protocol with chromedp.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cdpnode "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/browser/shim"
	"github.com/xkilldash9x/pagechain/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page is one browser tab driven through chromedp.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	nav    *page.Dispatcher[struct{}]
	events *page.Dispatcher[schemas.ClickEvent]
}

var _ page.Page = (*Page)(nil)

func newPage(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Page {
	id := uuid.NewString()
	return &Page{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.With(zap.String("page_id", id)),
		nav:    page.NewDispatcher[struct{}](),
		events: page.NewDispatcher[schemas.ClickEvent](),
	}
}

// install registers the click binding and the wrapper script, then starts listening for events.
func (p *Page) install(ctx context.Context) error {
	wrapper, err := shim.ClickWrapperScript()
	if err != nil {
		return fmt.Errorf("failed to build click wrapper: %w", err)
	}

	chromedp.ListenTarget(p.ctx, p.handleEvent)

	err = p.run(ctx, p.cfg.OperationTimeout,
		runtime.AddBinding(schemas.ClickEventBinding),
		chromedp.ActionFunc(func(c context.Context) error {
			scriptID, err := cdppage.AddScriptToEvaluateOnNewDocument(wrapper).Do(c)
			if err != nil {
				return err
			}
			p.logger.Debug("Installed click wrapper.", zap.String("script_id", string(scriptID)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to install click instrumentation: %w", err)
	}
	return nil
}

// handleEvent runs on chromedp's event goroutine and must not block.
func (p *Page) handleEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != schemas.ClickEventBinding {
			return
		}
		click, err := page.DecodeClickEvent(ev.Payload)
		if err != nil {
			p.logger.Warn("Dropping malformed click event.", zap.String("payload", ev.Payload), zap.Error(err))
			return
		}
		p.events.Publish(click)
	case *cdppage.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.logger.Debug("Main frame navigated.", zap.String("url", ev.Frame.URL))
			p.nav.Publish(struct{}{})
		}
	}
}

// run executes actions on the tab, bounded by ctx and timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("cdp: operation timed out after %v: %w", timeout, err)
	}
	if page.IsContextDestroyed(err) {
		return page.TranslateError(err)
	}
	return err
}

func (p *Page) InstanceID() string { return p.id }

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("cdp: failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.cfg.OperationTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *Page) Click(ctx context.Context, selector string, opts page.ClickOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.OperationTimeout
	}
	err := p.run(ctx, timeout, chromedp.QueryAfter(selector,
		func(c context.Context, _ runtime.ExecutionContextID, nodes ...*cdpnode.Node) error {
			if len(nodes) == 0 {
				return page.ErrElementNotFound
			}
			x, y, err := nodeCenter(c, nodes[0])
			if err != nil {
				return err
			}
			return pressAndRelease(c, x, y, opts.Delay)
		},
		chromedp.ByQuery, readiness(opts.Force)))
	if err != nil {
		return fmt.Errorf("cdp: failed to click '%s': %w", selector, err)
	}
	return nil
}

func readiness(force bool) chromedp.QueryOption {
	if force {
		return chromedp.NodeReady
	}
	return chromedp.NodeVisible
}

// nodeCenter scrolls node into view and returns the center of its first content quad.
func nodeCenter(ctx context.Context, node *cdpnode.Node) (float64, float64, error) {
	if err := dom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to scroll node into view: %w", err)
	}
	quads, err := dom.GetContentQuads().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read node geometry: %w", err)
	}
	x, y, ok := quadCenter(quads)
	if !ok {
		return 0, 0, fmt.Errorf("node has no visible geometry")
	}
	return x, y, nil
}

func quadCenter(quads []dom.Quad) (float64, float64, bool) {
	for _, q := range quads {
		if len(q) != 8 {
			continue
		}
		return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4, true
	}
	return 0, 0, false
}

func pressAndRelease(ctx context.Context, x, y float64, delay time.Duration) error {
	press := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).WithButtons(1).WithClickCount(1)
	release := input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).WithClickCount(1)

	if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
		return err
	}
	if err := press.Do(ctx); err != nil {
		return err
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			// Never leave the button held down.
			_ = release.Do(Detach(ctx))
			return ctx.Err()
		}
	}
	return release.Do(ctx)
}

func (p *Page) Type(ctx context.Context, selector, text string, opts page.TypeOptions) error {
	actions := []chromedp.Action{chromedp.Focus(selector, chromedp.ByQuery)}
	if opts.Delay <= 0 {
		actions = append(actions, chromedp.KeyEvent(text))
	} else {
		for _, r := range text {
			actions = append(actions, chromedp.KeyEvent(string(r)), chromedp.Sleep(opts.Delay))
		}
	}
	// Typing runs as long as the text needs; only the caller's context bounds it.
	if err := p.run(ctx, 0, actions...); err != nil {
		return fmt.Errorf("cdp: failed to type into '%s': %w", selector, err)
	}
	return nil
}

const selectScript = `(sel, value) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	var found bool
	if err := p.Evaluate(ctx, selectScript, &found, selector, value); err != nil {
		return fmt.Errorf("cdp: failed to select %q in '%s': %w", value, selector, err)
	}
	if !found {
		return fmt.Errorf("cdp: '%s': %w", selector, page.ErrElementNotFound)
	}
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	err := p.run(ctx, p.cfg.OperationTimeout, chromedp.QueryAfter(selector,
		func(c context.Context, _ runtime.ExecutionContextID, nodes ...*cdpnode.Node) error {
			if len(nodes) == 0 {
				return page.ErrElementNotFound
			}
			x, y, err := nodeCenter(c, nodes[0])
			if err != nil {
				return err
			}
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c)
		},
		chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return fmt.Errorf("cdp: failed to hover '%s': %w", selector, err)
	}
	return nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, opts page.WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.OperationTimeout
	}
	action := chromedp.WaitReady(selector, chromedp.ByQuery)
	if opts.Visible {
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	}
	if err := p.run(ctx, timeout, action); err != nil {
		return fmt.Errorf("cdp: waiting for '%s': %w", selector, err)
	}
	return nil
}

// Evaluate calls the function expression script with JSON-encoded args, awaits a returned
// promise and decodes the result into out.
func (p *Page) Evaluate(ctx context.Context, script string, out any, args ...any) error {
	expr, err := callExpression(script, args)
	if err != nil {
		return err
	}
	var obj *runtime.RemoteObject
	err = p.run(ctx, 0, chromedp.Evaluate(expr, &obj, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return err
	}
	if out == nil || obj == nil || len(obj.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal([]byte(obj.Value), out); err != nil {
		return fmt.Errorf("cdp: failed to decode evaluation result: %w", err)
	}
	return nil
}

// callExpression renders "(script)(arg1, arg2, ...)".
func callExpression(script string, args []any) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("cdp: argument %d is not JSON-encodable: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return "(" + script + ")(" + strings.Join(encoded, ", ") + ")", nil
}

func (p *Page) OnNavigate(fn func()) func() {
	return p.nav.Subscribe(func(struct{}) { fn() })
}

func (p *Page) OnClickEvent(fn func(schemas.ClickEvent)) func() {
	return p.events.Subscribe(fn)
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}
