package pw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/browser/shim"
	"github.com/xkilldash9x/pagechain/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page adapts a playwright page.
type Page struct {
	id     string
	page   playwright.Page
	bctx   playwright.BrowserContext
	cfg    config.BrowserConfig
	logger *zap.Logger

	nav    *page.Dispatcher[struct{}]
	events *page.Dispatcher[schemas.ClickEvent]
}

var _ page.Page = (*Page)(nil)

func newPage(raw playwright.Page, bctx playwright.BrowserContext, cfg config.BrowserConfig, logger *zap.Logger) *Page {
	id := uuid.NewString()
	return &Page{
		id:     id,
		page:   raw,
		bctx:   bctx,
		cfg:    cfg,
		logger: logger.With(zap.String("page_id", id)),
		nav:    page.NewDispatcher[struct{}](),
		events: page.NewDispatcher[schemas.ClickEvent](),
	}
}

func (p *Page) install() error {
	wrapper, err := shim.ClickWrapperScript()
	if err != nil {
		return fmt.Errorf("failed to build click wrapper: %w", err)
	}
	if err := p.page.ExposeFunction(schemas.ClickEventBinding, p.onBinding); err != nil {
		return fmt.Errorf("failed to expose click binding: %w", err)
	}
	if err := p.page.AddInitScript(playwright.Script{Content: playwright.String(wrapper)}); err != nil {
		return fmt.Errorf("failed to install click wrapper: %w", err)
	}
	p.page.OnFrameNavigated(func(f playwright.Frame) {
		if f == p.page.MainFrame() {
			p.logger.Debug("Main frame navigated.", zap.String("url", f.URL()))
			p.nav.Publish(struct{}{})
		}
	})
	return nil
}

func (p *Page) onBinding(args ...any) any {
	payload, ok := bindingPayload(args)
	if !ok {
		p.logger.Warn("Dropping click event with unexpected arguments.", zap.Int("args", len(args)))
		return nil
	}
	ev, err := page.DecodeClickEvent(payload)
	if err != nil {
		p.logger.Warn("Dropping malformed click event.", zap.String("payload", payload), zap.Error(err))
		return nil
	}
	p.events.Publish(ev)
	return nil
}

func bindingPayload(args []any) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

// timeoutMs bounds an operation by d and by ctx's deadline, whichever is sooner. Playwright calls
// are not context aware, so the deadline is the only way to bound them.
func timeoutMs(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); d <= 0 || remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		if _, ok := ctx.Deadline(); ok {
			// Expired; 0 would mean "no timeout" to playwright.
			return playwright.Float(1)
		}
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// translate maps playwright errors onto the page package's vocabulary.
func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if page.IsContextDestroyed(err) {
		return page.TranslateError(err)
	}
	return err
}

func (p *Page) InstanceID() string { return p.id }

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{Timeout: timeoutMs(ctx, p.cfg.NavigationTimeout)})
	if err != nil {
		return fmt.Errorf("pw: failed to navigate to %s: %w", url, translate(ctx, err))
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) Click(ctx context.Context, selector string, opts page.ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.OperationTimeout
	}
	err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(opts.Force),
		Timeout: timeoutMs(ctx, timeout),
		Delay:   millis(opts.Delay),
	})
	if err != nil {
		return fmt.Errorf("pw: failed to click '%s': %w", selector, translate(ctx, err))
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string, opts page.TypeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   millis(opts.Delay),
		Timeout: timeoutMs(ctx, 0),
	})
	if err != nil {
		return fmt.Errorf("pw: failed to type into '%s': %w", selector, translate(ctx, err))
	}
	return nil
}

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Locator(selector).First().SelectOption(
		playwright.SelectOptionValues{Values: playwright.StringSlice(value)},
		playwright.LocatorSelectOptionOptions{Timeout: timeoutMs(ctx, p.cfg.OperationTimeout)},
	)
	if err != nil {
		return fmt.Errorf("pw: failed to select %q in '%s': %w", value, selector, translate(ctx, err))
	}
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(selector).First().Hover(playwright.LocatorHoverOptions{
		Timeout: timeoutMs(ctx, p.cfg.OperationTimeout),
	})
	if err != nil {
		return fmt.Errorf("pw: failed to hover '%s': %w", selector, translate(ctx, err))
	}
	return nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, opts page.WaitOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.OperationTimeout
	}
	state := playwright.WaitForSelectorStateAttached
	if opts.Visible {
		state = playwright.WaitForSelectorStateVisible
	}
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: timeoutMs(ctx, timeout),
	})
	if err != nil {
		return fmt.Errorf("pw: waiting for '%s': %w", selector, translate(ctx, err))
	}
	return nil
}

// spreadExpression adapts a function expression taking positional arguments to playwright's
// single-argument Evaluate.
func spreadExpression(script string) string {
	return "(args) => (" + script + ")(...args)"
}

func (p *Page) Evaluate(ctx context.Context, script string, out any, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if args == nil {
		args = []any{}
	}
	res, err := p.page.Evaluate(spreadExpression(script), args)
	if err != nil {
		return translate(ctx, err)
	}
	if out == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("pw: failed to re-encode evaluation result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pw: failed to decode evaluation result: %w", err)
	}
	return nil
}

func (p *Page) OnNavigate(fn func()) func() {
	return p.nav.Subscribe(func(struct{}) { fn() })
}

func (p *Page) OnClickEvent(fn func(schemas.ClickEvent)) func() {
	return p.events.Subscribe(fn)
}

// Close closes the page and its browser context.
func (p *Page) Close() error {
	return errors.Join(p.page.Close(), p.bctx.Close())
}
