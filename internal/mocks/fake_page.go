package mocks

import (
	"context"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
)

// EvalCall is one recorded Evaluate invocation.
type EvalCall struct {
	Script string
	Args   []any
}

// ClickCall is one recorded Click invocation.
type ClickCall struct {
	Selector string
	Options  page.ClickOptions
}

// TypeCall is one recorded Type invocation.
type TypeCall struct {
	Selector string
	Text     string
	Options  page.TypeOptions
}

// FakePage is a scriptable in-memory page. It records every interaction and lets tests emit
// navigation and click signals through the same fan-out the real backends use.
//
// The hook fields must be set before the page is handed to the code under test.
type FakePage struct {
	// EvaluateFunc produces the value Evaluate decodes into out. A nil hook evaluates to null.
	EvaluateFunc func(ctx context.Context, script string, args []any) (any, error)
	ClickFunc    func(ctx context.Context, selector string, opts page.ClickOptions) error
	TypeFunc     func(ctx context.Context, selector, text string, opts page.TypeOptions) error
	WaitFunc     func(ctx context.Context, selector string, opts page.WaitOptions) error
	// URLFunc overrides the address set through SetURL or Navigate.
	URLFunc func(ctx context.Context) (string, error)

	id     string
	nav    *page.Dispatcher[struct{}]
	events *page.Dispatcher[schemas.ClickEvent]

	mu       sync.Mutex
	url      string
	evals    []EvalCall
	clicks   []ClickCall
	typed    []TypeCall
	selected map[string]string
	hovered  []string
	waited   []string
}

var _ page.Page = (*FakePage)(nil)

// NewFakePage returns a fake page with the given instance id.
func NewFakePage(id string) *FakePage {
	return &FakePage{
		id:       id,
		nav:      page.NewDispatcher[struct{}](),
		events:   page.NewDispatcher[schemas.ClickEvent](),
		selected: make(map[string]string),
	}
}

func (f *FakePage) InstanceID() string { return f.id }

func (f *FakePage) Navigate(ctx context.Context, url string) error {
	f.SetURL(url)
	f.EmitNavigate()
	return ctx.Err()
}

func (f *FakePage) URL(ctx context.Context) (string, error) {
	if f.URLFunc != nil {
		return f.URLFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

// SetURL changes the current address without emitting a navigation signal.
func (f *FakePage) SetURL(url string) {
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
}

func (f *FakePage) Click(ctx context.Context, selector string, opts page.ClickOptions) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, ClickCall{Selector: selector, Options: opts})
	f.mu.Unlock()
	if f.ClickFunc != nil {
		return f.ClickFunc(ctx, selector, opts)
	}
	return ctx.Err()
}

func (f *FakePage) Type(ctx context.Context, selector, text string, opts page.TypeOptions) error {
	f.mu.Lock()
	f.typed = append(f.typed, TypeCall{Selector: selector, Text: text, Options: opts})
	f.mu.Unlock()
	if f.TypeFunc != nil {
		return f.TypeFunc(ctx, selector, text, opts)
	}
	return ctx.Err()
}

func (f *FakePage) SelectOption(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	f.selected[selector] = value
	f.mu.Unlock()
	return ctx.Err()
}

func (f *FakePage) Hover(ctx context.Context, selector string) error {
	f.mu.Lock()
	f.hovered = append(f.hovered, selector)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *FakePage) WaitForSelector(ctx context.Context, selector string, opts page.WaitOptions) error {
	f.mu.Lock()
	f.waited = append(f.waited, selector)
	f.mu.Unlock()
	if f.WaitFunc != nil {
		return f.WaitFunc(ctx, selector, opts)
	}
	return ctx.Err()
}

func (f *FakePage) Evaluate(ctx context.Context, script string, out any, args ...any) error {
	f.mu.Lock()
	f.evals = append(f.evals, EvalCall{Script: script, Args: args})
	f.mu.Unlock()

	if f.EvaluateFunc == nil {
		return ctx.Err()
	}
	res, err := f.EvaluateFunc(ctx, script, args)
	if err != nil || out == nil {
		return err
	}
	// Round-trip through JSON so out sees exactly what a real backend would decode.
	raw, err := jsoniter.Marshal(res)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(raw, out)
}

func (f *FakePage) OnNavigate(fn func()) func() {
	return f.nav.Subscribe(func(struct{}) { fn() })
}

func (f *FakePage) OnClickEvent(fn func(schemas.ClickEvent)) func() {
	return f.events.Subscribe(fn)
}

// EmitNavigate publishes a main-frame navigation signal.
func (f *FakePage) EmitNavigate() { f.nav.Publish(struct{}{}) }

// EmitClick publishes a click lifecycle signal.
func (f *FakePage) EmitClick(ev schemas.ClickEvent) { f.events.Publish(ev) }

// Subscribers reports the live navigation and click-event subscriber counts.
func (f *FakePage) Subscribers() (navigation, clicks int) {
	return f.nav.Len(), f.events.Len()
}

// Evaluations returns the recorded Evaluate calls.
func (f *FakePage) Evaluations() []EvalCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EvalCall(nil), f.evals...)
}

// EvaluationsContaining returns the recorded Evaluate calls whose script contains substr.
func (f *FakePage) EvaluationsContaining(substr string) []EvalCall {
	var out []EvalCall
	for _, call := range f.Evaluations() {
		if strings.Contains(call.Script, substr) {
			out = append(out, call)
		}
	}
	return out
}

// Clicks returns the recorded Click calls.
func (f *FakePage) Clicks() []ClickCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ClickCall(nil), f.clicks...)
}

// Typed returns the recorded Type calls.
func (f *FakePage) Typed() []TypeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TypeCall(nil), f.typed...)
}

// Selected returns the value last selected on selector.
func (f *FakePage) Selected(selector string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.selected[selector]
	return v, ok
}

// Hovered returns the hovered selectors in order.
func (f *FakePage) Hovered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hovered...)
}

// Waited returns the selectors passed to WaitForSelector in order.
func (f *FakePage) Waited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.waited...)
}
