package pageobject

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/pagechain/internal/chain"
)

// Family addresses parameterized elements: the element for key k carries the identifier
// "prefix-k".
type Family struct {
	base   *Base
	prefix string
}

var _ chain.Indexer = Family{}

// At returns the element for key.
func (f Family) At(key any) Element {
	return Element{base: f.base, TestID: fmt.Sprintf("%s-%v", f.prefix, key)}
}

// Lookup implements chain.Indexer so chains can write family[key].
func (f Family) Lookup(key any) (any, error) {
	if key == nil || fmt.Sprint(key) == "" {
		return nil, fmt.Errorf("pageobject: empty key for family %q", f.prefix)
	}
	return f.At(key), nil
}

// Element is one identified element with the Base primitives bound to it.
type Element struct {
	base   *Base
	TestID string
}

func (e Element) Click(ctx context.Context) error       { return e.base.Click(ctx, e.TestID) }
func (e Element) ClickNoWait(ctx context.Context) error { return e.base.ClickNoWait(ctx, e.TestID) }
func (e Element) Hover(ctx context.Context) error       { return e.base.Hover(ctx, e.TestID) }
func (e Element) WaitFor(ctx context.Context) error     { return e.base.WaitFor(ctx, e.TestID) }

func (e Element) Type(ctx context.Context, text string) error {
	return e.base.Type(ctx, e.TestID, text)
}

func (e Element) Select(ctx context.Context, value string) error {
	return e.base.Select(ctx, e.TestID, value)
}

func (e Element) IsVisible(ctx context.Context) (bool, error) {
	return e.base.IsVisible(ctx, e.TestID)
}

func (e Element) TextContent(ctx context.Context) (string, error) {
	return e.base.TextContent(ctx, e.TestID)
}
