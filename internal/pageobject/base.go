package pageobject

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/internal/browser/identifier"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/chain"
)

// ValueMembers are the Base (and Element) members that return data. Chains started with Start
// yield detached value handles for them.
var ValueMembers = []string{
	"ExtractIdentifier",
	"ExtractIdentifierAsNumber",
	"IsVisible",
	"TextContent",
	"ClickFirst",
	"Family",
}

// Registry returns a chain registry holding ValueMembers.
func Registry() *chain.Registry {
	return chain.NewRegistry(ValueMembers...)
}

// Start begins a chain over the page object produced by factory, with ValueMembers registered.
func Start(ctx context.Context, factory func(ctx context.Context) (any, error), logger *zap.Logger) *chain.Handle {
	opts := []chain.Option{chain.WithRegistry(Registry())}
	if logger != nil {
		opts = append(opts, chain.WithLogger(logger))
	}
	return chain.Start(ctx, factory, opts...)
}

// Base implements the interaction primitives generated page objects embed.
type Base struct {
	session *Session
	logger  *zap.Logger
}

// NewBase returns a Base bound to s.
func NewBase(s *Session) *Base {
	return &Base{session: s, logger: s.logger}
}

// Session returns the underlying session.
func (b *Base) Session() *Session { return b.session }

// Selector returns the selector for an element identifier.
func (b *Base) Selector(testID string) string {
	return page.AttrSelector(b.session.settings.Attribute, testID)
}

func (b *Base) move(ctx context.Context, testID string, click bool, annotation string, confirm bool) error {
	b.logger.Debug("Interacting.", zap.String("test_id", testID), zap.Bool("click", click))
	return b.session.Humanoid.MoveAndOptionallyClick(ctx, b.Selector(testID), click, b.session.settings.Pace, annotation, confirm)
}

// Click clicks the element and, when it is instrumented, waits for its handler to finish.
func (b *Base) Click(ctx context.Context, testID string) error {
	return b.move(ctx, testID, true, "", b.session.settings.ConfirmClicks)
}

// ClickAnnotated is Click with a label shown next to the element.
func (b *Base) ClickAnnotated(ctx context.Context, testID, annotation string) error {
	return b.move(ctx, testID, true, annotation, b.session.settings.ConfirmClicks)
}

// ClickNoWait clicks without waiting for confirmation.
func (b *Base) ClickNoWait(ctx context.Context, testID string) error {
	return b.move(ctx, testID, true, "", false)
}

// Hover moves the cursor onto the element and hovers it.
func (b *Base) Hover(ctx context.Context, testID string) error {
	if err := b.move(ctx, testID, false, "", false); err != nil {
		return err
	}
	return b.session.Page.Hover(ctx, b.Selector(testID))
}

// Type moves to the element and types text with the configured key delay.
func (b *Base) Type(ctx context.Context, testID, text string) error {
	if err := b.move(ctx, testID, false, "", false); err != nil {
		return err
	}
	delay, err := b.session.Humanoid.TypeDelay(ctx)
	if err != nil {
		return err
	}
	return b.session.Page.Type(ctx, b.Selector(testID), text, page.TypeOptions{Delay: delay})
}

// Select moves to a select element and picks value.
func (b *Base) Select(ctx context.Context, testID, value string) error {
	if err := b.move(ctx, testID, false, "", false); err != nil {
		return err
	}
	return b.session.Page.SelectOption(ctx, b.Selector(testID), value)
}

// IsVisible reports whether the element exists and is rendered.
func (b *Base) IsVisible(ctx context.Context, testID string) (bool, error) {
	var visible bool
	if err := b.session.Page.Evaluate(ctx, visibleScript, &visible, b.Selector(testID)); err != nil {
		return false, err
	}
	return visible, nil
}

type textResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// TextContent returns the element's text.
func (b *Base) TextContent(ctx context.Context, testID string) (string, error) {
	var res textResult
	if err := b.session.Page.Evaluate(ctx, textScript, &res, b.Selector(testID)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("pageobject: %q: %w", testID, page.ErrElementNotFound)
	}
	return res.Text, nil
}

// WaitFor waits until the element is visible.
func (b *Base) WaitFor(ctx context.Context, testID string) error {
	return b.session.Page.WaitForSelector(ctx, b.Selector(testID), page.WaitOptions{
		Timeout: b.session.settings.WaitTimeout,
		Visible: true,
	})
}

// GoTo navigates the page.
func (b *Base) GoTo(ctx context.Context, url string) error {
	return b.session.Page.Navigate(ctx, url)
}

// ExtractIdentifier waits for a numeric path segment in the page address.
func (b *Base) ExtractIdentifier(ctx context.Context) (identifier.Identifier, error) {
	return b.session.Identifiers.ExtractIdentifier(ctx, 0)
}

// ExtractIdentifierAsNumber is ExtractIdentifier converted to an integer.
func (b *Base) ExtractIdentifierAsNumber(ctx context.Context) (int64, error) {
	return b.session.Identifiers.ExtractIdentifierAsNumber(ctx, 0)
}

// ClickFirst clicks the first candidate that is present and returns its identifier. Candidates
// that are missing or fail are skipped; when all fail the errors are joined.
func (b *Base) ClickFirst(ctx context.Context, testIDs ...string) (string, error) {
	if len(testIDs) == 0 {
		return "", errors.New("pageobject: ClickFirst needs at least one candidate")
	}
	var errs []error
	for _, id := range testIDs {
		err := b.Click(ctx, id)
		if err == nil {
			return id, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		b.logger.Debug("Candidate failed; trying the next one.", zap.String("test_id", id), zap.Error(err))
		errs = append(errs, fmt.Errorf("%q: %w", id, err))
	}
	return "", fmt.Errorf("pageobject: no candidate could be clicked: %w", errors.Join(errs...))
}

// Family returns the accessor for elements whose identifiers share prefix.
func (b *Base) Family(prefix string) Family {
	return Family{base: b, prefix: prefix}
}

const visibleScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`

const textScript = `(sel) => {
	const el = document.querySelector(sel);
	return el ? { found: true, text: el.textContent || '' } : { found: false, text: '' };
}`
