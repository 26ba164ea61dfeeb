// Package page defines the page-scripting facility the automation core drives. Concrete
// backends live in internal/browser/cdp (chromedp) and internal/browser/pw (playwright).
package page

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagechain/api/schemas"
)

var (
	// ErrContextDestroyed reports that the page's JavaScript execution context went away,
	// typically because the page navigated while an operation was in flight.
	ErrContextDestroyed = errors.New("page: execution context destroyed")
	// ErrElementNotFound reports that a selector matched nothing.
	ErrElementNotFound = errors.New("page: element not found")
)

// ClickOptions tunes a click.
type ClickOptions struct {
	// Force skips actionability checks (visibility, stability, receiving events).
	Force   bool
	Timeout time.Duration
	// Delay is the time between mousedown and mouseup.
	Delay time.Duration
}

// TypeOptions tunes typing.
type TypeOptions struct {
	// Delay is the pause between key presses.
	Delay time.Duration
}

// WaitOptions tunes WaitForSelector.
type WaitOptions struct {
	Timeout time.Duration
	Visible bool
}

// Page is the capability set the core consumes from a browser page.
type Page interface {
	// InstanceID identifies this page instance. It never changes across navigations.
	InstanceID() string

	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	Click(ctx context.Context, selector string, opts ClickOptions) error
	Type(ctx context.Context, selector, text string, opts TypeOptions) error
	SelectOption(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	WaitForSelector(ctx context.Context, selector string, opts WaitOptions) error

	// Evaluate calls the JavaScript function expression script with the JSON encoded args and
	// decodes its (awaited) return value into out. out may be nil.
	Evaluate(ctx context.Context, script string, out any, args ...any) error

	// OnNavigate registers fn to run after every main-frame navigation.
	OnNavigate(fn func()) (unsubscribe func())
	// OnClickEvent registers fn for every click lifecycle signal the page emits.
	OnClickEvent(fn func(schemas.ClickEvent)) (unsubscribe func())
}

// contextDestroyedMarkers are the driver error texts that mean the execution context is gone.
// Backends translate these into ErrContextDestroyed; the list is only consulted for errors that
// reach the core untyped.
var contextDestroyedMarkers = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"target closed",
	"frame was detached",
}

// IsContextDestroyed reports whether err means the page's execution context went away.
func IsContextDestroyed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextDestroyed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextDestroyedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// TranslateError wraps driver errors that mean context destruction with ErrContextDestroyed so
// callers can rely on errors.Is.
func TranslateError(err error) error {
	if err == nil || errors.Is(err, ErrContextDestroyed) {
		return err
	}
	if IsContextDestroyed(err) {
		return errors.Join(ErrContextDestroyed, err)
	}
	return err
}

// AttrSelector builds a CSS attribute selector matching attr=value exactly.
func AttrSelector(attr, value string) string {
	return "[" + attr + "=" + cssString(value) + "]"
}

// cssString quotes s as a CSS string token. Quotes and backslashes are backslash-escaped,
// control characters become hex escapes and NUL becomes U+FFFD.
func cssString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// The trailing space ends the escape so a following hex digit is not absorbed.
			b.WriteString("\\" + strconv.FormatInt(int64(r), 16) + " ")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// DecodeClickEvent parses the payload the in-page click wrapper sends through the binding.
func DecodeClickEvent(payload string) (schemas.ClickEvent, error) {
	var ev schemas.ClickEvent
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(payload, &ev); err != nil {
		return ev, err
	}
	if ev.TestID == "" || ev.Phase == "" {
		return ev, errors.New("page: click event without testId or phase")
	}
	return ev, nil
}
