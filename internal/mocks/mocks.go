// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Animation() config.AnimationConfig {
	args := m.Called()
	return args.Get(0).(config.AnimationConfig)
}

func (m *MockConfig) Click() config.ClickConfig {
	args := m.Called()
	return args.Get(0).(config.ClickConfig)
}

func (m *MockConfig) Identifier() config.IdentifierConfig {
	args := m.Called()
	return args.Get(0).(config.IdentifierConfig)
}

func (m *MockConfig) PageObject() config.PageObjectConfig {
	args := m.Called()
	return args.Get(0).(config.PageObjectConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserDriver(d string) {
	m.Called(d)
}

func (m *MockConfig) SetAnimationEnabled(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetClickStrict(b bool) {
	m.Called(b)
}

// -- Page Mock --

// MockPage mocks page.Page for tests that assert exact interactions. Tests that need a page
// emitting signals should use FakePage instead.
type MockPage struct {
	mock.Mock
}

var _ page.Page = (*MockPage)(nil)

func (m *MockPage) InstanceID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Click(ctx context.Context, selector string, opts page.ClickOptions) error {
	args := m.Called(ctx, selector, opts)
	return args.Error(0)
}

func (m *MockPage) Type(ctx context.Context, selector, text string, opts page.TypeOptions) error {
	args := m.Called(ctx, selector, text, opts)
	return args.Error(0)
}

func (m *MockPage) SelectOption(ctx context.Context, selector, value string) error {
	args := m.Called(ctx, selector, value)
	return args.Error(0)
}

func (m *MockPage) Hover(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockPage) WaitForSelector(ctx context.Context, selector string, opts page.WaitOptions) error {
	args := m.Called(ctx, selector, opts)
	return args.Error(0)
}

// Evaluate records the script and args. Use .Run to populate out.
func (m *MockPage) Evaluate(ctx context.Context, script string, out any, args ...any) error {
	called := m.Called(ctx, script, out, args)
	return called.Error(0)
}

func (m *MockPage) OnNavigate(fn func()) func() {
	args := m.Called(fn)
	if unsub, ok := args.Get(0).(func()); ok {
		return unsub
	}
	return func() {}
}

func (m *MockPage) OnClickEvent(fn func(schemas.ClickEvent)) func() {
	args := m.Called(fn)
	if unsub, ok := args.Get(0).(func()); ok {
		return unsub
	}
	return func() {}
}
