// Package pageobject is the runtime that generated page objects embed. It keys every element by
// a configurable identifier attribute and routes interactions through the cursor sequencer so
// clicks on instrumented elements are confirmed before the caller continues.
package pageobject

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/internal/browser/clicksync"
	"github.com/xkilldash9x/pagechain/internal/browser/humanoid"
	"github.com/xkilldash9x/pagechain/internal/browser/identifier"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/config"
)

// Settings is the slice of configuration a session needs.
type Settings struct {
	Attribute             string
	InstrumentedAttribute string
	Pace                  float64
	ConfirmClicks         bool
	StrictClicks          bool
	ClickTimeout          time.Duration
	IdentifierTimeout     time.Duration
	PollInterval          time.Duration
	WaitTimeout           time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.NewDefaultConfig())
}

// SettingsFromConfig extracts session settings from the application configuration.
func SettingsFromConfig(cfg config.Interface) Settings {
	po := cfg.PageObject()
	click := cfg.Click()
	id := cfg.Identifier()
	return Settings{
		Attribute:             po.Attribute,
		InstrumentedAttribute: po.InstrumentedAttribute,
		Pace:                  po.Pace,
		ConfirmClicks:         click.Confirm,
		StrictClicks:          click.Strict,
		ClickTimeout:          click.Timeout,
		IdentifierTimeout:     id.Timeout,
		PollInterval:          id.PollInterval,
		WaitTimeout:           cfg.Browser().OperationTimeout,
	}
}

// Session bundles the per-page collaborators: the cursor position, the sequencer, the click
// synchronizer and the identifier extractor.
type Session struct {
	Page        page.Page
	Cache       *humanoid.PositionCache
	Humanoid    *humanoid.Humanoid
	Clicks      *clicksync.Synchronizer
	Identifiers *identifier.Extractor

	settings Settings
	logger   *zap.Logger

	closeOnce   sync.Once
	unsubscribe func()
}

// NewSession wires the collaborators for p. Navigation resets the cursor position and forces the
// marker to be re-created.
func NewSession(p page.Page, settings Settings, source humanoid.AnimationSource, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("page", p.InstanceID()))

	cache := humanoid.NewPositionCache()
	clicks := clicksync.New(p, clicksync.Options{Strict: settings.StrictClicks, Timeout: settings.ClickTimeout}, logger)
	h := humanoid.New(p, cache, source, clicks, humanoid.Options{
		Attribute:             settings.Attribute,
		InstrumentedAttribute: settings.InstrumentedAttribute,
		ConfirmTimeout:        settings.ClickTimeout,
	}, logger)

	s := &Session{
		Page:        p,
		Cache:       cache,
		Humanoid:    h,
		Clicks:      clicks,
		Identifiers: identifier.NewExtractor(p, settings.PollInterval, settings.IdentifierTimeout, logger),
		settings:    settings,
		logger:      logger.Named("pageobject"),
	}
	s.unsubscribe = p.OnNavigate(func() {
		cache.Reset()
		h.ResetCursor()
	})
	return s
}

// Settings returns the session settings.
func (s *Session) Settings() Settings { return s.settings }

// Close detaches the session from the page's navigation signal.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}
