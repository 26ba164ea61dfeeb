// Package pw implements page.Page with playwright-go.
package pw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/internal/config"
)

const installTimeout = 5 * time.Minute

// Browser owns the playwright driver and one Chromium instance. Every page gets its own
// browser context.
type Browser struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
}

// Launch starts the driver and Chromium, or connects over CDP when cfg.RemoteURL is set.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")

	if cfg.Install {
		if err := ensureInstallation(ctx, logger); err != nil {
			return nil, err
		}
	}

	driver, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	var browser playwright.Browser
	if cfg.RemoteURL != "" {
		logger.Info("Connecting to remote browser.", zap.String("url", cfg.RemoteURL))
		browser, err = driver.Chromium.ConnectOverCDP(cfg.RemoteURL)
	} else {
		browser, err = driver.Chromium.Launch(launchOptions(cfg))
	}
	if err != nil {
		_ = driver.Stop()
		return nil, fmt.Errorf("failed to launch browser instance: %w", err)
	}

	logger.Info("Browser started.", zap.String("browser_version", browser.Version()))
	return &Browser{
		cfg:     cfg,
		logger:  logger,
		pw:      driver,
		browser: browser,
		pages:   make(map[string]*Page),
	}, nil
}

func ensureInstallation(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func launchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	args := append([]string{"--disable-dev-shm-usage"}, cfg.Args...)
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     args,
		Timeout:  playwright.Float(60000),
	}
}

func contextOptions(cfg config.BrowserConfig) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts.Viewport = &playwright.Size{Width: cfg.WindowWidth, Height: cfg.WindowHeight}
	}
	return opts
}

// NewPage opens a page in a fresh browser context with click instrumentation installed.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("pw: browser is closed")
	}
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(contextOptions(b.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	raw, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	p := newPage(raw, bctx, b.cfg, b.logger)
	if err := p.install(); err != nil {
		_ = bctx.Close()
		return nil, err
	}

	b.mu.Lock()
	b.pages[p.id] = p
	b.mu.Unlock()
	b.logger.Debug("Opened page.", zap.String("page_id", p.id))
	return p, nil
}

// Close closes every page, the browser and the driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := make([]*Page, 0, len(b.pages))
	for _, p := range b.pages {
		pages = append(pages, p)
	}
	b.pages = nil
	b.mu.Unlock()

	for _, p := range pages {
		if err := p.Close(); err != nil {
			b.logger.Warn("Failed to close page.", zap.String("page_id", p.id), zap.Error(err))
		}
	}

	var shutdownErr error
	if err := b.browser.Close(); err != nil {
		b.logger.Error("Failed to close browser instance.", zap.Error(err))
		shutdownErr = fmt.Errorf("failed to close browser: %w", err)
	}
	if err := b.pw.Stop(); err != nil {
		b.logger.Error("Failed to stop Playwright driver.", zap.Error(err))
		if shutdownErr == nil {
			shutdownErr = fmt.Errorf("failed to stop playwright driver: %w", err)
		}
	}
	b.logger.Info("Browser closed.")
	return shutdownErr
}
