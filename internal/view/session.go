package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/logger"
)

// Session owns the single browser session of a run.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	view    *PlaywrightView
	cfg     *config.Config
	logger  *logger.Logger
}

// OpenSession starts playwright, launches the configured browser and makes
// sure the session is authenticated. An existing storage-state file is reused;
// otherwise the configured credentials are used and the state is saved.
func OpenSession(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	s := &Session{cfg: cfg, logger: log}
	if err := s.start(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.authenticate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) start() error {
	if !s.cfg.Browser.SkipInstall {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{s.engine()}}); err != nil {
			return fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	s.pw = pw

	browserType := pw.Chromium
	switch s.engine() {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Browser.Headless),
		SlowMo:   playwright.Float(float64(s.cfg.Browser.SlowMoMs)),
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	s.browser = browser

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  s.cfg.Browser.ViewportWidth,
			Height: s.cfg.Browser.ViewportHeight,
		},
	}
	if s.hasStorageState() {
		opts.StorageStatePath = playwright.String(s.cfg.App.StorageState)
		s.logger.Debugw("Reusing storage state", "path", s.cfg.App.StorageState)
	}

	bctx, err := browser.NewContext(opts)
	if err != nil {
		return fmt.Errorf("could not create context: %w", err)
	}
	s.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	s.page = page
	page.SetDefaultTimeout(s.timeoutMs())

	v, err := NewPlaywrightView(page, s.cfg.App.BaseURL)
	if err != nil {
		return err
	}
	s.view = v
	return nil
}

func (s *Session) authenticate(ctx context.Context) error {
	if s.cfg.App.Login.Username == "" {
		s.logger.Debug("No login credentials configured, skipping authentication")
		return nil
	}

	if s.hasStorageState() {
		if err := s.view.Navigate(ctx, "/"); err != nil {
			return err
		}
		if !NeedsLogin(ctx, s.view, s.cfg.App.Login) {
			return nil
		}
		s.logger.Info("Stored session expired, logging in again")
	}

	timeout := time.Duration(s.cfg.Browser.TimeoutSeconds * float64(time.Second))
	if err := Login(ctx, s.view, s.cfg.App.Login, timeout); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	s.logger.Infow("Logged in", "user", s.cfg.App.Login.Username)

	return s.saveStorageState()
}

func (s *Session) saveStorageState() error {
	path := s.cfg.App.StorageState
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create storage state directory: %w", err)
	}
	if _, err := s.context.StorageState(path); err != nil {
		return fmt.Errorf("failed to save storage state: %w", err)
	}
	s.logger.Debugw("Saved storage state", "path", path)
	return nil
}

func (s *Session) hasStorageState() bool {
	if s.cfg.App.StorageState == "" {
		return false
	}
	_, err := os.Stat(s.cfg.App.StorageState)
	return err == nil
}

func (s *Session) engine() string {
	if s.cfg.Browser.Engine == "" {
		return "chromium"
	}
	return s.cfg.Browser.Engine
}

func (s *Session) timeoutMs() float64 {
	return s.cfg.Browser.TimeoutSeconds * 1000
}

// View returns the session's view adapter.
func (s *Session) View() View {
	return s.view
}

// Close releases the page, context, browser and driver in reverse order.
func (s *Session) Close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.context != nil {
		_ = s.context.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			s.logger.Warnw("Failed to stop playwright", "error", err)
		}
	}
}
