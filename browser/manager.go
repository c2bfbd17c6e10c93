// Package browser manages the Chrome lifecycle and the per-session pages
// pilote drives: launch or remote attach via Rod, periodic recycling,
// structural surface dumps, event wiring for dialogs and console traffic,
// and the action surface remote callers step the page with.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless launches Chrome without a visible window. Default: true.
	Headless *bool

	// Stealth applies anti-automation-detection measures to new pages.
	Stealth bool

	// ResourceBlocking lists resource types to block (images, fonts,
	// media, stylesheets).
	ResourceBlocking []string

	// NavTimeout bounds navigations and page loads. Default: 30s.
	NavTimeout time.Duration

	// RecycleInterval is the maximum lifetime of a Chrome process before
	// it is restarted. Default: 4h.
	RecycleInterval time.Duration

	// XvfbDisplay starts an Xvfb server for headful mode when set,
	// e.g. ":99".
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleCallback notifies the session layer around a Chrome restart so it
// can drop pages that are about to die.
type RecycleCallback struct {
	// BeforeRecycle is called before Chrome is killed.
	BeforeRecycle func()
	// AfterRecycle is called once the new Chrome is up.
	AfterRecycle func(browser *rod.Browser)
}

// Manager owns one Chrome process (or remote attachment) and restarts it on
// schedule. Sessions borrow pages from the current browser handle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *xvfbServer
	startAt time.Time
	closed  bool
	cb      *RecycleCallback
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// SetRecycleCallback sets the callback for recycle events.
func (m *Manager) SetRecycleCallback(cb *RecycleCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

// Start launches Chrome (or connects to a remote instance) and starts the
// recycle monitor.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitorLoop(ctx)

	return b, nil
}

// Browser returns the current Rod browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// NavTimeout returns the configured navigation timeout.
func (m *Manager) NavTimeout() time.Duration { return m.cfg.NavTimeout }

// Recycle kills Chrome, restarts it, and runs the callbacks.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	return m.recycleLocked()
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger
	headless := *m.cfg.Headless

	if !headless && m.cfg.XvfbDisplay != "" {
		srv, err := startXvfb(m.cfg.XvfbDisplay)
		if err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
		m.xvfb = srv
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()
		if headless {
			l = l.Headless(true)
		} else {
			l = l.Headless(false)
			if m.cfg.XvfbDisplay != "" {
				l = l.Env("DISPLAY", m.cfg.XvfbDisplay)
			}
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	return b, nil
}

func (m *Manager) recycleLocked() error {
	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt))

	if m.cb != nil && m.cb.BeforeRecycle != nil {
		m.cb.BeforeRecycle()
	}

	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}

	b, err := m.launch()
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()

	if m.cb != nil && m.cb.AfterRecycle != nil {
		m.cb.AfterRecycle(b)
	}

	log.Info("browser: recycled")
	return nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	if m.xvfb != nil {
		m.xvfb.stop()
		m.xvfb = nil
	}
	return nil
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			if m.closed || m.browser == nil {
				m.mu.RUnlock()
				return
			}
			startAt := m.startAt
			m.mu.RUnlock()

			if time.Since(startAt) > m.cfg.RecycleInterval {
				log.Info("browser: recycle interval reached")
				if err := m.Recycle(ctx); err != nil {
					log.Error("browser: recycle failed", "error", err)
				}
			}
		}
	}
}
