package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"pinharvest/pkg/config"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/logger"
)

// Manager manages the Chrome lifecycle: launch a local instance via the
// launcher, or connect to an external one over its WebSocket URL.
type Manager struct {
	cfg    config.BrowserConfig
	log    logger.Logger
	mu     sync.Mutex
	rod    *rod.Browser
	lnch   *launcher.Launcher
	closed bool
}

// NewManager creates a browser Manager. Call Start before NewSurface.
func NewManager(cfg config.BrowserConfig, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{cfg: cfg, log: log}
}

// Start launches Chrome or connects to a remote instance. Failure here is a
// setup fault: no browsing context can be acquired at all.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.NewSetupFault("browser manager is closed", nil)
	}
	if m.rod != nil {
		return nil
	}

	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().Headless(m.cfg.Headless).Leakless(true)
		u, err := l.Launch()
		if err != nil {
			return errors.NewSetupFault("failed to launch browser", err)
		}
		m.lnch = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return errors.NewSetupFault("failed to connect to browser", err)
	}

	m.rod = b
	m.log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": m.cfg.Headless,
		"stealth":  m.cfg.Stealth,
		"remote":   m.cfg.RemoteURL != "",
	})

	return nil
}

// NewSurface opens a fresh browsing context. With stealth enabled the page
// carries the stealth evasions before any navigation happens.
func (m *Manager) NewSurface(ctx context.Context) (Surface, error) {
	m.mu.Lock()
	b := m.rod
	m.mu.Unlock()

	if b == nil {
		return nil, errors.NewSetupFault("browser not started", nil)
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, errors.NewSetupFault("failed to create browsing context", err)
	}

	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             m.cfg.ViewportWidth,
			Height:            m.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			m.log.WithError(err).Warn("Failed to set viewport")
		}
	}

	return &rodSurface{page: page, browser: b, log: m.log}, nil
}

// Close shuts down the browser and, when launched locally, the Chrome
// process itself.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.rod != nil {
		if err := m.rod.Close(); err != nil {
			m.log.WithError(err).Warn("Browser close failed")
		}
		m.rod = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}

	return nil
}

// rodSurface implements Surface on a rod page
type rodSurface struct {
	page    *rod.Page
	browser *rod.Browser
	log     logger.Logger
}

func (s *rodSurface) Navigate(ctx context.Context, url string, wait WaitPolicy, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if wait == WaitLoad {
		// A load-event timeout is tolerated: infinite-scroll pages often
		// never settle, the content we need is already rendered.
		if err := page.WaitLoad(); err != nil {
			s.log.WithError(err).WithField("url", url).Debug("Wait load timed out")
		}
	}

	return nil
}

func (s *rodSurface) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *rodSurface) Query(selector string) ([]Element, error) {
	els, err := s.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (s *rodSurface) Evaluate(script string) (string, error) {
	res, err := s.page.Eval(script)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return res.Value.Str(), nil
}

func (s *rodSurface) Cookies() ([]Cookie, error) {
	raw, err := s.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func (s *rodSurface) SetCookies(cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func (s *rodSurface) Surfaces() ([]Surface, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	out := make([]Surface, 0, len(pages))
	for _, p := range pages {
		out = append(out, &rodSurface{page: p, browser: s.browser, log: s.log})
	}
	return out, nil
}

func (s *rodSurface) Close() error {
	return s.page.Close()
}

// rodElement implements Element on a rod element handle
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *rodElement) HTML() (string, error) {
	return e.el.HTML()
}

func (e *rodElement) Query(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Input(text string) error {
	return e.el.Input(text)
}

func (e *rodElement) PressEnter() error {
	return e.el.Type(input.Enter)
}
