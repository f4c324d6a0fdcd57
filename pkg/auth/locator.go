package auth

import (
	"context"
	"time"

	"pinharvest/pkg/browser"
)

// Locator resolves a page element by trying an ordered list of selectors.
// Site markup drifts between deployments, so each logical element carries
// several candidate selectors and the first match wins.
type Locator struct {
	Name      string
	Selectors []string
}

// Find returns the first element matched by any selector, in order.
func (l Locator) Find(s browser.Surface) (browser.Element, bool) {
	for _, sel := range l.Selectors {
		els, err := s.Query(sel)
		if err != nil {
			continue
		}
		if len(els) > 0 {
			return els[0], true
		}
	}
	return nil, false
}

// FindWait polls for the element until it appears or the context expires.
func (l Locator) FindWait(ctx context.Context, s browser.Surface, interval time.Duration) (browser.Element, bool) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if el, ok := l.Find(s); ok {
			return el, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
}

// Present reports whether any selector currently matches.
func (l Locator) Present(s browser.Surface) bool {
	_, ok := l.Find(s)
	return ok
}
