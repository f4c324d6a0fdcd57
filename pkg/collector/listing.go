package collector

import (
	"context"
	"time"

	"pinharvest/pkg/browser"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/extract"
)

const scrollScript = `() => { window.scrollTo(0, document.body.scrollHeight); return String(document.body.scrollHeight); }`

// Listing is a paginated view over a content surface. Snapshot returns the
// currently rendered items as detached HTML and Advance reveals more.
type Listing interface {
	Snapshot(ctx context.Context) ([]extract.Item, error)
	Advance(ctx context.Context) error
}

// SurfaceListing drives an infinite-scroll page. Items are located by an
// ordered selector chain and keyed by the first anchor they contain.
type SurfaceListing struct {
	surface       browser.Surface
	itemSelectors []string
	linkSelectors []string
	settleDelay   time.Duration
}

// NewSurfaceListing wraps a browsing surface as a Listing.
func NewSurfaceListing(surface browser.Surface, itemSelectors []string, settleDelay time.Duration) *SurfaceListing {
	if len(itemSelectors) == 0 {
		itemSelectors = []string{`div[data-test-id="pin"]`, `div[data-grid-item="true"]`}
	}
	return &SurfaceListing{
		surface:       surface,
		itemSelectors: itemSelectors,
		linkSelectors: []string{`a[href]`},
		settleDelay:   settleDelay,
	}
}

// Snapshot captures the rendered items in document order. Items without a
// resolvable link are skipped since they cannot be keyed.
func (l *SurfaceListing) Snapshot(ctx context.Context) ([]extract.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var elements []browser.Element
	for _, sel := range l.itemSelectors {
		els, err := l.surface.Query(sel)
		if err != nil {
			continue
		}
		if len(els) > 0 {
			elements = els
			break
		}
	}

	items := make([]extract.Item, 0, len(elements))
	for _, el := range elements {
		href := l.itemLink(el)
		if href == "" {
			continue
		}
		html, err := el.HTML()
		if err != nil {
			continue
		}
		items = append(items, extract.Item{
			Key:  extract.NormalizeKey(href),
			URL:  href,
			HTML: html,
		})
	}
	return items, nil
}

// Advance scrolls to the bottom and waits for new content to settle.
func (l *SurfaceListing) Advance(ctx context.Context) error {
	if _, err := l.surface.Evaluate(scrollScript); err != nil {
		return errors.NewExtractionError("scroll failed", err)
	}
	if l.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(l.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *SurfaceListing) itemLink(el browser.Element) string {
	for _, sel := range l.linkSelectors {
		links, err := el.Query(sel)
		if err != nil || len(links) == 0 {
			continue
		}
		href, err := links[0].Attribute("href")
		if err != nil || href == "" {
			continue
		}
		return href
	}
	return ""
}
