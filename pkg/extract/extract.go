// Package extract turns raw listing snapshots into typed content records.
// Extraction works over detached HTML via goquery, so records can be built
// without holding a live page reference.
package extract

import (
	"net/url"
	"strings"
)

// ItemKey is the stable natural key of a content item, derived from its
// canonical URL. Two observations of the same item produce the same key.
type ItemKey string

// NormalizeKey canonicalizes a URL into a stable key. Scheme, query string,
// fragment and trailing slashes are dropped and the host is lowercased, so
// tracking parameters and protocol changes do not split one item into two.
func NormalizeKey(rawURL string) ItemKey {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ItemKey(strings.TrimRight(raw, "/"))
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(u.Path, "/")

	if host == "" {
		return ItemKey(path)
	}
	return ItemKey(host + path)
}

// MediaReference points at one downloadable asset belonging to a record.
type MediaReference struct {
	SourceURL string `json:"source_url"`
	OwnerKey  ItemKey `json:"owner_key"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Item is a detached snapshot of one listing entry. The collector hands
// these to an Extractor; the HTML is self-contained.
type Item struct {
	Key  ItemKey
	URL  string
	HTML string
}

// Record is a fully extracted content item ready for persistence.
type Record interface {
	Key() ItemKey
	Kind() string
	Title() string
	Owner() string
	Media() []MediaReference
	// Document renders the record as a flat document for the store.
	Document() map[string]any
}

// Extractor builds a Record from a snapshot. A returned error means the item
// could not be extracted at all; partial extractions succeed and mark the
// record incomplete instead.
type Extractor interface {
	Extract(item Item) (Record, error)
}
