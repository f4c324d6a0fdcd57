// Package browser provides the browsing surface the harvest pipeline runs
// against: an isolated session-like handle that can navigate, query the
// rendered document, evaluate scripts and manage cookies. Selector strings
// and evaluated scripts are opaque configuration supplied by the
// site-specific extraction layer.
package browser

import (
	"context"
	"time"
)

// WaitPolicy selects how long Navigate blocks after the navigation is issued
type WaitPolicy int

const (
	// WaitNone returns as soon as the navigation is issued
	WaitNone WaitPolicy = iota
	// WaitLoad waits for the page load event (tolerated on timeout)
	WaitLoad
)

// Cookie is a serializable session token. It round-trips through the
// credential persistence file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Element is a handle to one rendered item on a surface
type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
	HTML() (string, error)
	Query(selector string) ([]Element, error)
	Click() error
	Input(text string) error
	PressEnter() error
}

// Surface is an isolated browsing context handle. Implementations must
// convert missing-element and timeout conditions into error returns, never
// faults that unwind past the caller.
type Surface interface {
	Navigate(ctx context.Context, url string, wait WaitPolicy, timeout time.Duration) error
	URL() string
	Query(selector string) ([]Element, error)
	Evaluate(script string) (string, error)
	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error
	// Surfaces returns every surface currently open in the owning browser,
	// including popups spawned by this one. Used by federated login to find
	// the surface that received the identity provider page.
	Surfaces() ([]Surface, error)
	Close() error
}
