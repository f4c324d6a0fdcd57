// Package scraper orchestrates a harvest run end to end: it opens a
// browsing surface per target, authenticates, walks the listing, and pushes
// every collected record through fetch and persistence.
//
// The orchestrator is deliberately tolerant. An item that fails extraction,
// fetch or persistence costs one error counter tick and nothing else; an
// authentication failure downgrades the run to unauthenticated collection;
// only the inability to obtain a browsing surface fails a target outright.
// Cancellation is honored between item boundaries, so the item in flight
// completes its fetch and persist before the run winds down.
package scraper
