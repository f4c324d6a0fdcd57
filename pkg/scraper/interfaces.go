package scraper

import (
	"context"

	"pinharvest/internal/downloader"
	"pinharvest/pkg/auth"
	"pinharvest/pkg/browser"
	"pinharvest/pkg/collector"
	"pinharvest/pkg/config"
	"pinharvest/pkg/extract"
)

// SurfaceProvider hands out isolated browsing surfaces.
type SurfaceProvider interface {
	NewSurface(ctx context.Context) (browser.Surface, error)
}

// Authenticator establishes a session on a surface.
type Authenticator interface {
	Authenticate(ctx context.Context, surface browser.Surface) (*auth.Session, error)
}

// MediaPipeline fetches a batch of media references.
type MediaPipeline interface {
	FetchAll(ctx context.Context, refs []extract.MediaReference) []downloader.Outcome
}

// Persister writes records and fetch outcomes to the document store.
type Persister interface {
	UpsertRecord(ctx context.Context, rec extract.Record) error
	UpsertFetchOutcomes(ctx context.Context, outcomes []downloader.Outcome) error
}

// ListingFactory builds the paginated listing for a target on a surface.
type ListingFactory func(surface browser.Surface, target config.TargetConfig) collector.Listing
