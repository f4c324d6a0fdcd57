package docstore

import (
	"context"
	"time"

	"pinharvest/internal/downloader"
	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
	"pinharvest/pkg/storage"
)

// MediaCollection holds fetch outcomes, keyed by source URL.
const MediaCollection = "media"

// Gateway writes harvest records and fetch outcomes through the store. Every
// write is an upsert by natural key, so a record observed in two runs ends
// up stored once, with the later observation winning.
type Gateway struct {
	store *Store
	log   logger.Logger
}

// NewGateway creates a persistence gateway over the store.
func NewGateway(store *Store) *Gateway {
	return &Gateway{store: store, log: logger.GetLogger()}
}

// Store exposes the underlying document store, mainly for key-index lookups.
func (g *Gateway) Store() *Store {
	return g.store
}

// UpsertRecord persists one record in the collection named by its kind.
func (g *Gateway) UpsertRecord(ctx context.Context, rec extract.Record) error {
	if err := g.store.Upsert(ctx, rec.Kind(), string(rec.Key()), rec.Document()); err != nil {
		return err
	}
	g.log.WithFields(map[string]interface{}{
		"kind": rec.Kind(),
		"key":  string(rec.Key()),
	}).Debug("Record upserted")
	return nil
}

// UpsertMany persists a batch, continuing past individual failures. It
// returns the number persisted and the first error encountered.
func (g *Gateway) UpsertMany(ctx context.Context, records []extract.Record) (int, error) {
	var firstErr error
	persisted := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		if err := g.UpsertRecord(ctx, rec); err != nil {
			g.log.WithError(err).WithField("key", string(rec.Key())).Warn("Record upsert failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		persisted++
	}
	return persisted, firstErr
}

// UpsertFetchOutcomes records where each fetched asset landed, keyed by its
// source URL so refetches overwrite rather than accumulate.
func (g *Gateway) UpsertFetchOutcomes(ctx context.Context, outcomes []downloader.Outcome) error {
	var firstErr error
	for _, o := range outcomes {
		doc := map[string]any{
			"source_url": o.Ref.SourceURL,
			"owner_key":  string(o.Ref.OwnerKey),
			"success":    o.Success,
			"fetched_at": time.Now().UTC(),
		}
		if o.Success {
			doc["local_path"] = o.LocalPath
			doc["file_name"] = storage.DeriveName(o.Ref.SourceURL)
			doc["size"] = o.Size
		} else if o.Err != nil {
			doc["error"] = o.Err.Error()
		}

		if err := g.store.Upsert(ctx, MediaCollection, o.Ref.SourceURL, doc); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
