// Package collector walks an infinite-scroll listing, extracting each newly
// revealed item exactly once. Progress is monotonic: an item is marked seen
// whether or not its extraction succeeds, so a flaky item cannot stall the
// walk.
package collector

import (
	"context"
	"sync"

	"pinharvest/pkg/config"
	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
)

// Cursor tracks walk position within one target. Exhausted is terminal: a
// cursor never un-exhausts.
type Cursor struct {
	TargetID    string
	ScrollDepth int
	Seen        map[extract.ItemKey]struct{}
	Exhausted   bool
}

// NewCursor creates a fresh cursor for a target.
func NewCursor(targetID string) *Cursor {
	return &Cursor{TargetID: targetID, Seen: make(map[extract.ItemKey]struct{})}
}

// SeenKeys returns the seen set as a slice, for checkpointing.
func (c *Cursor) SeenKeys() []extract.ItemKey {
	keys := make([]extract.ItemKey, 0, len(c.Seen))
	for k := range c.Seen {
		keys = append(keys, k)
	}
	return keys
}

// Stats summarizes one collection pass.
type Stats struct {
	Collected        int
	SkippedSeen      int
	Rejected         int
	ExtractionErrors int
	Scrolls          int
	Exhausted        bool
}

// Collector runs the scroll-snapshot-extract loop.
type Collector struct {
	cfg   config.CollectConfig
	dedup DedupCache
	log   logger.Logger
}

// New creates a collector with the given pagination bounds and dedup cache.
func New(cfg config.CollectConfig, dedup DedupCache) *Collector {
	if dedup == nil {
		dedup = NewMemoryCache()
	}
	return &Collector{cfg: cfg, dedup: dedup, log: logger.GetLogger()}
}

// Collect streams records from the listing in discovery order. The channel
// closes when the limit is reached, the listing is exhausted, or the context
// is cancelled; the returned func reports stats and is safe to call any time.
//
// limit <= 0 means unlimited. accept may be nil.
func (c *Collector) Collect(ctx context.Context, cursor *Cursor, listing Listing, extractor extract.Extractor, accept func(extract.Record) bool, limit int) (<-chan extract.Record, func() Stats) {
	out := make(chan extract.Record)

	var mu sync.Mutex
	var stats Stats
	snapshot := func() Stats {
		mu.Lock()
		defer mu.Unlock()
		return stats
	}

	go func() {
		defer close(out)
		c.run(ctx, cursor, listing, extractor, accept, limit, out, &mu, &stats)
	}()

	return out, snapshot
}

func (c *Collector) run(ctx context.Context, cursor *Cursor, listing Listing, extractor extract.Extractor, accept func(extract.Record) bool, limit int, out chan<- extract.Record, mu *sync.Mutex, stats *Stats) {
	log := c.log.WithField("target", cursor.TargetID)
	noGrowth := 0

	c.prime(ctx, cursor, listing, mu, stats)

	for !cursor.Exhausted {
		if ctx.Err() != nil {
			return
		}

		items, err := listing.Snapshot(ctx)
		if err != nil {
			log.WithError(err).Warn("Listing snapshot failed")
			c.exhaust(cursor, mu, stats)
			return
		}

		fresh := 0
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			mu.Lock()
			done := limit > 0 && stats.Collected >= limit
			mu.Unlock()
			if done {
				return
			}

			if _, ok := cursor.Seen[item.Key]; ok {
				continue
			}
			if c.dedup.Seen(item.Key) {
				cursor.Seen[item.Key] = struct{}{}
				c.count(mu, func() { stats.SkippedSeen++ })
				continue
			}

			// Mark before extracting. A failing item must not be
			// retried forever on every snapshot.
			cursor.Seen[item.Key] = struct{}{}
			c.dedup.Mark(item.Key)
			fresh++

			rec, err := extractor.Extract(item)
			if err != nil {
				log.WithError(err).WithField("item", string(item.Key)).Warn("Item extraction failed")
				c.count(mu, func() { stats.ExtractionErrors++ })
				continue
			}
			if accept != nil && !accept(rec) {
				c.count(mu, func() { stats.Rejected++ })
				continue
			}

			select {
			case out <- rec:
				c.count(mu, func() { stats.Collected++ })
			case <-ctx.Done():
				return
			}
		}

		mu.Lock()
		done := limit > 0 && stats.Collected >= limit
		mu.Unlock()
		if done {
			return
		}

		if fresh == 0 {
			noGrowth++
			if noGrowth >= c.cfg.NoGrowthLimit {
				log.WithField("scrolls", cursor.ScrollDepth).Info("Listing exhausted")
				c.exhaust(cursor, mu, stats)
				return
			}
		} else {
			noGrowth = 0
		}

		if c.cfg.MaxScrolls > 0 && cursor.ScrollDepth >= c.cfg.MaxScrolls {
			c.exhaust(cursor, mu, stats)
			return
		}

		if err := listing.Advance(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Listing advance failed")
			c.exhaust(cursor, mu, stats)
			return
		}
		cursor.ScrollDepth++
		c.count(mu, func() { stats.Scrolls++ })
		logger.LogCollectProgress(cursor.TargetID, len(cursor.Seen), limit)
	}
}

// prime scrolls until the listing shows a minimum number of items, so the
// first extraction pass does not run against a half-rendered page. Bounded
// by the no-growth limit; short listings simply prime with what they have.
func (c *Collector) prime(ctx context.Context, cursor *Cursor, listing Listing, mu *sync.Mutex, stats *Stats) {
	if c.cfg.MinItemsBeforeScroll <= 0 {
		return
	}
	for attempt := 0; attempt < c.cfg.NoGrowthLimit; attempt++ {
		if ctx.Err() != nil {
			return
		}
		items, err := listing.Snapshot(ctx)
		if err != nil || len(items) >= c.cfg.MinItemsBeforeScroll {
			return
		}
		if err := listing.Advance(ctx); err != nil {
			return
		}
		cursor.ScrollDepth++
		c.count(mu, func() { stats.Scrolls++ })
	}
}

func (c *Collector) count(mu *sync.Mutex, f func()) {
	mu.Lock()
	f()
	mu.Unlock()
}

func (c *Collector) exhaust(cursor *Cursor, mu *sync.Mutex, stats *Stats) {
	cursor.Exhausted = true
	mu.Lock()
	stats.Exhausted = true
	mu.Unlock()
}
