package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"pinharvest/internal/downloader"
	"pinharvest/pkg/auth"
	"pinharvest/pkg/browser"
	"pinharvest/pkg/checkpoint"
	"pinharvest/pkg/collector"
	"pinharvest/pkg/config"
	"pinharvest/pkg/docstore"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
	"pinharvest/pkg/pacing"
	"pinharvest/pkg/retry"
	"pinharvest/pkg/storage"
)

// Orchestrator drives a harvest run across its configured targets.
type Orchestrator struct {
	cfg         *config.Config
	surfaces    SurfaceProvider
	auth        Authenticator
	pipeline    MediaPipeline
	gateway     Persister
	dedup       collector.DedupCache
	pace        pacing.Policy
	retryCfg    *retry.Config
	listings    ListingFactory
	checkpoints func(target string) (*checkpoint.Manager, error)
	logger      logger.Logger

	resume       bool
	forceRestart bool

	browserMgr *browser.Manager
	store      *docstore.Store
}

// New wires an orchestrator from configuration: rod-backed browsing
// surfaces, the credential-store authentication chain, the media fetch
// pipeline and the sqlite document gateway.
func New(cfg *config.Config) (*Orchestrator, error) {
	log := logger.GetLogger()

	browserMgr := browser.NewManager(cfg.Browser, log)

	credStore, err := auth.NewManager(cfg.Auth.CookiesPath)
	if err != nil {
		return nil, errors.NewSetupFault("failed to initialize credential store", err)
	}
	coordinator := auth.NewCoordinator(cfg.Auth, credStore)

	store, err := docstore.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	gateway := docstore.NewGateway(store)

	mediaStore, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		store.Close()
		return nil, errors.NewSetupFault("failed to initialize media store", err)
	}
	client := downloader.NewClient(cfg.Download.FetchTimeout, cfg.Download.RequestsPerSecond, cfg.Download.UserAgent)
	pipeline := downloader.NewPipeline(client, mediaStore, cfg.Download.ConcurrentFetches)

	var dedup collector.DedupCache
	if cfg.Storage.DedupAcrossRuns {
		dedup = collector.NewStoreCache(store, extract.KindPin)
	} else {
		dedup = collector.NewMemoryCache()
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Retry.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	}

	settle := cfg.Collect.SettleDelay
	listings := func(surface browser.Surface, target config.TargetConfig) collector.Listing {
		return collector.NewSurfaceListing(surface, nil, settle)
	}

	return &Orchestrator{
		cfg:         cfg,
		surfaces:    browserMgr,
		auth:        coordinator,
		pipeline:    pipeline,
		gateway:     gateway,
		dedup:       dedup,
		pace:        pacing.FromConfig(cfg.Pacing),
		retryCfg:    retryCfg,
		listings:    listings,
		checkpoints: checkpoint.NewManager,
		logger:      log,
		browserMgr:  browserMgr,
		store:       store,
	}, nil
}

// NewWithDeps wires an orchestrator over explicit boundary implementations.
func NewWithDeps(cfg *config.Config, surfaces SurfaceProvider, authenticator Authenticator, pipeline MediaPipeline, gateway Persister, listings ListingFactory) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		surfaces: surfaces,
		auth:     authenticator,
		pipeline: pipeline,
		gateway:  gateway,
		dedup:    collector.NewMemoryCache(),
		pace:     pacing.FromConfig(cfg.Pacing),
		retryCfg: retry.DefaultConfig(),
		listings: listings,
		logger:   logger.GetLogger(),
	}
}

// SetResume controls checkpoint handling. With resume, a previous
// checkpoint seeds the target's seen set so the run skips what it already
// collected; forceRestart discards any existing checkpoint first.
func (o *Orchestrator) SetResume(resume, forceRestart bool) {
	o.resume = resume
	o.forceRestart = forceRestart
}

// Close releases the browser and document store.
func (o *Orchestrator) Close() error {
	var firstErr error
	if o.browserMgr != nil {
		if err := o.browserMgr.Close(); err != nil {
			firstErr = err
		}
	}
	if o.store != nil {
		if err := o.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start launches the browser. Separate from New so construction failures
// and launch failures stay distinguishable.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.browserMgr == nil {
		return nil
	}
	return o.browserMgr.Start(ctx)
}

// Run harvests every target in order. The returned stats are always
// populated, even on error; the error is non-nil only when every target
// failed to obtain a working browsing surface.
func (o *Orchestrator) Run(ctx context.Context, targets []config.TargetConfig) (*RunStats, error) {
	stats := newRunStats()
	defer func() { stats.FinishedAt = time.Now() }()

	log := o.logger.WithField("run_id", stats.RunID)
	log.WithField("targets", len(targets)).Info("Harvest run starting")

	for i, target := range targets {
		if ctx.Err() != nil {
			log.Info("Run cancelled before next target")
			break
		}
		if i > 0 {
			if err := o.pace.Pause(ctx); err != nil {
				break
			}
		}

		logger.LogComponentStart("target "+target.Name, map[string]interface{}{
			"kind": target.Kind,
		})
		result := o.runTarget(ctx, target, stats)
		stats.Targets = append(stats.Targets, result)
		logger.LogComponentStop("target "+target.Name, string(result.State))
	}

	log.WithFields(map[string]interface{}{
		"collected": stats.ItemsCollected,
		"persisted": stats.ItemsPersisted,
		"media":     stats.MediaFetched,
		"errors":    stats.Errors,
	}).Info("Harvest run finished")

	if stats.AllTargetsFailed() {
		return stats, errors.NewSetupFault("every target failed to start", nil)
	}
	return stats, nil
}

// runTarget walks one target through the state machine. Only the inability
// to get a surface or reach the target page fails it.
func (o *Orchestrator) runTarget(ctx context.Context, target config.TargetConfig, stats *RunStats) TargetResult {
	result := TargetResult{Target: target.Name, State: StateNotStarted}
	log := o.logger.WithField("target", target.Name)

	surface, err := o.surfaces.NewSurface(ctx)
	if err != nil {
		result.State = StateFailed
		result.Err = errors.NewSetupFault("no browsing surface for target", err)
		log.WithError(err).Error("Target failed before starting")
		return result
	}
	defer surface.Close()

	result.State = StateAuthenticating
	if o.auth != nil {
		if _, err := o.auth.Authenticate(ctx, surface); err != nil {
			stats.AuthFailures++
			log.WithError(err).Warn("Authentication failed, continuing unauthenticated")
		}
	}

	targetURL, err := resolveTargetURL(target)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	if err := surface.Navigate(ctx, targetURL, browser.WaitLoad, o.cfg.Browser.NavigationTimeout); err != nil {
		result.State = StateFailed
		result.Err = errors.NewSetupFault("target page unreachable", err)
		log.WithError(err).Error("Target navigation failed")
		return result
	}

	result.State = StateCollecting

	cursor := collector.NewCursor(target.Name)
	cpMgr, cp := o.loadCheckpoint(target, cursor)

	collectCfg := o.cfg.Collect
	if target.MaxScrolls > 0 {
		collectCfg.MaxScrolls = target.MaxScrolls
	}

	coll := collector.New(collectCfg, o.dedup)
	listing := o.listings(surface, target)
	records, collStats := coll.Collect(ctx, cursor, listing, extract.ForKind(listedKind(target.Kind)), nil, target.MaxItems)

	for rec := range records {
		stats.ItemsCollected++
		result.Collected++

		fetched := o.processItem(ctx, rec, stats, &result, log)

		if cpMgr != nil && cp != nil {
			if err := cpMgr.RecordItem(cp, fetched); err != nil {
				log.WithError(err).Warn("Checkpoint update failed")
			}
		}

		// Pause between items, not after a cancellation.
		if ctx.Err() == nil {
			if err := o.pace.Pause(ctx); err != nil {
				break
			}
		}
	}

	// The collector goroutine owns the cursor until its channel closes;
	// drain any remainder after an early break before reading it.
	for range records {
	}

	final := collStats()
	stats.Errors += final.ExtractionErrors

	o.finishCheckpoint(cpMgr, cp, cursor, final.Exhausted, log)

	result.State = StateCompleted
	return result
}

// processItem runs one record through fetch and persist, isolating every
// failure to counter ticks. Returns how many assets were fetched.
func (o *Orchestrator) processItem(ctx context.Context, rec extract.Record, stats *RunStats, result *TargetResult, log logger.Logger) int {
	outcomes := o.pipeline.FetchAll(ctx, rec.Media())
	fetched := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			fetched++
		} else {
			stats.Errors++
		}
	}
	stats.MediaFetched += fetched

	// Persistence is the one boundary worth retrying: the store is local
	// and transient lock contention resolves in milliseconds.
	persistCfg := *o.retryCfg
	persistCfg.Context = ctx
	err := retry.Do(func() error {
		return o.gateway.UpsertRecord(ctx, rec)
	}, &persistCfg)
	if err != nil {
		stats.Errors++
		log.WithError(err).WithField("key", string(rec.Key())).Warn("Record persistence failed")
	} else {
		stats.ItemsPersisted++
		result.Persisted++
	}

	if len(outcomes) > 0 {
		if err := o.gateway.UpsertFetchOutcomes(ctx, outcomes); err != nil {
			stats.Errors++
			log.WithError(err).Warn("Fetch outcome persistence failed")
		}
	}

	return fetched
}

// loadCheckpoint resumes or creates the target's checkpoint and seeds the
// cursor's seen set. Checkpoint trouble never blocks the harvest.
func (o *Orchestrator) loadCheckpoint(target config.TargetConfig, cursor *collector.Cursor) (*checkpoint.Manager, *checkpoint.Checkpoint) {
	if o.checkpoints == nil {
		return nil, nil
	}
	mgr, err := o.checkpoints(target.Name)
	if err != nil {
		o.logger.WithError(err).Warn("Checkpointing unavailable for target")
		return nil, nil
	}

	if o.forceRestart && mgr.Exists() {
		if err := mgr.Delete(); err != nil {
			o.logger.WithError(err).Warn("Stale checkpoint removal failed")
		}
	}

	cp, err := mgr.Load()
	if err != nil {
		o.logger.WithError(err).Warn("Checkpoint unreadable, starting fresh")
		cp = nil
	}
	if cp != nil && !cp.Exhausted && o.resume {
		for _, k := range cp.SeenItemKeys() {
			cursor.Seen[k] = struct{}{}
		}
	} else {
		cp, err = mgr.Create(target.Name, target.Kind)
		if err != nil {
			o.logger.WithError(err).Warn("Checkpoint creation failed")
			return nil, nil
		}
	}
	return mgr, cp
}

// finishCheckpoint records final progress; an exhausted target's checkpoint
// is removed since there is nothing left to resume.
func (o *Orchestrator) finishCheckpoint(mgr *checkpoint.Manager, cp *checkpoint.Checkpoint, cursor *collector.Cursor, exhausted bool, log logger.Logger) {
	if mgr == nil || cp == nil {
		return
	}
	if exhausted {
		if err := mgr.Delete(); err != nil {
			log.WithError(err).Warn("Checkpoint cleanup failed")
		}
		return
	}
	if err := mgr.RecordProgress(cp, cursor.ScrollDepth, cursor.SeenKeys(), exhausted); err != nil {
		log.WithError(err).Warn("Checkpoint save failed")
	}
}

// listedKind maps a target kind to the kind of record its page lists:
// profiles list boards, project galleries list projects, boards and
// searches list pins.
func listedKind(targetKind string) string {
	switch targetKind {
	case "profile":
		return extract.KindBoard
	case "project":
		return extract.KindProject
	default:
		return extract.KindPin
	}
}

// resolveTargetURL returns the page to open for a target. Search targets
// may give only a query.
func resolveTargetURL(target config.TargetConfig) (string, error) {
	if target.URL != "" {
		return target.URL, nil
	}
	if target.Kind == "search" && target.Query != "" {
		return "https://www.pinterest.com/search/pins/?q=" + url.QueryEscape(target.Query), nil
	}
	return "", errors.NewSetupFault(fmt.Sprintf("target %q has no url", target.Name), nil)
}
