// Package runner coordinates a full ingestion run: scrape, geocode,
// reconcile, and feed announcement extraction, bracketed by a durable run
// record.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/checkpoint-ingestor/internal/config"
	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/feeds"
	"github.com/jonesrussell/checkpoint-ingestor/internal/geocode"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
	"github.com/jonesrussell/checkpoint-ingestor/internal/reconcile"
	"github.com/jonesrussell/checkpoint-ingestor/internal/scrape"
)

// Run modes.
const (
	// ModeCore scrapes the checkpoint table, reconciles the results, and
	// sweeps the master feed list for announcements.
	ModeCore = "core"
	// ModeDiscovery sweeps a single location-scoped seed source for
	// announcements, skipping the table scrape.
	ModeDiscovery = "discovery"
)

// Options selects what a run does and records why it was started.
type Options struct {
	Mode    string
	SeedID  int
	Trigger string
}

// RunLogStore persists run records.
type RunLogStore interface {
	Insert(ctx context.Context, run *domain.RunLog) error
	Finalize(ctx context.Context, run *domain.RunLog) error
}

// AnnouncementStore persists feed announcements.
type AnnouncementStore interface {
	Upsert(ctx context.Context, a *domain.Announcement) (bool, error)
}

// TableExtractor produces checkpoint candidates from the source table.
type TableExtractor interface {
	Extract(ctx context.Context) ([]scrape.Candidate, []scrape.RowError, error)
}

// FeedExtractor produces announcement items from configured feeds.
type FeedExtractor interface {
	Extract(ctx context.Context, sources []domain.FeedSource, opts feeds.Options) ([]feeds.Item, []feeds.SourceError)
}

// Geocoder resolves an address to coordinates, or nil.
type Geocoder interface {
	Resolve(ctx context.Context, address string) *geocode.Result
}

// Reconciler decides insert, update, or skip for one candidate.
type Reconciler interface {
	Reconcile(ctx context.Context, candidate *domain.Checkpoint) (reconcile.Outcome, error)
}

// Coordinator runs the ingestion pipeline end to end.
type Coordinator struct {
	runs          RunLogStore
	announcements AnnouncementStore
	scraper       TableExtractor
	feeds         FeedExtractor
	geocoder      Geocoder
	engine        Reconciler
	sources       *config.Sources
	scrapeSource  string
	geocodeDelay  time.Duration
	maxSources    int
	maxItems      int
	log           logger.Logger
	now           func() time.Time
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Runs          RunLogStore
	Announcements AnnouncementStore
	Scraper       TableExtractor
	Feeds         FeedExtractor
	Geocoder      Geocoder
	Engine        Reconciler
	Sources       *config.Sources
	ScrapeSource  string
	GeocodeDelay  time.Duration
	// MaxFeedSources and MaxFeedItems cap each feed sweep; zero uses the
	// feeds package defaults.
	MaxFeedSources int
	MaxFeedItems   int
	Logger         logger.Logger
}

// NewCoordinator creates a run coordinator.
func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		runs:          deps.Runs,
		announcements: deps.Announcements,
		scraper:       deps.Scraper,
		feeds:         deps.Feeds,
		geocoder:      deps.Geocoder,
		engine:        deps.Engine,
		sources:       deps.Sources,
		scrapeSource:  deps.ScrapeSource,
		geocodeDelay:  deps.GeocodeDelay,
		maxSources:    deps.MaxFeedSources,
		maxItems:      deps.MaxFeedItems,
		log:           deps.Logger,
		now:           time.Now,
	}
}

// Run executes one ingestion run. The run record is inserted as partial
// before any work starts, so a crash leaves a visible partial run, and is
// finalized with the derived terminal status. The returned run reflects
// what was finalized; the error is non-nil only when the run record itself
// could not be written.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*domain.RunLog, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCore
	}

	started := c.now()
	run := &domain.RunLog{
		ID:        uuid.NewString(),
		StartedAt: started,
		Status:    domain.RunPartial,
		Metadata: domain.RunMetadata{
			Trigger: opts.Trigger,
			Mode:    opts.Mode,
			SeedID:  opts.SeedID,
		},
	}

	if err := c.runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	c.log.Info("run started",
		logger.String("run_id", run.ID),
		logger.String("mode", opts.Mode),
		logger.String("trigger", opts.Trigger),
	)

	stats := &domain.RunStats{}

	switch opts.Mode {
	case ModeDiscovery:
		c.runDiscovery(ctx, opts.SeedID, stats)
	default:
		c.runCore(ctx, stats)
	}

	completed := c.now()
	run.CompletedAt = &completed
	run.DurationMS = completed.Sub(started).Milliseconds()
	run.Status = stats.FinalStatus()
	run.Found = stats.Found
	run.New = stats.New
	run.Updated = stats.Updated()
	run.Skipped = stats.Skipped
	run.Errors = stats.Errors
	run.Metadata.HeuristicMatches = stats.UpdatedHeuristic
	run.Metadata.AnnouncementsNew = stats.AnnouncementsNew
	run.Metadata.AnnouncementsUpdated = stats.AnnouncementsUpdated

	if err := c.runs.Finalize(ctx, run); err != nil {
		return nil, fmt.Errorf("finalize run: %w", err)
	}

	c.log.Info("run finished",
		logger.String("run_id", run.ID),
		logger.String("status", string(run.Status)),
		logger.Int("found", run.Found),
		logger.Int("new", run.New),
		logger.Int("updated", run.Updated),
		logger.Int("skipped", run.Skipped),
		logger.Int("errors", len(run.Errors)),
		logger.Duration("duration", completed.Sub(started)),
	)

	return run, nil
}

// runCore scrapes the checkpoint table, geocodes and reconciles each
// candidate, then sweeps the master feed list.
func (c *Coordinator) runCore(ctx context.Context, stats *domain.RunStats) {
	candidates, rowErrs, err := c.scraper.Extract(ctx)
	if err != nil {
		stats.AddError(c.scrapeSource, "", fmt.Sprintf("table extraction failed: %v", err))
	}

	for _, rowErr := range rowErrs {
		stats.AddError(c.scrapeSource, "", fmt.Sprintf("row %d: %v", rowErr.Row, rowErr.Err))
	}

	stats.Found += len(candidates)

	for i := range candidates {
		c.ingestCandidate(ctx, &candidates[i], stats)
	}

	if c.sources != nil && len(c.sources.Master) > 0 {
		c.sweepFeeds(ctx, c.sources.Master, feeds.Options{}, stats)
	}
}

// runDiscovery sweeps one seed source with its location scope and keyword
// override.
func (c *Coordinator) runDiscovery(ctx context.Context, seedID int, stats *domain.RunStats) {
	if c.sources == nil {
		stats.AddError("", "", "no sources configured")
		return
	}

	seed := c.sources.SeedByID(seedID)
	if seed == nil {
		stats.AddError("", "", fmt.Sprintf("unknown seed source: %d", seedID))
		return
	}

	opts := feeds.Options{
		Keywords: seed.KeywordList(),
		County:   seed.County,
		City:     seed.City,
	}
	c.sweepFeeds(ctx, []domain.FeedSource{seed.FeedSource()}, opts, stats)
}

// ingestCandidate geocodes one table row and hands it to the
// reconciliation engine.
func (c *Coordinator) ingestCandidate(ctx context.Context, cand *scrape.Candidate, stats *domain.RunStats) {
	cp := &domain.Checkpoint{
		Title:             cand.Title,
		County:            cand.County,
		City:              cand.City,
		Address:           cand.Address,
		StartsAt:          cand.StartsAt,
		EndsAt:            cand.EndsAt,
		SourceName:        cand.SourceName,
		SourceURL:         cand.SourceURL,
		Description:       cand.Description,
		GeocodeConfidence: domain.ConfidenceNone,
	}
	cp.Status = domain.EffectiveStatus(cp.StartsAt, cp.EndsAt, c.now())

	if cand.Location != "" {
		if result := c.geocoder.Resolve(ctx, cand.Location); result != nil {
			cp.Latitude = &result.Latitude
			cp.Longitude = &result.Longitude
			cp.GeocodeConfidence = result.Confidence
			geocodedAt := c.now()
			cp.GeocodedAt = &geocodedAt

			// Pace provider calls; cache hits cost nothing.
			if !result.Cached && c.geocodeDelay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(c.geocodeDelay):
				}
			}
		}
	}

	outcome, err := c.engine.Reconcile(ctx, cp)
	if err != nil {
		stats.AddError(cand.SourceName, cand.SourceURL, fmt.Sprintf("reconcile %q: %v", cand.Title, err))
		return
	}

	switch outcome {
	case reconcile.OutcomeNew:
		stats.New++
	case reconcile.OutcomeUpdatedExact:
		stats.UpdatedExact++
	case reconcile.OutcomeUpdatedHeuristic:
		stats.UpdatedHeuristic++
	case reconcile.OutcomeSkipped:
		stats.Skipped++
	}
}

// sweepFeeds extracts announcement items and upserts them.
func (c *Coordinator) sweepFeeds(
	ctx context.Context,
	sources []domain.FeedSource,
	opts feeds.Options,
	stats *domain.RunStats,
) {
	opts.MaxSources = c.maxSources
	opts.MaxItemsPerSource = c.maxItems

	items, sourceErrs := c.feeds.Extract(ctx, sources, opts)

	for _, srcErr := range sourceErrs {
		stats.AddError(srcErr.Source, srcErr.FeedURL, srcErr.Err.Error())
	}

	for _, item := range items {
		a := &domain.Announcement{
			Title:       item.Title,
			SourceURL:   item.URL,
			SourceName:  item.SourceName,
			AnnouncedAt: item.PublishedAt,
			Status:      domain.AnnouncementPendingDetails,
			Summary:     item.Summary,
		}

		created, err := c.announcements.Upsert(ctx, a)
		if err != nil {
			stats.AddError(item.SourceName, item.URL, fmt.Sprintf("announcement upsert: %v", err))
			continue
		}

		if created {
			stats.AnnouncementsNew++
		} else {
			stats.AnnouncementsUpdated++
		}
	}
}
