package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/checkpoint-ingestor/internal/config"
	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/feeds"
	"github.com/jonesrussell/checkpoint-ingestor/internal/geocode"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
	"github.com/jonesrussell/checkpoint-ingestor/internal/reconcile"
	"github.com/jonesrussell/checkpoint-ingestor/internal/scrape"
)

type mockRunLogStore struct {
	inserted  *domain.RunLog
	finalized *domain.RunLog
	insertErr error
}

func (m *mockRunLogStore) Insert(_ context.Context, run *domain.RunLog) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	snapshot := *run
	m.inserted = &snapshot
	return nil
}

func (m *mockRunLogStore) Finalize(_ context.Context, run *domain.RunLog) error {
	snapshot := *run
	m.finalized = &snapshot
	return nil
}

type mockAnnouncementStore struct {
	upsertFunc func(ctx context.Context, a *domain.Announcement) (bool, error)
	upserted   []domain.Announcement
}

func (m *mockAnnouncementStore) Upsert(ctx context.Context, a *domain.Announcement) (bool, error) {
	m.upserted = append(m.upserted, *a)
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, a)
	}
	return true, nil
}

type mockScraper struct {
	candidates []scrape.Candidate
	rowErrs    []scrape.RowError
	err        error
}

func (m *mockScraper) Extract(context.Context) ([]scrape.Candidate, []scrape.RowError, error) {
	return m.candidates, m.rowErrs, m.err
}

type mockFeeds struct {
	extractFunc func(ctx context.Context, sources []domain.FeedSource, opts feeds.Options) ([]feeds.Item, []feeds.SourceError)
}

func (m *mockFeeds) Extract(
	ctx context.Context,
	sources []domain.FeedSource,
	opts feeds.Options,
) ([]feeds.Item, []feeds.SourceError) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, sources, opts)
	}
	return nil, nil
}

type mockGeocoder struct {
	resolveFunc func(ctx context.Context, address string) *geocode.Result
	queries     []string
}

func (m *mockGeocoder) Resolve(ctx context.Context, address string) *geocode.Result {
	m.queries = append(m.queries, address)
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, address)
	}
	return nil
}

type mockReconciler struct {
	reconcileFunc func(ctx context.Context, cp *domain.Checkpoint) (reconcile.Outcome, error)
	seen          []domain.Checkpoint
}

func (m *mockReconciler) Reconcile(ctx context.Context, cp *domain.Checkpoint) (reconcile.Outcome, error) {
	m.seen = append(m.seen, *cp)
	if m.reconcileFunc != nil {
		return m.reconcileFunc(ctx, cp)
	}
	return reconcile.OutcomeNew, nil
}

type coordinatorDeps struct {
	runs     *mockRunLogStore
	anns     *mockAnnouncementStore
	scraper  *mockScraper
	feeds    *mockFeeds
	geocoder *mockGeocoder
	engine   *mockReconciler
}

func newTestCoordinator(deps coordinatorDeps, sources *config.Sources) *Coordinator {
	c := NewCoordinator(Deps{
		Runs:          deps.runs,
		Announcements: deps.anns,
		Scraper:       deps.scraper,
		Feeds:         deps.feeds,
		Geocoder:      deps.geocoder,
		Engine:        deps.engine,
		Sources:       sources,
		ScrapeSource:  "ovi-checkpoint-aggregator",
		Logger:        logger.NewNop(),
	})
	c.now = func() time.Time { return time.Date(2025, 12, 5, 3, 0, 0, 0, time.UTC) }
	return c
}

func tableCandidate(title string) scrape.Candidate {
	return scrape.Candidate{
		Title:      title,
		County:     "Franklin",
		City:       "Columbus",
		Address:    "1200 N High St",
		Location:   "1200 N High St, Columbus, Ohio",
		StartsAt:   time.Date(2025, 12, 5, 22, 0, 0, 0, time.UTC),
		EndsAt:     time.Date(2025, 12, 6, 2, 0, 0, 0, time.UTC),
		SourceName: "ovi-checkpoint-aggregator",
		SourceURL:  "https://aggregator.example.com/checkpoints",
	}
}

func TestCoordinator_Run_CoreSuccess(t *testing.T) {
	deps := coordinatorDeps{
		runs: &mockRunLogStore{},
		anns: &mockAnnouncementStore{},
		scraper: &mockScraper{candidates: []scrape.Candidate{
			tableCandidate("OVI Checkpoint - Columbus, Franklin County"),
			tableCandidate("OVI Checkpoint - Dublin, Franklin County"),
		}},
		feeds: &mockFeeds{},
		geocoder: &mockGeocoder{resolveFunc: func(_ context.Context, _ string) *geocode.Result {
			return &geocode.Result{Latitude: 39.99, Longitude: -83.0, Confidence: domain.ConfidenceHigh, Cached: true}
		}},
		engine: &mockReconciler{},
	}
	c := newTestCoordinator(deps, &config.Sources{
		Master: []domain.FeedSource{{Name: "oshp-news", FeedURL: "https://example.com/rss"}},
	})

	run, err := c.Run(context.Background(), Options{Mode: ModeCore, Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, run.Status)
	assert.Equal(t, 2, run.Found)
	assert.Equal(t, 2, run.New)
	assert.Empty(t, run.Errors)
	assert.NotEmpty(t, run.ID)

	// The run record was created as partial before any work happened.
	require.NotNil(t, deps.runs.inserted)
	assert.Equal(t, domain.RunPartial, deps.runs.inserted.Status)
	require.NotNil(t, deps.runs.finalized)
	assert.Equal(t, domain.RunSuccess, deps.runs.finalized.Status)
	require.NotNil(t, deps.runs.finalized.CompletedAt)

	// Candidates reach the engine geocoded with a derived status.
	require.Len(t, deps.engine.seen, 2)
	cp := deps.engine.seen[0]
	require.NotNil(t, cp.Latitude)
	assert.InDelta(t, 39.99, *cp.Latitude, 1e-9)
	assert.Equal(t, domain.ConfidenceHigh, cp.GeocodeConfidence)
	assert.Equal(t, domain.StatusUpcoming, cp.Status)
}

func TestCoordinator_Run_OutcomeCounters(t *testing.T) {
	outcomes := []reconcile.Outcome{
		reconcile.OutcomeNew,
		reconcile.OutcomeUpdatedExact,
		reconcile.OutcomeUpdatedHeuristic,
		reconcile.OutcomeSkipped,
	}
	i := 0

	deps := coordinatorDeps{
		runs: &mockRunLogStore{},
		anns: &mockAnnouncementStore{},
		scraper: &mockScraper{candidates: []scrape.Candidate{
			tableCandidate("a"), tableCandidate("b"), tableCandidate("c"), tableCandidate("d"),
		}},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{},
		engine: &mockReconciler{reconcileFunc: func(context.Context, *domain.Checkpoint) (reconcile.Outcome, error) {
			out := outcomes[i]
			i++
			return out, nil
		}},
	}
	c := newTestCoordinator(deps, nil)

	run, err := c.Run(context.Background(), Options{Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, 4, run.Found)
	assert.Equal(t, 1, run.New)
	assert.Equal(t, 2, run.Updated)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Metadata.HeuristicMatches)
	assert.Equal(t, domain.RunSuccess, run.Status)
}

func TestCoordinator_Run_PartialOnReconcileError(t *testing.T) {
	first := true
	deps := coordinatorDeps{
		runs: &mockRunLogStore{},
		anns: &mockAnnouncementStore{},
		scraper: &mockScraper{candidates: []scrape.Candidate{
			tableCandidate("good"), tableCandidate("bad"),
		}},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{},
		engine: &mockReconciler{reconcileFunc: func(context.Context, *domain.Checkpoint) (reconcile.Outcome, error) {
			if first {
				first = false
				return reconcile.OutcomeNew, nil
			}
			return "", errors.New("update failed")
		}},
	}
	c := newTestCoordinator(deps, nil)

	run, err := c.Run(context.Background(), Options{Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartial, run.Status, "errors plus at least one write is partial")
	assert.Equal(t, 1, run.New)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0].Message, "update failed")
}

func TestCoordinator_Run_FailedWhenNothingPersisted(t *testing.T) {
	deps := coordinatorDeps{
		runs:     &mockRunLogStore{},
		anns:     &mockAnnouncementStore{},
		scraper:  &mockScraper{err: errors.New("upstream 503")},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{},
		engine:   &mockReconciler{},
	}
	c := newTestCoordinator(deps, nil)

	run, err := c.Run(context.Background(), Options{Trigger: "cron"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Zero(t, run.Found)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0].Message, "upstream 503")
}

func TestCoordinator_Run_GeocodeMissLeavesCoordinatesNil(t *testing.T) {
	deps := coordinatorDeps{
		runs:     &mockRunLogStore{},
		anns:     &mockAnnouncementStore{},
		scraper:  &mockScraper{candidates: []scrape.Candidate{tableCandidate("no geo")}},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{}, // always resolves to nil
		engine:   &mockReconciler{},
	}
	c := newTestCoordinator(deps, nil)

	run, err := c.Run(context.Background(), Options{Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, run.Status, "a geocode miss is not a run error")
	require.Len(t, deps.engine.seen, 1)
	assert.Nil(t, deps.engine.seen[0].Latitude)
	assert.Equal(t, domain.ConfidenceNone, deps.engine.seen[0].GeocodeConfidence)
}

func TestCoordinator_Run_CoreSweepsMasterFeeds(t *testing.T) {
	var gotSources []domain.FeedSource
	deps := coordinatorDeps{
		runs:    &mockRunLogStore{},
		anns:    &mockAnnouncementStore{},
		scraper: &mockScraper{},
		feeds: &mockFeeds{extractFunc: func(_ context.Context, sources []domain.FeedSource, _ feeds.Options) ([]feeds.Item, []feeds.SourceError) {
			gotSources = sources
			return []feeds.Item{
				{Title: "Checkpoint announced", URL: "https://news.example.com/a", SourceName: "oshp-news"},
				{Title: "Another checkpoint", URL: "https://news.example.com/b", SourceName: "oshp-news"},
			}, nil
		}},
		geocoder: &mockGeocoder{},
		engine:   &mockReconciler{},
	}
	sources := &config.Sources{Master: []domain.FeedSource{
		{Name: "oshp-news", FeedURL: "https://example.com/rss"},
		{Name: "dispatch", FeedURL: "https://example.com/feed"},
	}}
	c := newTestCoordinator(deps, sources)

	run, err := c.Run(context.Background(), Options{Mode: ModeCore, Trigger: "cron"})
	require.NoError(t, err)

	assert.Len(t, gotSources, 2)
	assert.Equal(t, 2, run.Metadata.AnnouncementsNew)
	require.Len(t, deps.anns.upserted, 2)
	assert.Equal(t, domain.AnnouncementPendingDetails, deps.anns.upserted[0].Status)
}

func TestCoordinator_Run_DiscoveryUsesSeedScope(t *testing.T) {
	var gotOpts feeds.Options
	var gotSources []domain.FeedSource
	deps := coordinatorDeps{
		runs:    &mockRunLogStore{},
		anns:    &mockAnnouncementStore{},
		scraper: &mockScraper{},
		feeds: &mockFeeds{extractFunc: func(_ context.Context, sources []domain.FeedSource, opts feeds.Options) ([]feeds.Item, []feeds.SourceError) {
			gotSources = sources
			gotOpts = opts
			return nil, nil
		}},
		geocoder: &mockGeocoder{},
		engine:   &mockReconciler{},
	}
	sources := &config.Sources{Seeds: []domain.SeedSource{{
		ID:       7,
		Name:     "franklin-sheriff",
		FeedURL:  "https://sheriff.example.gov/feed",
		County:   "Franklin",
		Keywords: "checkpoint|saturation patrol",
	}}}
	c := newTestCoordinator(deps, sources)

	run, err := c.Run(context.Background(), Options{Mode: ModeDiscovery, SeedID: 7, Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, run.Status)
	require.Len(t, gotSources, 1)
	assert.Equal(t, "franklin-sheriff", gotSources[0].Name)
	assert.Equal(t, "Franklin", gotOpts.County)
	assert.Equal(t, []string{"checkpoint", "saturation patrol"}, gotOpts.Keywords)
}

func TestCoordinator_Run_DiscoveryUnknownSeedFails(t *testing.T) {
	deps := coordinatorDeps{
		runs:     &mockRunLogStore{},
		anns:     &mockAnnouncementStore{},
		scraper:  &mockScraper{},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{},
		engine:   &mockReconciler{},
	}
	c := newTestCoordinator(deps, &config.Sources{})

	run, err := c.Run(context.Background(), Options{Mode: ModeDiscovery, SeedID: 42, Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, run.Status)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0].Message, "unknown seed source")
}

func TestCoordinator_Run_InsertFailureAborts(t *testing.T) {
	deps := coordinatorDeps{
		runs:     &mockRunLogStore{insertErr: errors.New("db down")},
		anns:     &mockAnnouncementStore{},
		scraper:  &mockScraper{candidates: []scrape.Candidate{tableCandidate("x")}},
		feeds:    &mockFeeds{},
		geocoder: &mockGeocoder{},
		engine:   &mockReconciler{},
	}
	c := newTestCoordinator(deps, nil)

	_, err := c.Run(context.Background(), Options{Trigger: "cli"})
	require.Error(t, err)
	assert.Empty(t, deps.engine.seen, "no work happens without a run record")
}
