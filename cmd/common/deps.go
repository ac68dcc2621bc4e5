// Package common provides shared dependency construction for commands.
package common

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/checkpoint-ingestor/internal/config"
	"github.com/jonesrussell/checkpoint-ingestor/internal/database"
	"github.com/jonesrussell/checkpoint-ingestor/internal/feeds"
	"github.com/jonesrussell/checkpoint-ingestor/internal/geocode"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
	"github.com/jonesrussell/checkpoint-ingestor/internal/reconcile"
	"github.com/jonesrussell/checkpoint-ingestor/internal/runner"
	"github.com/jonesrussell/checkpoint-ingestor/internal/scrape"
)

// Deps holds the dependencies shared by all commands.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewCommandDeps loads configuration and constructs the logger.
func NewCommandDeps(configFile string, debug bool) (*Deps, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if debug {
		cfg.App.Debug = true
		cfg.Logger.Level = "debug"
		cfg.Logger.Development = true
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// Pipeline is a fully wired ingestion pipeline plus the resources it owns.
type Pipeline struct {
	Coordinator *runner.Coordinator
	DB          *sqlx.DB
}

// Close releases the pipeline's resources.
func (p *Pipeline) Close() error {
	return p.DB.Close()
}

// BuildPipeline connects to the database and wires the full ingestion
// pipeline from configuration.
func BuildPipeline(deps *Deps) (*Pipeline, error) {
	cfg := deps.Config

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sources, err := config.LoadSources(cfg.Feeds.SourcesFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	client := &http.Client{Timeout: cfg.App.HTTPTimeout}

	var provider geocode.Provider
	if cfg.Geocode.Token != "" {
		provider = geocode.NewMapboxProvider(client, cfg.Geocode.Token)
	}

	geocoder := geocode.NewService(
		database.NewGeocodeCacheRepository(db),
		provider,
		deps.Logger,
	)

	engine := reconcile.NewEngine(
		database.NewCheckpointRepository(db),
		cfg.App.AggregatorSource,
		deps.Logger,
	)

	scrapeCfg := scrape.Config{
		ContentAPIURL: cfg.Scrape.ContentAPIURL,
		PageURL:       cfg.Scrape.PageURL,
		TableID:       cfg.Scrape.TableID,
		Region:        cfg.Scrape.Region,
		SourceName:    cfg.App.AggregatorSource,
	}
	if cfg.Scrape.SourceName != "" {
		scrapeCfg.SourceName = cfg.Scrape.SourceName
	}

	coordinator := runner.NewCoordinator(runner.Deps{
		Runs:           database.NewRunLogRepository(db),
		Announcements:  database.NewAnnouncementRepository(db),
		Scraper:        scrape.NewExtractor(client, scrapeCfg, loc, deps.Logger),
		Feeds:          feeds.NewExtractor(client, deps.Logger),
		Geocoder:       geocoder,
		Engine:         engine,
		Sources:        sources,
		ScrapeSource:   scrapeCfg.SourceName,
		GeocodeDelay:   cfg.Geocode.Delay,
		MaxFeedSources: cfg.Feeds.MaxSources,
		MaxFeedItems:   cfg.Feeds.MaxItemsPerSource,
		Logger:         deps.Logger,
	})

	return &Pipeline{Coordinator: coordinator, DB: db}, nil
}
