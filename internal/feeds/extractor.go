// Package feeds fetches and filters RSS/Atom feeds for checkpoint
// announcements.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
)

// Caps bounding a single run. A misconfigured source list must not be able
// to stall the whole run.
const (
	DefaultMaxSources        = 25
	DefaultMaxItemsPerSource = 10
)

// userAgent identifies the pipeline to feed providers.
const userAgent = "checkpoint-ingestor/1.0 (+https://github.com/jonesrussell/checkpoint-ingestor)"

// DefaultKeywords is the relevance filter applied when the caller does not
// override it. An item is kept when its title or summary contains at least
// one keyword.
var DefaultKeywords = []string{
	"checkpoint",
	"sobriety",
	"ovi",
	"dui",
	"drunk driving",
	"impaired driving",
	"drugged driving",
	"saturation patrol",
}

// Item is a candidate announcement extracted from a feed.
type Item struct {
	Title       string
	URL         string
	SourceName  string
	PublishedAt time.Time
	Summary     string
}

// SourceError records a fetch or parse failure isolated to one source.
type SourceError struct {
	Source  string
	FeedURL string
	Err     error
}

// Options controls filtering and caps for one extraction pass.
type Options struct {
	// Keywords overrides DefaultKeywords when non-nil.
	Keywords []string
	// County and City scope results to a location: when either is set, an
	// item must mention the county or city by name to be kept. This stops a
	// statewide feed from polluting a city-specific announcement list.
	County string
	City   string
	// MaxSources and MaxItemsPerSource bound run duration; zero means the
	// package default.
	MaxSources        int
	MaxItemsPerSource int
}

// Extractor fetches configured feeds and extracts relevant items.
type Extractor struct {
	client *http.Client
	parser *gofeed.Parser
	log    logger.Logger
}

// NewExtractor creates an extractor backed by the given HTTP client.
func NewExtractor(client *http.Client, log logger.Logger) *Extractor {
	return &Extractor{
		client: client,
		parser: gofeed.NewParser(),
		log:    log,
	}
}

// Extract fetches each source and returns the relevant items plus one error
// per failed source. A failure on one feed never aborts the remaining
// feeds.
func (e *Extractor) Extract(
	ctx context.Context,
	sources []domain.FeedSource,
	opts Options,
) ([]Item, []SourceError) {
	maxSources := opts.MaxSources
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}

	if len(sources) > maxSources {
		e.log.Warn("feed source list truncated",
			logger.Int("configured", len(sources)),
			logger.Int("max", maxSources),
		)
		sources = sources[:maxSources]
	}

	keywords := opts.Keywords
	if keywords == nil {
		keywords = DefaultKeywords
	}

	var items []Item
	var errs []SourceError

	for _, source := range sources {
		sourceItems, err := e.extractSource(ctx, source, keywords, opts)
		if err != nil {
			e.log.Warn("feed source failed",
				logger.String("source", source.Name),
				logger.String("feed_url", source.FeedURL),
				logger.Error(err),
			)
			errs = append(errs, SourceError{Source: source.Name, FeedURL: source.FeedURL, Err: err})
			continue
		}

		items = append(items, sourceItems...)
	}

	return items, errs
}

// extractSource fetches and filters a single feed.
func (e *Extractor) extractSource(
	ctx context.Context,
	source domain.FeedSource,
	keywords []string,
	opts Options,
) ([]Item, error) {
	parsed, err := e.fetchFeed(ctx, source.FeedURL)
	if err != nil {
		return nil, err
	}

	maxItems := opts.MaxItemsPerSource
	if maxItems <= 0 {
		maxItems = DefaultMaxItemsPerSource
	}

	items := make([]Item, 0, maxItems)

	for _, entry := range parsed.Items {
		if len(items) >= maxItems {
			break
		}

		item, ok := buildItem(entry, source.Name, keywords, opts)
		if !ok {
			continue
		}

		items = append(items, item)
	}

	e.log.Info("feed source extracted",
		logger.String("source", source.Name),
		logger.Int("feed_items", len(parsed.Items)),
		logger.Int("relevant", len(items)),
	)

	return items, nil
}

// fetchFeed performs the HTTP GET and parses the body as RSS or Atom.
func (e *Extractor) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, doErr := e.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("feed fetch: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch: unexpected status %d for %s", resp.StatusCode, feedURL)
	}

	parsed, parseErr := e.parser.Parse(resp.Body)
	if parseErr != nil {
		return nil, fmt.Errorf("feed parse: %w", parseErr)
	}

	return parsed, nil
}

// buildItem converts a feed entry to an Item, applying the keyword and
// location filters. The URL is canonicalized so the same article linked
// with different tracking parameters dedups to one item.
func buildItem(entry *gofeed.Item, sourceName string, keywords []string, opts Options) (Item, bool) {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	if !strings.HasPrefix(link, "http") {
		return Item{}, false
	}

	text := strings.ToLower(entry.Title + " " + entry.Description)

	if !containsAny(text, keywords) {
		return Item{}, false
	}

	if !matchesLocation(text, opts.County, opts.City) {
		return Item{}, false
	}

	return Item{
		Title:       strings.TrimSpace(entry.Title),
		URL:         domain.CanonicalizeURL(link),
		SourceName:  sourceName,
		PublishedAt: publishedAt(entry),
		Summary:     strings.TrimSpace(entry.Description),
	}, true
}

// containsAny reports whether text contains at least one keyword,
// case-insensitive.
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// matchesLocation applies the location scope: with no scope everything
// passes; otherwise the county or city name must appear in the text.
func matchesLocation(text, county, city string) bool {
	if county == "" && city == "" {
		return true
	}

	if county != "" && strings.Contains(text, strings.ToLower(county)) {
		return true
	}

	if city != "" && strings.Contains(text, strings.ToLower(city)) {
		return true
	}

	return false
}

// publishedAt returns the entry's published timestamp, falling back to the
// updated timestamp. The zero time means the feed carried neither.
func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}
