// Package scrape extracts checkpoint candidates from the aggregator's
// results table.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
	"github.com/jonesrussell/checkpoint-ingestor/internal/timeparse"
)

// ErrTableNotFound is returned when neither fetch tier yields the known
// results table.
var ErrTableNotFound = errors.New("results table not found")

// minRowCells is the minimum cell count for a usable body row:
// county, city, location text, time phrase.
const minRowCells = 4

// Cell positions within a body row.
const (
	cellCounty = iota
	cellCity
	cellLocation
	cellPhrase
)

// cityPlaceholders are city-cell values meaning the source has no specific
// city. The title's city segment is omitted for these.
var cityPlaceholders = map[string]bool{
	"":           true,
	"n/a":        true,
	"tba":        true,
	"tbd":        true,
	"various":    true,
	"countywide": true,
	"unknown":    true,
}

// Candidate is a raw checkpoint candidate extracted from one table row.
type Candidate struct {
	Title       string
	County      string
	City        string
	Address     string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	SourceName  string
	SourceURL   string
	Description string
}

// RowError records a single dropped row, typically an unparseable time
// phrase. Row errors never abort the extraction.
type RowError struct {
	Row int
	Err error
}

// Config identifies the content source and how candidates are attributed.
type Config struct {
	// ContentAPIURL is the structured fetch-by-ID endpoint returning a
	// rendered HTML fragment as JSON. Tried first.
	ContentAPIURL string
	// PageURL is the public page scraped directly when the API tier fails.
	PageURL string
	// TableID is the known id attribute of the results table.
	TableID string
	// Region is appended to composed location strings for geocoding.
	Region string
	// SourceName is the aggregator attribution stamped on candidates.
	SourceName string
}

// contentResponse is the JSON envelope returned by the content API.
type contentResponse struct {
	Content string `json:"content"`
}

// Extractor pulls checkpoint candidates out of the aggregator table.
type Extractor struct {
	client *http.Client
	cfg    Config
	loc    *time.Location
	log    logger.Logger
}

// NewExtractor creates a table extractor. Times in the table are local to
// loc.
func NewExtractor(client *http.Client, cfg Config, loc *time.Location, log logger.Logger) *Extractor {
	return &Extractor{client: client, cfg: cfg, loc: loc, log: log}
}

// Extract locates the results table and converts its body rows into
// candidates. The structured content API is tried first; when it fails or
// does not contain the table, the rendered page is fetched and scraped
// directly. Both tiers share identical row logic.
func (e *Extractor) Extract(ctx context.Context) ([]Candidate, []RowError, error) {
	if body, err := e.fetchContentAPI(ctx); err == nil {
		candidates, rowErrs, extractErr := e.extractFromHTML(body)
		if extractErr == nil {
			return candidates, rowErrs, nil
		}
		e.log.Warn("content API response had no results table, falling back to page scrape",
			logger.Error(extractErr))
	} else {
		e.log.Warn("content API fetch failed, falling back to page scrape", logger.Error(err))
	}

	body, err := e.fetchPage(ctx)
	if err != nil {
		return nil, nil, err
	}

	return e.extractFromHTML(body)
}

// fetchContentAPI fetches the HTML fragment through the structured content
// endpoint.
func (e *Extractor) fetchContentAPI(ctx context.Context) (string, error) {
	if e.cfg.ContentAPIURL == "" {
		return "", errors.New("content API not configured")
	}

	raw, err := e.get(ctx, e.cfg.ContentAPIURL)
	if err != nil {
		return "", err
	}

	var resp contentResponse
	if decodeErr := json.Unmarshal([]byte(raw), &resp); decodeErr != nil {
		return "", fmt.Errorf("decode content response: %w", decodeErr)
	}

	if resp.Content == "" {
		return "", errors.New("content response empty")
	}

	return resp.Content, nil
}

// fetchPage fetches the rendered public page.
func (e *Extractor) fetchPage(ctx context.Context) (string, error) {
	if e.cfg.PageURL == "" {
		return "", errors.New("page URL not configured")
	}

	return e.get(ctx, e.cfg.PageURL)
}

// get performs a bounded HTTP GET and returns the body as a string.
func (e *Extractor) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}

	resp, doErr := e.client.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("scrape fetch: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape fetch: unexpected status %d for %s", resp.StatusCode, url)
	}

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("scrape read body: %w", readErr)
	}

	return string(raw), nil
}

// extractFromHTML locates the results table in an HTML document or fragment
// and extracts its rows.
func (e *Extractor) extractFromHTML(body string) ([]Candidate, []RowError, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	table := e.findTable(doc)
	if table == nil {
		return nil, nil, ErrTableNotFound
	}

	return e.extractRows(table)
}

// findTable looks up the table by its known id, falling back to the first
// table whose body rows carry enough cells.
func (e *Extractor) findTable(doc *goquery.Document) *goquery.Selection {
	if e.cfg.TableID != "" {
		if sel := doc.Find("table#" + e.cfg.TableID); sel.Length() > 0 {
			return sel.First()
		}
	}

	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		usable := false
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if row.Find("th").Length() == 0 && row.Find("td").Length() >= minRowCells {
				usable = true
			}
		})
		if usable {
			found = table
			return false
		}
		return true
	})

	return found
}

// extractRows converts each usable body row to a candidate. Header rows,
// short rows, and rows with unparseable time phrases are skipped; the
// latter are reported as row errors.
func (e *Extractor) extractRows(table *goquery.Selection) ([]Candidate, []RowError, error) {
	var candidates []Candidate
	var rowErrs []RowError

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}

		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) < minRowCells {
			return
		}

		candidate, err := e.buildCandidate(cells)
		if err != nil {
			e.log.Warn("table row dropped",
				logger.Int("row", i),
				logger.String("phrase", cells[cellPhrase]),
				logger.Error(err),
			)
			rowErrs = append(rowErrs, RowError{Row: i, Err: err})
			return
		}

		candidates = append(candidates, candidate)
	})

	return candidates, rowErrs, nil
}

// buildCandidate derives a candidate from one row's cells.
func (e *Extractor) buildCandidate(cells []string) (Candidate, error) {
	county := cells[cellCounty]
	city := cells[cellCity]
	phrase := cells[cellPhrase]
	address := cells[cellLocation]

	if county == "" {
		return Candidate{}, errors.New("row missing county")
	}

	start, end, err := timeparse.Parse(phrase, e.loc)
	if err != nil {
		return Candidate{}, fmt.Errorf("row %q/%q: %w", county, city, err)
	}

	if cityPlaceholders[strings.ToLower(city)] {
		city = ""
	}

	return Candidate{
		Title:       buildTitle(county, city),
		County:      county,
		City:        city,
		Address:     address,
		Location:    e.buildLocation(address, city),
		StartsAt:    start,
		EndsAt:      end,
		SourceName:  e.cfg.SourceName,
		SourceURL:   e.cfg.PageURL,
		Description: buildDescription(address, phrase),
	}, nil
}

// buildTitle derives the checkpoint title. The city segment is omitted when
// the source has no specific city.
func buildTitle(county, city string) string {
	if city == "" {
		return fmt.Sprintf("OVI Checkpoint - %s County", county)
	}
	return fmt.Sprintf("OVI Checkpoint - %s, %s County", city, county)
}

// buildLocation composes the free-text address handed to the geocoder.
func (e *Extractor) buildLocation(address, city string) string {
	parts := make([]string, 0, 3)
	if address != "" {
		parts = append(parts, address)
	}
	if city != "" {
		parts = append(parts, city)
	}
	if e.cfg.Region != "" {
		parts = append(parts, e.cfg.Region)
	}
	return strings.Join(parts, ", ")
}

// buildDescription keeps the announced location and window as free text.
func buildDescription(address, phrase string) string {
	return strings.TrimSpace(fmt.Sprintf("Location: %s. Announced window: %s.", address, phrase))
}
