package feeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/feeds"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Local News</title>
    <item>
      <title>OVI checkpoint planned for Friday night in Franklin County</title>
      <link>https://news.example.com/ovi-checkpoint?utm_source=rss&amp;id=42</link>
      <pubDate>Fri, 05 Dec 2025 14:00:00 GMT</pubDate>
      <description>The sheriff announced a sobriety checkpoint on High Street in Columbus.</description>
    </item>
    <item>
      <title>City council approves new park budget</title>
      <link>https://news.example.com/park-budget</link>
      <pubDate>Fri, 05 Dec 2025 12:00:00 GMT</pubDate>
      <description>Funding for the riverside park was approved.</description>
    </item>
    <item>
      <title>Sobriety checkpoint results from last weekend</title>
      <link>https://news.example.com/results</link>
      <pubDate>Thu, 04 Dec 2025 09:00:00 GMT</pubDate>
      <description>Twelve drivers were cited in Hamilton County.</description>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
}

func TestExtractor_KeywordFilterAndCanonicalization(t *testing.T) {
	srv := newFeedServer(t, sampleRSS)
	defer srv.Close()

	extractor := feeds.NewExtractor(srv.Client(), logger.NewNop())
	sources := []domain.FeedSource{{Name: "local-news", FeedURL: srv.URL}}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{})

	require.Empty(t, errs)
	require.Len(t, items, 2, "park budget item must be filtered out")

	assert.Equal(t, "https://news.example.com/ovi-checkpoint?id=42", items[0].URL,
		"tracking parameters must be stripped")
	assert.Equal(t, "local-news", items[0].SourceName)
	assert.Equal(t,
		time.Date(2025, 12, 5, 14, 0, 0, 0, time.UTC),
		items[0].PublishedAt.UTC(),
	)
}

func TestExtractor_LocationScope(t *testing.T) {
	srv := newFeedServer(t, sampleRSS)
	defer srv.Close()

	extractor := feeds.NewExtractor(srv.Client(), logger.NewNop())
	sources := []domain.FeedSource{{Name: "local-news", FeedURL: srv.URL}}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{
		County: "Franklin",
		City:   "Columbus",
	})

	require.Empty(t, errs)
	require.Len(t, items, 1, "Hamilton County item must be scoped out")
	assert.Contains(t, items[0].Title, "Franklin County")
}

func TestExtractor_KeywordOverride(t *testing.T) {
	srv := newFeedServer(t, sampleRSS)
	defer srv.Close()

	extractor := feeds.NewExtractor(srv.Client(), logger.NewNop())
	sources := []domain.FeedSource{{Name: "local-news", FeedURL: srv.URL}}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{
		Keywords: []string{"park budget"},
	})

	require.Empty(t, errs)
	require.Len(t, items, 1)
	assert.Equal(t, "City council approves new park budget", items[0].Title)
}

func TestExtractor_PerSourceIsolation(t *testing.T) {
	good := newFeedServer(t, sampleRSS)
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	extractor := feeds.NewExtractor(good.Client(), logger.NewNop())
	sources := []domain.FeedSource{
		{Name: "broken", FeedURL: bad.URL},
		{Name: "local-news", FeedURL: good.URL},
	}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{})

	require.Len(t, errs, 1, "broken source must be captured, not fatal")
	assert.Equal(t, "broken", errs[0].Source)
	assert.Len(t, items, 2, "remaining sources must still be processed")
}

func TestExtractor_ItemCap(t *testing.T) {
	srv := newFeedServer(t, sampleRSS)
	defer srv.Close()

	extractor := feeds.NewExtractor(srv.Client(), logger.NewNop())
	sources := []domain.FeedSource{{Name: "local-news", FeedURL: srv.URL}}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{MaxItemsPerSource: 1})

	require.Empty(t, errs)
	assert.Len(t, items, 1)
}

func TestExtractor_MalformedFeed(t *testing.T) {
	srv := newFeedServer(t, "this is not xml")
	defer srv.Close()

	extractor := feeds.NewExtractor(srv.Client(), logger.NewNop())
	sources := []domain.FeedSource{{Name: "garbled", FeedURL: srv.URL}}

	items, errs := extractor.Extract(context.Background(), sources, feeds.Options{})

	assert.Empty(t, items)
	require.Len(t, errs, 1)
	assert.Equal(t, "garbled", errs[0].Source)
}
