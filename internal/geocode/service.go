package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
)

// Confidence tier thresholds over the provider's relevance score.
const (
	highRelevance = 0.9
	lowRelevance  = 0.7
)

// CacheStore is the persistence boundary for the geocode cache.
// FindByQuery returns (nil, nil) on a cache miss.
type CacheStore interface {
	FindByQuery(ctx context.Context, query string) (*domain.GeocodeCacheEntry, error)
	Insert(ctx context.Context, entry *domain.GeocodeCacheEntry) error
	IncrementHit(ctx context.Context, id int64) error
}

// Result is a resolved coordinate with its confidence tier.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Confidence       domain.Confidence
	// Cached reports whether the result came from the cache rather than a
	// provider call.
	Cached bool
}

// Service resolves addresses through the cache, falling back to the
// external provider on a miss.
type Service struct {
	cache    CacheStore
	provider Provider
	log      logger.Logger
}

// NewService creates a geocoding service. A nil provider means no
// credential is configured; lookups then resolve from the cache only.
func NewService(cache CacheStore, provider Provider, log logger.Logger) *Service {
	return &Service{cache: cache, provider: provider, log: log}
}

// Resolve maps a free-text address to coordinates, or nil when no geocode
// is available. Provider errors, empty result sets, and cache-write errors
// are logged and swallowed: a checkpoint without coordinates is still worth
// persisting, so resolution never fails the caller.
func (s *Service) Resolve(ctx context.Context, address string) *Result {
	query := NormalizeQuery(address)
	if query == "" {
		return nil
	}

	if cached := s.fromCache(ctx, query); cached != nil {
		return cached
	}

	if s.provider == nil {
		return nil
	}

	// The provider gets the original address; normalization is only the
	// cache key.
	providerResult, err := s.provider.Geocode(ctx, address)
	if err != nil {
		s.log.Warn("geocode provider lookup failed",
			logger.String("address", address),
			logger.Error(err),
		)
		return nil
	}

	result := &Result{
		Latitude:         providerResult.Latitude,
		Longitude:        providerResult.Longitude,
		FormattedAddress: providerResult.FormattedAddress,
		Confidence:       ConfidenceFromRelevance(providerResult.Relevance),
	}

	s.store(ctx, query, result)

	return result
}

// fromCache attempts a cache lookup, counting the hit on success.
func (s *Service) fromCache(ctx context.Context, query string) *Result {
	entry, err := s.cache.FindByQuery(ctx, query)
	if err != nil {
		s.log.Warn("geocode cache lookup failed", logger.String("query", query), logger.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	if hitErr := s.cache.IncrementHit(ctx, entry.ID); hitErr != nil {
		s.log.Warn("geocode cache hit count failed", logger.Int64("id", entry.ID), logger.Error(hitErr))
	}

	return &Result{
		Latitude:         entry.Latitude,
		Longitude:        entry.Longitude,
		FormattedAddress: entry.FormattedAddress,
		Confidence:       entry.Confidence,
		Cached:           true,
	}
}

// store persists a fresh provider result. Write failures are logged only;
// the resolved coordinates are still returned to the caller.
func (s *Service) store(ctx context.Context, query string, result *Result) {
	entry := &domain.GeocodeCacheEntry{
		Query:            query,
		FormattedAddress: result.FormattedAddress,
		Latitude:         result.Latitude,
		Longitude:        result.Longitude,
		Confidence:       result.Confidence,
		Provider:         MapboxProviderName,
		HitCount:         1,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.cache.Insert(ctx, entry); err != nil {
		s.log.Warn("geocode cache write failed", logger.String("query", query), logger.Error(err))
	}
}

// NormalizeQuery produces the cache key for an address: trimmed and
// lower-cased, exact-string matched.
func NormalizeQuery(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ConfidenceFromRelevance maps a provider relevance score to a tier.
func ConfidenceFromRelevance(relevance float64) domain.Confidence {
	switch {
	case relevance >= highRelevance:
		return domain.ConfidenceHigh
	case relevance < lowRelevance:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}
