package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
)

// geocodeCacheSelectColumns lists columns for SELECT queries on geocode_cache.
const geocodeCacheSelectColumns = `id, query, formatted_address, latitude, longitude,
	confidence, provider, hit_count, created_at`

// GeocodeCacheRepository handles database operations for the geocode cache.
// It implements geocode.CacheStore.
type GeocodeCacheRepository struct {
	db *sqlx.DB
}

// NewGeocodeCacheRepository creates a new geocode cache repository.
func NewGeocodeCacheRepository(db *sqlx.DB) *GeocodeCacheRepository {
	return &GeocodeCacheRepository{db: db}
}

// FindByQuery looks up a cache entry by exact normalized query string,
// returning (nil, nil) on a miss.
func (r *GeocodeCacheRepository) FindByQuery(
	ctx context.Context,
	query string,
) (*domain.GeocodeCacheEntry, error) {
	selectQuery := `SELECT ` + geocodeCacheSelectColumns + ` FROM geocode_cache WHERE query = $1`

	var entry domain.GeocodeCacheEntry
	err := r.db.GetContext(ctx, &entry, selectQuery, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select geocode cache entry: %w", err)
	}

	return &entry, nil
}

// Insert adds a new cache entry. A concurrent insert of the same query is
// harmless: ON CONFLICT leaves the existing entry in place.
func (r *GeocodeCacheRepository) Insert(ctx context.Context, entry *domain.GeocodeCacheEntry) error {
	query := `
		INSERT INTO geocode_cache
			(query, formatted_address, latitude, longitude, confidence, provider, hit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (query) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.Query, entry.FormattedAddress, entry.Latitude, entry.Longitude,
		entry.Confidence, entry.Provider, entry.HitCount,
	).Scan(&entry.ID, &entry.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race with an identical insert; the cached value wins.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert geocode cache entry: %w", err)
	}

	return nil
}

// IncrementHit bumps an entry's hit counter. Entries are otherwise
// immutable and never deleted by the pipeline.
func (r *GeocodeCacheRepository) IncrementHit(ctx context.Context, id int64) error {
	query := `UPDATE geocode_cache SET hit_count = hit_count + 1 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("geocode cache entry not found: %d", id))
}
