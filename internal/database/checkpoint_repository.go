package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/reconcile"
)

// checkpointSelectColumns lists columns for SELECT queries on checkpoints.
const checkpointSelectColumns = `id, title, county, city, address, latitude, longitude,
	starts_at, ends_at, status, source_name, source_url, description,
	geocode_confidence, geocoded_at, created_at, updated_at`

// CheckpointRepository handles database operations for checkpoints.
// It implements reconcile.CheckpointStore.
type CheckpointRepository struct {
	db *sqlx.DB
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sqlx.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// FindByTitleAndStart returns the checkpoint with an identical title and
// start instant, or (nil, nil) when none exists.
func (r *CheckpointRepository) FindByTitleAndStart(
	ctx context.Context,
	title string,
	startsAt time.Time,
) (*domain.Checkpoint, error) {
	query := `SELECT ` + checkpointSelectColumns + ` FROM checkpoints WHERE title = $1 AND starts_at = $2`

	var cp domain.Checkpoint
	err := r.db.GetContext(ctx, &cp, query, title, startsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select checkpoint: %w", err)
	}

	return &cp, nil
}

// FindAggregatorWindow returns aggregator-sourced checkpoints with the
// given title, county, and city whose start instant falls in [from, to].
func (r *CheckpointRepository) FindAggregatorWindow(
	ctx context.Context,
	sourceName, title, county, city string,
	from, to time.Time,
) ([]domain.Checkpoint, error) {
	query := `
		SELECT ` + checkpointSelectColumns + `
		FROM checkpoints
		WHERE source_name = $1 AND title = $2 AND county = $3 AND city = $4
		  AND starts_at BETWEEN $5 AND $6
		ORDER BY starts_at ASC
	`

	var checkpoints []domain.Checkpoint
	err := r.db.SelectContext(ctx, &checkpoints, query, sourceName, title, county, city, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to select checkpoint window: %w", err)
	}

	return checkpoints, nil
}

// Insert adds a new checkpoint. A unique_violation on (title, starts_at)
// maps to reconcile.ErrDuplicate so the engine can treat the race as a
// benign skip.
func (r *CheckpointRepository) Insert(ctx context.Context, cp *domain.Checkpoint) error {
	query := `
		INSERT INTO checkpoints
			(title, county, city, address, latitude, longitude, starts_at, ends_at,
			 status, source_name, source_url, description, geocode_confidence, geocoded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		cp.Title, cp.County, cp.City, cp.Address, cp.Latitude, cp.Longitude,
		cp.StartsAt, cp.EndsAt, cp.Status, cp.SourceName, cp.SourceURL,
		cp.Description, cp.GeocodeConfidence, cp.GeocodedAt,
	).Scan(&cp.ID, &cp.CreatedAt, &cp.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return reconcile.ErrDuplicate
		}
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	return nil
}

// Update overwrites a checkpoint by ID.
func (r *CheckpointRepository) Update(ctx context.Context, cp *domain.Checkpoint) error {
	query := `
		UPDATE checkpoints
		SET title = $2, county = $3, city = $4, address = $5, latitude = $6,
			longitude = $7, starts_at = $8, ends_at = $9, status = $10,
			source_name = $11, source_url = $12, description = $13,
			geocode_confidence = $14, geocoded_at = $15, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		cp.ID, cp.Title, cp.County, cp.City, cp.Address, cp.Latitude, cp.Longitude,
		cp.StartsAt, cp.EndsAt, cp.Status, cp.SourceName, cp.SourceURL,
		cp.Description, cp.GeocodeConfidence, cp.GeocodedAt,
	)
	return execRequireRows(result, err, fmt.Errorf("checkpoint not found: %d", cp.ID))
}
