package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
)

// AnnouncementRepository handles database operations for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates a new announcement repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Upsert creates or refreshes an announcement keyed by source URL and
// reports whether a new row was created. An announcement without a source
// URL cannot be deduplicated and is always inserted.
//
// The refresh path is check-then-update followed by a guarded insert: the
// insert's ON CONFLICT DO UPDATE covers the race where another run created
// the row between the two statements.
func (r *AnnouncementRepository) Upsert(ctx context.Context, a *domain.Announcement) (bool, error) {
	if a.SourceURL == "" {
		if err := r.insert(ctx, a); err != nil {
			return false, err
		}
		return true, nil
	}

	updated, err := r.refresh(ctx, a)
	if err != nil {
		return false, err
	}
	if updated {
		return false, nil
	}

	query := `
		INSERT INTO announcements
			(title, source_url, source_name, announced_at, event_at, city, county,
			 status, last_checked_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
		ON CONFLICT (source_url) WHERE source_url <> '' DO UPDATE
		SET title = EXCLUDED.title, announced_at = EXCLUDED.announced_at,
			event_at = EXCLUDED.event_at, summary = EXCLUDED.summary,
			last_checked_at = NOW(), updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		a.Title, a.SourceURL, a.SourceName, a.AnnouncedAt, a.EventAt,
		a.City, a.County, a.Status, a.Summary,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert announcement: %w", err)
	}

	// A row that existed before this statement reports as refreshed.
	return a.CreatedAt.Equal(a.UpdatedAt), nil
}

// refresh updates the mutable fields of an existing announcement by source
// URL. Operator-owned fields (status, city, county) are left alone.
func (r *AnnouncementRepository) refresh(ctx context.Context, a *domain.Announcement) (bool, error) {
	query := `
		UPDATE announcements
		SET title = $2, announced_at = $3, event_at = $4, summary = $5,
			last_checked_at = NOW(), updated_at = NOW()
		WHERE source_url = $1
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		a.SourceURL, a.Title, a.AnnouncedAt, a.EventAt, a.Summary,
	).Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to refresh announcement: %w", err)
	}

	return true, nil
}

// insert adds an announcement without dedup.
func (r *AnnouncementRepository) insert(ctx context.Context, a *domain.Announcement) error {
	query := `
		INSERT INTO announcements
			(title, source_url, source_name, announced_at, event_at, city, county,
			 status, last_checked_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		a.Title, a.SourceURL, a.SourceName, a.AnnouncedAt, a.EventAt,
		a.City, a.County, a.Status, a.Summary,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}

	return nil
}
