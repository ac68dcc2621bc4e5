package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
)

// RunLogRepository handles database operations for ingestion run records.
type RunLogRepository struct {
	db *sqlx.DB
}

// NewRunLogRepository creates a new run log repository.
func NewRunLogRepository(db *sqlx.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// Insert creates the run record at run start. The status is "partial" until
// Finalize: a run killed mid-flight stays detectably partial with no
// completion timestamp.
func (r *RunLogRepository) Insert(ctx context.Context, run *domain.RunLog) error {
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	query := `
		INSERT INTO ingestion_runs (id, started_at, status, errors, metadata)
		VALUES ($1, $2, $3, '[]'::jsonb, $4)
	`

	if _, execErr := r.db.ExecContext(ctx, query, run.ID, run.StartedAt, run.Status, metadata); execErr != nil {
		return fmt.Errorf("failed to insert run log: %w", execErr)
	}

	return nil
}

// Finalize writes the run's terminal status, counts, duration, and error
// list.
func (r *RunLogRepository) Finalize(ctx context.Context, run *domain.RunLog) error {
	runErrors := run.Errors
	if runErrors == nil {
		runErrors = []domain.RunError{}
	}

	errList, err := json.Marshal(runErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal run errors: %w", err)
	}

	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	query := `
		UPDATE ingestion_runs
		SET completed_at = $2, duration_ms = $3, status = $4,
			found = $5, new = $6, updated = $7, skipped = $8,
			errors = $9, metadata = $10
		WHERE id = $1
	`

	result, execErr := r.db.ExecContext(ctx, query,
		run.ID, run.CompletedAt, run.DurationMS, run.Status,
		run.Found, run.New, run.Updated, run.Skipped,
		errList, metadata,
	)
	return execRequireRows(result, execErr, fmt.Errorf("run log not found: %s", run.ID))
}
