// Package reconcile matches freshly scraped checkpoint candidates against
// persisted records, deciding insert, update, or skip.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/checkpoint-ingestor/internal/domain"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
)

// ErrDuplicate must be returned by CheckpointStore.Insert when the store's
// uniqueness constraint rejects an exact duplicate. The engine treats it as
// a benign skip: two concurrent runs racing on the same row is expected.
var ErrDuplicate = errors.New("checkpoint already exists")

// HeuristicWindow is how far a stored start instant may drift from the
// candidate's and still describe the same physical event.
const HeuristicWindow = 48 * time.Hour

// Outcome describes what the engine did with one candidate.
type Outcome string

const (
	// OutcomeNew means a new record was inserted.
	OutcomeNew Outcome = "new"
	// OutcomeUpdatedExact means an exact title+start match was updated.
	OutcomeUpdatedExact Outcome = "updated_exact"
	// OutcomeUpdatedHeuristic means a time-windowed heuristic match was updated.
	OutcomeUpdatedHeuristic Outcome = "updated_heuristic"
	// OutcomeSkipped means the insert lost a race with an exact duplicate.
	OutcomeSkipped Outcome = "skipped"
)

// CheckpointStore is the persistence boundary for reconciliation.
// FindByTitleAndStart returns (nil, nil) when no record matches.
type CheckpointStore interface {
	FindByTitleAndStart(ctx context.Context, title string, startsAt time.Time) (*domain.Checkpoint, error)
	// FindAggregatorWindow returns records attributed to sourceName with the
	// given title, county, and city whose start instant falls in [from, to].
	FindAggregatorWindow(
		ctx context.Context,
		sourceName, title, county, city string,
		from, to time.Time,
	) ([]domain.Checkpoint, error)
	Insert(ctx context.Context, cp *domain.Checkpoint) error
	Update(ctx context.Context, cp *domain.Checkpoint) error
}

// Engine reconciles candidates against the checkpoint store.
type Engine struct {
	store            CheckpointStore
	aggregatorSource string
	log              logger.Logger
}

// NewEngine creates a reconciliation engine. aggregatorSource is the source
// name this pipeline stamps on its own inserts; any other stored source
// attribution is treated as manually curated and protected.
func NewEngine(store CheckpointStore, aggregatorSource string, log logger.Logger) *Engine {
	return &Engine{store: store, aggregatorSource: aggregatorSource, log: log}
}

// Reconcile decides insert, update, or skip for one candidate. The
// candidate must arrive fully populated (times, geocode, status).
func (e *Engine) Reconcile(ctx context.Context, candidate *domain.Checkpoint) (Outcome, error) {
	exact, err := e.store.FindByTitleAndStart(ctx, candidate.Title, candidate.StartsAt)
	if err != nil {
		return "", fmt.Errorf("reconcile exact lookup: %w", err)
	}

	if exact != nil {
		if updateErr := e.update(ctx, exact, candidate); updateErr != nil {
			return "", updateErr
		}
		return OutcomeUpdatedExact, nil
	}

	heuristic, err := e.findHeuristicMatch(ctx, candidate)
	if err != nil {
		return "", err
	}

	if heuristic != nil {
		if updateErr := e.update(ctx, heuristic, candidate); updateErr != nil {
			return "", updateErr
		}
		return OutcomeUpdatedHeuristic, nil
	}

	if insertErr := e.store.Insert(ctx, candidate); insertErr != nil {
		if errors.Is(insertErr, ErrDuplicate) {
			e.log.Info("duplicate insert skipped",
				logger.String("title", candidate.Title),
				logger.Time("starts_at", candidate.StartsAt),
			)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("reconcile insert: %w", insertErr)
	}

	return OutcomeNew, nil
}

// findHeuristicMatch searches aggregator-sourced records with the same
// title, county, and city within the heuristic window and picks the one
// closest in time. Manually curated records are never heuristically
// matched; a curated row that looks similar may be a genuinely distinct
// event.
func (e *Engine) findHeuristicMatch(
	ctx context.Context,
	candidate *domain.Checkpoint,
) (*domain.Checkpoint, error) {
	window, err := e.store.FindAggregatorWindow(
		ctx,
		e.aggregatorSource,
		candidate.Title,
		candidate.County,
		candidate.City,
		candidate.StartsAt.Add(-HeuristicWindow),
		candidate.StartsAt.Add(HeuristicWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("reconcile heuristic lookup: %w", err)
	}

	return closestTo(window, candidate.StartsAt), nil
}

// closestTo returns the record whose start instant has the smallest
// absolute difference from target, or nil for an empty set.
func closestTo(records []domain.Checkpoint, target time.Time) *domain.Checkpoint {
	var best *domain.Checkpoint
	var bestDelta time.Duration

	for i := range records {
		delta := absDuration(records[i].StartsAt.Sub(target))
		if best == nil || delta < bestDelta {
			best = &records[i]
			bestDelta = delta
		}
	}

	return best
}

// absDuration returns the absolute value of d.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// update overwrites the stored record with the candidate payload, keeping
// the stored identity and any manually curated attribution. A persisted
// cancelled status also survives: cancellation is an operator decision the
// scraper must not undo.
func (e *Engine) update(ctx context.Context, stored, candidate *domain.Checkpoint) error {
	merged := *candidate
	merged.ID = stored.ID
	merged.CreatedAt = stored.CreatedAt

	if stored.SourceName != "" && stored.SourceName != e.aggregatorSource {
		merged.SourceName = stored.SourceName
		merged.SourceURL = stored.SourceURL
	}

	if stored.Status == domain.StatusCancelled {
		merged.Status = domain.StatusCancelled
	}

	if err := e.store.Update(ctx, &merged); err != nil {
		return fmt.Errorf("reconcile update: %w", err)
	}

	return nil
}
