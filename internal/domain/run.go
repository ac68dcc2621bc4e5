package domain

import "time"

// RunStatus represents the terminal state of an ingestion run.
type RunStatus string

const (
	// RunSuccess indicates the run completed with zero errors.
	RunSuccess RunStatus = "success"
	// RunPartial indicates errors occurred but at least one record was
	// persisted. It is also the initial status of every run, so a run
	// killed mid-flight is left detectably partial.
	RunPartial RunStatus = "partial"
	// RunFailed indicates errors occurred and nothing was persisted.
	RunFailed RunStatus = "failed"
)

// RunError is one structured per-item error captured during a run.
type RunError struct {
	Source  string `json:"source,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

// RunStats accumulates counters for a single run. It is passed by pointer
// through the pipeline so concurrent or repeated runs stay isolated.
type RunStats struct {
	Found                int        `json:"found"`
	New                  int        `json:"new"`
	UpdatedExact         int        `json:"updated_exact"`
	UpdatedHeuristic     int        `json:"updated_heuristic"`
	Skipped              int        `json:"skipped"`
	AnnouncementsNew     int        `json:"announcements_new"`
	AnnouncementsUpdated int        `json:"announcements_updated"`
	Errors               []RunError `json:"errors"`
}

// Updated returns the total number of updated checkpoints.
func (s *RunStats) Updated() int {
	return s.UpdatedExact + s.UpdatedHeuristic
}

// Writes returns the number of records the run persisted in any form.
func (s *RunStats) Writes() int {
	return s.New + s.Updated() + s.AnnouncementsNew + s.AnnouncementsUpdated
}

// AddError appends a structured error to the run's error list.
func (s *RunStats) AddError(source, url, message string) {
	s.Errors = append(s.Errors, RunError{Source: source, URL: url, Message: message})
}

// FinalStatus derives the run's terminal status: success with zero errors,
// partial when errors occurred but something was persisted, failed when
// errors occurred and nothing was.
func (s *RunStats) FinalStatus() RunStatus {
	if len(s.Errors) == 0 {
		return RunSuccess
	}
	if s.Writes() > 0 {
		return RunPartial
	}
	return RunFailed
}

// RunMetadata is free-form bookkeeping attached to a run record.
type RunMetadata struct {
	Trigger              string `json:"trigger"`
	Mode                 string `json:"mode"`
	SeedID               int    `json:"seed_id,omitempty"`
	HeuristicMatches     int    `json:"heuristic_matches"`
	AnnouncementsNew     int    `json:"announcements_new"`
	AnnouncementsUpdated int    `json:"announcements_updated"`
}

// RunLog is the durable record of one ingestion run.
type RunLog struct {
	ID          string      `db:"id"           json:"id"`
	StartedAt   time.Time   `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	DurationMS  int64       `db:"duration_ms"  json:"duration_ms"`
	Status      RunStatus   `db:"status"       json:"status"`
	Found       int         `db:"found"        json:"found"`
	New         int         `db:"new"          json:"new"`
	Updated     int         `db:"updated"      json:"updated"`
	Skipped     int         `db:"skipped"      json:"skipped"`
	Errors      []RunError  `db:"-"            json:"errors"`
	Metadata    RunMetadata `db:"-"            json:"metadata"`
}
