// Package domain contains the core domain models for the checkpoint ingestion pipeline.
package domain

import "time"

// Status represents the lifecycle state of a checkpoint.
type Status string

const (
	// StatusUpcoming indicates the checkpoint window has not started yet.
	StatusUpcoming Status = "upcoming"
	// StatusActive indicates the checkpoint is currently running.
	StatusActive Status = "active"
	// StatusCompleted indicates the checkpoint window has passed.
	StatusCompleted Status = "completed"
	// StatusCancelled is a manual override set by an operator. It is never
	// derived from the time window and never overwritten by the resolver.
	StatusCancelled Status = "cancelled"
)

// validStatuses maps every recognised Status value to true for O(1) lookup.
var validStatuses = map[Status]bool{
	StatusUpcoming:  true,
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// IsValid reports whether s is a recognised checkpoint status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// Confidence represents the quality tier of a geocoding result.
type Confidence string

const (
	// ConfidenceNone indicates no geocode is available.
	ConfidenceNone Confidence = "none"
	// ConfidenceLow indicates a weak provider match.
	ConfidenceLow Confidence = "low"
	// ConfidenceMedium indicates a reasonable provider match.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceHigh indicates a near-exact provider match.
	ConfidenceHigh Confidence = "high"
)

// Checkpoint is a time-bound, geolocated public-safety event.
//
// Identity is established by the reconciliation engine, not by a natural
// key: the same physical event may be described with slightly different
// timestamps or locations across syndication sources.
type Checkpoint struct {
	ID                int64      `db:"id"                 json:"id"`
	Title             string     `db:"title"              json:"title"`
	County            string     `db:"county"             json:"county"`
	City              string     `db:"city"               json:"city"`
	Address           string     `db:"address"            json:"address"`
	Latitude          *float64   `db:"latitude"           json:"latitude,omitempty"`
	Longitude         *float64   `db:"longitude"          json:"longitude,omitempty"`
	StartsAt          time.Time  `db:"starts_at"          json:"starts_at"`
	EndsAt            time.Time  `db:"ends_at"            json:"ends_at"`
	Status            Status     `db:"status"             json:"status"`
	SourceName        string     `db:"source_name"        json:"source_name"`
	SourceURL         string     `db:"source_url"         json:"source_url"`
	Description       string     `db:"description"        json:"description"`
	GeocodeConfidence Confidence `db:"geocode_confidence" json:"geocode_confidence"`
	GeocodedAt        *time.Time `db:"geocoded_at"        json:"geocoded_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"         json:"updated_at"`
}

// EffectiveStatus computes the lifecycle state implied by a time window.
// now before start is upcoming, now within [start, end] is active, and
// now past end is completed.
func EffectiveStatus(start, end, now time.Time) Status {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusCompleted
	default:
		return StatusActive
	}
}

// EffectiveStatus returns the display status for the checkpoint at now.
// A persisted cancelled status always wins: cancellation is an explicit
// operator signal, not time-derived.
func (c *Checkpoint) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusCancelled {
		return StatusCancelled
	}
	return EffectiveStatus(c.StartsAt, c.EndsAt, now)
}
