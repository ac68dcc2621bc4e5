package domain

import "time"

// GeocodeCacheEntry maps a normalized address string to a resolved
// coordinate. Entries are created on first successful provider lookup and
// are immutable except for hit-counter increments. The pipeline never
// deletes them.
type GeocodeCacheEntry struct {
	ID               int64      `db:"id"                json:"id"`
	Query            string     `db:"query"             json:"query"`
	FormattedAddress string     `db:"formatted_address" json:"formatted_address"`
	Latitude         float64    `db:"latitude"          json:"latitude"`
	Longitude        float64    `db:"longitude"         json:"longitude"`
	Confidence       Confidence `db:"confidence"        json:"confidence"`
	Provider         string     `db:"provider"          json:"provider"`
	HitCount         int64      `db:"hit_count"         json:"hit_count"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
}
