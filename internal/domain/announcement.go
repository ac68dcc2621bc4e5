package domain

import "time"

// AnnouncementStatus tracks how far an announcement has been processed.
type AnnouncementStatus string

const (
	// AnnouncementPendingDetails indicates the item mentions a checkpoint but
	// has not been parsed into full structured fields yet.
	AnnouncementPendingDetails AnnouncementStatus = "pending_details"
	// AnnouncementConfirmed indicates an operator has verified the item and
	// promoted it to a full checkpoint record.
	AnnouncementConfirmed AnnouncementStatus = "confirmed"
	// AnnouncementDismissed indicates an operator has rejected the item.
	AnnouncementDismissed AnnouncementStatus = "dismissed"
)

// Announcement is a lightweight record for a feed item that mentions a
// checkpoint. It is created on first sighting and refreshed, not duplicated,
// on every subsequent sighting with the same source URL.
type Announcement struct {
	ID            int64              `db:"id"              json:"id"`
	Title         string             `db:"title"           json:"title"`
	SourceURL     string             `db:"source_url"      json:"source_url"`
	SourceName    string             `db:"source_name"     json:"source_name"`
	AnnouncedAt   time.Time          `db:"announced_at"    json:"announced_at"`
	EventAt       *time.Time         `db:"event_at"        json:"event_at,omitempty"`
	City          string             `db:"city"            json:"city"`
	County        string             `db:"county"          json:"county"`
	Status        AnnouncementStatus `db:"status"          json:"status"`
	LastCheckedAt time.Time          `db:"last_checked_at" json:"last_checked_at"`
	Summary       string             `db:"summary"         json:"summary"`
	CreatedAt     time.Time          `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at"      json:"updated_at"`
}
