package models

import (
	"time"

	"github.com/google/uuid"
)

// Visitor is the persisted view of one global identity.
type Visitor struct {
	ID          int64     `json:"id" db:"id"`
	GlobalID    string    `json:"global_id" db:"global_id"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	Embedding   []float32 `json:"-" db:"embedding"`
}

// VisitEvent is a span during which a visitor was present on one camera.
// OutTime is nil while the visit is open.
type VisitEvent struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	VisitorID int64      `json:"visitor_id" db:"visitor_id"`
	CameraID  string     `json:"camera_id" db:"camera_id"`
	InTime    time.Time  `json:"in_time" db:"in_time"`
	OutTime   *time.Time `json:"out_time,omitempty" db:"out_time"`
}

// Sighting is what the visit store needs to know about one resolved
// detection.
type Sighting struct {
	GlobalID  string
	IsNew     bool
	CameraID  string
	Timestamp time.Time
	Embedding []float32 // identity feature after the update, optional
}

// VisitStats summarizes visits for the dashboard.
type VisitStats struct {
	ActiveVisitors int `json:"active_visitors"`
	TotalToday     int `json:"total_today"`
}
