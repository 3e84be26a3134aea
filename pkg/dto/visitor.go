package dto

import "github.com/google/uuid"

type VisitorResponse struct {
	GlobalID    string `json:"global_id"`
	FirstSeenAt string `json:"first_seen_at"`
	LastSeenAt  string `json:"last_seen_at"`
}

type VisitorListResponse struct {
	Visitors []VisitorResponse `json:"visitors"`
	Total    int               `json:"total"`
}

type VisitResponse struct {
	ID       uuid.UUID `json:"id"`
	CameraID string    `json:"camera_id"`
	InTime   string    `json:"in_time"`
	OutTime  string    `json:"out_time,omitempty"`
	Open     bool      `json:"open"`
}

type VisitListResponse struct {
	GlobalID string          `json:"global_id"`
	Visits   []VisitResponse `json:"visits"`
}
