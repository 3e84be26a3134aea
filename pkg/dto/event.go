package dto

import "github.com/google/uuid"

// IdentityEventResponse is an identity assignment as seen by API clients.
type IdentityEventResponse struct {
	CameraID    string     `json:"camera_id"`
	FrameID     uuid.UUID  `json:"frame_id"`
	FrameNumber int64      `json:"frame_number"`
	Timestamp   string     `json:"timestamp"`
	BBox        [4]float64 `json:"bbox"`
	Confidence  float32    `json:"confidence"`
	LocalID     uint64     `json:"local_id"`
	GlobalID    string     `json:"global_id,omitempty"`
	IsNew       bool       `json:"is_new"`
	Similarity  float32    `json:"similarity"`
	Error       string     `json:"error,omitempty"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type     string                `json:"type"` // new_visitor, reid_match, unresolved
	CameraID string                `json:"camera_id"`
	Data     IdentityEventResponse `json:"data"`
}
