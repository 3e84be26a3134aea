package models

import (
	"time"

	"github.com/google/uuid"
)

// FrameTask is the message published to NATS for identity workers: the
// person detections of one camera frame, each with its appearance vector.
type FrameTask struct {
	CameraID    string           `json:"camera_id"`
	FrameID     uuid.UUID        `json:"frame_id"`
	FrameNumber int64            `json:"frame_number"`
	Timestamp   time.Time        `json:"timestamp"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	Detections  []DetectionInput `json:"detections"`
}

// DetectionInput is one person detection as produced by the external
// detector and embedder.
type DetectionInput struct {
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2
	Embedding  []float32  `json:"embedding,omitempty"`
	Confidence float32    `json:"confidence"`
}

// IdentityEvent is the output of an identity worker for one detection.
type IdentityEvent struct {
	CameraID    string     `json:"camera_id"`
	FrameID     uuid.UUID  `json:"frame_id"`
	FrameNumber int64      `json:"frame_number"`
	Timestamp   time.Time  `json:"timestamp"`
	BBox        [4]float64 `json:"bbox"`
	Confidence  float32    `json:"confidence"`
	LocalID     uint64     `json:"local_id"`
	GlobalID    string     `json:"global_id,omitempty"`
	IsNew       bool       `json:"is_new"`
	Similarity  float32    `json:"similarity"`
	Error       string     `json:"error,omitempty"`
}
