package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reid",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	}, []string{"camera_id"})

	DetectionsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reid",
		Name:      "detections_tracked_total",
		Help:      "Total number of detections assigned to a local track",
	}, []string{"camera_id"})

	IdentityDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reid",
		Name:      "identity_decisions_total",
		Help:      "Identity decisions by outcome (new, match, error)",
	}, []string{"camera_id", "outcome"})

	MatchSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reid",
		Name:      "match_similarity",
		Help:      "Cosine similarity of accepted re-identifications",
		Buckets:   prometheus.LinearBuckets(0.5, 0.05, 11),
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reid",
		Name:      "stage_duration_seconds",
		Help:      "Duration of frame processing stages",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"stage"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "reid",
		Name:      "active_tracks",
		Help:      "Number of live local tracks per camera",
	}, []string{"camera_id"})

	IndexEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reid",
		Name:      "index_entries",
		Help:      "Number of embeddings in the identity bank",
	})

	IndexIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reid",
		Name:      "index_identities",
		Help:      "Number of identities known to the index",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reid",
		Name:      "queue_depth",
		Help:      "Pending frame messages in the FRAMES stream",
	})

	AuditRecordsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reid",
		Name:      "audit_records_flushed_total",
		Help:      "Assignment audit records uploaded to object storage",
	})

	AuditRecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reid",
		Name:      "audit_records_dropped_total",
		Help:      "Assignment audit records dropped because the upload buffer was full",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
