package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/reid/internal/audit"
	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/internal/observability"
)

// VisitRecorder persists visitors and their visits.
type VisitRecorder interface {
	RecordSighting(ctx context.Context, s models.Sighting) error
}

// EventPublisher delivers identity events downstream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, cameraID string, ev models.IdentityEvent) error
}

// AuditSink receives one record per identity assignment.
type AuditSink interface {
	Append(ctx context.Context, recs ...audit.Record) error
}

// PipelineOptions tune the service around the engine.
type PipelineOptions struct {
	MaxMissed           int           // tracks missing longer than this are pruned
	MaintenanceInterval time.Duration // index compaction and gauge refresh
}

// Pipeline orchestrates frame processing for the worker:
// track → resolve → record visit → audit → emit event.
// Any of the collaborators may be nil.
type Pipeline struct {
	engine *Engine
	visits VisitRecorder
	events EventPublisher
	audit  AuditSink
	opts   PipelineOptions

	mu     sync.Mutex
	latest time.Time // newest frame timestamp seen
}

// NewPipeline wires an engine to its collaborators.
func NewPipeline(engine *Engine, visits VisitRecorder, events EventPublisher, sink AuditSink, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		engine: engine,
		visits: visits,
		events: events,
		audit:  sink,
		opts:   opts,
	}
}

// Engine returns the underlying engine.
func (p *Pipeline) Engine() *Engine {
	return p.engine
}

// ProcessFrame handles one frame task. Failures of downstream collaborators
// are logged per detection; ProcessFrame itself only fails when ctx is done.
func (p *Pipeline) ProcessFrame(ctx context.Context, task models.FrameTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts := task.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	p.observe(ts)

	dets := make([]Detection, len(task.Detections))
	for i, d := range task.Detections {
		dets[i] = Detection{BBox: BBox(d.BBox), Embedding: d.Embedding, Confidence: d.Confidence}
	}

	start := time.Now()
	results := p.engine.ProcessFrame(task.CameraID, ts, dets)
	observability.StageDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	observability.FramesProcessed.WithLabelValues(task.CameraID).Inc()
	observability.DetectionsTracked.WithLabelValues(task.CameraID).Add(float64(len(dets)))

	if p.opts.MaxMissed > 0 {
		if n := p.engine.PruneCamera(task.CameraID, p.opts.MaxMissed); n > 0 {
			slog.Debug("pruned tracks", "camera", task.CameraID, "count", n)
		}
	}

	records := make([]audit.Record, 0, len(results))
	for i, res := range results {
		ev := models.IdentityEvent{
			CameraID:    task.CameraID,
			FrameID:     task.FrameID,
			FrameNumber: task.FrameNumber,
			Timestamp:   ts,
			BBox:        [4]float64(dets[i].BBox),
			Confidence:  dets[i].Confidence,
			LocalID:     res.LocalID,
			GlobalID:    res.GlobalID,
			IsNew:       res.IsNew,
			Similarity:  res.Similarity,
		}

		if !res.Resolved() {
			observability.IdentityDecisions.WithLabelValues(task.CameraID, "error").Inc()
			if res.Err != nil {
				ev.Error = res.Err.Error()
				slog.Debug("detection not resolved", "camera", task.CameraID, "local_id", res.LocalID, "error", res.Err)
			}
			p.publish(ctx, task.CameraID, ev)
			continue
		}

		kind := audit.KindReIDMatch
		if res.IsNew {
			kind = audit.KindNewVisitor
			observability.IdentityDecisions.WithLabelValues(task.CameraID, "new").Inc()
		} else {
			observability.IdentityDecisions.WithLabelValues(task.CameraID, "match").Inc()
			observability.MatchSimilarity.Observe(float64(res.Similarity))
		}
		records = append(records, audit.Record{
			CameraID:    task.CameraID,
			FrameNumber: task.FrameNumber,
			LocalID:     res.LocalID,
			GlobalID:    res.GlobalID,
			Kind:        kind,
			Similarity:  res.Similarity,
			Timestamp:   ts,
		})

		if p.visits != nil {
			feature, _ := p.engine.Index().Feature(res.GlobalID)
			err := p.visits.RecordSighting(ctx, models.Sighting{
				GlobalID:  res.GlobalID,
				IsNew:     res.IsNew,
				CameraID:  task.CameraID,
				Timestamp: ts,
				Embedding: feature,
			})
			if err != nil {
				slog.Warn("record sighting", "error", err, "global_id", res.GlobalID)
			}
		}

		p.publish(ctx, task.CameraID, ev)
	}

	if p.audit != nil && len(records) > 0 {
		if err := p.audit.Append(ctx, records...); err != nil {
			slog.Warn("audit append", "error", err)
		}
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, cameraID string, ev models.IdentityEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishEvent(ctx, cameraID, ev); err != nil {
		slog.Error("publish event", "error", err, "local_id", ev.LocalID)
	}
}

func (p *Pipeline) observe(ts time.Time) {
	p.mu.Lock()
	if ts.After(p.latest) {
		p.latest = ts
	}
	p.mu.Unlock()
}

// Clock returns the newest frame timestamp processed, or the zero time.
// Liveness is judged on frame time, so maintenance uses it too.
func (p *Pipeline) Clock() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Maintain compacts the index and refreshes gauges.
func (p *Pipeline) Maintain(now time.Time) {
	index := p.engine.Index()
	if n := index.Compact(now); n > 0 {
		slog.Info("index compacted", "removed", n, "remaining", index.Len())
	}
	observability.IndexEntries.Set(float64(index.Len()))
	observability.IndexIdentities.Set(float64(index.IdentityCount()))
	for cam, n := range p.engine.TrackCounts() {
		observability.ActiveTracks.WithLabelValues(cam).Set(float64(n))
	}
}

// Run calls Maintain every MaintenanceInterval until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	if p.opts.MaintenanceInterval <= 0 {
		return
	}
	ticker := time.NewTicker(p.opts.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := p.Clock()
			if now.IsZero() {
				continue
			}
			p.Maintain(now)
		}
	}
}
