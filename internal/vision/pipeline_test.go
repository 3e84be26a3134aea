package vision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/reid/internal/audit"
	"github.com/your-org/reid/internal/models"
)

type fakeVisits struct {
	mu        sync.Mutex
	sightings []models.Sighting
	err       error
}

func (f *fakeVisits) RecordSighting(_ context.Context, s models.Sighting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sightings = append(f.sightings, s)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.IdentityEvent
}

func (f *fakePublisher) PublishEvent(_ context.Context, _ string, ev models.IdentityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeAudit struct {
	records []audit.Record
}

func (f *fakeAudit) Append(_ context.Context, recs ...audit.Record) error {
	f.records = append(f.records, recs...)
	return nil
}

func frame(cam string, n int64, ts time.Time, dets ...models.DetectionInput) models.FrameTask {
	return models.FrameTask{
		CameraID:    cam,
		FrameID:     uuid.New(),
		FrameNumber: n,
		Timestamp:   ts,
		Detections:  dets,
	}
}

func TestPipelineProcessFrame(t *testing.T) {
	visits := &fakeVisits{}
	pub := &fakePublisher{}
	sink := &fakeAudit{}
	p := NewPipeline(newTestEngine(t), visits, pub, sink, PipelineOptions{MaxMissed: 5})

	ctx := context.Background()
	box := [4]float64{0, 0, 50, 150}
	if err := p.ProcessFrame(ctx, frame("cam1", 1, t0, models.DetectionInput{BBox: box, Embedding: unit(0), Confidence: 0.9})); err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessFrame(ctx, frame("cam2", 1, t0.Add(time.Second),
		models.DetectionInput{BBox: box, Embedding: blend(0, 1, 0.9)},
		models.DetectionInput{BBox: [4]float64{200, 0, 250, 150}},
	)); err != nil {
		t.Fatal(err)
	}

	if len(pub.events) != 3 {
		t.Fatalf("published %d events, want 3", len(pub.events))
	}
	if ev := pub.events[0]; !ev.IsNew || ev.GlobalID != "G1" || ev.LocalID != 1 || ev.Confidence != 0.9 {
		t.Errorf("event 0 = %+v", ev)
	}
	if ev := pub.events[1]; ev.IsNew || ev.GlobalID != "G1" || ev.CameraID != "cam2" {
		t.Errorf("event 1 = %+v", ev)
	}
	if ev := pub.events[2]; ev.GlobalID != "" || ev.Error == "" {
		t.Errorf("unresolved event = %+v", ev)
	}

	if len(visits.sightings) != 2 {
		t.Fatalf("recorded %d sightings, want 2", len(visits.sightings))
	}
	if s := visits.sightings[1]; s.IsNew || s.CameraID != "cam2" || len(s.Embedding) != testDim {
		t.Errorf("sighting = %+v", s)
	}

	if len(sink.records) != 2 {
		t.Fatalf("audited %d records, want 2", len(sink.records))
	}
	if sink.records[0].Kind != audit.KindNewVisitor || sink.records[1].Kind != audit.KindReIDMatch {
		t.Errorf("audit kinds = %s, %s", sink.records[0].Kind, sink.records[1].Kind)
	}
	if !p.Clock().Equal(t0.Add(time.Second)) {
		t.Errorf("clock = %v", p.Clock())
	}
}

func TestPipelineToleratesRecorderErrors(t *testing.T) {
	visits := &fakeVisits{err: errors.New("db down")}
	pub := &fakePublisher{}
	p := NewPipeline(newTestEngine(t), visits, pub, nil, PipelineOptions{})
	err := p.ProcessFrame(context.Background(), frame("cam1", 1, t0, models.DetectionInput{BBox: [4]float64{0, 0, 10, 10}, Embedding: unit(0)}))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if len(pub.events) != 1 {
		t.Errorf("events = %d, want 1", len(pub.events))
	}
}

func TestPipelineCanceledContext(t *testing.T) {
	p := NewPipeline(newTestEngine(t), nil, nil, nil, PipelineOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.ProcessFrame(ctx, frame("cam1", 1, t0)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestPipelinePrunesAndMaintains(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = time.Second
	cfg.CompactAfterTTLs = 1
	e, err := NewEngine(cfg, &countingMinter{})
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(e, nil, nil, nil, PipelineOptions{MaxMissed: 1})
	ctx := context.Background()

	_ = p.ProcessFrame(ctx, frame("cam1", 1, t0, models.DetectionInput{BBox: [4]float64{0, 0, 10, 10}, Embedding: unit(0)}))
	_ = p.ProcessFrame(ctx, frame("cam1", 2, t0.Add(time.Second)))
	if e.TrackCounts()["cam1"] != 1 {
		t.Fatal("track pruned too early")
	}
	_ = p.ProcessFrame(ctx, frame("cam1", 3, t0.Add(2*time.Second)))
	if e.TrackCounts()["cam1"] != 0 {
		t.Error("track should be pruned after two misses")
	}

	p.Maintain(p.Clock().Add(time.Second))
	if e.Index().Len() != 0 {
		t.Errorf("bank size = %d after compaction", e.Index().Len())
	}
}
