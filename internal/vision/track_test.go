package vision

import (
	"testing"
)

func newTestTracker(matcher Matcher) *Tracker {
	cfg := DefaultConfig()
	return NewTracker("cam1", CostModel{IoUWeight: cfg.IoUWeight, AppearanceWeight: cfg.AppearanceWeight}, matcher, cfg.MatchCostCutoff)
}

func TestTrackerLocalIDStability(t *testing.T) {
	for _, m := range []Matcher{HungarianMatcher{}, GreedyMatcher{}} {
		t.Run(m.Name(), func(t *testing.T) {
			tr := newTestTracker(m)
			emb := unit(0)
			for frame := 0; frame < 30; frame++ {
				x := float64(frame) * 2
				dets := []Detection{{BBox: BBox{x, 10, x + 40, 110}, Embedding: emb, Confidence: 0.9}}
				upd := tr.Update(dets)
				if dets[0].LocalID != 1 {
					t.Fatalf("frame %d: local id %d, want 1", frame, dets[0].LocalID)
				}
				if upd[0].IsNew != (frame == 0) {
					t.Fatalf("frame %d: IsNew = %v", frame, upd[0].IsNew)
				}
			}
			if n := tr.TrackCount(); n != 1 {
				t.Errorf("track count = %d, want 1", n)
			}
			if hits := tr.Tracks()[0].Hits; hits != 30 {
				t.Errorf("hits = %d, want 30", hits)
			}
		})
	}
}

func TestTrackerTwoPeopleCrossing(t *testing.T) {
	tr := newTestTracker(HungarianMatcher{})
	a, b := unit(0), unit(1)

	dets := []Detection{
		{BBox: BBox{0, 0, 40, 100}, Embedding: a},
		{BBox: BBox{100, 0, 140, 100}, Embedding: b},
	}
	tr.Update(dets)
	idA, idB := dets[0].LocalID, dets[1].LocalID
	if idA == idB {
		t.Fatalf("two detections share local id %d", idA)
	}

	// detections arrive in swapped order; appearance keeps ids attached
	dets = []Detection{
		{BBox: BBox{98, 0, 138, 100}, Embedding: b},
		{BBox: BBox{2, 0, 42, 100}, Embedding: a},
	}
	tr.Update(dets)
	if dets[0].LocalID != idB || dets[1].LocalID != idA {
		t.Errorf("ids after swap = %d,%d want %d,%d", dets[0].LocalID, dets[1].LocalID, idB, idA)
	}
}

func TestTrackerGateSpawnsNewTrack(t *testing.T) {
	tr := newTestTracker(HungarianMatcher{})
	dets := []Detection{{BBox: BBox{0, 0, 40, 100}, Embedding: unit(0)}}
	tr.Update(dets)

	// far away and a different appearance: cost 1.0 exceeds the 0.8 cutoff
	dets = []Detection{{BBox: BBox{500, 500, 540, 600}, Embedding: unit(1)}}
	upd := tr.Update(dets)
	if !upd[0].IsNew || dets[0].LocalID != 2 {
		t.Fatalf("expected new track 2, got id=%d new=%v", dets[0].LocalID, upd[0].IsNew)
	}
	tracks := tr.Tracks()
	if tracks[0].State() != TrackStale || tracks[0].Missed != 1 {
		t.Errorf("first track should be stale with 1 miss: %+v", tracks[0])
	}
}

func TestTrackerKeepsEmbeddingWhenMissing(t *testing.T) {
	tr := newTestTracker(HungarianMatcher{})
	dets := []Detection{{BBox: BBox{0, 0, 40, 100}, Embedding: []float32{2, 0, 0, 0, 0, 0, 0, 0}}}
	tr.Update(dets)

	dets = []Detection{{BBox: BBox{1, 0, 41, 100}}}
	tr.Update(dets)
	if dets[0].LocalID != 1 {
		t.Fatalf("local id = %d, want 1", dets[0].LocalID)
	}
	got := tr.Tracks()[0].Embedding
	if len(got) != testDim || got[0] < 0.999 {
		t.Errorf("embedding should stay the last normalized one, got %v", got)
	}
}

func TestTrackerPrune(t *testing.T) {
	tr := newTestTracker(HungarianMatcher{})
	tr.Update([]Detection{{BBox: BBox{0, 0, 40, 100}, Embedding: unit(0)}})

	for i := 0; i < 3; i++ {
		tr.Update(nil)
	}
	if removed := tr.Prune(3); len(removed) != 0 {
		t.Fatalf("pruned %d tracks at missed == max", len(removed))
	}
	tr.Update(nil)
	removed := tr.Prune(3)
	if len(removed) != 1 || removed[0].LocalID != 1 {
		t.Fatalf("removed = %+v, want track 1", removed)
	}
	if tr.TrackCount() != 0 {
		t.Errorf("track count = %d after prune", tr.TrackCount())
	}

	dets := []Detection{{BBox: BBox{0, 0, 40, 100}, Embedding: unit(0)}}
	tr.Update(dets)
	if dets[0].LocalID != 2 {
		t.Errorf("local ids must not be reused: got %d", dets[0].LocalID)
	}
}

func TestTrackerEmptyFrames(t *testing.T) {
	tr := newTestTracker(GreedyMatcher{})
	if upd := tr.Update(nil); len(upd) != 0 {
		t.Fatalf("empty frame produced %d updates", len(upd))
	}
	dets := []Detection{{BBox: BBox{0, 0, 10, 10}}, {BBox: BBox{50, 50, 60, 60}}}
	tr.Update(dets)
	if dets[0].LocalID != 1 || dets[1].LocalID != 2 {
		t.Errorf("ids = %d,%d want 1,2", dets[0].LocalID, dets[1].LocalID)
	}
}
