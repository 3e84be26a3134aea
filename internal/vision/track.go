package vision

// TrackState is derived from a track's miss counter.
type TrackState int

const (
	// TrackActive tracks were matched in the latest frame.
	TrackActive TrackState = iota
	// TrackStale tracks missed at least the latest frame.
	TrackStale
)

func (s TrackState) String() string {
	if s == TrackActive {
		return "active"
	}
	return "stale"
}

// Track represents one person tracked across frames of a single camera.
type Track struct {
	LocalID    uint64
	BBox       BBox
	Embedding  []float32 // last known embedding, normalized; nil until one is observed
	Confidence float32
	Age        int // frames since creation
	Hits       int // frames with a matched detection
	Missed     int // frames since last match
}

// State reports whether the track was matched in the latest frame.
func (t *Track) State() TrackState {
	if t.Missed == 0 {
		return TrackActive
	}
	return TrackStale
}

// TrackUpdate reports what happened to one detection of a frame.
type TrackUpdate struct {
	Track *Track
	IsNew bool
}

// Tracker keeps the live tracks of one camera and assigns stable local ids.
// It is not safe for concurrent use; each camera's frames must be fed from a
// single processing path.
type Tracker struct {
	cameraID string
	costs    CostModel
	matcher  Matcher
	cutoff   float64
	tracks   []*Track // creation order
	nextID   uint64
}

// NewTracker creates a tracker for cameraID.
func NewTracker(cameraID string, costs CostModel, matcher Matcher, cutoff float64) *Tracker {
	if matcher == nil {
		matcher = HungarianMatcher{}
	}
	return &Tracker{
		cameraID: cameraID,
		costs:    costs,
		matcher:  matcher,
		cutoff:   cutoff,
	}
}

// CameraID returns the camera this tracker belongs to.
func (t *Tracker) CameraID() string {
	return t.cameraID
}

// Update associates the frame's detections with existing tracks, stamping
// LocalID on every detection. The returned slice is parallel to dets.
// Unmatched tracks are kept and their miss counter incremented; dropping them
// is left to Prune.
func (t *Tracker) Update(dets []Detection) []TrackUpdate {
	for _, tr := range t.tracks {
		tr.Age++
	}

	updates := make([]TrackUpdate, len(dets))
	trackMatched := make([]bool, len(t.tracks))
	detMatched := make([]bool, len(dets))

	if len(t.tracks) > 0 && len(dets) > 0 {
		cost := t.costs.Matrix(t.tracks, dets)
		for _, p := range t.matcher.Match(cost, t.cutoff) {
			tr := t.tracks[p.Track]
			det := &dets[p.Detection]

			tr.BBox = det.BBox
			if len(det.Embedding) > 0 {
				tr.Embedding = normalize(det.Embedding)
			}
			tr.Confidence = det.Confidence
			tr.Hits++
			tr.Missed = 0

			det.LocalID = tr.LocalID
			trackMatched[p.Track] = true
			detMatched[p.Detection] = true
			updates[p.Detection] = TrackUpdate{Track: tr}
		}
	}

	for i, tr := range t.tracks {
		if !trackMatched[i] {
			tr.Missed++
		}
	}

	for di := range dets {
		if detMatched[di] {
			continue
		}
		det := &dets[di]
		t.nextID++
		tr := &Track{
			LocalID:    t.nextID,
			BBox:       det.BBox,
			Confidence: det.Confidence,
			Hits:       1,
		}
		if len(det.Embedding) > 0 {
			tr.Embedding = normalize(det.Embedding)
		}
		t.tracks = append(t.tracks, tr)

		det.LocalID = tr.LocalID
		updates[di] = TrackUpdate{Track: tr, IsNew: true}
	}

	return updates
}

// Prune drops tracks whose miss counter exceeds maxMissed and returns them.
// Local ids of pruned tracks are never handed out again.
func (t *Tracker) Prune(maxMissed int) []Track {
	var removed []Track
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.Missed > maxMissed {
			removed = append(removed, *tr)
			continue
		}
		kept = append(kept, tr)
	}
	for i := len(kept); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = kept
	return removed
}

// Tracks returns copies of the live tracks in creation order.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// TrackCount returns the number of live tracks.
func (t *Tracker) TrackCount() int {
	return len(t.tracks)
}
