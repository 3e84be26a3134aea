package vision

// iouEpsilon guards the IoU denominator.
const iouEpsilon = 1e-9

// BBox is an axis-aligned box in pixel space: x1, y1, x2, y2.
type BBox [4]float64

// Area returns the box area, or 0 for a degenerate box.
func (b BBox) Area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is one person detection of a frame. LocalID is stamped by the
// camera's Tracker.
type Detection struct {
	BBox       BBox
	Embedding  []float32 // optional
	Confidence float32
	LocalID    uint64
}

// IoU returns the intersection-over-union of a and b. Degenerate boxes
// overlap nothing.
func IoU(a, b BBox) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	iw := min(a[2], b[2]) - max(a[0], b[0])
	ih := min(a[3], b[3]) - max(a[1], b[1])
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	return inter / (areaA + areaB - inter + iouEpsilon)
}

// CostModel blends motion overlap and appearance similarity into one
// association cost; lower is better.
type CostModel struct {
	IoUWeight        float64
	AppearanceWeight float64
}

// Cost scores associating det with track. A missing embedding on either side
// counts as zero appearance similarity, so association falls back to IoU.
func (m CostModel) Cost(track *Track, det Detection) float64 {
	var sim float64
	if len(track.Embedding) > 0 && len(det.Embedding) > 0 {
		sim = float64(Cosine(track.Embedding, det.Embedding))
	}
	return m.IoUWeight*(1-IoU(track.BBox, det.BBox)) + m.AppearanceWeight*(1-sim)
}

// Matrix builds the tracks x detections cost matrix.
func (m CostModel) Matrix(tracks []*Track, dets []Detection) [][]float64 {
	cost := make([][]float64, len(tracks))
	for i, tr := range tracks {
		row := make([]float64, len(dets))
		for j, det := range dets {
			row[j] = m.Cost(tr, det)
		}
		cost[i] = row
	}
	return cost
}
