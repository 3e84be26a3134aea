package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// CameraVisit summarizes one identity on one camera.
type CameraVisit struct {
	CameraID   string
	FirstFrame int64
	Count      int
}

// IdentityHistory is the assignment history of one global id.
type IdentityHistory struct {
	GlobalID       string
	Created        time.Time
	CreatedCamera  string
	CreatedLocalID uint64
	Assignments    int
	Cameras        []CameraVisit // in order of first appearance
	MatchCount     int
	MinSimilarity  float32
	MaxSimilarity  float32
	MeanSimilarity float32
}

// CameraPath lists cameras in order of first appearance.
func (h IdentityHistory) CameraPath() []string {
	out := make([]string, len(h.Cameras))
	for i, c := range h.Cameras {
		out[i] = c.CameraID
	}
	return out
}

// FrameKey identifies a local track in one frame.
type FrameKey struct {
	CameraID    string
	FrameNumber int64
	LocalID     uint64
}

// SharedKey identifies a global id in one frame of one camera.
type SharedKey struct {
	CameraID    string
	FrameNumber int64
	GlobalID    string
}

// Report is the result of Analyze.
type Report struct {
	Total       int
	NewVisitors int
	Matches     int
	Identities  []IdentityHistory // sorted by global id
	CrossCamera []string          // global ids seen on more than one camera
	// Conflicts lists local tracks that received different global ids in
	// the same frame.
	Conflicts map[FrameKey][]string
	// Shared lists global ids given to more than one local track in the same
	// frame, which happens because detections are resolved independently.
	Shared map[SharedKey][]uint64
}

// Analyze builds a report from records in log order.
func Analyze(records []Record) Report {
	rep := Report{
		Total:     len(records),
		Conflicts: make(map[FrameKey][]string),
		Shared:    make(map[SharedKey][]uint64),
	}

	byID := make(map[string]*IdentityHistory)
	sums := make(map[string]float64)
	perFrame := make(map[FrameKey]map[string]bool)
	perShared := make(map[SharedKey]map[uint64]bool)

	for _, r := range records {
		switch r.Kind {
		case KindNewVisitor:
			rep.NewVisitors++
		case KindReIDMatch:
			rep.Matches++
		}

		h, ok := byID[r.GlobalID]
		if !ok {
			h = &IdentityHistory{
				GlobalID:       r.GlobalID,
				Created:        r.Timestamp,
				CreatedCamera:  r.CameraID,
				CreatedLocalID: r.LocalID,
			}
			byID[r.GlobalID] = h
		}
		h.Assignments++

		found := false
		for i := range h.Cameras {
			if h.Cameras[i].CameraID == r.CameraID {
				h.Cameras[i].Count++
				found = true
				break
			}
		}
		if !found {
			h.Cameras = append(h.Cameras, CameraVisit{CameraID: r.CameraID, FirstFrame: r.FrameNumber, Count: 1})
		}

		if r.Kind == KindReIDMatch {
			if h.MatchCount == 0 || r.Similarity < h.MinSimilarity {
				h.MinSimilarity = r.Similarity
			}
			if h.MatchCount == 0 || r.Similarity > h.MaxSimilarity {
				h.MaxSimilarity = r.Similarity
			}
			h.MatchCount++
			sums[r.GlobalID] += float64(r.Similarity)
		}

		fk := FrameKey{CameraID: r.CameraID, FrameNumber: r.FrameNumber, LocalID: r.LocalID}
		if perFrame[fk] == nil {
			perFrame[fk] = make(map[string]bool)
		}
		perFrame[fk][r.GlobalID] = true

		sk := SharedKey{CameraID: r.CameraID, FrameNumber: r.FrameNumber, GlobalID: r.GlobalID}
		if perShared[sk] == nil {
			perShared[sk] = make(map[uint64]bool)
		}
		perShared[sk][r.LocalID] = true
	}

	for id, h := range byID {
		if h.MatchCount > 0 {
			h.MeanSimilarity = float32(sums[id] / float64(h.MatchCount))
		}
		rep.Identities = append(rep.Identities, *h)
		if len(h.Cameras) > 1 {
			rep.CrossCamera = append(rep.CrossCamera, id)
		}
	}
	sort.Slice(rep.Identities, func(i, j int) bool {
		return rep.Identities[i].GlobalID < rep.Identities[j].GlobalID
	})
	sort.Strings(rep.CrossCamera)

	for k, ids := range perFrame {
		if len(ids) > 1 {
			rep.Conflicts[k] = sortedKeys(ids)
		}
	}
	for k, locals := range perShared {
		if len(locals) > 1 {
			ls := make([]uint64, 0, len(locals))
			for l := range locals {
				ls = append(ls, l)
			}
			sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
			rep.Shared[k] = ls
		}
	}
	return rep
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Print writes a human-readable report.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Total assignments:   %d\n", r.Total)
	fmt.Fprintf(w, "New visitors:        %d\n", r.NewVisitors)
	fmt.Fprintf(w, "Re-identifications:  %d\n", r.Matches)
	fmt.Fprintf(w, "Unique global ids:   %d\n\n", len(r.Identities))

	for _, h := range r.Identities {
		fmt.Fprintf(w, "%s\n", h.GlobalID)
		fmt.Fprintf(w, "  created %s on %s (local %d), %d assignments\n",
			h.Created.Format(time.RFC3339), h.CreatedCamera, h.CreatedLocalID, h.Assignments)
		for _, c := range h.Cameras {
			fmt.Fprintf(w, "    %s: %d frames, first at frame %d\n", c.CameraID, c.Count, c.FirstFrame)
		}
		if h.MatchCount > 0 {
			fmt.Fprintf(w, "  similarity avg=%.3f min=%.3f max=%.3f\n",
				h.MeanSimilarity, h.MinSimilarity, h.MaxSimilarity)
		}
	}

	fmt.Fprintf(w, "\nCross-camera identities: %d\n", len(r.CrossCamera))
	byID := make(map[string]IdentityHistory, len(r.Identities))
	for _, h := range r.Identities {
		byID[h.GlobalID] = h
	}
	for _, id := range r.CrossCamera {
		fmt.Fprintf(w, "  %s: %s\n", id, strings.Join(byID[id].CameraPath(), " -> "))
	}

	fmt.Fprintf(w, "\nLocal tracks with conflicting global ids: %d\n", len(r.Conflicts))
	for k, ids := range r.Conflicts {
		fmt.Fprintf(w, "  camera %s frame %d local %d -> %s\n", k.CameraID, k.FrameNumber, k.LocalID, strings.Join(ids, ", "))
	}
	fmt.Fprintf(w, "Global ids shared within a frame: %d\n", len(r.Shared))
	for k, locals := range r.Shared {
		fmt.Fprintf(w, "  camera %s frame %d %s <- locals %v\n", k.CameraID, k.FrameNumber, k.GlobalID, locals)
	}
}
