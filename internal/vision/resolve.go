package vision

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDMinter creates global identity ids.
type IDMinter interface {
	Mint(cameraID string, localID uint64, ts time.Time) string
}

// SequenceMinter formats ids as G<unix>_<camera>_<local>_<seq>. The
// process-wide sequence keeps ids unique even when several identities are
// minted in the same second for the same camera and local track.
type SequenceMinter struct {
	seq atomic.Uint64
}

func (m *SequenceMinter) Mint(cameraID string, localID uint64, ts time.Time) string {
	return fmt.Sprintf("G%d_%s_%d_%d", ts.Unix(), cameraID, localID, m.seq.Add(1))
}

// Result is the identity decision for one detection.
type Result struct {
	CameraID   string
	LocalID    uint64
	GlobalID   string
	IsNew      bool
	Similarity float32 // best candidate similarity; 0 when the bank had no live candidate
	Err        error   // set when the detection could not be resolved
}

// Resolved reports whether the detection received a global identity.
func (r Result) Resolved() bool {
	return r.Err == nil && r.GlobalID != ""
}

// Resolver decides, per detection, between reusing the closest live identity
// and minting a new one. Each decision is independent: two detections of one
// frame may both match the same identity.
type Resolver struct {
	index     *Index
	threshold float32
	minter    IDMinter
}

// NewResolver creates a resolver over index. A nil minter uses a
// SequenceMinter.
func NewResolver(index *Index, threshold float32, minter IDMinter) *Resolver {
	if minter == nil {
		minter = &SequenceMinter{}
	}
	return &Resolver{index: index, threshold: threshold, minter: minter}
}

// Resolve assigns a global identity to the detection stamped with localID.
func (r *Resolver) Resolve(cameraID string, localID uint64, emb []float32, ts time.Time) Result {
	res := Result{CameraID: cameraID, LocalID: localID}
	if len(emb) == 0 {
		res.Err = ErrMissingEmbedding
		return res
	}

	best, ok, err := r.index.Search(emb, ts)
	if err != nil {
		res.Err = fmt.Errorf("search index: %w", err)
		return res
	}

	if ok && best.Similarity >= r.threshold {
		if err := r.index.Update(best.IdentityID, emb, ts); err != nil {
			res.Err = fmt.Errorf("update identity %s: %w", best.IdentityID, err)
			return res
		}
		res.GlobalID = best.IdentityID
		res.Similarity = best.Similarity
		return res
	}

	id := r.minter.Mint(cameraID, localID, ts)
	if err := r.index.Add(id, emb, ts); err != nil {
		res.Err = fmt.Errorf("add identity %s: %w", id, err)
		return res
	}
	res.GlobalID = id
	res.IsNew = true
	if ok {
		res.Similarity = best.Similarity
	}
	return res
}
