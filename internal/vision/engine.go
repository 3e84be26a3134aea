package vision

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type cameraState struct {
	mu      sync.Mutex
	tracker *Tracker
}

// Engine runs tracking and identity resolution for any number of cameras.
// Frames of different cameras may be processed concurrently; frames of one
// camera are serialized. The Index is the only state shared across cameras.
type Engine struct {
	cfg      Config
	costs    CostModel
	matcher  Matcher
	index    *Index
	resolver *Resolver

	mu      sync.Mutex
	cameras map[string]*cameraState
}

// NewEngine validates cfg and builds an engine with an empty index.
func NewEngine(cfg Config, minter IDMinter) (*Engine, error) {
	index, err := NewIndex(cfg)
	if err != nil {
		return nil, err
	}
	matcher := NewMatcher(cfg.Matcher)
	slog.Info("identity engine ready",
		"matcher", matcher.Name(),
		"dim", cfg.EmbeddingDim,
		"threshold", cfg.AcceptanceThreshold,
		"ttl", cfg.TTL.String(),
	)
	return &Engine{
		cfg:      cfg,
		costs:    CostModel{IoUWeight: cfg.IoUWeight, AppearanceWeight: cfg.AppearanceWeight},
		matcher:  matcher,
		index:    index,
		resolver: NewResolver(index, cfg.AcceptanceThreshold, minter),
		cameras:  make(map[string]*cameraState),
	}, nil
}

// Index exposes the shared similarity index.
func (e *Engine) Index() *Index {
	return e.index
}

// Matcher returns the assignment strategy chosen at construction.
func (e *Engine) Matcher() Matcher {
	return e.matcher
}

func (e *Engine) camera(cameraID string) *cameraState {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.cameras[cameraID]
	if !ok {
		cs = &cameraState{tracker: NewTracker(cameraID, e.costs, e.matcher, e.cfg.MatchCostCutoff)}
		e.cameras[cameraID] = cs
	}
	return cs
}

// ProcessFrame tracks dets on cameraID and resolves each one to a global
// identity. dets is modified in place: LocalID is stamped and embeddings of
// the wrong dimension or with non-finite values are dropped. The returned
// slice is parallel to dets; a detection that could not be resolved carries
// Err and never stops the rest of the frame.
func (e *Engine) ProcessFrame(cameraID string, ts time.Time, dets []Detection) []Result {
	rejected := make([]error, len(dets))
	for i := range dets {
		emb := dets[i].Embedding
		switch {
		case len(emb) == 0:
			continue
		case len(emb) != e.cfg.EmbeddingDim:
			rejected[i] = fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), e.cfg.EmbeddingDim)
		case !finite(emb):
			rejected[i] = ErrInvalidEmbedding
		default:
			continue
		}
		dets[i].Embedding = nil
		slog.Warn("rejecting embedding", "camera", cameraID, "error", rejected[i])
	}

	cs := e.camera(cameraID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.tracker.Update(dets)

	results := make([]Result, len(dets))
	for i, det := range dets {
		if rejected[i] != nil {
			results[i] = Result{CameraID: cameraID, LocalID: det.LocalID, Err: rejected[i]}
			continue
		}
		results[i] = e.resolver.Resolve(cameraID, det.LocalID, det.Embedding, ts)
	}
	return results
}

// Prune drops tracks that missed more than maxMissed frames on every camera
// and returns how many were removed per camera.
func (e *Engine) Prune(maxMissed int) map[string]int {
	e.mu.Lock()
	states := make(map[string]*cameraState, len(e.cameras))
	for id, cs := range e.cameras {
		states[id] = cs
	}
	e.mu.Unlock()

	removed := make(map[string]int)
	for id, cs := range states {
		cs.mu.Lock()
		if n := len(cs.tracker.Prune(maxMissed)); n > 0 {
			removed[id] = n
		}
		cs.mu.Unlock()
	}
	return removed
}

// PruneCamera is Prune for a single camera. Unknown cameras have nothing to
// prune.
func (e *Engine) PruneCamera(cameraID string, maxMissed int) int {
	e.mu.Lock()
	cs, ok := e.cameras[cameraID]
	e.mu.Unlock()
	if !ok {
		return 0
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.tracker.Prune(maxMissed))
}

// TrackCounts returns the number of live tracks per camera.
func (e *Engine) TrackCounts() map[string]int {
	e.mu.Lock()
	states := make(map[string]*cameraState, len(e.cameras))
	for id, cs := range e.cameras {
		states[id] = cs
	}
	e.mu.Unlock()

	counts := make(map[string]int, len(states))
	for id, cs := range states {
		cs.mu.Lock()
		counts[id] = cs.tracker.TrackCount()
		cs.mu.Unlock()
	}
	return counts
}
