package vision

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/blas/blas32"
)

// Candidate is one identity returned by a similarity search.
type Candidate struct {
	IdentityID string
	Similarity float32
}

// Identity is a read-only copy of an identity record.
type Identity struct {
	ID           string
	Feature      []float32 // EMA of observed embeddings, unit length
	FirstSeen    time.Time
	LastSeen     time.Time
	Observations int
}

type identityRecord struct {
	ordinal      int // insertion order, breaks similarity ties
	ema          []float32
	firstSeen    time.Time
	lastSeen     time.Time
	observations int
}

type bankEntry struct {
	id  string
	vec []float32
}

// Index is the cross-camera store of appearance vectors. It keeps an
// append-only bank of every normalized embedding, tagged by identity, next to
// a per-identity EMA feature and last-seen time. All methods are safe for
// concurrent use; each one is atomic with respect to the bank and both maps.
type Index struct {
	mu       sync.RWMutex
	dim      int
	momentum float32
	ttl      time.Duration
	compactN int

	bank    []bankEntry
	records map[string]*identityRecord
	order   []string
}

// NewIndex creates an empty index from cfg's dimension, momentum, ttl and
// compaction settings.
func NewIndex(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Index{
		dim:      cfg.EmbeddingDim,
		momentum: cfg.EMAMomentum,
		ttl:      cfg.TTL,
		compactN: cfg.CompactAfterTTLs,
		records:  make(map[string]*identityRecord),
	}, nil
}

// checkVec rejects vectors of the wrong dimension or with non-finite
// components.
func (x *Index) checkVec(emb []float32) error {
	if len(emb) != x.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), x.dim)
	}
	if !finite(emb) {
		return ErrInvalidEmbedding
	}
	return nil
}

// record returns the identity's record, registering it if needed.
// Callers hold the write lock.
func (x *Index) record(id string, ts time.Time) *identityRecord {
	rec, ok := x.records[id]
	if !ok {
		rec = &identityRecord{ordinal: len(x.order), firstSeen: ts}
		x.records[id] = rec
		x.order = append(x.order, id)
	}
	return rec
}

// Add appends emb to the bank under id and (re)initializes id's EMA feature.
func (x *Index) Add(id string, emb []float32, ts time.Time) error {
	if err := x.checkVec(emb); err != nil {
		return err
	}
	vec := normalize(emb)

	x.mu.Lock()
	defer x.mu.Unlock()

	rec := x.record(id, ts)
	rec.ema = append([]float32(nil), vec...)
	rec.lastSeen = ts
	rec.observations++
	x.bank = append(x.bank, bankEntry{id: id, vec: vec})
	return nil
}

// Update blends emb into id's EMA feature, appends it to the bank and
// refreshes last-seen. An identity without an EMA is initialized from emb.
func (x *Index) Update(id string, emb []float32, ts time.Time) error {
	if err := x.checkVec(emb); err != nil {
		return err
	}
	vec := normalize(emb)

	x.mu.Lock()
	defer x.mu.Unlock()

	rec := x.record(id, ts)
	if rec.ema == nil {
		rec.ema = append([]float32(nil), vec...)
	} else {
		// ema = normalize(m*ema + (1-m)*vec)
		ema := vec32(rec.ema)
		blas32.Scal(x.momentum, ema)
		blas32.Axpy(1-x.momentum, vec32(vec), ema)
		rec.ema = normalize(rec.ema)
	}
	rec.lastSeen = ts
	rec.observations++
	x.bank = append(x.bank, bankEntry{id: id, vec: vec})
	return nil
}

// Restore registers identities loaded from persistent storage, each with
// its feature as the single bank entry. Identities already present are
// skipped. Identities with an unusable feature are skipped too and reported
// together in the returned error. It returns the number restored.
func (x *Index) Restore(ids []Identity) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	var errs []error
	for _, ident := range ids {
		if _, ok := x.records[ident.ID]; ok {
			continue
		}
		if err := x.checkVec(ident.Feature); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", ident.ID, err))
			continue
		}
		vec := normalize(ident.Feature)
		rec := x.record(ident.ID, ident.FirstSeen)
		rec.ema = append([]float32(nil), vec...)
		rec.lastSeen = ident.LastSeen
		rec.observations = ident.Observations
		x.bank = append(x.bank, bankEntry{id: ident.ID, vec: vec})
		n++
	}
	return n, errors.Join(errs...)
}

// alive reports whether an identity is within the ttl window at now.
func (x *Index) alive(rec *identityRecord, now time.Time) bool {
	if x.ttl <= 0 || rec.lastSeen.IsZero() {
		return true
	}
	return now.Sub(rec.lastSeen) <= x.ttl
}

// SearchTopK ranks every bank entry by cosine similarity to query, keeps the
// best similarity per live identity and returns up to k identities, most
// similar first. Equal similarities keep identity insertion order. An empty
// bank yields no candidates.
func (x *Index) SearchTopK(query []float32, k int, now time.Time) ([]Candidate, error) {
	if err := x.checkVec(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalize(query)

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.bank) == 0 {
		return nil, nil
	}

	type scored struct {
		ordinal int
		sim     float32
	}
	best := make(map[string]*scored)
	for _, e := range x.bank {
		rec := x.records[e.id]
		if !x.alive(rec, now) {
			continue
		}
		sim := dot(q, e.vec)
		if s, ok := best[e.id]; !ok {
			best[e.id] = &scored{ordinal: rec.ordinal, sim: sim}
		} else if sim > s.sim {
			s.sim = sim
		}
	}

	out := make([]Candidate, 0, len(best))
	ordinals := make(map[string]int, len(best))
	for id, s := range best {
		out = append(out, Candidate{IdentityID: id, Similarity: s.sim})
		ordinals[id] = s.ordinal
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return ordinals[out[a].IdentityID] < ordinals[out[b].IdentityID]
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Search returns the single best live candidate, if any.
func (x *Index) Search(query []float32, now time.Time) (Candidate, bool, error) {
	cands, err := x.SearchTopK(query, 1, now)
	if err != nil || len(cands) == 0 {
		return Candidate{}, false, err
	}
	return cands[0], true, nil
}

// Compact drops bank entries of identities silent for longer than
// CompactAfterTTLs x ttl. Those identities are already excluded from search,
// so results do not change. Identity records are kept. It returns the number
// of entries removed.
func (x *Index) Compact(now time.Time) int {
	if x.ttl <= 0 || x.compactN <= 0 {
		return 0
	}
	horizon := time.Duration(x.compactN) * x.ttl

	x.mu.Lock()
	defer x.mu.Unlock()

	kept := x.bank[:0]
	removed := 0
	for _, e := range x.bank {
		rec := x.records[e.id]
		if !rec.lastSeen.IsZero() && now.Sub(rec.lastSeen) > horizon {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(x.bank); i++ {
		x.bank[i] = bankEntry{}
	}
	x.bank = kept
	return removed
}

// Feature returns a copy of id's EMA feature.
func (x *Index) Feature(id string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[id]
	if !ok || rec.ema == nil {
		return nil, false
	}
	return append([]float32(nil), rec.ema...), true
}

// LastSeen returns the last time id was added or updated.
func (x *Index) LastSeen(id string) (time.Time, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[id]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastSeen, true
}

// Snapshot returns copies of all identity records in insertion order.
func (x *Index) Snapshot() []Identity {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Identity, 0, len(x.order))
	for _, id := range x.order {
		rec := x.records[id]
		out = append(out, Identity{
			ID:           id,
			Feature:      append([]float32(nil), rec.ema...),
			FirstSeen:    rec.firstSeen,
			LastSeen:     rec.lastSeen,
			Observations: rec.observations,
		})
	}
	return out
}

// Len returns the number of bank entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.bank)
}

// IdentityCount returns the number of identities ever registered.
func (x *Index) IdentityCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Dim returns the configured embedding dimension.
func (x *Index) Dim() int {
	return x.dim
}
