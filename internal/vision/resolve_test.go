package vision

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResolverDecisions(t *testing.T) {
	x := newTestIndex(t, nil)
	r := NewResolver(x, 0.7, &countingMinter{})

	first := r.Resolve("cam1", 1, unit(0), t0)
	if !first.IsNew || first.GlobalID != "G1" || first.Similarity != 0 {
		t.Fatalf("first = %+v", first)
	}

	match := r.Resolve("cam2", 4, blend(0, 1, 0.8), t0.Add(time.Second))
	if match.IsNew || match.GlobalID != "G1" {
		t.Fatalf("match = %+v", match)
	}
	approx(t, "match similarity", float64(match.Similarity), 0.8, 1e-4)

	fresh := r.Resolve("cam2", 5, blend(0, 2, 0.3), t0.Add(2*time.Second))
	if !fresh.IsNew || fresh.GlobalID != "G2" {
		t.Fatalf("fresh = %+v", fresh)
	}
	// rejected candidate similarity is still reported
	approx(t, "rejected similarity", float64(fresh.Similarity), 0.3, 1e-4)
}

func TestResolverThresholdBoundary(t *testing.T) {
	x := newTestIndex(t, nil)
	r := NewResolver(x, 0.5, &countingMinter{})
	r.Resolve("cam1", 1, unit(0), t0)

	// an embedding whose similarity is exactly the threshold is accepted
	q := blend(0, 1, 0.5)
	sim, _, _ := x.Search(q, t0)
	r.threshold = sim.Similarity
	if res := r.Resolve("cam1", 2, q, t0); res.IsNew {
		t.Errorf("similarity equal to threshold must match: %+v", res)
	}
}

func TestResolverMissingEmbedding(t *testing.T) {
	x := newTestIndex(t, nil)
	r := NewResolver(x, 0.7, nil)
	res := r.Resolve("cam1", 1, nil, t0)
	if !errors.Is(res.Err, ErrMissingEmbedding) || res.Resolved() {
		t.Errorf("res = %+v", res)
	}
	if x.IdentityCount() != 0 {
		t.Error("no identity may be created without an embedding")
	}
}

func TestResolverWrongDimension(t *testing.T) {
	x := newTestIndex(t, nil)
	r := NewResolver(x, 0.7, nil)
	res := r.Resolve("cam1", 1, []float32{1, 2}, t0)
	if !errors.Is(res.Err, ErrDimensionMismatch) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestSequenceMinterUnique(t *testing.T) {
	var m SequenceMinter
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				id := m.Mint("cam1", 1, t0)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1000 {
		t.Errorf("minted %d unique ids, want 1000", len(seen))
	}
	id := m.Mint("cam7", 3, t0)
	if !strings.HasPrefix(id, "G1714564800_cam7_3_") {
		t.Errorf("unexpected id format %q", id)
	}
}
