package vision

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat/combin"
)

func totalCost(cost [][]float64, pairs []Pair) float64 {
	var sum float64
	for _, p := range pairs {
		sum += cost[p.Track][p.Detection]
	}
	return sum
}

func checkDisjoint(t *testing.T, pairs []Pair, rows, cols int) {
	t.Helper()
	seenR := make(map[int]bool)
	seenC := make(map[int]bool)
	for _, p := range pairs {
		if p.Track < 0 || p.Track >= rows || p.Detection < 0 || p.Detection >= cols {
			t.Fatalf("pair %v out of range %dx%d", p, rows, cols)
		}
		if seenR[p.Track] || seenC[p.Detection] {
			t.Fatalf("pairs not disjoint: %v", pairs)
		}
		seenR[p.Track] = true
		seenC[p.Detection] = true
	}
}

// bruteForce returns the minimal total cost over all assignments of
// min(rows, cols) disjoint pairs.
func bruteForce(cost [][]float64) float64 {
	rows, cols := dims(cost)
	best := math.Inf(1)
	if rows <= cols {
		for _, perm := range combin.Permutations(cols, rows) {
			var s float64
			for i, j := range perm {
				s += cost[i][j]
			}
			best = math.Min(best, s)
		}
		return best
	}
	for _, perm := range combin.Permutations(rows, cols) {
		var s float64
		for j, i := range perm {
			s += cost[i][j]
		}
		best = math.Min(best, s)
	}
	return best
}

// bruteForceGated minimizes the gated objective: the cost of every pair
// (each at most cutoff) plus cutoff/2 for every unpaired row and column.
func bruteForceGated(cost [][]float64, cutoff float64) float64 {
	rows, cols := dims(cost)
	best := math.Inf(1)
	for k := 0; k <= min(rows, cols); k++ {
		unpaired := float64(rows+cols-2*k) * cutoff / 2
		if k == 0 {
			best = math.Min(best, unpaired)
			continue
		}
		for _, rs := range combin.Combinations(rows, k) {
			for _, cs := range combin.Permutations(cols, k) {
				s := unpaired
				ok := true
				for idx, r := range rs {
					c := cost[r][cs[idx]]
					if c > cutoff {
						ok = false
						break
					}
					s += c
				}
				if ok {
					best = math.Min(best, s)
				}
			}
		}
	}
	return best
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.Float64()
		}
	}
	return m
}

func TestHungarianMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var h HungarianMatcher
	for rows := 1; rows <= 5; rows++ {
		for cols := 1; cols <= 5; cols++ {
			for trial := 0; trial < 20; trial++ {
				cost := randomMatrix(rng, rows, cols)
				pairs := h.Match(cost, 0)
				checkDisjoint(t, pairs, rows, cols)
				if len(pairs) != min(rows, cols) {
					t.Fatalf("%dx%d: got %d pairs, want %d", rows, cols, len(pairs), min(rows, cols))
				}
				got, want := totalCost(cost, pairs), bruteForce(cost)
				if math.Abs(got-want) > 1e-9 {
					t.Fatalf("%dx%d trial %d: cost %v, optimum %v\n%v", rows, cols, trial, got, want, cost)
				}
			}
		}
	}
}

func TestHungarianGatedMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var h HungarianMatcher
	const cutoff = 0.5
	for rows := 1; rows <= 4; rows++ {
		for cols := 1; cols <= 4; cols++ {
			for trial := 0; trial < 20; trial++ {
				cost := randomMatrix(rng, rows, cols)
				pairs := h.Match(cost, cutoff)
				checkDisjoint(t, pairs, rows, cols)
				for _, p := range pairs {
					if cost[p.Track][p.Detection] > cutoff {
						t.Fatalf("pair %v costs %v above cutoff", p, cost[p.Track][p.Detection])
					}
				}
				got := totalCost(cost, pairs) + float64(rows+cols-2*len(pairs))*cutoff/2
				want := bruteForceGated(cost, cutoff)
				if math.Abs(got-want) > 1e-9 {
					t.Fatalf("%dx%d trial %d: objective %v, optimum %v\n%v", rows, cols, trial, got, want, cost)
				}
			}
		}
	}
}

func TestMatchersOnKnownMatrices(t *testing.T) {
	tests := []struct {
		name      string
		cost      [][]float64
		cutoff    float64
		hungarian []Pair
		greedy    []Pair
	}{
		{
			name:      "greedy is not optimal",
			cost:      [][]float64{{0.1, 0.2}, {0.15, 0.9}},
			hungarian: []Pair{{0, 1}, {1, 0}},
			greedy:    []Pair{{0, 0}, {1, 1}},
		},
		{
			name:      "ties go to lowest row then column",
			cost:      [][]float64{{0.5, 0.5}, {0.5, 0.5}},
			hungarian: []Pair{{0, 0}, {1, 1}},
			greedy:    []Pair{{0, 0}, {1, 1}},
		},
		{
			name:      "gate rejects everything",
			cost:      [][]float64{{0.9}},
			cutoff:    0.8,
			hungarian: []Pair{},
			greedy:    []Pair{},
		},
		{
			name:      "gate keeps cheap pair only",
			cost:      [][]float64{{0.3, 0.85}, {0.85, 0.85}},
			cutoff:    0.8,
			hungarian: []Pair{{0, 0}},
			greedy:    []Pair{{0, 0}},
		},
		{
			name:      "more detections than tracks",
			cost:      [][]float64{{0.7, 0.2, 0.4}},
			hungarian: []Pair{{0, 1}},
			greedy:    []Pair{{0, 1}},
		},
		{
			name:      "more tracks than detections",
			cost:      [][]float64{{0.7}, {0.2}, {0.4}},
			hungarian: []Pair{{1, 0}},
			greedy:    []Pair{{1, 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (HungarianMatcher{}).Match(tt.cost, tt.cutoff); !samePairs(got, tt.hungarian) {
				t.Errorf("hungarian = %v, want %v", got, tt.hungarian)
			}
			if got := (GreedyMatcher{}).Match(tt.cost, tt.cutoff); !samePairs(got, tt.greedy) {
				t.Errorf("greedy = %v, want %v", got, tt.greedy)
			}
		})
	}
}

func TestMatchEmpty(t *testing.T) {
	for _, m := range []Matcher{HungarianMatcher{}, GreedyMatcher{}} {
		if got := m.Match(nil, 0); len(got) != 0 {
			t.Errorf("%s: nil matrix gave %v", m.Name(), got)
		}
		if got := m.Match([][]float64{{}, {}}, 0); len(got) != 0 {
			t.Errorf("%s: zero columns gave %v", m.Name(), got)
		}
	}
}

func TestGreedyDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cost := randomMatrix(rng, 5, 4)
	first := (GreedyMatcher{}).Match(cost, 0.6)
	for i := 0; i < 10; i++ {
		if got := (GreedyMatcher{}).Match(cost, 0.6); !samePairs(got, first) {
			t.Fatalf("run %d: %v, first run %v", i, got, first)
		}
	}
}

func TestNewMatcherFallback(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", MatcherHungarian},
		{MatcherHungarian, MatcherHungarian},
		{MatcherGreedy, MatcherGreedy},
		{"lapjv", MatcherGreedy},
	}
	for _, tt := range tests {
		if got := NewMatcher(tt.name).Name(); got != tt.want {
			t.Errorf("NewMatcher(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func samePairs(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
