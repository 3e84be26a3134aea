package vision

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

const (
	MatcherHungarian = "hungarian"
	MatcherGreedy    = "greedy"
)

// Pair associates row Track of a cost matrix with column Detection.
type Pair struct {
	Track     int
	Detection int
}

// Matcher solves the track/detection assignment problem. cutoff > 0 rejects
// any pair costing more than cutoff; unpaired rows and columns are left to
// the caller. Pairs are returned ordered by track index.
type Matcher interface {
	Match(cost [][]float64, cutoff float64) []Pair
	Name() string
}

// NewMatcher returns the matcher registered under name. An unknown name
// degrades to the greedy matcher.
func NewMatcher(name string) Matcher {
	m, err := lookupMatcher(name)
	if err != nil {
		slog.Warn("assignment solver unavailable, using greedy matcher (not cost-optimal)",
			"requested", name, "error", err)
		return GreedyMatcher{}
	}
	return m
}

func lookupMatcher(name string) (Matcher, error) {
	switch name {
	case MatcherHungarian, "":
		return HungarianMatcher{}, nil
	case MatcherGreedy:
		return GreedyMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrSolverUnavailable, name)
	}
}

// HungarianMatcher finds a globally minimal-cost assignment.
//
// The T x D matrix is embedded in a square (T+D) x (T+D) problem: a track may
// pair with a dummy column and a detection with a dummy row. With a gate the
// dummy cost is cutoff/2, so leaving both sides unmatched (cutoff in total)
// beats any pair costing more than cutoff. Without a gate the dummy cost
// exceeds every real cost and the assignment has maximum cardinality.
type HungarianMatcher struct{}

func (HungarianMatcher) Name() string { return MatcherHungarian }

func (HungarianMatcher) Match(cost [][]float64, cutoff float64) []Pair {
	rows, cols := dims(cost)
	if rows == 0 || cols == 0 {
		return nil
	}

	dummy := cutoff / 2
	if cutoff <= 0 {
		maxCost := 0.0
		for _, row := range cost {
			for _, c := range row {
				maxCost = max(maxCost, c)
			}
		}
		dummy = maxCost + 1
	}

	n := rows + cols
	square := make([][]float64, n)
	for i := range square {
		row := make([]float64, n)
		for j := range row {
			switch {
			case i < rows && j < cols:
				row[j] = cost[i][j]
			case i >= rows && j >= cols:
				row[j] = 0
			default:
				row[j] = dummy
			}
		}
		square[i] = row
	}

	assign := solveSquare(square)

	pairs := make([]Pair, 0, min(rows, cols))
	for i := 0; i < rows; i++ {
		j := assign[i]
		if j >= cols {
			continue
		}
		if cutoff > 0 && cost[i][j] > cutoff {
			continue
		}
		pairs = append(pairs, Pair{Track: i, Detection: j})
	}
	return pairs
}

// solveSquare is the O(n^3) Hungarian method with row/column potentials.
// It returns the column assigned to each row. Columns are scanned in index
// order and only a strictly smaller reduced cost replaces the current best,
// so equal inputs always give equal outputs.
func solveSquare(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)   // p[j]: row matched to column j (1-based, 0 = free)
	way := make([]int, n+1) // previous column on the augmenting path
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assign := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			assign[p[j]-1] = j - 1
		}
	}
	return assign
}

// GreedyMatcher repeatedly commits the globally cheapest remaining cell and
// removes its row and column. It is deterministic but not cost-optimal.
// Ties go to the lowest row, then the lowest column.
type GreedyMatcher struct{}

func (GreedyMatcher) Name() string { return MatcherGreedy }

func (GreedyMatcher) Match(cost [][]float64, cutoff float64) []Pair {
	rows, cols := dims(cost)
	if rows == 0 || cols == 0 {
		return nil
	}

	type cell struct {
		row, col int
		cost     float64
	}
	cells := make([]cell, 0, rows*cols)
	for i, row := range cost {
		for j, c := range row {
			if cutoff > 0 && c > cutoff {
				continue
			}
			cells = append(cells, cell{row: i, col: j, cost: c})
		}
	}
	// cells are generated in row-major order, so a stable sort on cost alone
	// keeps the row/column tie-break
	sort.SliceStable(cells, func(a, b int) bool { return cells[a].cost < cells[b].cost })

	rowUsed := make([]bool, rows)
	colUsed := make([]bool, cols)
	pairs := make([]Pair, 0, min(rows, cols))
	for _, c := range cells {
		if rowUsed[c.row] || colUsed[c.col] {
			continue
		}
		rowUsed[c.row] = true
		colUsed[c.col] = true
		pairs = append(pairs, Pair{Track: c.row, Detection: c.col})
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].Track < pairs[b].Track })
	return pairs
}

func dims(cost [][]float64) (int, int) {
	if len(cost) == 0 {
		return 0, 0
	}
	return len(cost), len(cost[0])
}
