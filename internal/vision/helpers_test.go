package vision

import (
	"fmt"
	"math"
	"testing"
	"time"
)

const testDim = 8

// unit returns the basis vector e_i.
func unit(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

// blend returns cos*e_a + sin*e_b, a unit vector whose cosine with e_a is cos.
func blend(a, b int, cos float64) []float32 {
	v := make([]float32, testDim)
	v[a] = float32(cos)
	v[b] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EmbeddingDim = testDim
	return cfg
}

// countingMinter mints G1, G2, ...
type countingMinter struct {
	n int
}

func (m *countingMinter) Mint(string, uint64, time.Time) string {
	m.n++
	return fmt.Sprintf("G%d", m.n)
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
