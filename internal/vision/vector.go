package vision

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// normEpsilon keeps normalization finite for all-zero vectors.
const normEpsilon = 1e-8

func vec32(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// normalize returns an L2-normalized copy of v. A zero vector stays zero,
// which makes its similarity to anything 0.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if len(out) == 0 {
		return out
	}
	x := vec32(out)
	norm := blas32.Nrm2(x)
	if norm > 0 {
		blas32.Scal(1/(norm+normEpsilon), x)
	}
	return out
}

// finite reports whether every component of v is a finite number.
func finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// dot assumes equal lengths.
func dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec32(a), vec32(b))
}

// Cosine computes the cosine similarity of a and b after normalizing both.
// Mismatched or empty inputs have similarity 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	s := dot(normalize(a), normalize(b))
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
