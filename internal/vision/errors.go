package vision

import "errors"

var (
	// ErrDimensionMismatch is returned when an embedding length differs from
	// the configured dimension. Such embeddings are rejected, never padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidEmbedding is returned for embeddings holding NaN or infinite
	// components. They are rejected like dimension mismatches.
	ErrInvalidEmbedding = errors.New("embedding has non-finite values")

	// ErrMissingEmbedding marks a detection that was tracked but could not be
	// resolved to a global identity because it carried no appearance vector.
	ErrMissingEmbedding = errors.New("detection has no embedding")

	// ErrInvalidConfig is returned by constructors for unusable configuration.
	ErrInvalidConfig = errors.New("invalid identity config")

	// ErrSolverUnavailable is returned when a requested matcher is unknown.
	// NewMatcher recovers from it by falling back to the greedy matcher.
	ErrSolverUnavailable = errors.New("assignment solver unavailable")
)
