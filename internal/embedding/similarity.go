package embedding

import (
	"fmt"
	"math"
)

// Score returns the cosine similarity of two already-normalized vectors,
// clamped into [0, 1]. Negative similarity carries no meaning as a match
// confidence and collapses to 0; values pushed above 1 by rounding are
// capped at 1. The vectors are not re-normalized.
func Score(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return clampUnit(dot), nil
}

// CosineDistance is 1 - Score, for callers that rank by distance.
func CosineDistance(a, b Vector) (float64, error) {
	s, err := Score(a, b)
	if err != nil {
		return 1, err
	}
	return 1 - s, nil
}

func clampUnit(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
