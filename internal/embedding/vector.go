// Package embedding defines the face embedding vector and the numeric
// primitives the matcher is built on: L2 normalization, clamped cosine
// similarity and the text codecs used by gallery stores.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// Dim is the length of every face embedding (InsightFace buffalo models).
const Dim = 512

// NormTolerance is the maximum deviation of a normalized vector's norm from 1.
const NormTolerance = 1e-6

var (
	// ErrInvalidVector is returned for vectors with the wrong length, a zero
	// norm or non-finite components.
	ErrInvalidVector = errors.New("invalid embedding vector")

	// ErrDimensionMismatch is returned when two vectors of different length
	// are scored against each other.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Vector is a face embedding. Values handed out by this module are always
// copies; callers may keep or modify them freely.
type Vector []float64

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Float32 converts v to float32, the precision used by pgvector and the
// HNSW index.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// FromFloat32 converts a float32 slice (as returned by the extractor or
// pgvector) into a Vector.
func FromFloat32(f []float32) Vector {
	out := make(Vector, len(f))
	for i, x := range f {
		out[i] = float64(x)
	}
	return out
}

// Norm returns the Euclidean norm of v. The sum of squares is scaled by the
// largest magnitude so large finite components cannot overflow.
func Norm(v Vector) float64 {
	maxAbs, sum := scaledSumSquares(v)
	if sum == 0 {
		return maxAbs
	}
	return maxAbs * math.Sqrt(sum)
}

// scaledSumSquares returns the largest absolute component of v and the sum
// of squares of v divided by it. sum is 0 when maxAbs is 0 or not finite.
func scaledSumSquares(v Vector) (maxAbs, sum float64) {
	for _, x := range v {
		if a := math.Abs(x); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 || math.IsInf(maxAbs, 0) || math.IsNaN(maxAbs) {
		return maxAbs, 0
	}
	for _, x := range v {
		s := x / maxAbs
		sum += s * s
	}
	return maxAbs, sum
}

// Normalize validates a raw embedding and returns it scaled to unit length.
// The input is not modified.
func Normalize(v Vector) (Vector, error) {
	if len(v) != Dim {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidVector, len(v), Dim)
	}
	return NormalizeAny(v)
}

// NormalizeAny is Normalize without the length check.
func NormalizeAny(v Vector) (Vector, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite component at index %d", ErrInvalidVector, i)
		}
	}

	maxAbs, sum := scaledSumSquares(v)
	if maxAbs == 0 {
		return nil, fmt.Errorf("%w: zero norm", ErrInvalidVector)
	}

	// Divide by maxAbs first: maxAbs*sqrt(sum) loses precision for
	// subnormal inputs.
	s := math.Sqrt(sum)
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = (x / maxAbs) / s
	}
	return out, nil
}

// IsNormalized reports whether v has Dim components and unit norm within
// NormTolerance.
func IsNormalized(v Vector) bool {
	if len(v) != Dim {
		return false
	}
	return math.Abs(Norm(v)-1) <= NormTolerance
}
