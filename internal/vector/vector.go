// Package vector provides the query-vector algebra for the search pipeline:
// L2 normalization, weighted accumulation, cosine similarity, and the
// prompt blend-mode presets.
//
// All vectors are float32 slices of a dimensionality fixed by the embedding
// backend. Operations that combine or compare vectors require equal
// dimensions and fail with DimensionMismatchError otherwise — there is no
// silent truncation or padding.
package vector

import (
	"fmt"
	"math"
)

// Vector is an embedding vector.
type Vector []float32

// DimensionMismatchError reports an attempt to combine or compare vectors
// of different dimensionality.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Query is a query vector that may be absent. A genuinely empty query
// (no text, no variants) produces Absent, never a zero vector.
type Query struct {
	vec     Vector
	present bool
}

// Present wraps a vector into a present Query.
func Present(v Vector) Query {
	return Query{vec: v, present: true}
}

// Absent returns the "no query vector" value.
func Absent() Query {
	return Query{}
}

// IsPresent reports whether a vector is available.
func (q Query) IsPresent() bool { return q.present }

// Vector returns the underlying vector and whether it is present.
func (q Query) Vector() (Vector, bool) { return q.vec, q.present }

// Normalize returns v scaled to unit L2 length. A zero-norm input divides
// by 1.0 instead, returning the zero vector unchanged.
func Normalize(v Vector) Vector {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1.0
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine computes cosine similarity between two equal-length vectors.
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Want: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Accumulator builds a weighted element-wise sum of equal-length vectors.
// The first Add fixes the dimensionality.
type Accumulator struct {
	sum []float64
	n   int
}

// Add folds v into the accumulator with the given weight.
func (a *Accumulator) Add(v Vector, weight float64) error {
	if a.sum == nil {
		a.sum = make([]float64, len(v))
	}
	if len(v) != len(a.sum) {
		return &DimensionMismatchError{Want: len(a.sum), Got: len(v)}
	}
	for i, x := range v {
		a.sum[i] += float64(x) * weight
	}
	a.n++
	return nil
}

// Empty reports whether nothing has been accumulated.
func (a *Accumulator) Empty() bool { return a.n == 0 }

// Normalized returns the unit-normalized accumulated vector.
func (a *Accumulator) Normalized() Vector {
	out := make(Vector, len(a.sum))
	for i, x := range a.sum {
		out[i] = float32(x)
	}
	return Normalize(out)
}
