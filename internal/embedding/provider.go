// Package embedding provides text embedding for semantic similarity.
// The loop guard is its only consumer in the engine; absence of a
// provider degrades similarity to 0 rather than failing.
package embedding

import (
	"context"
	"math"
)

// Provider encodes texts into embedding vectors.
//
// Implementations must be safe for concurrent use: the process-wide
// cache serves many cases at once.
type Provider interface {
	// Encode returns one vector per input text, in input order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
