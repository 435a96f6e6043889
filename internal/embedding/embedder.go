package embedding

import (
	"context"
	"fmt"
	"math"

	"ragchat/internal/domain"
)

// EmbedAll embeds texts in order, using a single batch call when the embedder
// supports it.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string) ([][]float64, error) {
	if b, ok := e.(domain.BatchEmbedder); ok {
		vecs, err := b.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%s: got %d embeddings for %d texts", e.Name(), len(vecs), len(texts))
		}
		return vecs, nil
	}
	vecs := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// Normalize scales v to unit length in place. Zero vectors are left unchanged.
func Normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
