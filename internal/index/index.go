// Package index builds a similarity-searchable index over chunks and
// retrieves the chunks closest to a query.
package index

import (
	"context"
	"math"
	"sort"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/textutil"
)

// DefaultTopK is the number of chunks retrieved when k is not positive.
const DefaultTopK = 4

const stage = "indexing"

// Index pairs an embedder with a store filled from one load.
type Index struct {
	embedder domain.Embedder
	store    domain.VectorStore
	chunks   []domain.Chunk
}

// Build embeds every chunk and loads the vectors into store, which is reset.
// It fails with an IndexBuildFailure on empty input or embedder errors.
func Build(ctx context.Context, embedder domain.Embedder, store domain.VectorStore, chunks []domain.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.Errorf(domain.KindIndexBuildFailure, stage, "no chunks to index")
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	if err := embedder.Prepare(ctx, texts); err != nil {
		return nil, domain.NewError(domain.KindIndexBuildFailure, stage, err)
	}
	vectors, err := embedding.EmbedAll(ctx, embedder, texts)
	if err != nil {
		return nil, domain.NewError(domain.KindIndexBuildFailure, stage, err)
	}
	dim := embedder.Dimension()
	if dim == 0 {
		dim = len(vectors[0])
	}
	if err := store.Init(dim); err != nil {
		return nil, domain.NewError(domain.KindIndexBuildFailure, stage, err)
	}
	if err := store.Upsert(chunks, vectors); err != nil {
		return nil, domain.NewError(domain.KindIndexBuildFailure, stage, err)
	}
	return &Index{
		embedder: embedder,
		store:    store,
		chunks:   append([]domain.Chunk(nil), chunks...),
	}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Retrieve returns up to k chunks most similar to query.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	res, err := ix.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chunk, len(res))
	for i, r := range res {
		out[i] = r.Chunk
	}
	return out, nil
}

// Search is Retrieve with similarity scores. When the query embeds to a zero
// vector, or nothing scores above zero, chunks are ranked by term overlap instead.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewError(domain.KindModelUnavailable, "retrieval", err)
	}
	if embedding.IsZero(vec) {
		return ix.lexicalSearch(query, k), nil
	}
	res, err := ix.store.Search(vec, k)
	if err != nil {
		return nil, domain.NewError(domain.KindModelUnavailable, "retrieval", err)
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return ix.lexicalSearch(query, k), nil
}

func (ix *Index) lexicalSearch(query string, k int) []domain.SearchResult {
	qset := textutil.TermSet(query)
	scores := make([]float64, len(ix.chunks))
	idxs := make([]int, len(ix.chunks))
	for i, ch := range ix.chunks {
		scores[i] = ochiai(qset, textutil.TermSet(ch.Content))
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k > len(idxs) {
		k = len(idxs)
	}
	out := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		out = append(out, domain.SearchResult{Chunk: ix.chunks[j], Score: scores[j]})
	}
	return out
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
