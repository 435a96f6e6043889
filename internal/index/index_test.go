package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/vectorstore/memory"
)

type failingEmbedder struct{ err error }

func (f failingEmbedder) Name() string { return "failing" }
func (f failingEmbedder) Prepare(context.Context, []string) error { return nil }
func (f failingEmbedder) Dimension() int { return 0 }
func (f failingEmbedder) Embed(context.Context, string) ([]float64, error) { return nil, f.err }

func pageChunks() []domain.Chunk {
	var chunks []domain.Chunk
	for i := 1; i <= 3; i++ {
		body := strings.Repeat(fmt.Sprintf("Page %d. This page covers topic number %d in detail. ", i, i), 5)
		chunks = append(chunks, domain.Chunk{
			Content:  body,
			Metadata: map[string]string{"page": fmt.Sprint(i - 1)},
			Index:    i - 1,
		})
	}
	return chunks
}

func TestBuildAndRetrievePage(t *testing.T) {
	ctx := context.Background()
	ix, err := Build(ctx, tfidf.NewEmbedder(), memory.NewStorage(), pageChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	got, err := ix.Retrieve(ctx, "page 2 topic", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Metadata["page"])
}

func TestRetrieveBoundsAndUniqueness(t *testing.T) {
	ctx := context.Background()
	chunks := pageChunks()
	ix, err := Build(ctx, tfidf.NewEmbedder(), memory.NewStorage(), chunks)
	require.NoError(t, err)

	for _, k := range []int{1, 2, 3, 10} {
		got, err := ix.Retrieve(ctx, "topic detail", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), min(k, len(chunks)))

		seen := map[int]bool{}
		for _, ch := range got {
			assert.False(t, seen[ch.Index], "duplicate chunk %d", ch.Index)
			seen[ch.Index] = true
			assert.Equal(t, chunks[ch.Index].Content, ch.Content)
		}
	}

	got, err := ix.Retrieve(ctx, "topic", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRetrieveFallsBackToTermOverlap(t *testing.T) {
	ctx := context.Background()
	ix, err := Build(ctx, tfidf.NewEmbedder(), memory.NewStorage(), pageChunks())
	require.NoError(t, err)

	res, err := ix.Search(ctx, "zebra", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 0, res[0].Chunk.Index)
	assert.Equal(t, 1, res[1].Chunk.Index)
}

func TestBuildEmptyChunks(t *testing.T) {
	_, err := Build(context.Background(), tfidf.NewEmbedder(), memory.NewStorage(), nil)
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
}

func TestBuildEmbedderUnreachable(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := Build(context.Background(), failingEmbedder{err: cause}, memory.NewStorage(), pageChunks())
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)
	assert.ErrorIs(t, err, cause)
}

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) Name() string { return "fixed" }
func (f fixedEmbedder) Prepare(context.Context, []string) error { return nil }
func (f fixedEmbedder) Dimension() int { return f.dim }
func (f fixedEmbedder) Embed(context.Context, string) ([]float64, error) { return []float64{1, 0}, nil }

func TestBuildDimensionMismatch(t *testing.T) {
	_, err := Build(context.Background(), fixedEmbedder{dim: 3}, memory.NewStorage(), pageChunks())
	assert.ErrorIs(t, err, domain.ErrIndexBuildFailure)

	ix, err := Build(context.Background(), fixedEmbedder{}, memory.NewStorage(), pageChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
}
