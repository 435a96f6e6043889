package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func chunk(i int, text string) domain.Chunk {
	return domain.Chunk{Content: text, Index: i}
}

func TestSearchRanksByCosine(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(
		[]domain.Chunk{chunk(0, "A"), chunk(1, "B")},
		[][]float64{{1, 0}, {0, 1}},
	))

	res, err := s.Search([]float64{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "A", res[0].Chunk.Content)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(
		[]domain.Chunk{chunk(0, "first"), chunk(1, "second"), chunk(2, "third")},
		[][]float64{{1, 1}, {0, 1}, {1, 1}},
	))

	res, err := s.Search([]float64{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "first", res[0].Chunk.Content)
	assert.Equal(t, "third", res[1].Chunk.Content)
	assert.Equal(t, "second", res[2].Chunk.Content)
}

func TestSearchTopKBounds(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(
		[]domain.Chunk{chunk(0, "A"), chunk(1, "B")},
		[][]float64{{1, 0}, {0, 1}},
	))

	res, err := s.Search([]float64{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestUpsertValidation(t *testing.T) {
	s := NewStorage()
	assert.Error(t, s.Init(0))
	assert.Error(t, s.Upsert([]domain.Chunk{chunk(0, "A")}, [][]float64{{1}}))

	require.NoError(t, s.Init(2))
	assert.Error(t, s.Upsert([]domain.Chunk{chunk(0, "A")}, nil))
	assert.Error(t, s.Upsert([]domain.Chunk{chunk(0, "A")}, [][]float64{{1, 2, 3}}))

	_, err := s.Search([]float64{1}, 1)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(1))
	require.NoError(t, s.Upsert([]domain.Chunk{chunk(0, "A")}, [][]float64{{1}}))
	require.Equal(t, 1, s.Len())
	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Len())
}
