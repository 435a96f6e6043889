package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory(t *testing.T) {
	f, err := NewFactory("memory")
	require.NoError(t, err)
	a, b := f(), f()
	assert.NotSame(t, a, b)

	_, err = NewFactory("qdrant")
	assert.ErrorContains(t, err, "unknown vector store")
}
