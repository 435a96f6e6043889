package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("RAGCHAT_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "llama3", cfg.Ollama.Model)
	assert.Equal(t, 4, cfg.Retriever.TopK)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("RAGCHAT_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ollama:
  model: mistral
embedder:
  type: tfidf
chunker:
  chunk_size: 300
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.Ollama.Model)
	assert.Equal(t, "llama3", cfg.Ollama.EmbedModel)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 300, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.Host)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "llama3:70b")
	t.Setenv("RAGCHAT_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.Host)
	assert.Equal(t, "llama3:70b", cfg.Ollama.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: word2vec\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown embedder")

	cfg := Default()
	cfg.Chunker.ChunkOverlap = cfg.Chunker.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("RAGCHAT_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9090"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", got.Server.Addr)
}
