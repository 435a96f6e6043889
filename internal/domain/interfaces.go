package domain

import (
	"context"
	"io"
)

// Document is one unit of loaded source content, such as a PDF page or a web page.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Chunk is a bounded-length part of a document used for indexing.
// Index is the position of the chunk in the sequence produced for one load.
type Chunk struct {
	Content  string
	Metadata map[string]string
	Index    int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// LoadRequest carries the single parameter for a source load.
// Data is only read for PDF uploads; Param holds a path, URL or topic otherwise.
type LoadRequest struct {
	Type  SourceType
	Param string
	Data  io.Reader
	Name  string
}

// Loader turns a source parameter into an ordered sequence of documents.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Split(documents []Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore holds vectors and supports similarity search.
type VectorStore interface {
	Init(dimension int) error
	Upsert(chunks []Chunk, vectors [][]float64) error
	Search(vector []float64, topK int) ([]SearchResult, error)
	Clear() error
}

// Generator produces text for a prompt with a generative model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
