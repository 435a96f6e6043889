package vectorstore

import (
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/memory"
)

// Storage holds vectors and supports similarity search.
type Storage = domain.VectorStore

// Factory creates an empty store for one index build.
type Factory func() Storage

// NewFactory returns the store factory for the configured store type.
func NewFactory(kind string) (Factory, error) {
	switch kind {
	case "memory", "":
		return func() Storage { return memory.NewStorage() }, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", kind)
	}
}
