// Package app assembles the configured components into session controllers.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/ollama"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/llm"
	"ragchat/internal/loader"
	"ragchat/internal/session"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore"
)

// App holds the components shared by every controller it creates.
type App struct {
	Config    *config.AppConfig
	Logger    *slog.Logger
	Loaders   *loader.Registry
	Generator *llm.Generator

	chunker    domain.Chunker
	summarizer domain.Summarizer
	newStore   vectorstore.Factory
}

func New(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	newStore, err := vectorstore.NewFactory(cfg.Retriever.VectorStore)
	if err != nil {
		return nil, err
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	loaders := loader.NewRegistry(loader.Config{
		UserAgent:           cfg.Sources.UserAgent,
		Timeout:             time.Duration(cfg.Sources.TimeoutSecs) * time.Second,
		TempDir:             cfg.Sources.TempDir,
		WikipediaLang:       cfg.Sources.WikipediaLang,
		TranscriptLanguages: cfg.Sources.TranscriptLanguages,
		Logger:              logger,
	})
	gen := llm.NewGenerator(llm.Config{
		BaseURL:           cfg.Ollama.Host,
		Model:             cfg.Ollama.Model,
		Temperature:       cfg.Ollama.Temperature,
		Timeout:           cfg.Ollama.Timeout(),
		RequestsPerMinute: cfg.Ollama.RequestsPerMinute,
		Logger:            logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Loaders:   loaders,
		Generator: gen,
		chunker: chunker.NewRecursiveChunker(
			chunker.WithChunkSize(cfg.Chunker.ChunkSize),
			chunker.WithOverlap(cfg.Chunker.ChunkOverlap),
		),
		summarizer: sum,
		newStore:   newStore,
	}, nil
}

// NewEmbedder returns a fresh embedder of the configured type.
func (a *App) NewEmbedder() domain.Embedder {
	switch a.Config.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder()
	default:
		return ollama.NewClient(ollama.Config{
			BaseURL:    a.Config.Ollama.Host,
			Model:      a.Config.Ollama.EmbedModel,
			Timeout:    a.Config.Ollama.Timeout(),
			MaxRetries: a.Config.Embedder.MaxRetries,
			BatchSize:  a.Config.Embedder.BatchSize,
			Logger:     a.Logger,
		})
	}
}

// NewController returns an Idle controller wired to the shared components.
func (a *App) NewController() *session.Controller {
	return session.NewController(session.Deps{
		Loader:           a.Loaders,
		Chunker:          a.chunker,
		NewEmbedder:      a.NewEmbedder,
		NewStore:         a.newStore,
		Generator:        a.Generator,
		Summarizer:       a.summarizer,
		SummarySentences: a.Config.Summarizer.MaxSentences,
		TopK:             a.Config.Retriever.TopK,
		PromptTemplate:   a.Config.Retriever.PromptTemplate,
		Logger:           a.Logger,
	})
}
