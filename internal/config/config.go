package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds the connection to the local Ollama server.
type OllamaConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	EmbedModel        string  `yaml:"embed_model"`
	Temperature       float64 `yaml:"temperature"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

// Timeout returns the request timeout for generation calls.
func (c OllamaConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// EmbedderConfig selects the text embedder: "ollama" or "tfidf".
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	MaxRetries int    `yaml:"max_retries"`
	BatchSize  int    `yaml:"batch_size"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// RetrieverConfig controls retrieval and prompting.
type RetrieverConfig struct {
	TopK           int    `yaml:"top_k"`
	VectorStore    string `yaml:"vector_store"`
	PromptTemplate string `yaml:"prompt_template,omitempty"`
}

// SourcesConfig configures the document loaders.
type SourcesConfig struct {
	UserAgent           string   `yaml:"user_agent"`
	TimeoutSecs         int      `yaml:"timeout_secs"`
	TempDir             string   `yaml:"temp_dir,omitempty"`
	WikipediaLang       string   `yaml:"wikipedia_lang"`
	TranscriptLanguages []string `yaml:"transcript_languages"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	SessionTTLMins int      `yaml:"session_ttl_mins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	CORSOrigins    []string `yaml:"cors_origins,omitempty"`
}

// SessionTTL returns the idle time after which a server session is dropped.
func (c ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMins) * time.Minute
}

// LogConfig configures logging. File is used by the TUI, which owns the terminal.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Ollama     OllamaConfig     `yaml:"ollama"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Sources    SourcesConfig    `yaml:"sources"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath is ~/.config/ragchat/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Ollama: OllamaConfig{
			Host:        "http://localhost:11434",
			Model:       "llama3",
			EmbedModel:  "llama3",
			TimeoutSecs: 300,
		},
		Embedder:  EmbedderConfig{Type: "ollama", MaxRetries: 3, BatchSize: 64},
		Chunker:   ChunkerConfig{Type: "recursive", ChunkSize: 500, ChunkOverlap: 50},
		Retriever: RetrieverConfig{TopK: 4, VectorStore: "memory"},
		Sources: SourcesConfig{
			TimeoutSecs:         30,
			WikipediaLang:       "en",
			TranscriptLanguages: []string{"en"},
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Server:     ServerConfig{Addr: ":8080", SessionTTLMins: 30, MaxUploadMB: 32},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Validate rejects settings the components cannot work with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "ollama", "tfidf":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	if c.Chunker.Type != "recursive" {
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.Summarizer.Type != "frequency" {
		return fmt.Errorf("unknown summarizer: %s", c.Summarizer.Type)
	}
	return nil
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = def.Ollama.Host
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = def.Ollama.Model
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = cfg.Ollama.Model
	}
	if cfg.Ollama.TimeoutSecs <= 0 {
		cfg.Ollama.TimeoutSecs = def.Ollama.TimeoutSecs
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = def.Chunker.Type
	}
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Chunker.ChunkOverlap < 0 {
		cfg.Chunker.ChunkOverlap = def.Chunker.ChunkOverlap
	}
	if cfg.Retriever.TopK <= 0 {
		cfg.Retriever.TopK = def.Retriever.TopK
	}
	if cfg.Retriever.VectorStore == "" {
		cfg.Retriever.VectorStore = def.Retriever.VectorStore
	}
	if cfg.Sources.TimeoutSecs <= 0 {
		cfg.Sources.TimeoutSecs = def.Sources.TimeoutSecs
	}
	if cfg.Sources.WikipediaLang == "" {
		cfg.Sources.WikipediaLang = def.Sources.WikipediaLang
	}
	if len(cfg.Sources.TranscriptLanguages) == 0 {
		cfg.Sources.TranscriptLanguages = def.Sources.TranscriptLanguages
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.SessionTTLMins <= 0 {
		cfg.Server.SessionTTLMins = def.Server.SessionTTLMins
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		cfg.Ollama.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("OLLAMA_MODEL")); v != "" {
		cfg.Ollama.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
}
