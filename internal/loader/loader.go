// Package loader fetches and parses the four supported document sources.
//
// Every loader follows the same policy: an empty parameter yields an empty
// sequence and no error, and every failure is returned as a *domain.Error of
// kind SourceUnavailable or InvalidInput naming the source stage.
package loader

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ragchat/internal/domain"
)

// DefaultUserAgent is sent with every outgoing fetch.
const DefaultUserAgent = "ragchat/1.0"

// Config configures the built-in loaders.
type Config struct {
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
	// TempDir holds PDF uploads while they are parsed; empty means os.TempDir().
	TempDir string
	// WikipediaLang selects the Wikipedia edition, "en" by default.
	WikipediaLang string
	// WikipediaEndpoint overrides the MediaWiki API URL.
	WikipediaEndpoint string
	// TranscriptLanguages lists preferred caption languages in order.
	TranscriptLanguages []string
	// YouTubeBaseURL overrides https://www.youtube.com.
	YouTubeBaseURL string
	Logger         *slog.Logger
}

// Registry dispatches a load request to the loader for its source type.
type Registry struct {
	loaders map[domain.SourceType]domain.Loader
	logger  *slog.Logger
}

// NewRegistry creates a registry with the PDF, website, Wikipedia and YouTube loaders.
func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	r := &Registry{loaders: make(map[domain.SourceType]domain.Loader), logger: cfg.Logger}
	r.Register(domain.SourcePDF, NewPDF(cfg.TempDir))
	r.Register(domain.SourceWebsite, NewWeb(cfg.HTTPClient, cfg.UserAgent))
	r.Register(domain.SourceWikipedia, NewWikipedia(cfg.HTTPClient, cfg.UserAgent, cfg.WikipediaLang, cfg.WikipediaEndpoint))
	r.Register(domain.SourceYouTube, NewYouTube(cfg.HTTPClient, cfg.UserAgent, cfg.YouTubeBaseURL, cfg.TranscriptLanguages))
	return r
}

// Register sets or replaces the loader for a source type.
func (r *Registry) Register(t domain.SourceType, l domain.Loader) {
	r.loaders[t] = l
}

// Load runs the loader registered for req.Type.
func (r *Registry) Load(ctx context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	l, ok := r.loaders[req.Type]
	if !ok {
		return nil, domain.Errorf(domain.KindInvalidInput, "source type", "unsupported source type %q", req.Type.String())
	}
	start := time.Now()
	docs, err := l.Load(ctx, req)
	if err != nil {
		r.logger.Error("source load failed", "source", req.Type.String(), "param", req.Param, "error", err)
		return nil, err
	}
	r.logger.Info("source loaded",
		"source", req.Type.String(),
		"param", req.Param,
		"documents", len(docs),
		"duration", time.Since(start))
	return docs, nil
}

func stageFor(t domain.SourceType) string { return t.String() + " source" }

func unavailable(t domain.SourceType, err error) error {
	return domain.NewError(domain.KindSourceUnavailable, stageFor(t), err)
}

func unavailablef(t domain.SourceType, format string, args ...any) error {
	return domain.Errorf(domain.KindSourceUnavailable, stageFor(t), format, args...)
}

func get(ctx context.Context, client *http.Client, url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return client.Do(req)
}
