package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ragchat/internal/embedding"
)

// Client is an embeddings client for a local Ollama server. The same model
// embeds both the indexed chunks and the questions.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	batchSize  int
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// DefaultBatchSize is the number of inputs sent per /api/embed request.
const DefaultBatchSize = 64

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// BatchSize caps inputs per request; zero means DefaultBatchSize.
	BatchSize int
	Logger    *slog.Logger
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama:" + c.model }

// Prepare is not required for model embeddings. Dimension is set on first embed.
func (c *Client) Prepare(context.Context, []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EmbedBatch embeds texts in requests of at most batchSize inputs and returns
// the vectors in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embed sends one /api/embed request, retrying transient failures.
func (c *Client) embed(ctx context.Context, texts []string) ([][]float64, error) {
	data, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := c.baseURL + "/api/embed"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying ollama embed", "attempt", attempt, "error", lastErr)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request (is Ollama running at %s?): %w", c.baseURL, err)
			if ctx.Err() != nil || !c.wait(ctx, retryDelay(attempt), attempt) {
				return nil, lastErr
			}
			continue
		}

		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ollama embed failed: %s", statusMessage(resp.Status, payload))
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			if !c.wait(ctx, delay, attempt) {
				return nil, lastErr
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("ollama embed failed: %s", statusMessage(resp.Status, payload))
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if !c.wait(ctx, retryDelay(attempt), attempt) {
				return nil, lastErr
			}
			continue
		}

		var out embedResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		if len(out.Embeddings) != len(texts) {
			return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(texts))
		}
		for i, v := range out.Embeddings {
			if len(v) == 0 {
				return nil, errors.New("ollama returned empty embedding")
			}
			if c.dimension == 0 {
				c.dimension = len(v)
			}
			if len(v) != c.dimension {
				return nil, fmt.Errorf("embedding dimension changed from %d to %d", c.dimension, len(v))
			}
			out.Embeddings[i] = embedding.Normalize(v)
		}
		return out.Embeddings, nil
	}
	return nil, lastErr
}

// wait sleeps before the next attempt. It returns false when no attempts remain
// or the context ends first.
func (c *Client) wait(ctx context.Context, d time.Duration, attempt int) bool {
	if attempt >= c.maxRetries {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func statusMessage(status string, body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return status + ": " + e.Error
	}
	return status
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
