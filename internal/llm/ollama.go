// Package llm talks to the locally hosted generative model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ragchat/internal/domain"
)

const stage = "generation"

// Config configures the Ollama generator.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration

	// RequestsPerMinute throttles generation calls; zero means unlimited.
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Generator calls Ollama's /api/generate behind a circuit breaker, so a dead
// model server fails fast after repeated errors.
type Generator struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGenerator creates a Generator for the configured model.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ollama-generate",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), max(1, cfg.RequestsPerMinute/10))
	}
	return &Generator{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		limiter:     limiter,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Generate returns the model's completion of prompt verbatim. Every failure is
// reported as ModelUnavailable.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", domain.NewError(domain.KindModelUnavailable, stage, fmt.Errorf("waiting for rate limit: %w", err))
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("ollama at %s failed repeatedly, retry shortly: %w", g.baseURL, err)
		}
		return "", domain.NewError(domain.KindModelUnavailable, stage, err)
	}
	return out.(string), nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{Model: g.model, Prompt: prompt}
	if g.temperature > 0 {
		body.Options = map[string]any{"temperature": g.temperature}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request (is Ollama running at %s?): %w", g.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out generateResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(payload, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("ollama generate error (status %d): %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("ollama generate error (status %d)", resp.StatusCode)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	g.logger.Debug("ollama generate",
		"model", g.model,
		"prompt_tokens", out.PromptEvalCount,
		"output_tokens", out.EvalCount,
		"duration", time.Since(start))
	return out.Response, nil
}
