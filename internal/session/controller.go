// Package session holds the load-then-ask state machine shared by the TUI,
// the CLI and the HTTP server.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/index"
	"ragchat/internal/qa"
	"ragchat/internal/textutil"
	"ragchat/internal/vectorstore"
)

// State is the lifecycle state of a Controller.
type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// PreviewLength is the number of characters of the first document kept in a Report.
const PreviewLength = 500

// Report describes a successful load.
type Report struct {
	Source    domain.SourceType
	Param     string
	Documents int
	Chunks    int
	Summary   string
	Preview   string
	Embedder  string
	LoadedAt  time.Time
	Duration  time.Duration
}

// Answer is the model output for one question and the chunks it was given.
type Answer struct {
	Text    string
	Sources []domain.Chunk
}

// Deps are the collaborators a Controller drives. NewEmbedder and NewStore are
// called once per load so a failed load never disturbs the active index.
type Deps struct {
	Loader           domain.Loader
	Chunker          domain.Chunker
	NewEmbedder      func() domain.Embedder
	NewStore         vectorstore.Factory
	Generator        domain.Generator
	Summarizer       domain.Summarizer
	SummarySentences int
	TopK             int
	PromptTemplate   string
	Logger           *slog.Logger
}

// Controller owns at most one active pipeline. Operations are serialized.
type Controller struct {
	deps Deps
	log  *slog.Logger

	mu       sync.Mutex
	pipeline *qa.Pipeline

	// status is published without mu so readers never wait on a running load.
	status   atomic.Pointer[status]
	lastUsed atomic.Int64
}

// status pairs the state with the report of the source active in it.
type status struct {
	state  State
	report *Report
}

func NewController(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewStore == nil {
		deps.NewStore, _ = vectorstore.NewFactory("memory")
	}
	c := &Controller{deps: deps, log: deps.Logger}
	c.status.Store(&status{state: Idle})
	c.touch()
	return c
}

// State reports the current state without waiting for a running operation.
func (c *Controller) State() State { return c.status.Load().state }

// Report returns the active source's load report, or nil while nothing is
// loaded. During a load it still describes the previously active source.
func (c *Controller) Report() *Report {
	_, r := c.Snapshot()
	return r
}

// Snapshot returns the state and the active report as one consistent pair.
func (c *Controller) Snapshot() (State, *Report) {
	st := c.status.Load()
	if st.report == nil {
		return st.state, nil
	}
	r := *st.report
	return st.state, &r
}

func (c *Controller) setState(state State, report *Report) {
	c.status.Store(&status{state: state, report: report})
}

// LastUsed is the time of the last operation started on the controller.
func (c *Controller) LastUsed() time.Time { return time.Unix(0, c.lastUsed.Load()) }

func (c *Controller) touch() { c.lastUsed.Store(time.Now().UnixNano()) }

// LoadSource loads, chunks and indexes one source and makes it the active one.
// On any failure the previously active source, if any, stays active.
func (c *Controller) LoadSource(ctx context.Context, req domain.LoadRequest) (Report, error) {
	c.touch()
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.status.Load()
	c.setState(Loading, prev.report)
	start := time.Now()

	pipeline, report, err := c.build(ctx, req)
	if err != nil {
		c.status.Store(prev)
		c.log.Warn("load failed", "source", req.Type.String(), "param", req.Param, "error", err)
		return Report{}, err
	}
	report.LoadedAt = time.Now()
	report.Duration = time.Since(start)

	c.pipeline = pipeline
	c.setState(Ready, &report)
	c.log.Info("source ready",
		"source", req.Type.String(),
		"documents", report.Documents,
		"chunks", report.Chunks,
		"embedder", report.Embedder,
		"duration", report.Duration)
	return report, nil
}

func (c *Controller) build(ctx context.Context, req domain.LoadRequest) (*qa.Pipeline, Report, error) {
	stage := req.Type.String() + " source"

	docs, err := c.deps.Loader.Load(ctx, req)
	if err != nil {
		return nil, Report{}, err
	}
	if len(docs) == 0 {
		return nil, Report{}, domain.Errorf(domain.KindEmptySource, stage, "no documents for %q", req.Param)
	}

	chunks, err := c.deps.Chunker.Split(docs)
	if err != nil {
		return nil, Report{}, domain.NewError(domain.KindIndexBuildFailure, "chunking", err)
	}
	if len(chunks) == 0 {
		return nil, Report{}, domain.Errorf(domain.KindEmptySource, stage, "%d documents without text", len(docs))
	}

	embedder := c.deps.NewEmbedder()
	ix, err := index.Build(ctx, embedder, c.deps.NewStore(), chunks)
	if err != nil {
		return nil, Report{}, err
	}

	pipeline := qa.New(ix, c.deps.Generator,
		qa.WithTopK(c.deps.TopK),
		qa.WithPromptTemplate(c.deps.PromptTemplate))

	return pipeline, Report{
		Source:    req.Type,
		Param:     req.Param,
		Documents: len(docs),
		Chunks:    ix.Len(),
		Summary:   c.summarize(docs),
		Preview:   textutil.Truncate(docs[0].Content, PreviewLength),
		Embedder:  embedder.Name(),
	}, nil
}

func (c *Controller) summarize(docs []domain.Document) string {
	if c.deps.Summarizer == nil {
		return ""
	}
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Content)
		b.WriteString("\n")
	}
	summary, err := c.deps.Summarizer.Summarize(b.String(), c.deps.SummarySentences)
	if err != nil {
		c.log.Warn("summary failed", "error", err)
		return ""
	}
	return summary
}

// Ask answers a question against the active source. It fails with NotReady
// before anything has been loaded, without calling the model.
func (c *Controller) Ask(ctx context.Context, question string) (Answer, error) {
	c.touch()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return Answer{}, domain.Errorf(domain.KindNotReady, "question", "no source loaded")
	}
	start := time.Now()
	text, err := c.pipeline.Answer(ctx, question)
	if err != nil {
		c.log.Warn("answer failed", "error", err)
		return Answer{}, err
	}
	c.log.Debug("answered", "question", question, "duration", time.Since(start))
	return Answer{Text: text, Sources: c.pipeline.Sources()}, nil
}

// Reset drops the active source and returns the controller to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipeline = nil
	c.setState(Idle, nil)
}
