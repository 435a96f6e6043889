package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/summarizer"
)

type scriptedLoader struct {
	docs map[string][]domain.Document
	err  error
}

func (l *scriptedLoader) Load(_ context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.docs[req.Param], nil
}

type countingGenerator struct {
	calls   int
	prompts []string
	err     error
}

func (g *countingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "answer", nil
}

func pages() []domain.Document {
	docs := make([]domain.Document, 3)
	topics := []string{"gophers digging tunnels", "compilers emitting machine code", "goroutines scheduling work"}
	for i, topic := range topics {
		docs[i] = domain.Document{
			Content:  fmt.Sprintf("Page %d is about %s. It explains %s in detail.", i+1, topic, topic),
			Metadata: map[string]string{"source": "manual.pdf", "page": fmt.Sprint(i)},
		}
	}
	return docs
}

func newTestController(loader domain.Loader, gen domain.Generator) *Controller {
	return NewController(Deps{
		Loader:           loader,
		Chunker:          chunker.NewRecursiveChunker(),
		NewEmbedder:      func() domain.Embedder { return tfidf.NewEmbedder() },
		Generator:        gen,
		Summarizer:       summarizer.NewFrequencySummarizer(),
		SummarySentences: 2,
	})
}

func TestAskBeforeLoadIsNotReady(t *testing.T) {
	gen := &countingGenerator{}
	c := newTestController(&scriptedLoader{}, gen)

	assert.Equal(t, Idle, c.State())
	_, err := c.Ask(context.Background(), "anything?")
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.Zero(t, gen.calls)
	assert.Nil(t, c.Report())
}

func TestLoadPDFThenAsk(t *testing.T) {
	gen := &countingGenerator{}
	c := newTestController(&scriptedLoader{docs: map[string][]domain.Document{"manual.pdf": pages()}}, gen)

	report, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "manual.pdf"})
	require.NoError(t, err)
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, "tfidf", report.Embedder)
	assert.True(t, strings.HasPrefix(report.Preview, "Page 1 is about gophers"))
	assert.NotEmpty(t, report.Summary)

	ans, err := c.Ask(context.Background(), "How are goroutines scheduled?")
	require.NoError(t, err)
	assert.Equal(t, "answer", ans.Text)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "2", ans.Sources[0].Metadata["page"])
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Page 3 is about goroutines")
}

func TestLoadReplacesActiveSource(t *testing.T) {
	gen := &countingGenerator{}
	loader := &scriptedLoader{docs: map[string][]domain.Document{
		"manual.pdf": pages(),
		"Otters":     {{Content: "Otters hold hands while sleeping on the water.", Metadata: map[string]string{"title": "Otter"}}},
	}}
	c := newTestController(loader, gen)

	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "manual.pdf"})
	require.NoError(t, err)
	report, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourceWikipedia, Param: "Otters"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, domain.SourceWikipedia, c.Report().Source)

	ans, err := c.Ask(context.Background(), "What do otters do while sleeping?")
	require.NoError(t, err)
	for _, ch := range ans.Sources {
		assert.NotContains(t, ch.Content, "Page")
	}
}

func TestEmptySourceKeepsState(t *testing.T) {
	gen := &countingGenerator{}
	loader := &scriptedLoader{docs: map[string][]domain.Document{"manual.pdf": pages()}}
	c := newTestController(loader, gen)

	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourceWikipedia, Param: "qwzxqwzx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptySource)
	assert.Equal(t, "The wikipedia source returned no content.", domain.UserMessage(err))
	assert.Equal(t, Idle, c.State())

	_, err = c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "manual.pdf"})
	require.NoError(t, err)
	_, err = c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourceWikipedia, Param: "qwzxqwzx"})
	assert.ErrorIs(t, err, domain.ErrEmptySource)
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, domain.SourcePDF, c.Report().Source)
}

func TestWhitespaceOnlyDocumentsAreEmpty(t *testing.T) {
	loader := &scriptedLoader{docs: map[string][]domain.Document{"blank": {{Content: "  \n\n "}}}}
	c := newTestController(loader, &countingGenerator{})

	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourceWebsite, Param: "blank"})
	assert.ErrorIs(t, err, domain.ErrEmptySource)
	assert.Equal(t, Idle, c.State())
}

func TestLoaderErrorPropagates(t *testing.T) {
	loadErr := domain.NewError(domain.KindSourceUnavailable, "youtube source", errors.New("no transcript"))
	c := newTestController(&scriptedLoader{err: loadErr}, &countingGenerator{})

	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourceYouTube, Param: "x"})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, Idle, c.State())
}

func TestModelFailureKeepsSourceLoaded(t *testing.T) {
	gen := &countingGenerator{err: domain.NewError(domain.KindModelUnavailable, "generation", errors.New("connection refused"))}
	c := newTestController(&scriptedLoader{docs: map[string][]domain.Document{"manual.pdf": pages()}}, gen)

	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "manual.pdf"})
	require.NoError(t, err)
	_, err = c.Ask(context.Background(), "What about compilers?")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, Ready, c.State())
}

func TestReset(t *testing.T) {
	c := newTestController(&scriptedLoader{docs: map[string][]domain.Document{"manual.pdf": pages()}}, &countingGenerator{})
	_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "manual.pdf"})
	require.NoError(t, err)

	c.Reset()
	assert.Equal(t, Idle, c.State())
	_, err = c.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestManagerSessions(t *testing.T) {
	m := NewManager(func() *Controller {
		return newTestController(&scriptedLoader{}, &countingGenerator{})
	}, time.Minute, nil)

	id, c1 := m.Get("")
	require.NotEmpty(t, id)
	again, c2 := m.Get(id)
	assert.Equal(t, id, again)
	assert.Same(t, c1, c2)

	other, c3 := m.Get("not-a-uuid")
	assert.NotEqual(t, id, other)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, 2, m.Len())

	assert.Zero(t, m.Evict(time.Now()))
	assert.Equal(t, 2, m.Evict(time.Now().Add(2*time.Minute)))
	assert.Zero(t, m.Len())
	_, c4 := m.Get(id)
	assert.NotSame(t, c1, c4)
}

type gatedLoader struct {
	docs    []domain.Document
	started chan struct{}
	release chan struct{}
}

func (l *gatedLoader) Load(context.Context, domain.LoadRequest) ([]domain.Document, error) {
	l.started <- struct{}{}
	<-l.release
	return l.docs, nil
}

func TestSnapshotDuringLoadKeepsActiveReport(t *testing.T) {
	l := &gatedLoader{docs: pages(), started: make(chan struct{}), release: make(chan struct{})}
	c := newTestController(l, &countingGenerator{})

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "first.pdf"})
		done <- err
	}()
	<-l.started
	state, report := c.Snapshot()
	assert.Equal(t, Loading, state)
	assert.Nil(t, report)
	l.release <- struct{}{}
	require.NoError(t, <-done)

	go func() {
		_, err := c.LoadSource(context.Background(), domain.LoadRequest{Type: domain.SourcePDF, Param: "second.pdf"})
		done <- err
	}()
	<-l.started
	state, report = c.Snapshot()
	assert.Equal(t, Loading, state)
	require.NotNil(t, report)
	assert.Equal(t, "first.pdf", report.Param)
	l.release <- struct{}{}
	require.NoError(t, <-done)

	state, report = c.Snapshot()
	assert.Equal(t, Ready, state)
	assert.Equal(t, "second.pdf", report.Param)
}
