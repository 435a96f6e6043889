// Package qa answers questions by retrieving chunks from an index and
// stuffing them into a prompt for the generative model.
package qa

import (
	"context"
	"strings"
	"sync"

	"ragchat/internal/domain"
)

// DefaultPromptTemplate is the stuff-documents prompt. {context} and
// {question} are replaced before generation.
const DefaultPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error)
}

// Pipeline is a retrieval-augmented answering chain over one index.
type Pipeline struct {
	retriever Retriever
	generator domain.Generator
	topK      int
	template  string

	mu      sync.Mutex
	sources []domain.Chunk
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithPromptTemplate replaces the prompt template.
func WithPromptTemplate(tmpl string) Option {
	return func(p *Pipeline) {
		if strings.TrimSpace(tmpl) != "" {
			p.template = tmpl
		}
	}
}

func New(retriever Retriever, generator domain.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: retriever,
		generator: generator,
		topK:      4,
		template:  DefaultPromptTemplate,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer retrieves context for question, asks the model and returns its output verbatim.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.Errorf(domain.KindInvalidInput, "question", "question is empty")
	}
	chunks, err := p.retriever.Retrieve(ctx, question, p.topK)
	if err != nil {
		return "", err
	}
	answer, err := p.generator.Generate(ctx, BuildPrompt(p.template, question, chunks))
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.sources = chunks
	p.mu.Unlock()
	return answer, nil
}

// Sources returns the chunks used for the most recent answer.
func (p *Pipeline) Sources() []domain.Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Chunk(nil), p.sources...)
}

// BuildPrompt fills tmpl with the chunk texts joined by blank lines and the question.
func BuildPrompt(tmpl, question string, chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	r := strings.NewReplacer("{context}", strings.Join(parts, "\n\n"), "{question}", question)
	return r.Replace(tmpl)
}
