package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of characters repeated between consecutive chunks.
	DefaultChunkOverlap = 50
)

// DefaultSeparators splits by paragraph, then line, then word, then character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text by a hierarchy of separators so that chunks stay
// within chunkSize characters, repeating up to overlap characters between
// neighbouring chunks of the same document.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures a RecursiveChunker.
type Option func(*RecursiveChunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *RecursiveChunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *RecursiveChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(c *RecursiveChunker) {
		if len(separators) > 0 {
			c.separators = append([]string(nil), separators...)
		}
	}
}

func NewRecursiveChunker(opts ...Option) *RecursiveChunker {
	c := &RecursiveChunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split chunks every document in order. Each chunk inherits a copy of its
// document's metadata plus its position within the document under "chunk".
func (c *RecursiveChunker) Split(documents []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range documents {
		for i, text := range c.SplitText(doc.Content) {
			meta := make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk"] = strconv.Itoa(i)
			chunks = append(chunks, domain.Chunk{
				Content:  text,
				Metadata: meta,
				Index:    len(chunks),
			})
		}
	}
	return chunks, nil
}

// SplitText splits a single text into chunk strings.
func (c *RecursiveChunker) SplitText(text string) []string {
	return c.split(text, c.separators)
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				final = append(final, t)
			}
			continue
		}
		final = append(final, c.split(piece, next)...)
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs small pieces into chunks of at most chunkSize characters,
// carrying a tail of at most overlap characters into the next chunk.
// Pieces already carry their leading separator, so they are joined directly.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.overlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep, attaching each separator to the start
// of the piece that follows it. An empty sep splits into characters.
func splitKeepSeparator(text, sep string) []string {
	var out []string
	if sep == "" {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
