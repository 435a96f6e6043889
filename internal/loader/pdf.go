package loader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragchat/internal/domain"
)

// PDF loads a PDF into one document per page.
type PDF struct {
	tempDir string
}

// NewPDF creates a PDF loader that spools uploads into tempDir.
func NewPDF(tempDir string) *PDF { return &PDF{tempDir: tempDir} }

// Load parses req.Data when present, otherwise the file at req.Param.
func (p *PDF) Load(ctx context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	if req.Data != nil {
		return p.LoadReader(ctx, req.Data, req.Name)
	}
	path := strings.TrimSpace(req.Param)
	if path == "" {
		return nil, nil
	}
	return p.LoadFile(ctx, path)
}

// LoadReader writes r to a temporary file, parses it and removes the file on
// every exit path. Empty input yields no documents.
func (p *PDF) LoadReader(ctx context.Context, r io.Reader, name string) ([]domain.Document, error) {
	tmp, err := os.CreateTemp(p.tempDir, "ragchat-*.pdf")
	if err != nil {
		return nil, unavailablef(domain.SourcePDF, "create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, unavailablef(domain.SourcePDF, "save upload: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	if name == "" {
		name = "upload.pdf"
	}
	return readPDF(ctx, tmp.Name(), name)
}

// LoadFile parses the PDF at path.
func (p *PDF) LoadFile(ctx context.Context, path string) ([]domain.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, unavailable(domain.SourcePDF, err)
	}
	return readPDF(ctx, path, path)
}

func readPDF(ctx context.Context, path, source string) (docs []domain.Document, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = unavailablef(domain.SourcePDF, "parse %s: %v", filepath.Base(source), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, unavailablef(domain.SourcePDF, "open %s: %w", filepath.Base(source), err)
	}
	defer f.Close()

	total := r.NumPage()
	docs = make([]domain.Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, unavailable(domain.SourcePDF, err)
		}
		text := ""
		page := r.Page(i)
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, unavailablef(domain.SourcePDF, "page %d: %w", i, err)
			}
		}
		docs = append(docs, domain.Document{
			Content: text,
			Metadata: map[string]string{
				"source":      source,
				"page":        strconv.Itoa(i - 1),
				"total_pages": strconv.Itoa(total),
			},
		})
	}
	return docs, nil
}

var _ domain.Loader = (*PDF)(nil)
