package loader

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"ragchat/internal/domain"
	"ragchat/internal/textutil"
)

// Web fetches one page and extracts its visible text as a single document.
type Web struct {
	client    *http.Client
	userAgent string
}

func NewWeb(client *http.Client, userAgent string) *Web {
	return &Web{client: client, userAgent: userAgent}
}

const blockSelectors = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, section, article, header, footer, blockquote, pre"

// Load fetches req.Param. Pages without visible text yield no documents.
func (w *Web) Load(ctx context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	raw := strings.TrimSpace(req.Param)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, stageFor(domain.SourceWebsite), "%q is not an http(s) URL", raw)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, unavailable(domain.SourceWebsite, err)
	}
	hreq.Header.Set("User-Agent", w.userAgent)
	hreq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	hreq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// setting Accept-Encoding turns off transparent gzip, decodeBody handles both
	hreq.Header.Set("Accept-Encoding", "gzip, br")
	resp, err := w.client.Do(hreq)
	if err != nil {
		return nil, unavailable(domain.SourceWebsite, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, unavailablef(domain.SourceWebsite, "GET %s: %s", u, resp.Status)
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, unavailablef(domain.SourceWebsite, "decompress %s: %w", u, err)
	}
	defer decoded.Close()
	body, err := charset.NewReader(decoded, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, unavailablef(domain.SourceWebsite, "decode %s: %w", u, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, unavailablef(domain.SourceWebsite, "parse %s: %w", u, err)
	}

	meta := map[string]string{"source": u.String()}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		meta["description"] = strings.TrimSpace(desc)
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}

	doc.Find("script, style, noscript, template, head").Remove()
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	text := textutil.CollapseWhitespace(root.Text())
	if text == "" {
		return nil, nil
	}
	return []domain.Document{{Content: text, Metadata: meta}}, nil
}

// decodeBody unwraps the response content encoding. Closing the result does
// not close resp.Body.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return io.NopCloser(resp.Body), nil
	}
}

var _ domain.Loader = (*Web)(nil)
