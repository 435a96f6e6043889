package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"ragchat/internal/domain"
)

// Wikipedia loads the best matching article for a topic through the MediaWiki API.
type Wikipedia struct {
	client    *http.Client
	userAgent string
	lang      string
	endpoint  string
	maxDocs   int
}

func NewWikipedia(client *http.Client, userAgent, lang, endpoint string) *Wikipedia {
	if lang == "" {
		lang = "en"
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	return &Wikipedia{client: client, userAgent: userAgent, lang: lang, endpoint: endpoint, maxDocs: 1}
}

type wikiResponse struct {
	Query struct {
		Pages []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
			Index   int    `json:"index"`
			Missing bool   `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Load searches for req.Param and returns at most one article. A topic with no
// match yields no documents.
func (w *Wikipedia) Load(ctx context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	topic := strings.TrimSpace(req.Param)
	if topic == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("generator", "search")
	q.Set("gsrsearch", topic)
	q.Set("gsrlimit", fmt.Sprint(w.maxDocs))
	q.Set("prop", "extracts|info")
	q.Set("explaintext", "1")
	q.Set("exlimit", "max")
	q.Set("inprop", "url")
	q.Set("redirects", "1")

	resp, err := get(ctx, w.client, w.endpoint+"?"+q.Encode(), w.userAgent)
	if err != nil {
		return nil, unavailable(domain.SourceWikipedia, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, unavailablef(domain.SourceWikipedia, "search %q: %s", topic, resp.Status)
	}
	var out wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, unavailablef(domain.SourceWikipedia, "parse response: %w", err)
	}
	if out.Error != nil {
		return nil, unavailablef(domain.SourceWikipedia, "%s: %s", out.Error.Code, out.Error.Info)
	}

	pages := out.Query.Pages
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	var docs []domain.Document
	for _, p := range pages {
		if p.Missing || strings.TrimSpace(p.Extract) == "" {
			continue
		}
		source := p.FullURL
		if source == "" {
			source = fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", w.lang, url.PathEscape(strings.ReplaceAll(p.Title, " ", "_")))
		}
		docs = append(docs, domain.Document{
			Content: p.Extract,
			Metadata: map[string]string{
				"title":   p.Title,
				"summary": firstParagraph(p.Extract),
				"source":  source,
			},
		})
		if len(docs) == w.maxDocs {
			break
		}
	}
	return docs, nil
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

var _ domain.Loader = (*Wikipedia)(nil)
