package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/textutil"
)

const defaultYouTubeBaseURL = "https://www.youtube.com"

// YouTube loads the caption transcript of a video as a single document.
type YouTube struct {
	client    *http.Client
	userAgent string
	baseURL   string
	languages []string
}

func NewYouTube(client *http.Client, userAgent, baseURL string, languages []string) *YouTube {
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &YouTube{
		client:    client,
		userAgent: userAgent,
		baseURL:   strings.TrimRight(baseURL, "/"),
		languages: languages,
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoID extracts the 11 character video id from a watch, short, embed or
// youtu.be URL. A bare id is accepted as well.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%q is not a YouTube URL", raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "embed", "shorts", "live", "v":
				id = parts[1]
			}
		}
	default:
		return "", fmt.Errorf("%q is not a YouTube URL", raw)
	}
	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

// Load resolves the video in req.Param and downloads its transcript.
func (y *YouTube) Load(ctx context.Context, req domain.LoadRequest) ([]domain.Document, error) {
	if strings.TrimSpace(req.Param) == "" {
		return nil, nil
	}
	id, err := VideoID(req.Param)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, stageFor(domain.SourceYouTube), err)
	}

	page, err := y.fetch(ctx, y.baseURL+"/watch?v="+id)
	if err != nil {
		return nil, err
	}
	tracks, err := captionTracks(page)
	if err != nil {
		return nil, unavailablef(domain.SourceYouTube, "video %s: %w", id, err)
	}
	track, ok := pickTrack(tracks, y.languages)
	if !ok {
		return nil, unavailablef(domain.SourceYouTube, "video %s has no transcript", id)
	}

	trackURL := track.BaseURL
	if strings.HasPrefix(trackURL, "/") {
		trackURL = y.baseURL + trackURL
	}
	raw, err := y.fetch(ctx, trackURL)
	if err != nil {
		return nil, err
	}
	var tt timedText
	if err := xml.Unmarshal(raw, &tt); err != nil {
		return nil, unavailablef(domain.SourceYouTube, "parse transcript: %w", err)
	}
	parts := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		if s := textutil.CollapseWhitespace(html.UnescapeString(t.Body)); s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return nil, nil
	}
	return []domain.Document{{
		Content: text,
		Metadata: map[string]string{
			"source":   id,
			"language": track.LanguageCode,
		},
	}}, nil
}

func (y *YouTube) fetch(ctx context.Context, u string) ([]byte, error) {
	resp, err := get(ctx, y.client, u, y.userAgent)
	if err != nil {
		return nil, unavailable(domain.SourceYouTube, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, unavailablef(domain.SourceYouTube, "GET %s: %s", u, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(domain.SourceYouTube, err)
	}
	return body, nil
}

var captionMarker = []byte(`"captionTracks":`)

func captionTracks(page []byte) ([]captionTrack, error) {
	i := bytes.Index(page, captionMarker)
	if i < 0 {
		return nil, fmt.Errorf("captions are disabled")
	}
	var tracks []captionTrack
	dec := json.NewDecoder(bytes.NewReader(page[i+len(captionMarker):]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	return tracks, nil
}

// pickTrack prefers a manual track in the first matching language, then a
// generated one, then whatever track comes first.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range tracks {
				if (t.Kind == "asr") == generated && strings.EqualFold(t.LanguageCode, lang) {
					return t, true
				}
			}
		}
	}
	return tracks[0], true
}

var _ domain.Loader = (*YouTube)(nil)
