package domain

import (
	"fmt"
	"strings"
)

// SourceType selects one of the supported document sources.
type SourceType int

const (
	SourceUnknown SourceType = iota
	SourcePDF
	SourceWebsite
	SourceWikipedia
	SourceYouTube
)

// SourceTypes lists the selectable sources in menu order.
var SourceTypes = []SourceType{SourcePDF, SourceWebsite, SourceWikipedia, SourceYouTube}

func (t SourceType) String() string {
	switch t {
	case SourcePDF:
		return "pdf"
	case SourceWebsite:
		return "website"
	case SourceWikipedia:
		return "wikipedia"
	case SourceYouTube:
		return "youtube"
	default:
		return "unknown"
	}
}

// Label is the human-readable name shown in menus.
func (t SourceType) Label() string {
	switch t {
	case SourcePDF:
		return "PDF"
	case SourceWebsite:
		return "Website"
	case SourceWikipedia:
		return "Wikipedia"
	case SourceYouTube:
		return "YouTube"
	default:
		return "Unknown"
	}
}

// Prompt describes the parameter expected for the source.
func (t SourceType) Prompt() string {
	switch t {
	case SourcePDF:
		return "PDF file path"
	case SourceWebsite:
		return "website URL"
	case SourceWikipedia:
		return "Wikipedia topic"
	case SourceYouTube:
		return "YouTube URL"
	default:
		return "parameter"
	}
}

// ParseSourceType accepts a source name ("pdf", "wiki", ...) or a menu number "1".."4".
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "pdf":
		return SourcePDF, nil
	case "2", "web", "website", "url":
		return SourceWebsite, nil
	case "3", "wiki", "wikipedia":
		return SourceWikipedia, nil
	case "4", "youtube", "yt":
		return SourceYouTube, nil
	}
	return SourceUnknown, fmt.Errorf("unknown source type %q", s)
}
