package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("load: %w", NewError(KindEmptySource, "wikipedia source", nil))

	assert.True(t, errors.Is(err, ErrEmptySource))
	assert.False(t, errors.Is(err, ErrSourceUnavailable))
	assert.Equal(t, KindEmptySource, KindOf(err))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindModelUnavailable, "generation", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "generation")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not ready", ErrNotReady, "No source loaded yet. Load a PDF, website, Wikipedia topic or YouTube video first."},
		{"empty", NewError(KindEmptySource, "wikipedia source", nil), "The wikipedia source returned no content."},
		{"unavailable", Errorf(KindSourceUnavailable, "website source", "status %d", 404), "Could not load the website source: status 404"},
		{"index", Errorf(KindIndexBuildFailure, "indexing", "no chunks"), "Building the search index failed: no chunks"},
		{"model", Errorf(KindModelUnavailable, "generation", "timeout"), "The language model is unavailable: timeout"},
		{"plain", errors.New("boom"), "Something went wrong: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestParseSourceType(t *testing.T) {
	for in, want := range map[string]SourceType{
		"1": SourcePDF, "pdf": SourcePDF,
		"2": SourceWebsite, "Website": SourceWebsite,
		"3": SourceWikipedia, " wiki ": SourceWikipedia,
		"4": SourceYouTube, "youtube": SourceYouTube,
	} {
		got, err := ParseSourceType(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSourceType("5")
	assert.Error(t, err)
}
