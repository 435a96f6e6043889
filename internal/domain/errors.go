package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the load and answer pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	KindSourceUnavailable
	KindEmptySource
	KindIndexBuildFailure
	KindModelUnavailable
	KindNotReady
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindEmptySource:
		return "empty_source"
	case KindIndexBuildFailure:
		return "index_build_failure"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindNotReady:
		return "not_ready"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with its kind and the stage that failed.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrSourceUnavailable = &Error{Kind: KindSourceUnavailable}
	ErrEmptySource       = &Error{Kind: KindEmptySource}
	ErrIndexBuildFailure = &Error{Kind: KindIndexBuildFailure}
	ErrModelUnavailable  = &Error{Kind: KindModelUnavailable}
	ErrNotReady          = &Error{Kind: KindNotReady}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

// NewError wraps err with a kind and stage.
func NewError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Stage != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage renders err as one human-readable sentence naming the failed stage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong: " + err.Error()
	}
	stage := e.Stage
	if stage == "" {
		stage = "request"
	}
	switch e.Kind {
	case KindNotReady:
		return "No source loaded yet. Load a PDF, website, Wikipedia topic or YouTube video first."
	case KindEmptySource:
		return fmt.Sprintf("The %s returned no content.", stage)
	case KindSourceUnavailable:
		return fmt.Sprintf("Could not load the %s: %s", stage, causeOf(e))
	case KindIndexBuildFailure:
		return fmt.Sprintf("Building the search index failed: %s", causeOf(e))
	case KindModelUnavailable:
		return fmt.Sprintf("The language model is unavailable: %s", causeOf(e))
	case KindInvalidInput:
		return fmt.Sprintf("Invalid %s: %s", stage, causeOf(e))
	}
	return fmt.Sprintf("The %s failed: %s", stage, causeOf(e))
}

func causeOf(e *Error) string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}
