// Package apperr defines the failure taxonomy shared by every pipeline stage.
//
// Each stage reports failures as *Error values tagged with a Kind. Callers
// match on the kind with errors.Is against the sentinel values below and reach
// the underlying cause through errors.Unwrap / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindConfiguration Kind = "CONFIGURATION_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindExtraction    Kind = "EXTRACTION_ERROR"
	KindUpstream      Kind = "UPSTREAM_ERROR"
	KindValidation    Kind = "VALIDATION_ERROR"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrExtraction    = &Error{Kind: KindExtraction}
	ErrUpstream      = &Error{Kind: KindUpstream}
	ErrValidation    = &Error{Kind: KindValidation}
)

// ErrNothingExtracted is returned when the intermediate text file of a
// document does not exist. It is the one read path that degrades instead of
// failing; callers decide whether an absent extraction is fatal.
var ErrNothingExtracted = errors.New("nothing extracted")

// Error is a classified pipeline failure.
type Error struct {
	Kind     Kind
	Resource string // file path, template name, model name...
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(" (%s)", e.Resource)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error.
func New(kind Kind, resource, message string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Resource: resource,
		Message:  message,
		Cause:    cause,
	}
}

func Configuration(message string) *Error {
	return New(KindConfiguration, "", message, nil)
}

func NotFound(resource, message string) *Error {
	return New(KindNotFound, resource, message, nil)
}

func Extraction(resource string, cause error) *Error {
	return New(KindExtraction, resource, "failed to extract text", cause)
}

func Upstream(resource string, cause error) *Error {
	return New(KindUpstream, resource, "model call failed", cause)
}

func Validation(message string, cause error) *Error {
	return New(KindValidation, "", message, cause)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
