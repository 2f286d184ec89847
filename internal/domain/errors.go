package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a request stopped.
type Kind string

const (
	KindInvalidAudio        Kind = "invalid_audio"
	KindInvalidInput        Kind = "invalid_input"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindNoMatch             Kind = "no_match"
	KindUnknownEntity       Kind = "unknown_entity"
	KindIncompleteIntent    Kind = "incomplete_intent"
	KindBackendCallFailed   Kind = "backend_call_failed"
	KindDeliveryFailed      Kind = "delivery_failed"
	KindInternal            Kind = "internal_error"
)

// HTTPStatus maps a kind to the status code returned to the caller.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNoMatch, KindDeliveryFailed:
		return http.StatusOK
	case KindInvalidAudio, KindInvalidInput, KindUnknownEntity, KindIncompleteIntent:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline failure. Message is safe to show to the
// caller; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ErrNoResult is returned by a transcription provider that produced no text.
var ErrNoResult = errors.New("no transcription result")
