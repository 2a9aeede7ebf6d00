package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures from the fetch pipeline.
type ErrorKind string

const (
	KindRateLimited      ErrorKind = "rate_limited"
	KindAuthRequired     ErrorKind = "auth_required"
	KindContentNotFound  ErrorKind = "content_not_found"
	KindResolutionFailed ErrorKind = "resolution_failed"
	KindTransferFailed   ErrorKind = "transfer_failed"
	KindExtractionFailed ErrorKind = "extraction_failed"
	KindFileNotProduced  ErrorKind = "file_not_produced"
	KindInvalidInput     ErrorKind = "invalid_input"
)

// Messages shown to users for the classified provider failures.
const (
	MsgRateLimited     = "Rate limited - please try again in a few minutes"
	MsgAuthRequired    = "This content requires login or is private"
	MsgContentNotFound = "Content not found or no longer available"
)

// MediaError is a failure normalized at a collaborator boundary.
type MediaError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *MediaError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// NewError builds a MediaError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *MediaError {
	return &MediaError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, message string) *MediaError {
	return &MediaError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a MediaError.
func KindOf(err error) ErrorKind {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
