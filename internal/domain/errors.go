package domain

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for the HTTP boundary and the session layer.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindUploadFailed     Kind = "upload_failed"
	KindGenerationFailed Kind = "generation_failed"
	KindSchemaValidation Kind = "schema_validation"
	KindTimeout          Kind = "timeout"
	KindUnexpected       Kind = "unexpected"
)

// Error is a categorized error. Message is stable and user-facing; Err, when
// set, carries the underlying cause for logs and non-production diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func ValidationErrorf(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func NotFoundErrorf(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func UploadFailedError(err error, format string, args ...any) *Error {
	return newError(KindUploadFailed, err, format, args...)
}

func GenerationFailedError(err error, format string, args ...any) *Error {
	return newError(KindGenerationFailed, err, format, args...)
}

func SchemaValidationError(err error, format string, args ...any) *Error {
	return newError(KindSchemaValidation, err, format, args...)
}

func TimeoutError(err error, format string, args ...any) *Error {
	return newError(KindTimeout, err, format, args...)
}

func UnexpectedError(err error, format string, args ...any) *Error {
	return newError(KindUnexpected, err, format, args...)
}

// KindOf reports the category of err, defaulting to KindUnexpected for
// anything uncategorized.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindUnexpected
}
