package domain

import (
	"errors"
	"strings"
)

// Kinds of codec failure. A *FormatError matches exactly one of them with errors.Is.
var (
	ErrParseFailure         = errors.New("parse failure")
	ErrMissingField         = errors.New("missing field")
	ErrInsufficientVertices = errors.New("insufficient vertices")
	ErrUnsupportedVariant   = errors.New("unsupported variant")
)

var (
	ErrNoPolygon         = errors.New("No polygon to export")
	ErrUnknownFormat     = errors.New("unknown format")
	ErrExportUnsupported = errors.New("export not supported for format")
	ErrNotFound          = errors.New("not found")
	ErrValidationFailed  = errors.New("polygon failed validation")
	ErrInvalidSession    = errors.New("invalid session id")
	// ErrRevisionConflict means the session moved on since the caller read it.
	ErrRevisionConflict = errors.New("revision conflict")
)

// FormatError reports why a payload could not be decoded.
type FormatError struct {
	Format Format
	Kind   error
	Detail string
	Err    error
}

// NewFormatError builds a FormatError of the given kind.
func NewFormatError(f Format, kind error, detail string) *FormatError {
	return &FormatError{Format: f, Kind: kind, Detail: detail}
}

// WrapFormatError builds a FormatError that keeps the underlying cause.
func WrapFormatError(f Format, kind error, detail string, err error) *FormatError {
	return &FormatError{Format: f, Kind: kind, Detail: detail, Err: err}
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Format))
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindSlug returns the snake_case name of a FormatError kind, used in API error codes.
func KindSlug(kind error) string {
	switch kind {
	case ErrParseFailure:
		return "parse_failure"
	case ErrMissingField:
		return "missing_field"
	case ErrInsufficientVertices:
		return "insufficient_vertices"
	case ErrUnsupportedVariant:
		return "unsupported_variant"
	}
	return "format_error"
}
