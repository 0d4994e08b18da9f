package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrEmptyCollection = errors.New("empty collection")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidPayload  = errors.New("invalid payload")
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindMissingField    ErrorKind = "MISSING_FIELD"
	KindTypeMismatch    ErrorKind = "TYPE_MISMATCH"
	KindEmptyCollection ErrorKind = "EMPTY_COLLECTION"
	KindUnknownField    ErrorKind = "UNKNOWN_FIELD"
	KindInvalidPayload  ErrorKind = "INVALID_PAYLOAD"
)

// NoIndex marks errors that do not belong to an array element.
const NoIndex = -1

// FieldError is a single validation failure.
type FieldError struct {
	Schema   string
	Kind     ErrorKind
	Field    string
	Index    int
	Expected string
	Actual   string
}

func (e *FieldError) location() string {
	var b strings.Builder
	b.WriteString(e.Schema)
	if e.Index != NoIndex {
		fmt.Fprintf(&b, "[%d]", e.Index)
	}
	if e.Field != "" {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(e.Field)
	}
	return b.String()
}

func (e *FieldError) Error() string {
	loc := e.location()
	var msg string
	switch e.Kind {
	case KindMissingField:
		msg = "missing required field"
	case KindTypeMismatch:
		msg = fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
	case KindEmptyCollection:
		msg = "empty collection, nothing to validate"
	case KindUnknownField:
		msg = "unknown field"
	case KindInvalidPayload:
		msg = "payload is not valid JSON"
		if e.Actual != "" {
			msg += ": " + e.Actual
		}
	default:
		msg = string(e.Kind)
	}
	if loc == "" {
		return msg
	}
	return loc + ": " + msg
}

func (e *FieldError) Unwrap() error {
	switch e.Kind {
	case KindMissingField:
		return ErrMissingField
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindEmptyCollection:
		return ErrEmptyCollection
	case KindUnknownField:
		return ErrUnknownField
	case KindInvalidPayload:
		return ErrInvalidPayload
	}
	return nil
}
