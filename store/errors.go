package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error categories returned by the store.
type Kind int

const (
	KindUnknown Kind = iota
	KindConflict
	KindNotFound
	KindForbidden
	KindMissingField
	KindUnexpectedType
	KindNonUnique
	KindInvalid
	KindTooManyResults
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindConflict:       "conflict",
	KindNotFound:       "not-found",
	KindForbidden:      "forbidden",
	KindMissingField:   "missing-field",
	KindUnexpectedType: "unexpected-object-type",
	KindNonUnique:      "non-unique",
	KindInvalid:        "invalid",
	KindTooManyResults: "too-many-results",
}

// String returns the category name used on the wire (e.g. "not-found").
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// StatusCode returns the default transport status code for the category.
func (k Kind) StatusCode() int {
	switch k {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindMissingField, KindUnexpectedType, KindNonUnique:
		return http.StatusBadRequest
	case KindInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ParseKind resolves a category name. Unrecognized names map to KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Error is the error type returned by every store operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "groundtruth: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// StatusCode returns the default transport status code for the error.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

var (
	// ErrConflict is returned when a presented revision does not match the stored one.
	ErrConflict = &Error{Kind: KindConflict, Message: "document update conflict"}

	// ErrNotFound is returned when a document doesn't exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "document not found"}

	// ErrForbidden is returned when a document belongs to another tenant.
	ErrForbidden = &Error{Kind: KindForbidden, Message: "document belongs to another tenant"}

	// ErrMissingField is returned when a required attribute is absent.
	ErrMissingField = &Error{Kind: KindMissingField, Message: "required field is missing"}

	// ErrUnexpectedType is returned when a fetched document has the wrong schema.
	ErrUnexpectedType = &Error{Kind: KindUnexpectedType, Message: "unexpected object type"}

	// ErrNonUnique is returned when a natural key is already taken in the tenant.
	ErrNonUnique = &Error{Kind: KindNonUnique, Message: "natural key is not unique"}

	// ErrInvalid is returned for malformed operands and patches.
	ErrInvalid = &Error{Kind: KindInvalid, Message: "invalid request"}

	// ErrTooManyResults is returned when a natural-key lookup matches more than one document.
	ErrTooManyResults = &Error{Kind: KindTooManyResults, Message: "too many results"}

	// ErrUnknown wraps unclassified failures of the underlying store.
	ErrUnknown = &Error{Kind: KindUnknown, Message: "unexpected store failure"}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError classifies err. Store errors pass through unchanged; anything else
// becomes KindUnknown with err as its cause.
func wrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindUnknown, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the category of err. Errors not produced by the store are KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// StatusCode returns the transport status code for err, 500 for unclassified errors.
func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}

// EmbeddedError is an error reported inside a procedure response rather than
// as a transport failure.
type EmbeddedError struct {
	Category string
	Code     int
	Reason   string
}

// toError converts an embedded error to a typed store error. The category
// wins; the code is only consulted when the category is not recognized.
func (e *EmbeddedError) toError() error {
	kind := ParseKind(e.Category)
	if kind == KindUnknown {
		kind = kindForStatus(e.Code)
	}
	return &Error{Kind: kind, Message: e.Reason}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusConflict:
		return KindConflict
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnprocessableEntity:
		return KindInvalid
	case http.StatusBadRequest:
		return KindInvalid
	default:
		return KindUnknown
	}
}
