package types

import (
	"errors"
	"fmt"
)

// ErrorKind tags a failure with its handling policy. Kinds map onto the
// surfaces callers care about: validation and not_found surface directly,
// transient_io is retried locally, write_through_failure is logged and
// swallowed.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindDepthExceeded       ErrorKind = "depth_exceeded"
	KindPathTraversal       ErrorKind = "path_traversal"
	KindIntegrity           ErrorKind = "integrity"
	KindTransientIO         ErrorKind = "transient_io"
	KindCacheDrift          ErrorKind = "cache_drift"
	KindWriteThroughFailure ErrorKind = "write_through_failure"
	KindTelemetryFailure    ErrorKind = "telemetry_failure"
)

// Error is a tagged failure. Op names the operation that failed
// ("hashing.HashPath"), Detail is a short machine-friendly token
// ("missing_path") and Err the wrapped cause, both optional.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error with a formatted message.
func NewError(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NewDetailError builds a tagged error carrying a machine-friendly detail token.
func NewDetailError(kind ErrorKind, op, detail, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Msg: fmt.Sprintf(format, args...)}
}

// WrapError tags an underlying error without losing the chain.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err or any error it wraps.
// Untagged errors report an empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// DetailOf extracts the detail token from err, empty when untagged.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
