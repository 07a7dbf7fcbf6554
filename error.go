package pagedcache

import (
	"errors"
	"fmt"
)

// ErrorKind classifies cache errors
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration_error"
	KindOrdering        ErrorKind = "ordering_error"
	KindOverfetch       ErrorKind = "overfetch_error"
	KindBackendFailure  ErrorKind = "backend_failure"
	KindIndexOutOfRange ErrorKind = "index_out_of_range"
)

// Sentinels for use with errors.Is
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrOrdering        = errors.New("backend delivered a non-contiguous page")
	ErrOverfetch       = errors.New("backend delivered more items than its declared total")
	ErrBackendFailure  = errors.New("backend failure")
	ErrIndexOutOfRange = errors.New("index out of range")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindOrdering:
		return ErrOrdering
	case KindOverfetch:
		return ErrOverfetch
	case KindBackendFailure:
		return ErrBackendFailure
	case KindIndexOutOfRange:
		return ErrIndexOutOfRange
	}
	return nil
}

// Error is returned by the cache or passed to FetchFailed hooks
type Error struct {
	Kind    ErrorKind
	Message string
	// Query is the query the error belongs to, nil for local errors
	Query *Query
	// Offset is the fetch offset, or the requested index for IndexOutOfRange
	Offset     int
	InnerError error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("%s: %s (inner: %v)", e.Kind, e.Message, e.InnerError)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the inner error
func (e *Error) Unwrap() error {
	return e.InnerError
}

// Is matches the sentinel of the error kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Fatal reports whether the error is a backend contract violation
func (e *Error) Fatal() bool {
	return e.Kind == KindOrdering || e.Kind == KindOverfetch
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: message,
		Offset:  -1,
	}
}

// NewIndexOutOfRange creates a new error for an unloaded or invalid index
func NewIndexOutOfRange(index, loaded int) *Error {
	return &Error{
		Kind:    KindIndexOutOfRange,
		Message: fmt.Sprintf("index %d outside loaded window of %d items", index, loaded),
		Offset:  index,
	}
}

// NewOrderingError creates a new error for a page delivered at the wrong offset
func NewOrderingError(q *Query, offset, expected int) *Error {
	return &Error{
		Kind:    KindOrdering,
		Message: fmt.Sprintf("page at offset %d, expected %d", offset, expected),
		Query:   q,
		Offset:  offset,
	}
}

// NewOverfetchError creates a new error for a page exceeding the declared total
func NewOverfetchError(q *Query, offset, count, total int) *Error {
	return &Error{
		Kind:    KindOverfetch,
		Message: fmt.Sprintf("%d items at offset %d exceed total %d", count, offset, total),
		Query:   q,
		Offset:  offset,
	}
}

// NewBackendFailure wraps an error returned by a backend
func NewBackendFailure(q *Query, offset int, inner error) *Error {
	return &Error{
		Kind:       KindBackendFailure,
		Message:    fmt.Sprintf("fetch at offset %d failed", offset),
		Query:      q,
		Offset:     offset,
		InnerError: inner,
	}
}

// AsError returns err as *Error, wrapping anything else as a backend failure.
// An *Error without a query is copied with q and offset filled in.
func AsError(q *Query, offset int, err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return NewBackendFailure(q, offset, err)
	}
	if e.Query == nil {
		scoped := *e
		scoped.Query = q
		scoped.Offset = offset
		return &scoped
	}
	return e
}
