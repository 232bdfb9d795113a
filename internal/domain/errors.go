package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSessionUnavailable is returned when the browser could not be launched or logged in
	ErrSessionUnavailable = errors.New("browser session unavailable")

	// ErrElementNotFound is returned when no selector candidate resolved for a required field
	ErrElementNotFound = errors.New("element not found")

	// ErrValueRejected is returned when a filled value did not read back unchanged
	ErrValueRejected = errors.New("value rejected by partner form")

	// ErrExtractionEmpty is returned when the results panel yielded no parseable rows
	ErrExtractionEmpty = errors.New("no shipping options extracted")

	// ErrTimeout is returned when a bounded wait exceeded its budget
	ErrTimeout = errors.New("timed out waiting for partner")

	// ErrInvalidSpecification is returned when the order specification fails validation
	ErrInvalidSpecification = errors.New("invalid order specification")

	// ErrPartnerUnknown is returned when no partner is registered under the requested id
	ErrPartnerUnknown = errors.New("unknown partner")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInternal covers automation failures that fit no other kind
	ErrInternal = errors.New("internal error")
)

// ErrorKind classifies a quote failure for the caller.
type ErrorKind string

const (
	KindSessionUnavailable   ErrorKind = "SessionUnavailable"
	KindElementNotFound      ErrorKind = "ElementNotFound"
	KindValueRejected        ErrorKind = "ValueRejected"
	KindExtractionEmpty      ErrorKind = "ExtractionEmpty"
	KindTimeout              ErrorKind = "Timeout"
	KindInvalidSpecification ErrorKind = "InvalidSpecification"
	KindPartnerUnknown       ErrorKind = "PartnerUnknown"
	KindInternal             ErrorKind = "Internal"
)

var kindSentinels = map[ErrorKind]error{
	KindSessionUnavailable:   ErrSessionUnavailable,
	KindElementNotFound:      ErrElementNotFound,
	KindValueRejected:        ErrValueRejected,
	KindExtractionEmpty:      ErrExtractionEmpty,
	KindTimeout:              ErrTimeout,
	KindInvalidSpecification: ErrInvalidSpecification,
	KindPartnerUnknown:       ErrPartnerUnknown,
	KindInternal:             ErrInternal,
}

// kindOrder is the lookup order used when classifying a wrapped error.
// Timeout comes first so a deadline hit while resolving an element is
// reported as slowness rather than absence.
var kindOrder = []ErrorKind{
	KindTimeout,
	KindInvalidSpecification,
	KindPartnerUnknown,
	KindSessionUnavailable,
	KindValueRejected,
	KindElementNotFound,
	KindExtractionEmpty,
}

// QuoteError is the structured descriptor carried in QuoteResult.Errors.
type QuoteError struct {
	Kind    ErrorKind `json:"kind"`
	State   string    `json:"state,omitempty"`
	Message string    `json:"message"`
}

func (e *QuoteError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s in %s: %s", e.Kind, e.State, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the sentinel for the error kind so errors.Is works on descriptors.
func (e *QuoteError) Unwrap() error {
	if s, ok := kindSentinels[e.Kind]; ok {
		return s
	}
	return ErrInternal
}

// NewQuoteError creates a descriptor of the given kind
func NewQuoteError(kind ErrorKind, state, format string, args ...interface{}) *QuoteError {
	return &QuoteError{Kind: kind, State: state, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies an arbitrary error into an ErrorKind.
func KindOf(err error) ErrorKind {
	var qerr *QuoteError
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	for _, kind := range kindOrder {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return KindInternal
}

// AsQuoteError converts err into a descriptor, tagging it with state when
// the error does not already carry one.
func AsQuoteError(err error, state string) *QuoteError {
	if err == nil {
		return nil
	}
	var qerr *QuoteError
	if errors.As(err, &qerr) {
		out := *qerr
		if out.State == "" {
			out.State = state
		}
		return &out
	}
	return &QuoteError{Kind: KindOf(err), State: state, Message: err.Error()}
}
