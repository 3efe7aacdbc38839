package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure
type Kind int

const (
	KindTransport Kind = iota // Network failure or non-retryable HTTP status
	KindRateLimit             // HTTP 429; the call may succeed after backing off
	KindResponse              // Reply arrived but was empty or undecodable
)

// String returns a readable name for logs and metrics
func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindResponse:
		return "response"
	default:
		return "transport"
	}
}

// Error is returned by every backend call
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a backend error. Errors that did not come from
// a backend are reported as transport failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// IsRateLimit reports whether err is a rate-limit rejection
func IsRateLimit(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRateLimit
}

func statusError(provider string, status int, err error) *Error {
	kind := KindTransport
	if status == http.StatusTooManyRequests {
		kind = KindRateLimit
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

func transportError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransport, Err: err}
}

func responseError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindResponse, Err: err}
}
