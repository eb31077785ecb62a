package product

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind classifies a pipeline error for callers that need to branch on
// failure class rather than message text.
type Kind string

// Error kinds surfaced by the pipeline.
const (
	KindInvalidURL         Kind = "invalid_url"
	KindNetwork            Kind = "network_error"
	KindTimeout            Kind = "timeout"
	KindRateLimited        Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindNotFoundUpstream   Kind = "not_found_upstream"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindValidationFailed   Kind = "validation_failed"
	KindExtractionNotFound Kind = "extraction_not_found"
)

// Error is a classified pipeline error. Every terminal error carries a
// human-readable suggestion and, where retrying can help, a RetryAfter hint.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error with the default suggestion and
// retry hint for its kind.
func NewError(kind Kind, message string, cause error) *Error {
	suggestion, retryAfter := adviceFor(kind)
	return &Error{
		Kind:       kind,
		Message:    message,
		Suggestion: suggestion,
		RetryAfter: retryAfter,
		Err:        cause,
	}
}

func adviceFor(kind Kind) (string, time.Duration) {
	switch kind {
	case KindInvalidURL:
		return "check that the URL is a complete http(s) product page link", 0
	case KindNetwork:
		return "the upstream site could not be reached; try again shortly", 30 * time.Second
	case KindTimeout:
		return "the upstream site responded too slowly; try again shortly", 30 * time.Second
	case KindRateLimited:
		return "the upstream site is rate limiting requests; wait before retrying", 300 * time.Second
	case KindServiceUnavailable:
		return "the upstream service is failing and has been paused; retry after the cooldown", 60 * time.Second
	case KindNotFoundUpstream:
		return "the product page no longer exists; verify the URL", 0
	case KindUnauthorized, KindForbidden:
		return "access was denied; retrying without different credentials will not help", 0
	case KindValidationFailed:
		return "the page yielded too little usable data to build a record", 0
	case KindExtractionNotFound:
		return "no dimensions could be found on the page", 0
	default:
		return "", 0
	}
}

// KindOf reports the Kind of err, or empty if err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ClassifyStatus maps an HTTP status code to a classified error, or nil
// for success codes.
func ClassifyStatus(code int, url string) *Error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return NewError(KindNotFoundUpstream, fmt.Sprintf("upstream returned %d for %s", code, url), nil)
	case code == http.StatusUnauthorized:
		return NewError(KindUnauthorized, fmt.Sprintf("upstream returned 401 for %s", url), nil)
	case code == http.StatusForbidden:
		return NewError(KindForbidden, fmt.Sprintf("upstream returned 403 for %s", url), nil)
	case code == http.StatusTooManyRequests:
		return NewError(KindRateLimited, fmt.Sprintf("upstream returned 429 for %s", url), nil)
	default:
		return NewError(KindNetwork, fmt.Sprintf("upstream returned %d for %s", code, url), nil)
	}
}

// ClassifyErr maps a transport-level error to a classified error.
// Timeouts are deliberately indistinguishable from connection failures
// for circuit breaker accounting, but keep their own kind for callers.
func ClassifyErr(err error, url string) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewError(KindTimeout, fmt.Sprintf("request to %s timed out", url), err)
	}
	return NewError(KindNetwork, fmt.Sprintf("request to %s failed", url), err)
}

// Retryable reports whether an error kind is worth another attempt.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	case "":
		// Unclassified transport errors are treated as transient.
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	default:
		return false
	}
}
