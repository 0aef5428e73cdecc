package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity with the same identity is already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that a provider rejected our credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrNetwork indicates a transport-level failure (DNS, connection reset, timeout).
	ErrNetwork = errors.New("network failure")

	// ErrHTTPStatus indicates a non-success HTTP status from a provider.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrParse indicates a provider response that could not be decoded.
	ErrParse = errors.New("parse failure")

	// ErrEmptyResult indicates a well-formed response carrying no usable data.
	ErrEmptyResult = errors.New("empty result")

	// ErrBudgetExhausted indicates that a provider's daily request budget is spent.
	ErrBudgetExhausted = errors.New("request budget exhausted")

	// ErrProviderDisabled indicates that a provider is disabled by configuration.
	ErrProviderDisabled = errors.New("provider disabled")

	// ErrNoMethodSource indicates that nothing can tag a provider's references
	// with methods, so none of them could qualify.
	ErrNoMethodSource = errors.New("no method source for references")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError is an HTTP status failure returned by a provider.
// It matches ErrHTTPStatus, plus ErrUnauthorized, ErrRateLimited,
// ErrNotFound or ErrServiceUnavailable depending on the status code.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	URL        string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s API error (status %d, %s): %s", e.Source, e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// Is reports whether the status code falls into the class named by target.
func (e *ExternalAPIError) Is(target error) bool {
	switch target {
	case ErrHTTPStatus:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrServiceUnavailable:
		return e.StatusCode >= 500
	}
	return false
}

// NetworkError is a transport failure talking to a provider.
type NetworkError struct {
	Source string
	URL    string
	Cause  error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error (%s): %v", e.Source, e.URL, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// ParseError is a provider response that could not be decoded.
type ParseError struct {
	Source string
	URL    string
	Cause  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error (%s): %v", e.Source, e.URL, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, requestURL, message string) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		URL:        requestURL,
		Message:    message,
	}
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(source, requestURL string, cause error) *NetworkError {
	return &NetworkError{Source: source, URL: requestURL, Cause: cause}
}

// NewParseError creates a new ParseError.
func NewParseError(source, requestURL string, cause error) *ParseError {
	return &ParseError{Source: source, URL: requestURL, Cause: cause}
}

// IsProviderFatal reports whether err means no further request to the same
// provider can succeed during this preprint.
func IsProviderFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrBudgetExhausted) ||
		errors.Is(err, ErrProviderDisabled)
}

// ErrorKind classifies err into a short label used in summaries and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrBudgetExhausted):
		return "budget_exhausted"
	case errors.Is(err, ErrProviderDisabled):
		return "disabled"
	case errors.Is(err, ErrNoMethodSource):
		return "no_method_source"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "unknown"
	}
}
