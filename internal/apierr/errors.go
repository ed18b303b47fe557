// Package apierr defines the error taxonomy shared by provider authentication, requests and mapping.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and reporting decisions.
type Kind int

const (
	// KindUnknown is any error outside the taxonomy.
	KindUnknown Kind = iota

	// KindAuthentication is a missing credential or a rejected handshake.
	KindAuthentication

	// KindRateLimit is an HTTP 429 that exhausted the retry budget.
	KindRateLimit

	// KindTransient is a 5xx or network failure that exhausted the retry budget.
	KindTransient

	// KindRequest is a non-retryable 4xx response.
	KindRequest

	// KindMapping is an unsupported record type for a provider.
	KindMapping

	// KindValidation is a record missing a provider-required field.
	KindValidation
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindRequest:
		return "request"
	case KindMapping:
		return "mapping"
	case KindValidation:
		return "validation"
	case KindUnknown:
		return "unknown"
	}
	return "unknown"
}

// AuthenticationError reports missing credentials or a provider rejecting the handshake.
type AuthenticationError struct {
	// Err is the underlying cause.
	Err error

	// Provider is the provider identifier.
	Provider string

	// Reason describes the failure.
	Reason string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RateLimitError reports a provider that kept answering 429 until the retry budget ran out.
type RateLimitError struct {
	// Provider is the provider identifier.
	Provider string

	// RetryAfter is the last wait the provider asked for.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %s)", e.Provider, e.RetryAfter)
}

// TransientError reports a 5xx or network failure that persisted through every retry.
type TransientError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last network error, if the last attempt did not get a response.
	Err error

	// Message is the last response body or error text.
	Message string

	// Provider is the provider identifier.
	Provider string

	// StatusCode is the last HTTP status observed, or zero for network errors.
	StatusCode int
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed after %d attempts: %s", e.Provider, e.Attempts, e.Message)
	}
	return fmt.Sprintf("%s: request failed after %d attempts with status %d: %s",
		e.Provider, e.Attempts, e.StatusCode, e.Message)
}

// Unwrap returns the last network error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// RequestError reports a 4xx response that is not retried.
type RequestError struct {
	// Message is the response body.
	Message string

	// Method is the HTTP method.
	Method string

	// Path is the request path.
	Path string

	// Provider is the provider identifier.
	Provider string

	// StatusCode is the HTTP status.
	StatusCode int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s %s: unexpected status %d: %s", e.Provider, e.Method, e.Path, e.StatusCode, e.Message)
}

// MappingError reports a record type a provider has no mapping for.
type MappingError struct {
	// Provider is the provider identifier.
	Provider string

	// RecordType is the unmapped record type.
	RecordType string
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: no mapping for record type %q", e.Provider, e.RecordType)
}

// ValidationError reports a record missing fields the provider requires.
type ValidationError struct {
	// Fields lists the missing or empty fields.
	Fields []string

	// Provider is the provider identifier.
	Provider string

	// RecordID is the internal record identifier.
	RecordID string

	// RecordType is the record type.
	RecordType string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s missing required fields %v", e.Provider, e.RecordType, e.RecordID, e.Fields)
}

// KindOf classifies err by walking its chain.
func KindOf(err error) Kind {
	var (
		authErr       *AuthenticationError
		rateErr       *RateLimitError
		transientErr  *TransientError
		requestErr    *RequestError
		mappingErr    *MappingError
		validationErr *ValidationError
	)

	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &transientErr):
		return KindTransient
	case errors.As(err, &requestErr):
		return KindRequest
	case errors.As(err, &mappingErr):
		return KindMapping
	case errors.As(err, &validationErr):
		return KindValidation
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether err is a RequestError with status 404.
func IsNotFound(err error) bool {
	var requestErr *RequestError
	return errors.As(err, &requestErr) && requestErr.StatusCode == 404
}
