package executor

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Option configures optional Executor settings.
type Option func(*options) error

// options holds optional configuration for creating an Executor.
type options struct {
	// headers are sent with every request.
	headers http.Header

	// httpClient is a custom HTTP client.
	httpClient *http.Client

	// logger is the structured logger.
	logger *slog.Logger

	// observer receives request outcomes.
	observer Observer

	// policy is the pacing and retry policy.
	policy Policy

	// timeout is the HTTP client timeout.
	timeout time.Duration

	// userAgent is the User-Agent header value.
	userAgent string
}

// WithHeader adds a header sent with every request.
func WithHeader(key string, value string) Option {
	return func(o *options) error {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("header name cannot be empty")
		}
		o.headers.Set(key, value)
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) error {
		if httpClient == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		o.httpClient = httpClient
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithObserver sets the request outcome observer.
func WithObserver(observer Observer) Option {
	return func(o *options) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		o.observer = observer
		return nil
	}
}

// WithPolicy sets the pacing and retry policy. A nil Sleep uses SleepContext.
func WithPolicy(policy Policy) Option {
	return func(o *options) error {
		if err := policy.validate(); err != nil {
			return fmt.Errorf("invalid policy: %w", err)
		}
		if policy.Sleep == nil {
			policy.Sleep = SleepContext
		}
		o.policy = policy
		return nil
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(o *options) error {
		o.userAgent = userAgent
		return nil
	}
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *options {
	return &options{
		headers:   http.Header{},
		logger:    slog.Default(),
		observer:  nopObserver{},
		policy:    DefaultPolicy(),
		timeout:   30 * time.Second,
		userAgent: "sitebridge/1.0",
	}
}
