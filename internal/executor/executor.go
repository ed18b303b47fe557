// Package executor issues authenticated, paced and retried HTTP requests to a single provider.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/peteski22/sitebridge/internal/apierr"
)

// maxErrorBody is the most response body kept in error messages.
const maxErrorBody = 4096

// Request outcomes reported to the Observer.
const (
	OutcomeAuthFailed   = "auth_failed"
	OutcomeRateLimited  = "rate_limited"
	OutcomeRequestError = "request_error"
	OutcomeSuccess      = "success"
	OutcomeTransient    = "transient"
)

// Authorizer supplies and refreshes the credentials attached to requests.
type Authorizer interface {
	// Authorize sets authentication headers on req.
	Authorize(req *http.Request)

	// EnsureValid reports whether a usable token is held, authenticating at most once.
	EnsureValid(ctx context.Context) bool

	// Invalidate marks the current token as expired.
	Invalidate()
}

// Observer receives the outcome of every Do call.
type Observer interface {
	// ObserveRequest records one completed request.
	ObserveRequest(provider string, outcome string, elapsed time.Duration)
}

// nopObserver discards observations.
type nopObserver struct{}

// ObserveRequest implements Observer.
func (nopObserver) ObserveRequest(string, string, time.Duration) {}

// Request describes one API call.
type Request struct {
	// Body is JSON-encoded as the request body when non-nil.
	Body any

	// Method is the HTTP method.
	Method string

	// Path is relative to the base URL, or an absolute URL used as-is.
	Path string

	// Query is merged into the request URL.
	Query url.Values
}

// Config holds the required configuration for creating an Executor.
type Config struct {
	// Authorizer supplies request credentials.
	Authorizer Authorizer

	// BaseURL is the provider API base URL.
	BaseURL string

	// Provider is the provider identifier used in errors and logs.
	Provider string
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Authorizer == nil {
		errs = append(errs, errors.New("authorizer is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	return errors.Join(errs...)
}

// Executor performs requests against one provider.
type Executor struct {
	// auth supplies request credentials.
	auth Authorizer

	// baseURL is the provider API base URL without a trailing slash.
	baseURL string

	// headers are sent with every request.
	headers http.Header

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// logger is the structured logger.
	logger *slog.Logger

	// observer receives request outcomes.
	observer Observer

	// policy is the pacing and retry policy.
	policy Policy

	// provider is the provider identifier.
	provider string

	// userAgent is the User-Agent header value.
	userAgent string
}

// New creates an Executor.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Executor{
		auth:       cfg.Authorizer,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    o.headers,
		httpClient: httpClient,
		logger:     o.logger,
		observer:   o.observer,
		policy:     o.policy,
		provider:   cfg.Provider,
		userAgent:  o.userAgent,
	}, nil
}

// Do executes req and returns the response payload. Errors are taxonomy errors from apierr or context errors.
func (e *Executor) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()

	payload, outcome, err := e.do(ctx, req)
	if outcome != "" {
		e.observer.ObserveRequest(e.provider, outcome, time.Since(start))
	}

	return payload, err
}

// do runs the attempt loop and returns the payload with its outcome.
func (e *Executor) do(ctx context.Context, req Request) (json.RawMessage, string, error) {
	if !e.auth.EnsureValid(ctx) {
		return nil, OutcomeAuthFailed, &apierr.AuthenticationError{Provider: e.provider, Reason: "no valid token"}
	}

	reqURL, err := e.resolve(req)
	if err != nil {
		return nil, "", fmt.Errorf("resolving request URL: %w", err)
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var (
		failures     int
		reauthed     bool
		lastStatus   int
		lastMessage  string
		lastErr      error
		lastWait     time.Duration
		rateLimited  bool
		maxAttempts  = e.policy.MaxRetries + 1
		methodAndURL = req.Method + " " + reqURL
	)

attempts:
	for {
		if err := e.policy.Sleep(ctx, e.policy.Pacing); err != nil {
			return nil, "", err
		}

		status, header, respBody, err := e.send(ctx, req.Method, reqURL, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}

			failures++
			lastStatus, lastMessage, lastErr, rateLimited = 0, err.Error(), err, false
			if failures >= maxAttempts {
				break attempts
			}

			wait := e.policy.backoff(failures)
			e.logger.Warn("request failed, retrying",
				"provider", e.provider,
				"request", methodAndURL,
				"attempt", failures,
				"backoff", wait,
				"error", err)
			if err := e.policy.Sleep(ctx, wait); err != nil {
				return nil, "", err
			}
			if err := e.revalidate(ctx); err != nil {
				return nil, OutcomeAuthFailed, err
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			if len(bytes.TrimSpace(respBody)) == 0 {
				return json.RawMessage("{}"), OutcomeSuccess, nil
			}
			return json.RawMessage(respBody), OutcomeSuccess, nil

		case status == http.StatusUnauthorized:
			if reauthed {
				return nil, OutcomeAuthFailed, &apierr.AuthenticationError{
					Provider: e.provider,
					Reason:   "request rejected after re-authentication",
				}
			}
			reauthed = true

			e.logger.Info("token rejected, re-authenticating", "provider", e.provider, "request", methodAndURL)
			e.auth.Invalidate()
			if !e.auth.EnsureValid(ctx) {
				return nil, OutcomeAuthFailed, &apierr.AuthenticationError{
					Provider: e.provider,
					Reason:   "re-authentication failed",
				}
			}
			continue

		case status == http.StatusTooManyRequests:
			failures++
			lastWait = retryAfter(header.Get("Retry-After"), e.policy.RetryAfterFallback)
			lastStatus, lastMessage, lastErr, rateLimited = status, truncate(respBody), nil, true
			if failures >= maxAttempts {
				break attempts
			}

			e.logger.Warn("rate limited, waiting",
				"provider", e.provider,
				"request", methodAndURL,
				"attempt", failures,
				"retry_after", lastWait)
			if err := e.policy.Sleep(ctx, lastWait); err != nil {
				return nil, "", err
			}
			if err := e.revalidate(ctx); err != nil {
				return nil, OutcomeAuthFailed, err
			}
			continue

		case status >= 500:
			failures++
			lastStatus, lastMessage, lastErr, rateLimited = status, truncate(respBody), nil, false
			if failures >= maxAttempts {
				break attempts
			}

			wait := e.policy.backoff(failures)
			e.logger.Warn("server error, retrying",
				"provider", e.provider,
				"request", methodAndURL,
				"status", status,
				"attempt", failures,
				"backoff", wait)
			if err := e.policy.Sleep(ctx, wait); err != nil {
				return nil, "", err
			}
			if err := e.revalidate(ctx); err != nil {
				return nil, OutcomeAuthFailed, err
			}
			continue

		default:
			return nil, OutcomeRequestError, &apierr.RequestError{
				Message:    truncate(respBody),
				Method:     req.Method,
				Path:       req.Path,
				Provider:   e.provider,
				StatusCode: status,
			}
		}
	}

	if rateLimited {
		return nil, OutcomeRateLimited, &apierr.RateLimitError{Provider: e.provider, RetryAfter: lastWait}
	}

	return nil, OutcomeTransient, &apierr.TransientError{
		Attempts:   failures,
		Err:        lastErr,
		Message:    lastMessage,
		Provider:   e.provider,
		StatusCode: lastStatus,
	}
}

// revalidate checks the token again after a retry wait.
func (e *Executor) revalidate(ctx context.Context) error {
	if e.auth.EnsureValid(ctx) {
		return nil
	}
	return &apierr.AuthenticationError{Provider: e.provider, Reason: "no valid token after retry wait"}
}

// resolve builds the absolute request URL.
func (e *Executor) resolve(req Request) (string, error) {
	raw := req.Path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = e.baseURL + "/" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for key, values := range req.Query {
			q[key] = values
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// send issues one HTTP call and returns the status, headers and body.
func (e *Executor) send(ctx context.Context, method string, reqURL string, body []byte) (int, http.Header, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}

	for key, values := range e.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	e.auth.Authorize(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, resp.Header, respBody, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

// truncate returns body as a string capped at maxErrorBody bytes.
func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
