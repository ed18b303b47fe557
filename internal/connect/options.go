package connect

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/provider"
)

// Option configures optional provider settings.
type Option func(*options) error

// options holds optional configuration for connecting a provider.
type options struct {
	// baseURL overrides the provider's API base URL.
	baseURL string

	// dryRun logs mapping and link writes instead of performing them.
	dryRun bool

	// httpClient is a custom HTTP client shared by the executor and the handshaker.
	httpClient *http.Client

	// linker is told about newly exported records.
	linker provider.Linker

	// logger is the structured logger.
	logger *slog.Logger

	// observer receives request outcomes.
	observer executor.Observer

	// policy overrides the provider's pacing and retry policy.
	policy *executor.Policy

	// timeout is the HTTP client timeout.
	timeout time.Duration

	// tokenStore persists refresh tokens for OAuth2 providers.
	tokenStore auth.TokenStore
}

// WithBaseURL sets a custom base URL for the provider API.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return errors.New("base URL cannot be empty")
		}
		o.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithDryRun logs external mapping writes instead of storing them.
func WithDryRun() Option {
	return func(o *options) error {
		o.dryRun = true
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) error {
		if httpClient == nil {
			return errors.New("HTTP client cannot be nil")
		}
		o.httpClient = httpClient
		return nil
	}
}

// WithLinker sets the collaborator told about newly exported records.
func WithLinker(linker provider.Linker) Option {
	return func(o *options) error {
		if linker == nil {
			return errors.New("linker cannot be nil")
		}
		o.linker = linker
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithObserver sets the receiver of request outcomes.
func WithObserver(observer executor.Observer) Option {
	return func(o *options) error {
		if observer == nil {
			return errors.New("observer cannot be nil")
		}
		o.observer = observer
		return nil
	}
}

// WithPolicy replaces the provider's pacing and retry policy.
func WithPolicy(policy executor.Policy) Option {
	return func(o *options) error {
		o.policy = &policy
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

// WithTokenStore sets where OAuth2 refresh tokens are read from and rotated into.
func WithTokenStore(store auth.TokenStore) Option {
	return func(o *options) error {
		if store == nil {
			return errors.New("token store cannot be nil")
		}
		o.tokenStore = store
		return nil
	}
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *options {
	return &options{
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
}
