// Package connect assembles a live provider client from a provider definition and its credentials.
package connect

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/provider"
)

// HandshakerFunc builds the authentication strategy for a provider reached at baseURL.
type HandshakerFunc func(baseURL string, httpClient *http.Client, store auth.TokenStore) (auth.Handshaker, error)

// Spec describes how to reach one provider.
type Spec struct {
	// BaseURL is the default API base URL.
	BaseURL string

	// Credential is the provider credential set.
	Credential auth.Credential

	// Definition describes the provider's endpoints and mapping.
	Definition provider.Definition

	// Handshaker builds the authentication strategy.
	Handshaker HandshakerFunc

	// Headers are sent with every API request.
	Headers map[string]string

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// Policy is the provider's pacing and retry policy.
	Policy executor.Policy

	// ProjectRef is the provider's project reference.
	ProjectRef string
}

// validate checks that all required Spec fields are set.
func (s *Spec) validate() error {
	var errs []error
	if s.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if s.Definition.ID == "" {
		errs = append(errs, errors.New("definition ID is required"))
	}
	if s.Handshaker == nil {
		errs = append(errs, errors.New("handshaker is required"))
	}
	if s.Mappings == nil {
		errs = append(errs, errors.New("mapping store is required"))
	}
	return errors.Join(errs...)
}

// New builds the session, executor and client for one provider.
func New(spec Spec, opts ...Option) (*provider.Client, error) {
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	baseURL := spec.BaseURL
	if o.baseURL != "" {
		baseURL = o.baseURL
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	policy := spec.Policy
	if o.policy != nil {
		policy = *o.policy
	}

	handshaker, err := spec.Handshaker(baseURL, httpClient, o.tokenStore)
	if err != nil {
		return nil, fmt.Errorf("creating handshaker: %w", err)
	}

	cred := spec.Credential
	cred.Provider = spec.Definition.ID

	logger := o.logger.With("provider", spec.Definition.ID)

	session, err := auth.NewSession(cred, handshaker, auth.WithSessionLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	execOpts := []executor.Option{
		executor.WithHTTPClient(httpClient),
		executor.WithLogger(logger),
		executor.WithPolicy(policy),
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Headers)) {
		execOpts = append(execOpts, executor.WithHeader(name, spec.Headers[name]))
	}
	if o.observer != nil {
		execOpts = append(execOpts, executor.WithObserver(o.observer))
	}

	exec, err := executor.New(executor.Config{
		Authorizer: session,
		BaseURL:    baseURL,
		Provider:   spec.Definition.ID,
	}, execOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating executor: %w", err)
	}

	clientOpts := []provider.Option{provider.WithLogger(o.logger)}
	if o.linker != nil {
		clientOpts = append(clientOpts, provider.WithLinker(o.linker))
	}
	if o.dryRun {
		clientOpts = append(clientOpts, provider.WithDryRun())
	}

	client, err := provider.NewClient(provider.Config{
		Definition: spec.Definition,
		Mappings:   spec.Mappings,
		ProjectRef: spec.ProjectRef,
		Requester:  exec,
		Session:    session,
	}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return client, nil
}
