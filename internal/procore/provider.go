// Package procore defines the Procore provider: OAuth2 authorization, RFI, daily log and submittal endpoints.
package procore

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/connect"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
)

const (
	// AuthURL is the OAuth2 authorization endpoint.
	AuthURL = "https://login.procore.com/oauth/authorize"

	// BaseURL is the REST API base URL.
	BaseURL = "https://api.procore.com/rest/v1.0"

	// ID is the provider identifier.
	ID = "procore"

	// TokenURL is the OAuth2 token endpoint.
	TokenURL = "https://login.procore.com/oauth/token"

	// companyHeader scopes requests to one Procore company.
	companyHeader = "Procore-Company-Id"
)

// Config holds the required configuration for connecting to Procore.
type Config struct {
	// CompanyID is the Procore company the project belongs to.
	CompanyID string

	// Credential is the OAuth2 credential set.
	Credential auth.Credential

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// ProjectRef is the Procore project identifier.
	ProjectRef string
}

// Definition returns the Procore provider definition.
func Definition() provider.Definition {
	return provider.Definition{
		Endpoints: map[record.Type]provider.Endpoint{
			record.TypeDailyReport: {List: "/projects/{project}/daily_logs"},
			record.TypeRFI: {
				Create: "/projects/{project}/rfis",
				List:   "/projects/{project}/rfis",
				Update: "/projects/{project}/rfis/{id}",
			},
			record.TypeSubmittal: {List: "/projects/{project}/submittals"},
		},
		Export:      []record.Type{record.TypeRFI},
		ID:          ID,
		Import:      []record.Type{record.TypeRFI, record.TypeDailyReport, record.TypeSubmittal},
		Name:        "Procore",
		Pages:       provider.PageNumbers{PageParam: "page", PerPage: 100, PerPageParam: "per_page"},
		ProbePath:   "/me",
		SinceParam:  "filters[updated_at]",
		Transformer: Mapper{},
	}
}

// Policy returns the Procore pacing and retry policy.
func Policy() executor.Policy {
	p := executor.DefaultPolicy()
	p.Pacing = time.Second
	p.RetryAfterFallback = 60 * time.Second
	return p
}

// NewOAuth2 creates the Procore OAuth2 handshaker. Client credentials are sent in the form body.
func NewOAuth2(httpClient *http.Client, store auth.TokenStore) (*auth.OAuth2, error) {
	return auth.NewOAuth2(auth.OAuth2Config{
		AuthStyle:  oauth2.AuthStyleInParams,
		AuthURL:    AuthURL,
		HTTPClient: httpClient,
		TokenStore: store,
		TokenURL:   TokenURL,
	})
}

// New creates a Procore provider client.
func New(cfg Config, opts ...connect.Option) (*provider.Client, error) {
	spec := connect.Spec{
		BaseURL:    BaseURL,
		Credential: cfg.Credential,
		Definition: Definition(),
		Handshaker: func(_ string, httpClient *http.Client, store auth.TokenStore) (auth.Handshaker, error) {
			return NewOAuth2(httpClient, store)
		},
		Mappings:   cfg.Mappings,
		Policy:     Policy(),
		ProjectRef: cfg.ProjectRef,
	}
	if cfg.CompanyID != "" {
		spec.Headers = map[string]string{companyHeader: cfg.CompanyID}
	}

	return connect.New(spec, opts...)
}
