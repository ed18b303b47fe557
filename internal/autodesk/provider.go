// Package autodesk defines the Autodesk Construction Cloud provider: three-legged OAuth2, issues and RFIs.
package autodesk

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
	AuthURL = "https://developer.api.autodesk.com/authentication/v2/authorize"

	// BaseURL is the Autodesk Platform Services base URL.
	BaseURL = "https://developer.api.autodesk.com"

	// ID is the provider identifier.
	ID = "autodesk"

	// TokenURL is the OAuth2 token endpoint.
	TokenURL = "https://developer.api.autodesk.com/authentication/v2/token"
)

// Scopes are requested during authorization.
var Scopes = []string{"data:read", "data:write", "data:create", "account:read", "user:read"}

// Config holds the required configuration for connecting to Autodesk.
type Config struct {
	// Credential is the OAuth2 credential set.
	Credential auth.Credential

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// ProjectRef is the issues and RFIs container id of the project.
	ProjectRef string
}

// Definition returns the Autodesk provider definition.
func Definition() provider.Definition {
	return provider.Definition{
		Endpoints: map[record.Type]provider.Endpoint{
			record.TypeIssue: {
				Create: "/construction/issues/v1/containers/{project}/issues",
				List:   "/construction/issues/v1/containers/{project}/issues",
				Update: "/construction/issues/v1/containers/{project}/issues/{id}",
			},
			record.TypeRFI: {
				Create: "/construction/rfis/v1/containers/{project}/rfis",
				List:   "/construction/rfis/v1/containers/{project}/rfis",
				Update: "/construction/rfis/v1/containers/{project}/rfis/{id}",
			},
		},
		Export: []record.Type{record.TypeIssue, record.TypeRFI},
		ID:     ID,
		Import: []record.Type{record.TypeIssue, record.TypeRFI},
		Name:   "Autodesk Construction Cloud",
		Pages: provider.Offset{
			ItemsKey:      "results",
			Limit:         100,
			LimitParam:    "limit",
			OffsetParam:   "offset",
			PaginationKey: "pagination",
			TotalKey:      "totalResults",
		},
		ProbePath:   "/project/v1/hubs",
		SinceParam:  "filter[updatedAt]",
		Transformer: Mapper{},
	}
}

// Policy returns the Autodesk pacing and retry policy.
func Policy() executor.Policy {
	p := executor.DefaultPolicy()
	p.Pacing = 500 * time.Millisecond
	p.RetryAfterFallback = 60 * time.Second
	return p
}

// NewOAuth2 creates the Autodesk OAuth2 handshaker. Client credentials are sent with HTTP Basic auth.
func NewOAuth2(httpClient *http.Client, store auth.TokenStore) (*auth.OAuth2, error) {
	return auth.NewOAuth2(auth.OAuth2Config{
		AuthStyle:  oauth2.AuthStyleInHeader,
		AuthURL:    AuthURL,
		HTTPClient: httpClient,
		Scopes:     Scopes,
		TokenStore: store,
		TokenURL:   TokenURL,
	})
}

// New creates an Autodesk provider client.
func New(cfg Config, opts ...connect.Option) (*provider.Client, error) {
	return connect.New(connect.Spec{
		BaseURL:    BaseURL,
		Credential: cfg.Credential,
		Definition: Definition(),
		Handshaker: func(_ string, httpClient *http.Client, store auth.TokenStore) (auth.Handshaker, error) {
			return NewOAuth2(httpClient, store)
		},
		Mappings:   cfg.Mappings,
		Policy:     Policy(),
		ProjectRef: cfg.ProjectRef,
	}, opts...)
}
