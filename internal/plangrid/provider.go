// Package plangrid defines the PlanGrid provider: static API key or token authentication, issues and sheets.
package plangrid

import (
	"net/http"
	"time"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/connect"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
)

const (
	// BaseURL is the API base URL.
	BaseURL = "https://api.plangrid.com/v1"

	// ID is the provider identifier.
	ID = "plangrid"

	// apiKeyScheme is the Authorization scheme for API keys.
	apiKeyScheme = "Token"

	// probePath is fetched to verify a token.
	probePath = "/user"
)

// Config holds the required configuration for connecting to PlanGrid.
type Config struct {
	// Credential holds the API key or access token.
	Credential auth.Credential

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// ProjectRef is the PlanGrid project UID.
	ProjectRef string
}

// Definition returns the PlanGrid provider definition.
func Definition() provider.Definition {
	return provider.Definition{
		Endpoints: map[record.Type]provider.Endpoint{
			record.TypeDrawing: {List: "/projects/{project}/sheets"},
			record.TypeIssue: {
				Create: "/projects/{project}/issues",
				List:   "/projects/{project}/issues",
				Update: "/projects/{project}/issues/{id}",
			},
		},
		Export:      []record.Type{record.TypeIssue},
		ID:          ID,
		Import:      []record.Type{record.TypeIssue, record.TypeDrawing},
		Name:        "PlanGrid",
		Pages:       provider.NextURL{ItemsKey: "data", NextKey: "next_page_url"},
		ProbePath:   probePath,
		Transformer: Mapper{},
	}
}

// Policy returns the PlanGrid pacing and retry policy.
func Policy() executor.Policy {
	p := executor.DefaultPolicy()
	p.Pacing = 2 * time.Second
	p.RetryAfterFallback = 120 * time.Second
	return p
}

// New creates a PlanGrid provider client.
func New(cfg Config, opts ...connect.Option) (*provider.Client, error) {
	return connect.New(connect.Spec{
		BaseURL:    BaseURL,
		Credential: cfg.Credential,
		Definition: Definition(),
		Handshaker: func(baseURL string, httpClient *http.Client, _ auth.TokenStore) (auth.Handshaker, error) {
			return auth.NewStaticToken(baseURL+probePath, apiKeyScheme, httpClient)
		},
		Mappings:   cfg.Mappings,
		Policy:     Policy(),
		ProjectRef: cfg.ProjectRef,
	}, opts...)
}
