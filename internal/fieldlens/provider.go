// Package fieldlens defines the Fieldlens provider: bearer token authentication, tasks and field reports.
package fieldlens

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
	BaseURL = "https://api.fieldlens.com/v2"

	// ID is the provider identifier.
	ID = "fieldlens"

	// probePath is fetched to verify a token.
	probePath = "/users/me"
)

// Config holds the required configuration for connecting to Fieldlens.
type Config struct {
	// Credential holds the API key or access token.
	Credential auth.Credential

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// ProjectRef is the Fieldlens project identifier.
	ProjectRef string
}

// Definition returns the Fieldlens provider definition.
func Definition() provider.Definition {
	return provider.Definition{
		Endpoints: map[record.Type]provider.Endpoint{
			record.TypeFieldReport: {
				Create: "/projects/{project}/reports",
				List:   "/projects/{project}/reports",
				Update: "/projects/{project}/reports/{id}",
			},
			record.TypeTask: {
				Create: "/projects/{project}/tasks",
				List:   "/projects/{project}/tasks",
				Update: "/projects/{project}/tasks/{id}",
			},
		},
		Export:      []record.Type{record.TypeTask, record.TypeFieldReport},
		ID:          ID,
		Import:      []record.Type{record.TypeTask, record.TypeFieldReport},
		Name:        "Fieldlens",
		Pages:       provider.SinglePage{},
		ProbePath:   probePath,
		SinceLayout: time.DateOnly,
		SinceParam:  "start_date",
		Transformer: Mapper{},
	}
}

// Policy returns the Fieldlens pacing and retry policy.
func Policy() executor.Policy {
	p := executor.DefaultPolicy()
	p.Pacing = time.Second
	p.RetryAfterFallback = 60 * time.Second
	return p
}

// New creates a Fieldlens provider client.
func New(cfg Config, opts ...connect.Option) (*provider.Client, error) {
	return connect.New(connect.Spec{
		BaseURL:    BaseURL,
		Credential: cfg.Credential,
		Definition: Definition(),
		Handshaker: func(baseURL string, httpClient *http.Client, _ auth.TokenStore) (auth.Handshaker, error) {
			return auth.NewStaticToken(baseURL+probePath, "Bearer", httpClient)
		},
		Mappings:   cfg.Mappings,
		Policy:     Policy(),
		ProjectRef: cfg.ProjectRef,
	}, opts...)
}
