// Package sage defines the Sage construction accounting provider: session login, jobs, cost codes and change orders.
package sage

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/connect"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

const (
	// BaseURL is the API base URL.
	BaseURL = "https://api.sage.com/v1"

	// ID is the provider identifier.
	ID = "sage"

	// loginPath is the session login endpoint relative to the base URL.
	loginPath = "/auth/login"
)

// Config holds the required configuration for connecting to Sage.
type Config struct {
	// Credential is the session login credential set.
	Credential auth.Credential

	// Mappings persists external record mappings.
	Mappings provider.MappingStore

	// ProjectRef is the Sage job number.
	ProjectRef string
}

// Definition returns the Sage provider definition.
func Definition() provider.Definition {
	return provider.Definition{
		CreatedID: createdID,
		Endpoints: map[record.Type]provider.Endpoint{
			record.TypeChangeOrder: {
				Create:       "/projects/{project}/change-orders",
				List:         "/projects/{project}/change-orders",
				Update:       "/projects/{project}/change-orders/{id}",
				UpdateMethod: http.MethodPut,
			},
			record.TypeCostCode: {
				Create:       "/projects/{project}/costs",
				CreateMethod: http.MethodPut,
				List:         "/projects/{project}/cost-codes",
				Update:       "/projects/{project}/costs",
				UpdateMethod: http.MethodPut,
			},
			record.TypeProject: {List: "/projects"},
		},
		Export:      []record.Type{record.TypeCostCode, record.TypeChangeOrder},
		ID:          ID,
		Import:      []record.Type{record.TypeProject, record.TypeCostCode},
		Name:        "Sage Construction",
		Pages:       provider.Cursor{ItemsKey: "data", TokenKey: "next_page_token", TokenParam: "page_token"},
		ProbePath:   "/projects",
		SinceParam:  "modified_since",
		Transformer: Mapper{},
	}
}

// Policy returns the Sage pacing and retry policy.
func Policy() executor.Policy {
	p := executor.DefaultPolicy()
	p.Pacing = 2 * time.Second
	p.RetryAfterFallback = 120 * time.Second
	return p
}

// New creates a Sage provider client.
func New(cfg Config, opts ...connect.Option) (*provider.Client, error) {
	return connect.New(connect.Spec{
		BaseURL:    BaseURL,
		Credential: cfg.Credential,
		Definition: Definition(),
		Handshaker: func(baseURL string, httpClient *http.Client, _ auth.TokenStore) (auth.Handshaker, error) {
			return auth.NewSessionLogin(baseURL+loginPath, httpClient)
		},
		Mappings:   cfg.Mappings,
		Policy:     Policy(),
		ProjectRef: cfg.ProjectRef,
	}, opts...)
}

// createdID reads the id Sage assigns on create. Cost postings are keyed by their cost code and
// change orders by their number when the response carries no id.
func createdID(raw json.RawMessage, rec record.Record) (string, error) {
	var resp struct {
		ID transform.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err == nil && resp.ID != "" {
		return string(resp.ID), nil
	}

	var fallback string
	switch rec.Type {
	case record.TypeCostCode:
		fallback = rec.String(record.FieldCode)
	case record.TypeChangeOrder:
		fallback = rec.String(record.FieldNumber)
	}
	if fallback == "" {
		return "", errors.New("response has no id")
	}
	return fallback, nil
}
