package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StaticToken validates a long-lived API key or access token against a probe endpoint.
type StaticToken struct {
	// apiKeyScheme is the Authorization scheme used when only an API key is configured.
	apiKeyScheme string

	// httpClient is used for probe requests.
	httpClient *http.Client

	// probeURL is fetched to confirm the token is accepted.
	probeURL string
}

// NewStaticToken creates a static-token handshaker. apiKeyScheme defaults to Bearer.
func NewStaticToken(probeURL string, apiKeyScheme string, httpClient *http.Client) (*StaticToken, error) {
	if probeURL == "" {
		return nil, errors.New("probe URL is required")
	}
	if apiKeyScheme == "" {
		apiKeyScheme = "Bearer"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &StaticToken{
		apiKeyScheme: apiKeyScheme,
		httpClient:   httpClient,
		probeURL:     probeURL,
	}, nil
}

// Handshake confirms the configured token is accepted by the provider.
func (s *StaticToken) Handshake(ctx context.Context, cred Credential) (Token, error) {
	token := Token{AccessToken: cred.AccessToken, TokenType: "Bearer"}
	if token.AccessToken == "" {
		token = Token{AccessToken: cred.APIKey, TokenType: s.apiKeyScheme}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return Token{}, fmt.Errorf("creating probe request: %w", err)
	}
	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("executing probe request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Token{}, fmt.Errorf("token rejected with status %d: %s", resp.StatusCode, string(body))
	}

	return token, nil
}

// Missing returns the names of required credential fields that are empty.
func (s *StaticToken) Missing(cred Credential) []string {
	if cred.AccessToken == "" && cred.APIKey == "" {
		return []string{"api_key"}
	}
	return nil
}
