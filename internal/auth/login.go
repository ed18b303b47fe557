package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultSessionDuration is used when a session login doesn't return an expiry.
const defaultSessionDuration = time.Hour

// SessionLogin authenticates by posting resource-owner credentials to a login endpoint.
type SessionLogin struct {
	// httpClient is used for login requests.
	httpClient *http.Client

	// loginURL is the provider login endpoint.
	loginURL string
}

// loginRequest is the login request body.
type loginRequest struct {
	// ClientID is the OAuth client identifier.
	ClientID string `json:"client_id"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `json:"client_secret"`

	// CompanyDatabase selects the company database.
	CompanyDatabase string `json:"company_database,omitempty"`

	// Password is the user password.
	Password string `json:"password"`

	// Username is the user name.
	Username string `json:"username"`
}

// loginResponse is the login response body.
type loginResponse struct {
	// AccessToken is the session access token.
	AccessToken string `json:"access_token"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// SessionID is the session identifier sent back on every request.
	SessionID string `json:"session_id"`
}

// NewSessionLogin creates a session-login handshaker.
func NewSessionLogin(loginURL string, httpClient *http.Client) (*SessionLogin, error) {
	if loginURL == "" {
		return nil, errors.New("login URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &SessionLogin{
		httpClient: httpClient,
		loginURL:   loginURL,
	}, nil
}

// Handshake posts the credentials and returns the session token.
func (l *SessionLogin) Handshake(ctx context.Context, cred Credential) (Token, error) {
	body, err := json.Marshal(loginRequest{
		ClientID:        cred.ClientID,
		ClientSecret:    cred.ClientSecret,
		CompanyDatabase: cred.CompanyDatabase,
		Password:        cred.Password,
		Username:        cred.Username,
	})
	if err != nil {
		return Token{}, fmt.Errorf("marshaling login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.loginURL, bytes.NewReader(body))
	if err != nil {
		return Token{}, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("executing login request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Token{}, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return Token{}, fmt.Errorf("decoding login response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return Token{}, errors.New("login response missing access token")
	}

	lifetime := defaultSessionDuration
	if loginResp.ExpiresIn > 0 {
		lifetime = time.Duration(loginResp.ExpiresIn) * time.Second
	}

	return Token{
		AccessToken: loginResp.AccessToken,
		ExpiresAt:   time.Now().Add(lifetime),
		SessionID:   loginResp.SessionID,
	}, nil
}

// Missing returns the names of required credential fields that are empty.
func (l *SessionLogin) Missing(cred Credential) []string {
	var missing []string
	if cred.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cred.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if cred.Username == "" {
		missing = append(missing, "username")
	}
	if cred.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}
