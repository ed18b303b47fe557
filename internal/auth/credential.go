// Package auth manages per-provider credentials and authentication sessions.
package auth

import (
	"context"
	"time"
)

// Credential holds one provider's client credentials and current token state.
// A Credential is owned by exactly one Session, which is the only writer of its token fields.
type Credential struct {
	// AccessToken is the current access token, empty when none has been issued.
	AccessToken string

	// APIKey is a static API key for providers without an OAuth handshake.
	APIKey string

	// AuthorizationCode is a one-time OAuth authorization code awaiting exchange.
	AuthorizationCode string

	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// CompanyDatabase selects the company database for session logins.
	CompanyDatabase string

	// ExpiresAt is when AccessToken expires, nil when it does not expire.
	ExpiresAt *time.Time

	// Password is the resource-owner password for session logins.
	Password string

	// Provider is the provider identifier.
	Provider string

	// RedirectURI is the OAuth redirect URI registered with the provider.
	RedirectURI string

	// RefreshToken is the OAuth refresh token, empty when none has been issued.
	RefreshToken string

	// SessionID is the provider session identifier for session logins.
	SessionID string

	// TokenType is the Authorization scheme for AccessToken (default Bearer).
	TokenType string

	// Username is the resource-owner username for session logins.
	Username string
}

// Token is the outcome of a successful handshake.
type Token struct {
	// AccessToken is the issued access token.
	AccessToken string

	// ExpiresAt is when the token expires, zero when it does not expire.
	ExpiresAt time.Time

	// RefreshToken is the issued refresh token, empty if the provider did not rotate it.
	RefreshToken string

	// SessionID is the provider session identifier, if any.
	SessionID string

	// TokenType is the Authorization scheme, empty for Bearer.
	TokenType string
}

// TokenStore provides durable storage for OAuth refresh tokens.
type TokenStore interface {
	// RefreshToken returns the current refresh token.
	RefreshToken(ctx context.Context) (string, error)

	// SaveRefreshToken saves a new refresh token.
	SaveRefreshToken(ctx context.Context, token string) error
}
