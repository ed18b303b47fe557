package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// defaultTokenDuration is used when the provider doesn't return an expiry time.
const defaultTokenDuration = 60 * time.Minute

// OAuth2 performs the authorization-code and refresh-token grants.
type OAuth2 struct {
	// authStyle is how client credentials are sent to the token endpoint.
	authStyle oauth2.AuthStyle

	// authURL is the provider authorization endpoint.
	authURL string

	// httpClient is used for token requests.
	httpClient *http.Client

	// scopes are requested during authorization.
	scopes []string

	// tokenStore persists rotated refresh tokens, may be nil.
	tokenStore TokenStore

	// tokenURL is the provider token endpoint.
	tokenURL string
}

// OAuth2Config configures an OAuth2 handshaker.
type OAuth2Config struct {
	// AuthStyle controls how client credentials are sent, AuthStyleInHeader for HTTP Basic.
	AuthStyle oauth2.AuthStyle

	// AuthURL is the provider authorization endpoint.
	AuthURL string

	// HTTPClient is used for token requests. Defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Scopes are requested during authorization.
	Scopes []string

	// TokenStore persists rotated refresh tokens and supplies one when the credential has none.
	TokenStore TokenStore

	// TokenURL is the provider token endpoint.
	TokenURL string
}

// NewOAuth2 creates an OAuth2 handshaker.
func NewOAuth2(cfg OAuth2Config) (*OAuth2, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OAuth2{
		authStyle:  cfg.AuthStyle,
		authURL:    cfg.AuthURL,
		httpClient: httpClient,
		scopes:     cfg.Scopes,
		tokenStore: cfg.TokenStore,
		tokenURL:   cfg.TokenURL,
	}, nil
}

// AuthCodeURL returns the consent URL for cred carrying the CSRF state value.
func (o *OAuth2) AuthCodeURL(cred Credential, state string) string {
	return o.config(cred).AuthCodeURL(state)
}

// Handshake exchanges a pending authorization code, or refreshes using the stored refresh token.
func (o *OAuth2) Handshake(ctx context.Context, cred Credential) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	conf := o.config(cred)

	var (
		tok          *oauth2.Token
		err          error
		refreshToken = cred.RefreshToken
	)

	switch {
	case cred.AuthorizationCode != "":
		tok, err = conf.Exchange(ctx, cred.AuthorizationCode)
		if err != nil {
			return Token{}, fmt.Errorf("exchanging authorization code: %w", describe(err))
		}
	default:
		if refreshToken == "" && o.tokenStore != nil {
			refreshToken, err = o.tokenStore.RefreshToken(ctx)
			if err != nil {
				return Token{}, fmt.Errorf("getting refresh token: %w", err)
			}
		}
		if refreshToken == "" {
			return Token{}, errors.New("no refresh token or authorization code available")
		}

		tok, err = conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return Token{}, fmt.Errorf("refreshing token: %w", describe(err))
		}
	}

	// Save new refresh token if provided.
	if o.tokenStore != nil && tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		if err := o.tokenStore.SaveRefreshToken(ctx, tok.RefreshToken); err != nil {
			return Token{}, fmt.Errorf("saving refresh token: %w", err)
		}
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenDuration)
	}

	return Token{
		AccessToken:  tok.AccessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// Missing returns the names of required credential fields that are empty.
func (o *OAuth2) Missing(cred Credential) []string {
	var missing []string
	if cred.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cred.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	return missing
}

// config builds the oauth2 configuration for cred.
func (o *OAuth2) config(cred Credential) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthStyle: o.authStyle,
			AuthURL:   o.authURL,
			TokenURL:  o.tokenURL,
		},
		RedirectURL: cred.RedirectURI,
		Scopes:      o.scopes,
	}
}

// describe adds the provider status and error code to token endpoint failures.
func describe(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return err
	}
	if retrieveErr.ErrorCode != "" {
		return fmt.Errorf("status %d: %s: %w", retrieveErr.Response.StatusCode, retrieveErr.ErrorCode, err)
	}
	return fmt.Errorf("status %d: %w", retrieveErr.Response.StatusCode, err)
}
