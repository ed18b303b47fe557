package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuth2_Handshake(t *testing.T) {
	t.Parallel()

	t.Run("refresh rotates stored token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			require.Equal(t, "stored-refresh", r.PostForm.Get("refresh_token"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "new-access",
				"refresh_token": "rotated-refresh",
				"expires_in":    7200,
				"token_type":    "Bearer",
			})
		}))
		defer server.Close()

		store := &mockTokenStore{refreshToken: "stored-refresh"}
		h, err := NewOAuth2(OAuth2Config{
			AuthStyle:  oauth2.AuthStyleInParams,
			HTTPClient: server.Client(),
			TokenStore: store,
			TokenURL:   server.URL,
		})
		require.NoError(t, err)

		tok, err := h.Handshake(context.Background(), Credential{ClientID: "id", ClientSecret: "secret"})

		require.NoError(t, err)
		require.Equal(t, "new-access", tok.AccessToken)
		require.Equal(t, "rotated-refresh", tok.RefreshToken)
		require.WithinDuration(t, time.Now().Add(2*time.Hour), tok.ExpiresAt, time.Minute)
		require.Equal(t, []string{"rotated-refresh"}, store.saved)
	})

	t.Run("basic auth style sends client credentials in header", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			require.Equal(t, "id", user)
			require.Equal(t, "secret", pass)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "a", "token_type": "Bearer"})
		}))
		defer server.Close()

		h, err := NewOAuth2(OAuth2Config{
			AuthStyle:  oauth2.AuthStyleInHeader,
			HTTPClient: server.Client(),
			TokenURL:   server.URL,
		})
		require.NoError(t, err)

		tok, err := h.Handshake(context.Background(), Credential{ClientID: "id", ClientSecret: "secret", RefreshToken: "r"})

		require.NoError(t, err)
		require.Equal(t, "a", tok.AccessToken)
		require.Empty(t, tok.RefreshToken)
		require.WithinDuration(t, time.Now().Add(defaultTokenDuration), tok.ExpiresAt, time.Minute)
	})

	t.Run("authorization code exchange", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			require.Equal(t, "the-code", r.PostForm.Get("code"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "a", "refresh_token": "r", "expires_in": 60})
		}))
		defer server.Close()

		h, err := NewOAuth2(OAuth2Config{AuthStyle: oauth2.AuthStyleInParams, HTTPClient: server.Client(), TokenURL: server.URL})
		require.NoError(t, err)

		tok, err := h.Handshake(context.Background(), Credential{ClientID: "id", ClientSecret: "s", AuthorizationCode: "the-code"})

		require.NoError(t, err)
		require.Equal(t, "r", tok.RefreshToken)
	})

	t.Run("rejected refresh", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer server.Close()

		h, err := NewOAuth2(OAuth2Config{AuthStyle: oauth2.AuthStyleInParams, HTTPClient: server.Client(), TokenURL: server.URL})
		require.NoError(t, err)

		_, err = h.Handshake(context.Background(), Credential{ClientID: "id", ClientSecret: "s", RefreshToken: "bad"})

		require.ErrorContains(t, err, "status 400")
		require.ErrorContains(t, err, "invalid_grant")
	})

	t.Run("nothing to exchange", func(t *testing.T) {
		t.Parallel()

		h, err := NewOAuth2(OAuth2Config{TokenURL: "http://127.0.0.1:0"})
		require.NoError(t, err)

		_, err = h.Handshake(context.Background(), Credential{ClientID: "id", ClientSecret: "s"})

		require.ErrorContains(t, err, "no refresh token or authorization code")
	})
}

func TestOAuth2_MissingAndAuthCodeURL(t *testing.T) {
	t.Parallel()

	h, err := NewOAuth2(OAuth2Config{AuthURL: "https://login.example.com/authorize", TokenURL: "https://login.example.com/token"})
	require.NoError(t, err)

	require.Equal(t, []string{"client_id", "client_secret"}, h.Missing(Credential{}))
	require.Empty(t, h.Missing(Credential{ClientID: "a", ClientSecret: "b"}))

	consent := h.AuthCodeURL(Credential{ClientID: "a", RedirectURI: "http://localhost:8080/callback"}, "xyz")
	require.Contains(t, consent, "client_id=a")
	require.Contains(t, consent, "state=xyz")
	require.Contains(t, consent, "response_type=code")

	_, err = NewOAuth2(OAuth2Config{})
	require.EqualError(t, err, "token URL is required")
}

func TestSessionLogin_Handshake(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)

			var body loginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "jsmith", body.Username)
			require.Equal(t, "ACME", body.CompanyDatabase)

			_ = json.NewEncoder(w).Encode(loginResponse{AccessToken: "sage-token", SessionID: "sess-9"})
		}))
		defer server.Close()

		l, err := NewSessionLogin(server.URL, server.Client())
		require.NoError(t, err)

		tok, err := l.Handshake(context.Background(), Credential{
			ClientID:        "id",
			ClientSecret:    "s",
			CompanyDatabase: "ACME",
			Password:        "pw",
			Username:        "jsmith",
		})

		require.NoError(t, err)
		require.Equal(t, "sage-token", tok.AccessToken)
		require.Equal(t, "sess-9", tok.SessionID)
		require.WithinDuration(t, time.Now().Add(defaultSessionDuration), tok.ExpiresAt, time.Minute)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
		}))
		defer server.Close()

		l, err := NewSessionLogin(server.URL, server.Client())
		require.NoError(t, err)

		_, err = l.Handshake(context.Background(), Credential{})

		require.ErrorContains(t, err, "login failed with status 401")
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()

		l, err := NewSessionLogin("https://api.example.com/auth/login", nil)
		require.NoError(t, err)

		require.Equal(t, []string{"client_id", "client_secret", "username", "password"}, l.Missing(Credential{}))
	})
}

func TestStaticToken_Handshake(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cred     Credential
		wantAuth string
		wantType string
	}{
		"api key uses configured scheme": {
			cred:     Credential{APIKey: "key-1"},
			wantAuth: "Token key-1",
			wantType: "Token",
		},
		"access token uses bearer": {
			cred:     Credential{AccessToken: "at-1", APIKey: "key-1"},
			wantAuth: "Bearer at-1",
			wantType: "Bearer",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != tc.wantAuth {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{"id":"u1"}`))
			}))
			defer server.Close()

			s, err := NewStaticToken(server.URL+"/user", "Token", server.Client())
			require.NoError(t, err)

			tok, err := s.Handshake(context.Background(), tc.cred)

			require.NoError(t, err)
			require.Equal(t, tc.wantType, tok.TokenType)
		})
	}

	t.Run("rejected token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		s, err := NewStaticToken(server.URL, "", server.Client())
		require.NoError(t, err)

		_, err = s.Handshake(context.Background(), Credential{APIKey: "nope"})

		require.ErrorContains(t, err, "token rejected with status 403")
		require.Equal(t, []string{"api_key"}, s.Missing(Credential{}))
	})
}
