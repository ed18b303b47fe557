package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/sitebridge/internal/apierr"
)

// fakeHandshaker is a Handshaker returning a fixed token or error.
type fakeHandshaker struct {
	calls   atomic.Int32
	err     error
	missing []string
	token   Token
}

// Handshake implements Handshaker.
func (f *fakeHandshaker) Handshake(_ context.Context, _ Credential) (Token, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Token{}, f.err
	}
	return f.token, nil
}

// Missing implements Handshaker.
func (f *fakeHandshaker) Missing(_ Credential) []string {
	return f.missing
}

// mockTokenStore is an in-memory TokenStore.
type mockTokenStore struct {
	err          error
	mu           sync.Mutex
	refreshToken string
	saved        []string
}

// RefreshToken implements TokenStore.
func (m *mockTokenStore) RefreshToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	return m.refreshToken, nil
}

// SaveRefreshToken implements TokenStore.
func (m *mockTokenStore) SaveRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshToken = token
	m.saved = append(m.saved, token)
	return nil
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cred       Credential
		handshaker Handshaker
		wantErr    string
		wantState  State
	}{
		"no handshaker": {
			cred:    Credential{Provider: "procore"},
			wantErr: "handshaker is required",
		},
		"no provider": {
			handshaker: &fakeHandshaker{},
			wantErr:    "credential provider is required",
		},
		"fresh credential": {
			cred:       Credential{Provider: "procore"},
			handshaker: &fakeHandshaker{},
			wantState:  StateUnauthenticated,
		},
		"preloaded token": {
			cred:       Credential{Provider: "procore", AccessToken: "tok"},
			handshaker: &fakeHandshaker{},
			wantState:  StateAuthenticated,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := NewSession(tc.cred, tc.handshaker)

			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantState, s.State())
		})
	}
}

func TestSession_EnsureValid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("valid token makes no handshake", func(t *testing.T) {
		t.Parallel()

		expiresAt := now.Add(time.Hour)
		h := &fakeHandshaker{}
		s, err := NewSession(Credential{Provider: "procore", AccessToken: "tok", ExpiresAt: &expiresAt}, h, WithClock(clock))
		require.NoError(t, err)

		require.True(t, s.EnsureValid(context.Background()))
		require.Equal(t, int32(0), h.calls.Load())
	})

	t.Run("token inside expiry buffer is refreshed", func(t *testing.T) {
		t.Parallel()

		expiresAt := now.Add(30 * time.Second)
		h := &fakeHandshaker{token: Token{AccessToken: "new", ExpiresAt: now.Add(time.Hour), RefreshToken: "r2"}}
		s, err := NewSession(Credential{
			Provider:     "procore",
			AccessToken:  "old",
			ExpiresAt:    &expiresAt,
			RefreshToken: "r1",
		}, h, WithClock(clock))
		require.NoError(t, err)

		require.True(t, s.EnsureValid(context.Background()))
		require.Equal(t, int32(1), h.calls.Load())

		cred := s.Credential()
		require.Equal(t, "new", cred.AccessToken)
		require.Equal(t, "r2", cred.RefreshToken)
		require.Equal(t, now.Add(time.Hour), *cred.ExpiresAt)
		require.Equal(t, StateAuthenticated, s.State())
	})

	t.Run("refresh keeps previous refresh token when none issued", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandshaker{token: Token{AccessToken: "new"}}
		s, err := NewSession(Credential{Provider: "autodesk", RefreshToken: "keep-me"}, h, WithClock(clock))
		require.NoError(t, err)

		require.True(t, s.EnsureValid(context.Background()))
		require.Equal(t, "keep-me", s.Credential().RefreshToken)
		require.Nil(t, s.Credential().ExpiresAt)
	})

	t.Run("rejected handshake", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandshaker{err: errors.New("invalid_grant")}
		s, err := NewSession(Credential{Provider: "procore"}, h, WithClock(clock))
		require.NoError(t, err)

		require.False(t, s.EnsureValid(context.Background()))
		require.Equal(t, StateRefreshFailed, s.State())
	})

	t.Run("missing credentials skip handshake", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandshaker{missing: []string{"client_id"}}
		s, err := NewSession(Credential{Provider: "procore"}, h, WithClock(clock))
		require.NoError(t, err)

		require.False(t, s.EnsureValid(context.Background()))
		require.Equal(t, int32(0), h.calls.Load())
		require.Equal(t, StateUnauthenticated, s.State())
	})

	t.Run("invalidated token is reacquired", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandshaker{token: Token{AccessToken: "fresh"}}
		s, err := NewSession(Credential{Provider: "fieldlens", AccessToken: "stale"}, h, WithClock(clock))
		require.NoError(t, err)

		s.Invalidate()
		require.Equal(t, StateExpired, s.State())

		require.True(t, s.EnsureValid(context.Background()))
		require.Equal(t, "fresh", s.Credential().AccessToken)
	})
}

func TestSession_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()

		s, err := NewSession(Credential{Provider: "sage"}, &fakeHandshaker{missing: []string{"username", "password"}})
		require.NoError(t, err)

		state, err := s.Authenticate(context.Background())

		require.Equal(t, StateUnauthenticated, state)
		var authErr *apierr.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, "sage", authErr.Provider)
		require.Contains(t, authErr.Reason, "username, password")
	})

	t.Run("handshake error is wrapped", func(t *testing.T) {
		t.Parallel()

		s, err := NewSession(Credential{Provider: "sage"}, &fakeHandshaker{err: errors.New("status 401")})
		require.NoError(t, err)

		state, err := s.Authenticate(context.Background())

		require.Equal(t, StateRefreshFailed, state)
		require.Equal(t, apierr.KindAuthentication, apierr.KindOf(err))
		require.ErrorContains(t, err, "status 401")
	})

	t.Run("authorization code is consumed", func(t *testing.T) {
		t.Parallel()

		s, err := NewSession(Credential{Provider: "procore", AuthorizationCode: "code"},
			&fakeHandshaker{token: Token{AccessToken: "a", RefreshToken: "r"}})
		require.NoError(t, err)

		state, err := s.Authenticate(context.Background())

		require.NoError(t, err)
		require.Equal(t, StateAuthenticated, state)
		require.Empty(t, s.Credential().AuthorizationCode)
	})
}

func TestSession_Authorize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cred        Credential
		wantAuth    string
		wantSession string
	}{
		"bearer default": {
			cred:     Credential{Provider: "procore", AccessToken: "abc"},
			wantAuth: "Bearer abc",
		},
		"token scheme": {
			cred:     Credential{Provider: "plangrid", AccessToken: "key", TokenType: "Token"},
			wantAuth: "Token key",
		},
		"session header": {
			cred:        Credential{Provider: "sage", AccessToken: "abc", SessionID: "sess-1"},
			wantAuth:    "Bearer abc",
			wantSession: "sess-1",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := NewSession(tc.cred, &fakeHandshaker{})
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
			require.NoError(t, err)
			s.Authorize(req)

			require.Equal(t, tc.wantAuth, req.Header.Get("Authorization"))
			require.Equal(t, tc.wantSession, req.Header.Get("X-Session-ID"))
		})
	}
}

func TestSession_ConcurrentEnsureValid(t *testing.T) {
	t.Parallel()

	h := &fakeHandshaker{token: Token{AccessToken: "shared", ExpiresAt: time.Now().Add(time.Hour)}}
	s, err := NewSession(Credential{Provider: "procore", RefreshToken: "r"}, h)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		valid atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.EnsureValid(context.Background()) {
				valid.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(10), valid.Load())
	require.Equal(t, int32(1), h.calls.Load())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "refresh_failed", StateRefreshFailed.String())
	require.Equal(t, "state(9)", State(9).String())
}
