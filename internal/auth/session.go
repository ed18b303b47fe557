package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/peteski22/sitebridge/internal/apierr"
)

// tokenExpiryBuffer is the time before expiry at which a token is treated as expired.
const tokenExpiryBuffer = time.Minute

// State is the authentication state of a Session.
type State int

const (
	// StateUnauthenticated means no handshake has succeeded yet.
	StateUnauthenticated State = iota

	// StateAuthenticated means the session holds a usable token.
	StateAuthenticated

	// StateExpired means the token expired or the provider answered 401.
	StateExpired

	// StateRefreshFailed means the last handshake was rejected by the provider.
	StateRefreshFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateRefreshFailed:
		return "refresh_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handshaker performs a provider's token-acquisition handshake.
type Handshaker interface {
	// Handshake acquires a token for the credential.
	Handshake(ctx context.Context, cred Credential) (Token, error)

	// Missing returns the names of required credential fields that are empty.
	Missing(cred Credential) []string
}

// Session acquires and refreshes tokens for a single provider.
type Session struct {
	// cred is the credential owned by this session.
	cred Credential

	// handshaker performs the provider handshake.
	handshaker Handshaker

	// logger is the structured logger.
	logger *slog.Logger

	// mu serializes handshakes and protects cred and state.
	mu sync.Mutex

	// now returns the current time.
	now func() time.Time

	// state is the current authentication state.
	state State
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session owning cred. A credential that already carries an access token
// starts Authenticated; its expiry is checked on first use.
func NewSession(cred Credential, handshaker Handshaker, opts ...SessionOption) (*Session, error) {
	if handshaker == nil {
		return nil, errors.New("handshaker is required")
	}
	if cred.Provider == "" {
		return nil, errors.New("credential provider is required")
	}

	s := &Session{
		cred:       cred,
		handshaker: handshaker,
		logger:     slog.Default(),
		now:        time.Now,
		state:      StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cred.AccessToken != "" {
		s.state = StateAuthenticated
	}

	return s, nil
}

// Authenticate performs the provider handshake and returns the resulting state.
func (s *Session) Authenticate(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.authenticateLocked(ctx)
	return s.state, err
}

// Authorize sets the authentication headers for req from the current token.
func (s *Session) Authorize(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenType := s.cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+s.cred.AccessToken)
	if s.cred.SessionID != "" {
		req.Header.Set("X-Session-ID", s.cred.SessionID)
	}
}

// Configured returns an error naming the required credential fields that are empty.
func (s *Session) Configured() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if missing := s.handshaker.Missing(s.cred); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Credential returns a copy of the current credential.
func (s *Session) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.cred
	if s.cred.ExpiresAt != nil {
		expiresAt := *s.cred.ExpiresAt
		cred.ExpiresAt = &expiresAt
	}
	return cred
}

// EnsureValid reports whether the session has a usable token, authenticating at most once if it does not.
func (s *Session) EnsureValid(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validLocked() {
		return true
	}

	if err := s.authenticateLocked(ctx); err != nil {
		s.logger.Warn("authentication failed",
			"provider", s.cred.Provider,
			"state", s.state.String(),
			"error", err)
		return false
	}
	return true
}

// Invalidate marks the current token as expired.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateExpired
}

// Provider returns the provider identifier.
func (s *Session) Provider() string {
	return s.cred.Provider
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// authenticateLocked runs the handshake and applies the token. Must be called with mu held.
func (s *Session) authenticateLocked(ctx context.Context) error {
	if missing := s.handshaker.Missing(s.cred); len(missing) > 0 {
		s.state = StateUnauthenticated
		return &apierr.AuthenticationError{
			Provider: s.cred.Provider,
			Reason:   "missing credentials: " + strings.Join(missing, ", "),
		}
	}

	token, err := s.handshaker.Handshake(ctx, s.cred)
	if err != nil {
		s.state = StateRefreshFailed
		var authErr *apierr.AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return &apierr.AuthenticationError{
			Err:      err,
			Provider: s.cred.Provider,
			Reason:   "handshake rejected",
		}
	}

	s.cred.AccessToken = token.AccessToken
	s.cred.AuthorizationCode = ""
	if token.RefreshToken != "" {
		s.cred.RefreshToken = token.RefreshToken
	}
	if token.SessionID != "" {
		s.cred.SessionID = token.SessionID
	}
	if token.TokenType != "" {
		s.cred.TokenType = token.TokenType
	}
	s.cred.ExpiresAt = nil
	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		s.cred.ExpiresAt = &expiresAt
	}
	s.state = StateAuthenticated

	s.logger.Info("authenticated", "provider", s.cred.Provider)
	return nil
}

// validLocked reports whether the current token is usable. Must be called with mu held.
func (s *Session) validLocked() bool {
	if s.state != StateAuthenticated || s.cred.AccessToken == "" {
		return false
	}
	if s.cred.ExpiresAt != nil && !s.now().Before(s.cred.ExpiresAt.Add(-tokenExpiryBuffer)) {
		s.state = StateExpired
		return false
	}
	return true
}
