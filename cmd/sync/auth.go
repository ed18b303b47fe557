package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/autodesk"
	"github.com/peteski22/sitebridge/internal/config"
	"github.com/peteski22/sitebridge/internal/procore"
	"github.com/peteski22/sitebridge/internal/storage"
)

const (
	authTimeout         = 5 * time.Minute
	defaultCallbackPath = "/callback"
	httpTimeout         = 30 * time.Second
)

// authorizer runs the authorization code half of an OAuth2 flow.
type authorizer interface {
	// AuthCodeURL returns the consent URL for cred carrying state.
	AuthCodeURL(cred auth.Credential, state string) string

	// Handshake exchanges cred's authorization code and stores the refresh token.
	Handshake(ctx context.Context, cred auth.Credential) (auth.Token, error)
}

// authRequest holds everything one interactive authorization needs.
type authRequest struct {
	// authorizer performs the code exchange.
	authorizer authorizer

	// cred carries the client credentials and redirect URI.
	cred auth.Credential

	// name is the provider display name.
	name string

	// open presents the consent URL to the user.
	open func(targetURL string) error

	// tokenPath is where the refresh token ends up, for display only.
	tokenPath string
}

// oauthProviders returns the provider ids that support the auth command.
func oauthProviders() []string {
	return []string{autodesk.ID, procore.ID}
}

// runAuth performs the OAuth2 authorization code flow for providerID and saves its refresh token.
func runAuth(ctx context.Context, w io.Writer, providerID string) error {
	settings, err := config.LoadLocal(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tokenDir, err := config.TokenDir()
	if err != nil {
		return fmt.Errorf("getting token directory: %w", err)
	}

	store, err := storage.NewFileTokenStore(tokenDir, providerID)
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}

	httpClient := &http.Client{Timeout: httpTimeout}

	var (
		oauth *auth.OAuth2
		cred  auth.Credential
		name  string
	)
	switch providerID {
	case procore.ID:
		cred = settings.Procore.Credential()
		name = procore.Definition().Name
		oauth, err = procore.NewOAuth2(httpClient, store)
	case autodesk.ID:
		cred = settings.Autodesk.Credential()
		name = autodesk.Definition().Name
		oauth, err = autodesk.NewOAuth2(httpClient, store)
	default:
		return fmt.Errorf("unsupported provider: %s (expected one of %v)", providerID, oauthProviders())
	}
	if err != nil {
		return fmt.Errorf("creating OAuth2 handshaker: %w", err)
	}

	if missing := oauth.Missing(cred); len(missing) > 0 {
		return fmt.Errorf("%s credentials incomplete, missing: %v", providerID, missing)
	}

	return authorize(ctx, w, authRequest{
		authorizer: oauth,
		cred:       cred,
		name:       name,
		open:       openBrowser,
		tokenPath:  store.Path(),
	})
}

// authorize starts a local callback server, presents the consent URL and exchanges the returned code.
// A redirect URI with port 0 listens on a free port and sends the actual address to the provider.
func authorize(ctx context.Context, w io.Writer, req authRequest) error {
	_, _ = fmt.Fprintf(w, "=== %s Authorization ===\n\n", req.name)

	redirect, err := url.Parse(req.cred.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("invalid redirect URI: %q", req.cred.RedirectURI)
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = defaultCallbackPath
	}

	state := uuid.NewString()

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, addr, err := startOAuthCallbackServer(redirect.Host, callbackPath, codeChan, errChan, state)
	if err != nil {
		return fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if redirect.Port() == "0" {
		redirect.Host = addr
		req.cred.RedirectURI = redirect.String()
	}

	consentURL := req.authorizer.AuthCodeURL(req.cred, state)

	_, _ = fmt.Fprintf(w, "Opening browser for %s authorization...\n\n", req.name)
	_, _ = fmt.Fprintln(w, "If the browser doesn't open, visit this URL:")
	_, _ = fmt.Fprintln(w, consentURL)
	_, _ = fmt.Fprintln(w)

	if err := req.open(consentURL); err != nil {
		_, _ = fmt.Fprintf(w, "Could not open browser: %s\n", err)
	}

	_, _ = fmt.Fprintln(w, "Waiting for authorization...")

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return fmt.Errorf("authorization failed: %w", err)
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("authorization timed out after %s", authTimeout)
		}
		return waitCtx.Err()
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Authorization received, exchanging for tokens...")

	cred := req.cred
	cred.AuthorizationCode = code
	cred.RefreshToken = ""

	if _, err := req.authorizer.Handshake(ctx, cred); err != nil {
		return fmt.Errorf("exchanging code for tokens: %w", err)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Authorization successful!")
	_, _ = fmt.Fprintf(w, "Refresh token saved to: %s\n\n", req.tokenPath)
	_, _ = fmt.Fprintln(w, "You can now run:")
	_, _ = fmt.Fprintln(w, "  sitebridge run --dry-run --since=2024-01-01")

	return nil
}

// browserCommand returns the command and arguments to open a URL on the current OS.
func browserCommand(targetURL string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{targetURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", targetURL}
	default:
		return "xdg-open", []string{targetURL}
	}
}

// openBrowser opens the default web browser to the specified URL.
func openBrowser(targetURL string) error {
	name, args := browserCommand(targetURL)
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	return cmd.Start()
}

// writeCallbackResponse writes an HTML response for the OAuth callback page.
// It escapes the title and message to prevent XSS attacks.
func writeCallbackResponse(w http.ResponseWriter, title string, message string) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(
		w,
		`<html><body><h1>%s</h1><p>%s</p><p>You can close this window.</p></body></html>`,
		html.EscapeString(title),
		html.EscapeString(message),
	)
}

// startOAuthCallbackServer starts a local HTTP server on addr to receive the OAuth callback.
// It sends the authorization code or error through the provided channels and returns the bound address.
// The callback must carry expectedState.
func startOAuthCallbackServer(
	addr string,
	callbackPath string,
	codeChan chan<- string,
	errChan chan<- error,
	expectedState string,
) (*http.Server, string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Channels are buffered by one; later callbacks are dropped.
	send := func(ch chan<- error, err error) {
		select {
		case ch <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		errDesc := r.URL.Query().Get("error_description")
		errMsg := r.URL.Query().Get("error")
		state := r.URL.Query().Get("state")

		if errMsg != "" {
			send(errChan, fmt.Errorf("%s: %s", errMsg, errDesc))
			writeCallbackResponse(w, "Authorization Failed", fmt.Sprintf("%s: %s", errMsg, errDesc))
			return
		}

		if code == "" {
			send(errChan, errors.New("no authorization code received"))
			writeCallbackResponse(w, "Authorization Failed", "No authorization code received.")
			return
		}

		if state != expectedState {
			send(errChan, errors.New("state mismatch: possible CSRF attack"))
			writeCallbackResponse(w, "Authorization Failed", "State validation failed.")
			return
		}

		select {
		case codeChan <- code:
		default:
		}
		writeCallbackResponse(w, "Authorization Successful", "You can return to the terminal.")
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			send(errChan, fmt.Errorf("server error: %w", err))
		}
	}()

	return server, listener.Addr().String(), nil
}
