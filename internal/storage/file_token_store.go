package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileTokenStore stores one provider's OAuth refresh token in a local file.
type FileTokenStore struct {
	// path is the token file.
	path string

	// provider is the provider the token belongs to.
	provider string
}

// NewFileTokenStore creates a FileTokenStore for provider under dir, in a file named after the provider.
func NewFileTokenStore(dir string, provider string) (*FileTokenStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("token directory is required")
	}
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	return &FileTokenStore{
		path:     filepath.Join(dir, provider),
		provider: provider,
	}, nil
}

// Path returns the token file path.
func (s *FileTokenStore) Path() string {
	return s.path
}

// RefreshToken returns the current refresh token. A missing file yields an empty token so the
// session can fall back to an authorization code.
func (s *FileTokenStore) RefreshToken(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// SaveRefreshToken saves the refresh token to the file.
func (s *FileTokenStore) SaveRefreshToken(_ context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s token file: %w", s.provider, err)
	}

	return nil
}
