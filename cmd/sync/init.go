package main

import (
	"fmt"
	"io"
	"os"

	"github.com/peteski22/sitebridge/internal/config"
)

const configTemplate = `# sitebridge configuration
# Leave a platform's credentials empty to skip it. Environment variables
# (for example PROCORE_CLIENT_ID) fill any value left empty here.

procore:
  # From the Procore Developer Portal -> My Apps.
  client_id: ""
  client_secret: ""
  company_id: ""
  project_id: ""
  # Must match the redirect URI registered for the app.
  redirect_uri: "http://localhost:8765/callback"

sage:
  # Sage 300 Construction user with API access.
  username: ""
  password: ""
  company_database: ""
  # Job number to sync.
  project_id: ""

autodesk:
  # From the Autodesk Platform Services app settings.
  client_id: ""
  client_secret: ""
  # Issues and RFIs container id.
  project_id: ""
  redirect_uri: "http://localhost:8765/callback"

plangrid:
  # Either an API key or an access token.
  api_key: ""
  access_token: ""
  project_id: ""

fieldlens:
  # Either an API key or an access token.
  api_key: ""
  access_token: ""
  project_id: ""

# Optional: set both tables to keep records and mappings in DynamoDB
# instead of memory.
dynamodb:
  records_table: ""
  mappings_table: ""

sync:
  # Run platforms concurrently; concurrency 0 means no limit.
  parallel: false
  concurrency: 0
  request_timeout: 30s
`

// runInit creates a sample configuration file.
func runInit(w io.Writer) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	tokenDir, err := config.TokenDir()
	if err != nil {
		return fmt.Errorf("getting token directory: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Created config file:", configPath)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Next steps:")
	_, _ = fmt.Fprintln(w, "  1. Edit the config file with your platform credentials")
	_, _ = fmt.Fprintln(w, "  2. Run 'sitebridge auth procore' or 'sitebridge auth autodesk' for OAuth platforms")
	_, _ = fmt.Fprintln(w, "  3. Run 'sitebridge status' to check connections")
	_, _ = fmt.Fprintln(w, "  4. Run 'sitebridge run --dry-run' to test")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Refresh tokens will be stored under: %s\n", tokenDir)

	return nil
}
