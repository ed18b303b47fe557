package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestConfigPaths(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := ConfigDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".sitebridge"), dir)

	path, err := ConfigFilePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".sitebridge", "config.yaml"), path)

	tokens, err := TokenDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".sitebridge", "tokens"), tokens)

	require.False(t, LocalConfigExists())
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(path, []byte("procore: {}\n"), 0o600))
	require.True(t, LocalConfigExists())

	cfg, err := LoadLocal(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8765/callback", cfg.Procore.RedirectURI)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content      string
		envVars      map[string]string
		errFragments []string
		noFile       bool
		validate     func(t *testing.T, cfg *Settings)
		wantErr      bool
	}{
		"full file": {
			content: `
procore:
  client_id: "pc-id"
  client_secret: "pc-secret"
  company_id: "42"
  project_id: "1001"
sage:
  username: "estimator"
  password: "pw"
  project_id: "J-1"
plangrid:
  api_key: "pg-key"
  project_id: "pg-1"
sync:
  parallel: true
  request_timeout: 10s
  since: "2025-02-01"
`,
			validate: func(t *testing.T, cfg *Settings) {
				require.Equal(t, "pc-id", cfg.Procore.ClientID)
				require.Equal(t, "42", cfg.Procore.CompanyID)
				require.Equal(t, "http://localhost:8765/callback", cfg.Procore.RedirectURI)
				require.Equal(t, "estimator", cfg.Sage.Username)
				require.Equal(t, "pg-key", cfg.PlanGrid.APIKey)
				require.True(t, cfg.Sync.Parallel)
				require.Equal(t, 10*time.Second, cfg.Sync.RequestTimeout)
				require.True(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Equal(cfg.Sync.Since.Time))
				require.Equal(t, "PendingExportIndex", cfg.DynamoDB.PendingIndex)
				require.False(t, cfg.HasDynamoDB())
			},
		},
		"file wins over environment": {
			content: "fieldlens:\n  api_key: \"from-file\"\n",
			envVars: map[string]string{
				"FIELDLENS_API_KEY":    "from-env",
				"FIELDLENS_PROJECT_ID": "env-project",
			},
			validate: func(t *testing.T, cfg *Settings) {
				require.Equal(t, "from-file", cfg.Fieldlens.APIKey)
				require.Equal(t, "env-project", cfg.Fieldlens.ProjectID)
			},
		},
		"empty file uses defaults": {
			content: "",
			validate: func(t *testing.T, cfg *Settings) {
				require.Equal(t, 30*time.Second, cfg.Sync.RequestTimeout)
				require.Equal(t, "/sitebridge/last-sync", cfg.SSM.ParameterPrefix)
			},
		},
		"missing file": {
			noFile:       true,
			wantErr:      true,
			errFragments: []string{"config file not found", "sitebridge init"},
		},
		"invalid yaml": {
			content:      "procore: [unclosed",
			wantErr:      true,
			errFragments: []string{"parsing config file"},
		},
		"invalid concurrency": {
			content:      "sync:\n  concurrency: -3\n",
			wantErr:      true,
			errFragments: []string{"invalid config", "cannot be negative"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			if !tc.noFile {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))
			}

			cfg, err := loadFile(context.Background(), path, envconfig.MapLookuper(tc.envVars))

			if tc.wantErr {
				require.Error(t, err)
				for _, fragment := range tc.errFragments {
					require.Contains(t, err.Error(), fragment)
				}
				return
			}
			require.NoError(t, err)
			tc.validate(t, cfg)
		})
	}
}
