package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/peteski22/sitebridge/internal/config"
)

func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	var settings config.Settings
	require.NoError(t, yaml.Unmarshal([]byte(configTemplate), &settings))

	require.Equal(t, "http://localhost:8765/callback", settings.Procore.RedirectURI)
	require.Equal(t, "http://localhost:8765/callback", settings.Autodesk.RedirectURI)
	require.Equal(t, 30*time.Second, settings.Sync.RequestTimeout)
	require.False(t, settings.HasDynamoDB())

	for _, section := range []string{"procore:", "sage:", "autodesk:", "plangrid:", "fieldlens:", "dynamodb:", "sync:"} {
		require.Contains(t, configTemplate, section)
	}
}

func TestRunInitCreatesConfig(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	var out bytes.Buffer
	require.NoError(t, runInit(&out))

	configPath := filepath.Join(tmpHome, ".sitebridge", "config.yaml")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, configTemplate, string(data))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Join(tmpHome, ".sitebridge"))
	require.NoError(t, err)
	require.True(t, dirInfo.IsDir())
	require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	require.Contains(t, out.String(), configPath)
	require.Contains(t, out.String(), "sitebridge auth procore")
	require.Contains(t, out.String(), filepath.Join(tmpHome, ".sitebridge", "tokens"))
}

func TestRunInitTemplateLoads(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, runInit(&bytes.Buffer{}))

	settings, err := config.LoadLocal(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/sitebridge/last-sync", settings.SSM.ParameterPrefix)
}

func TestRunInitFailsIfConfigExists(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().

	tmpHome := t.TempDir()
	configDir := filepath.Join(tmpHome, ".sitebridge")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("existing config"), 0o600))

	t.Setenv("HOME", tmpHome)

	err := runInit(&bytes.Buffer{})
	require.ErrorContains(t, err, "config file already exists")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, "existing config", string(data))
}
