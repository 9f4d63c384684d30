package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
engine:
  base_url: http://localhost:8000/api
  poll_interval_ms: 500
dataset:
  page_size: 50
utilization_bands:
  good: 85
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api", cfg.Engine.BaseURL)
	require.Equal(t, 500, cfg.Engine.PollIntervalMS)
	require.Equal(t, 50, cfg.Dataset.PageSize)

	// Defaults fill unset fields.
	require.Equal(t, 10, cfg.Engine.TimeoutSeconds)
	require.Equal(t, 5, cfg.Engine.MaxPollFailures)
	require.Equal(t, ":9090", cfg.Metrics.PrometheusPort)
	require.Equal(t, "rakeplan", cfg.Notify.ClientID)
	require.Equal(t, 85.0, cfg.Bands.Good)
	require.Equal(t, 60.0, cfg.Bands.Fair)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "engine": {"base_url": "http://engine:8000/api"}
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://engine:8000/api", cfg.Engine.BaseURL)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
engine:
  base_url: http://localhost:8000/api
`)
	t.Setenv("RP_ENGINE__BASE_URL", "http://override:9000/api")
	t.Setenv("RP_ENGINE__POLL_INTERVAL_MS", "250")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://override:9000/api", cfg.Engine.BaseURL)
	require.Equal(t, 250, cfg.Engine.PollIntervalMS)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", `x = 1`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresEngineBaseURL(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
dataset:
  page_size: 10
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnabledNotifyNeedsBroker(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
engine:
  base_url: http://localhost:8000/api
notify:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
