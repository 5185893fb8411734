package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database:
  type: sqlite
  connection: ":memory:"
workflows:
  max_parallel: 4
routing:
  default_provider: claude
  timeout: 30s
  retry:
    max_retries: 2
    initial_backoff: 200ms
  rules:
    - name: fire-court
      provider: gpt
      courts: [Draconia]
    - name: high-frequency
      provider: claude
      min_frequency: 800
  fallbacks:
    claude: [gpt, echo]
providers:
  - name: claude
    type: anthropic
    api_key_env: TEST_ARCANEA_KEY
    model: claude-sonnet-4-5
  - name: gpt
    type: openai
    api_key: sk-test
    rate_limit: 2
    burst: 1
  - name: echo
    type: echo
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "claude", cfg.Routing.DefaultProvider)
	assert.Equal(t, 30*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 2, cfg.Routing.Retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Routing.Retry.InitialBackoff)
	assert.Equal(t, 2.0, cfg.Routing.Retry.BackoffMultiplier)
	assert.Equal(t, 4, cfg.Workflows.MaxParallel)

	require.Len(t, cfg.Routing.Rules, 2)
	assert.Equal(t, []string{"Draconia"}, cfg.Routing.Rules[0].Courts)
	assert.Equal(t, 800.0, cfg.Routing.Rules[1].MinFrequency)
	assert.Equal(t, []string{"gpt", "echo"}, cfg.Routing.Fallbacks["claude"])

	require.Len(t, cfg.Providers, 3)
	gpt, ok := cfg.Provider("gpt")
	require.True(t, ok)
	assert.Equal(t, 2.0, gpt.RateLimit)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "claude", cfg.Routing.DefaultProvider)
	assert.Len(t, cfg.Providers, 4)
	assert.Equal(t, 60*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Routing.Retry.InitialBackoff)
	assert.Equal(t, []string{"gpt", "local"}, cfg.Routing.Fallbacks["claude"])
}

func TestLoad_RetryPreset(t *testing.T) {
	content := strings.Replace(sampleConfig, "  retry:\n", "  retry_preset: Persistent\n  retry:\n", 1)
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Routing.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Routing.Retry.InitialBackoff)
	assert.Equal(t, 2.5, cfg.Routing.Retry.BackoffMultiplier)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "echo", cfg.Routing.DefaultProvider)
	assert.Equal(t, 60*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 3, cfg.Routing.Retry.MaxRetries)
	assert.Len(t, cfg.Providers, len(DefaultProviders()))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARCANEA_ROUTING_DEFAULT_PROVIDER", "gpt")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "gpt", cfg.Routing.DefaultProvider)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "routing: [unclosed"))
	assert.Error(t, err)
}

func TestProviderConfig_ResolveAPIKey(t *testing.T) {
	t.Setenv("TEST_ARCANEA_KEY", "from-env")

	assert.Equal(t, "explicit", ProviderConfig{APIKey: "explicit", APIKeyEnv: "TEST_ARCANEA_KEY"}.ResolveAPIKey())
	assert.Equal(t, "from-env", ProviderConfig{APIKeyEnv: "TEST_ARCANEA_KEY"}.ResolveAPIKey())
	assert.Empty(t, ProviderConfig{}.ResolveAPIKey())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad database", func(c *Config) { c.Database.Type = "mysql" }},
		{"unknown default", func(c *Config) { c.Routing.DefaultProvider = "nope" }},
		{"zero timeout", func(c *Config) { c.Routing.Timeout = 0 }},
		{"rule unknown provider", func(c *Config) { c.Routing.Rules[0].Provider = "nope" }},
		{"inverted frequency", func(c *Config) { c.Routing.Rules[1].MinFrequency, c.Routing.Rules[1].MaxFrequency = 900, 100 }},
		{"fallback unknown", func(c *Config) { c.Routing.Fallbacks["claude"] = []string{"ghost"} }},
		{"duplicate provider", func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) }},
		{"compat without url", func(c *Config) { c.Providers[2].Type = ProviderTypeCompat }},
		{"unknown type", func(c *Config) { c.Providers[2].Type = "grpc" }},
		{"negative parallel", func(c *Config) { c.Workflows.MaxParallel = -1 }},
		{"unknown retry preset", func(c *Config) { c.Routing.RetryPreset = "eager" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
