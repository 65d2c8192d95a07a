package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg, err := Load(writeConfig(t, "app:\n  name: sentinel\n"))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.App.Workspace)
	assert.Equal(t, "Senior DevOps Engineer", cfg.Agent.Role)
	assert.Equal(t, 15, cfg.Agent.MaxTurns)
	assert.Equal(t, 0, cfg.Agent.HistoryCap)
	assert.Equal(t, 5*time.Minute, cfg.Agent.ShellTimeout)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Server.RunTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 1500, cfg.Index.ChunkSize)
	assert.Equal(t, 350, cfg.Index.ChunkOverlap)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "googleai", name)
	assert.Equal(t, "gemini-2.0-flash", p.Model)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  workspace: /tmp/work
provider: openai
providers:
  openai:
    api_key: ${SENTINEL_TEST_KEY}
    model: gpt-4o-mini
    enabled: true
agent:
  max_turns: 7
  history_cap: 6
governance:
  deny_patterns:
    - 'rm\s+-rf'
gateways:
  telegram:
    enabled: true
    token: abc
    chat_id: "42"
`)
	t.Setenv("SENTINEL_TEST_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/work", cfg.App.Workspace)
	assert.Equal(t, 7, cfg.Agent.MaxTurns)
	assert.Equal(t, 6, cfg.Agent.HistoryCap)
	assert.Equal(t, []string{`rm\s+-rf`}, cfg.Governance.DenyPatterns)
	assert.Equal(t, []string{"original.tf", "logs.json"}, cfg.Governance.ProtectedFiles)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "sk-test", p.APIKey)
	assert.Equal(t, "gpt-4o-mini", p.Model)

	tg, ok := cfg.GetGateway("telegram")
	require.True(t, ok)
	assert.Equal(t, "42", tg.ChatID)

	_, ok = cfg.GetGateway("discord")
	assert.False(t, ok)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("SENTINEL_MODEL", "gemini-1.5-pro")

	cfg, err := Load(writeConfig(t, "agent:\n  role: Auditor\n"))
	require.NoError(t, err)

	_, p := cfg.GetDefaultProvider()
	assert.Equal(t, "g-key", p.APIKey)
	assert.Equal(t, "gemini-1.5-pro", p.Model)
	assert.Equal(t, "Auditor", cfg.Agent.Role)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetDefaultProviderFallsBackToFirstEnabled(t *testing.T) {
	cfg := &Config{
		Provider: "googleai",
		Providers: map[string]ProviderConfig{
			"googleai": {Enabled: false},
			"ollama":   {Enabled: true, Model: "llama3"},
			"openai":   {Enabled: true, Model: "gpt-4o"},
		},
	}
	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "ollama", name)
	assert.Equal(t, "llama3", p.Model)
}
