// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/warp/pkg/llm/factory"
)

// isolate points the data and workspace directories at temp dirs, resets
// viper and replaces the keyring with an in-memory mock.
func isolate(t *testing.T) (dataDir, workspace string) {
	t.Helper()
	dataDir = t.TempDir()
	workspace = t.TempDir()
	t.Setenv("WARP_DATA_DIR", dataDir)
	t.Setenv("WARP_WORKSPACE_DIR", workspace)
	viper.Reset()
	t.Cleanup(viper.Reset)
	keyring.MockInit()
	return dataDir, workspace
}

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir, workspace := isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "warp.db"), cfg.Database.Path)
	assert.Equal(t, workspace, cfg.Files.BaseDir)
	assert.Equal(t, factory.DefaultOrder, cfg.LLM.Providers)
	assert.Equal(t, 1.0, cfg.LLM.Temperature)
	assert.Equal(t, 8192, cfg.LLM.MaxTokens)
	assert.Equal(t, []string{"Agent"}, cfg.Agent.DefaultCapabilities)
	assert.Equal(t, []string{"console"}, cfg.Agent.DefaultHandlers)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Empty(t, cfg.LLM.AnthropicAPIKey)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dataDir, _ := isolate(t)
	content := `llm:
  providers: [bedrock, ollama]
  bedrock_region: eu-west-1
  quota_retry:
    max_retries: 2
agent:
  max_iterations: 25
  approval_required: [Files.write]
  summarize_outputs: true
files:
  base_dir: /srv/work
cache:
  ttl_seconds: 60
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "warp.yaml"), []byte(content), 0o600))
	t.Setenv("WARP_AGENT_MAX_ITERATIONS", "40")
	t.Setenv("WARP_LOGGING_FORMAT", "json")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"bedrock", "ollama"}, cfg.LLM.Providers)
	assert.Equal(t, "eu-west-1", cfg.LLM.BedrockRegion)
	assert.Equal(t, 2, cfg.LLM.QuotaRetry.MaxRetries)
	assert.Equal(t, 40, cfg.Agent.MaxIterations, "env overrides the file")
	assert.Equal(t, []string{"Files.write"}, cfg.Agent.ApprovalRequired)
	assert.True(t, cfg.Agent.SummarizeOutputs)
	assert.Equal(t, "/srv/work", cfg.Files.BaseDir)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/custom.db\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_SecretsFromKeyring(t *testing.T) {
	isolate(t)
	require.NoError(t, keyring.Set(ServiceName, "anthropic_api_key", "sk-ant-from-keyring"))
	require.NoError(t, keyring.Set(ServiceName, "discord_token", "discord-from-keyring"))
	t.Setenv("WARP_NOTIFICATIONS_DISCORD_TOKEN", "discord-from-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-keyring", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, "discord-from-env", cfg.Notifications.DiscordToken, "configured secrets are not replaced")
}

func TestSecretMappings(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range GetSecretMappings() {
		assert.False(t, seen[m.Key], "duplicate key %s", m.Key)
		seen[m.Key] = true

		var cfg Config
		assert.False(t, m.IsSet(&cfg), m.Key)
		m.Set(&cfg, "value")
		assert.True(t, m.IsSet(&cfg), m.Key)
	}
	_, ok := lookupSecretMapping("redis_url")
	assert.True(t, ok)
	_, ok = lookupSecretMapping("database_path")
	assert.False(t, ok)
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := &Config{
		LLM:   LLMConfig{Temperature: 0.2, MaxTokens: 1024},
		Agent: AgentConfig{MaxIterations: 9, ApprovalRequired: []string{"Web.fetch"}},
	}
	ec := cfg.EngineConfig()
	assert.Equal(t, 9, ec.MaxIterations)
	assert.Equal(t, 1024, ec.MaxTokens)
	require.NotNil(t, ec.Temperature)
	assert.Equal(t, 0.2, *ec.Temperature)
	assert.Equal(t, []string{"Web.fetch"}, ec.ApprovalRequired)
	assert.Equal(t, []string{"Agent"}, ec.DefaultCapabilities, "engine defaults are kept when unset")
	assert.NotEmpty(t, ec.FinishFunction)
}

func TestConfig_FactoryConfig(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{
		Providers:      []string{"ollama"},
		OllamaEndpoint: "http://ollama:11434",
		QuotaRetry:     QuotaRetryConfig{MaxRetries: 3, InitialBackoffSeconds: 1, MaxBackoffSeconds: 10},
	}}
	fc := cfg.FactoryConfig()
	assert.Equal(t, []string{"ollama"}, fc.Order)
	assert.Equal(t, "http://ollama:11434", fc.OllamaEndpoint)
	assert.Equal(t, 3, fc.QuotaRetry.MaxRetries)
	assert.Equal(t, time.Second, fc.QuotaRetry.InitialBackoff)
	assert.Equal(t, 10*time.Second, fc.QuotaRetry.MaxBackoff)
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []LoggingConfig{
		{Level: "debug", Format: "text"},
		{Level: "WARN", Format: "json"},
		{Level: "info", File: filepath.Join(t.TempDir(), "warp.log")},
	} {
		logger, err := newLogger(cfg)
		require.NoError(t, err, "%+v", cfg)
		logger.Info("hello")
		_ = logger.Sync()
	}

	_, err := newLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = newLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", maskSecret("sk-ant-abcdefwxyz"))
}
