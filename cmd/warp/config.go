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
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/warp/pkg/agent"
	warpconfig "github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/llm/factory"
)

const (
	// ServiceName for keyring storage
	ServiceName = "warp"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "warp"
)

// Config holds all configuration for the warp CLI.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	// DataDir is computed from WARP_DATA_DIR (or ~/.warp) and never read
	// from the config file.
	DataDir string `mapstructure:"-"`

	LLM           LLMConfig           `mapstructure:"llm"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Files         FilesConfig         `mapstructure:"files"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// LLMConfig holds provider configuration.
type LLMConfig struct {
	// Providers lists provider names in preference order.
	Providers []string `mapstructure:"providers"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`

	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"`
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`
	BedrockProfile         string `mapstructure:"bedrock_profile"`
	BedrockModelID         string `mapstructure:"bedrock_model_id"`

	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	OllamaModel    string `mapstructure:"ollama_model"`

	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	QuotaRetry QuotaRetryConfig `mapstructure:"quota_retry"`
}

// QuotaRetryConfig bounds retries of rate limited generations.
type QuotaRetryConfig struct {
	MaxRetries            int `mapstructure:"max_retries"`
	InitialBackoffSeconds int `mapstructure:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `mapstructure:"max_backoff_seconds"`
}

// DatabaseConfig holds the agent store configuration.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
}

// CacheConfig holds the capability result cache configuration.
type CacheConfig struct {
	// RedisURL selects the Redis store; empty keeps the cache in memory.
	RedisURL   string `mapstructure:"redis_url"`
	Namespace  string `mapstructure:"namespace"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	Retries    int    `mapstructure:"retries"`
}

// AgentConfig holds engine defaults.
type AgentConfig struct {
	MaxIterations       int      `mapstructure:"max_iterations"`
	ApprovalRequired    []string `mapstructure:"approval_required"`
	DefaultCapabilities []string `mapstructure:"default_capabilities"`
	DefaultHandlers     []string `mapstructure:"default_handlers"`
	SystemPrompt        string   `mapstructure:"system_prompt"`
	// SummarizeOutputs condenses large function outputs with the LLM.
	SummarizeOutputs bool `mapstructure:"summarize_outputs"`
}

// FilesConfig holds the Files and LiveFiles configuration.
type FilesConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	WriteApproval   bool   `mapstructure:"write_approval"`
	WatchDebounceMs int    `mapstructure:"watch_debounce_ms"`
}

// NotificationsConfig holds completion handler configuration.
type NotificationsConfig struct {
	// DiscordToken enables the discord handler.
	DiscordToken string `mapstructure:"discord_token"`
}

// ObservabilityConfig holds tracing configuration.
type ObservabilityConfig struct {
	Trace bool `mapstructure:"trace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig loads configuration from flags, environment, the config file
// and defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(warpconfig.GetWarpDataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/warp/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("WARP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = warpconfig.GetWarpDataDir()
	if config.Files.BaseDir == "" {
		config.Files.BaseDir = warpconfig.GetWarpWorkspaceDir()
	}

	// Non-fatal: the keyring may be unavailable; secrets can come from flags or env.
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("llm.providers", factory.DefaultOrder)
	viper.SetDefault("llm.anthropic_api_key", "")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.bedrock_region", "us-west-2")
	viper.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	viper.SetDefault("llm.ollama_endpoint", "http://localhost:11434")
	viper.SetDefault("llm.ollama_model", "llama3.1:8b")
	viper.SetDefault("llm.temperature", 1.0)
	viper.SetDefault("llm.max_tokens", 8192)
	viper.SetDefault("llm.quota_retry.max_retries", 5)
	viper.SetDefault("llm.quota_retry.initial_backoff_seconds", 5)
	viper.SetDefault("llm.quota_retry.max_backoff_seconds", 120)

	viper.SetDefault("database.path", filepath.Join(warpconfig.GetWarpDataDir(), "warp.db"))
	viper.SetDefault("database.busy_timeout_ms", 5000)

	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.namespace", "warp:cache:")
	viper.SetDefault("cache.ttl_seconds", 3600)
	viper.SetDefault("cache.retries", 2)

	defaults := agent.DefaultConfig()
	viper.SetDefault("agent.max_iterations", 0)
	viper.SetDefault("agent.approval_required", []string{})
	viper.SetDefault("agent.summarize_outputs", false)
	viper.SetDefault("agent.default_capabilities", defaults.DefaultCapabilities)
	viper.SetDefault("agent.default_handlers", defaults.DefaultHandlers)

	viper.SetDefault("files.base_dir", "")
	viper.SetDefault("files.write_approval", false)
	viper.SetDefault("files.watch_debounce_ms", 200)

	viper.SetDefault("notifications.discord_token", "")
	viper.SetDefault("observability.trace", false)

	viper.SetDefault("logging.level", "warn")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")
}

// EngineConfig converts the agent section into engine settings.
func (c *Config) EngineConfig() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.MaxIterations = c.Agent.MaxIterations
	cfg.ApprovalRequired = c.Agent.ApprovalRequired
	if len(c.Agent.DefaultCapabilities) > 0 {
		cfg.DefaultCapabilities = c.Agent.DefaultCapabilities
	}
	if len(c.Agent.DefaultHandlers) > 0 {
		cfg.DefaultHandlers = c.Agent.DefaultHandlers
	}
	if c.LLM.MaxTokens > 0 {
		cfg.MaxTokens = c.LLM.MaxTokens
	}
	cfg.Temperature = llm.Float(c.LLM.Temperature)
	return cfg
}

// FactoryConfig converts the llm section into provider factory settings.
func (c *Config) FactoryConfig() factory.FactoryConfig {
	retry := llm.DefaultQuotaRetryConfig()
	if c.LLM.QuotaRetry.MaxRetries > 0 {
		retry.MaxRetries = c.LLM.QuotaRetry.MaxRetries
	}
	if c.LLM.QuotaRetry.InitialBackoffSeconds > 0 {
		retry.InitialBackoff = time.Duration(c.LLM.QuotaRetry.InitialBackoffSeconds) * time.Second
	}
	if c.LLM.QuotaRetry.MaxBackoffSeconds > 0 {
		retry.MaxBackoff = time.Duration(c.LLM.QuotaRetry.MaxBackoffSeconds) * time.Second
	}
	return factory.FactoryConfig{
		Order:                  c.LLM.Providers,
		AnthropicAPIKey:        c.LLM.AnthropicAPIKey,
		AnthropicModel:         c.LLM.AnthropicModel,
		BedrockRegion:          c.LLM.BedrockRegion,
		BedrockAccessKeyID:     c.LLM.BedrockAccessKeyID,
		BedrockSecretAccessKey: c.LLM.BedrockSecretAccessKey,
		BedrockSessionToken:    c.LLM.BedrockSessionToken,
		BedrockProfile:         c.LLM.BedrockProfile,
		BedrockModelID:         c.LLM.BedrockModelID,
		OllamaEndpoint:         c.LLM.OllamaEndpoint,
		OllamaModel:            c.LLM.OllamaModel,
		MaxTokens:              c.LLM.MaxTokens,
		QuotaRetry:             retry,
	}
}

// SecretMapping ties a keyring key to the config field it fills.
type SecretMapping struct {
	Key         string
	Description string
	IsSet       func(*Config) bool
	Set         func(*Config, string)
}

// GetSecretMappings returns every secret the keyring can provide.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			Key:         "anthropic_api_key",
			Description: "Anthropic API key",
			IsSet:       func(c *Config) bool { return c.LLM.AnthropicAPIKey != "" },
			Set:         func(c *Config, v string) { c.LLM.AnthropicAPIKey = v },
		},
		{
			Key:         "bedrock_access_key_id",
			Description: "AWS access key id for Bedrock",
			IsSet:       func(c *Config) bool { return c.LLM.BedrockAccessKeyID != "" },
			Set:         func(c *Config, v string) { c.LLM.BedrockAccessKeyID = v },
		},
		{
			Key:         "bedrock_secret_access_key",
			Description: "AWS secret access key for Bedrock",
			IsSet:       func(c *Config) bool { return c.LLM.BedrockSecretAccessKey != "" },
			Set:         func(c *Config, v string) { c.LLM.BedrockSecretAccessKey = v },
		},
		{
			Key:         "bedrock_session_token",
			Description: "AWS session token for Bedrock",
			IsSet:       func(c *Config) bool { return c.LLM.BedrockSessionToken != "" },
			Set:         func(c *Config, v string) { c.LLM.BedrockSessionToken = v },
		},
		{
			Key:         "discord_token",
			Description: "Discord bot token for completion notifications",
			IsSet:       func(c *Config) bool { return c.Notifications.DiscordToken != "" },
			Set:         func(c *Config, v string) { c.Notifications.DiscordToken = v },
		},
		{
			Key:         "redis_url",
			Description: "Redis URL, including credentials, for the capability cache",
			IsSet:       func(c *Config) bool { return c.Cache.RedisURL != "" },
			Set:         func(c *Config, v string) { c.Cache.RedisURL = v },
		},
	}
}

// loadSecretsFromKeyring fills unset secrets from the system keyring.
func loadSecretsFromKeyring(config *Config) error {
	for _, m := range GetSecretMappings() {
		if m.IsSet(config) {
			continue
		}
		value, err := keyring.Get(ServiceName, m.Key)
		if err != nil || value == "" {
			continue
		}
		m.Set(config, value)
	}
	return nil
}

// lookupSecretMapping returns the mapping for key.
func lookupSecretMapping(key string) (SecretMapping, bool) {
	for _, m := range GetSecretMappings() {
		if m.Key == key {
			return m, true
		}
	}
	return SecretMapping{}, false
}
