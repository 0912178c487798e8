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
// Package factory builds the provider stack used by the engine from configuration.
package factory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/llm/anthropic"
	"github.com/teradata-labs/warp/pkg/llm/bedrock"
	"github.com/teradata-labs/warp/pkg/llm/ollama"
	"github.com/teradata-labs/warp/pkg/observability"
)

// DefaultOrder is the provider preference used when none is configured.
var DefaultOrder = []string{"anthropic", "bedrock", "ollama"}

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	// Order lists provider names in preference order.
	Order []string

	// Anthropic configuration
	AnthropicAPIKey string
	AnthropicModel  string

	// Bedrock configuration
	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockProfile         string
	BedrockModelID         string

	// Ollama configuration
	OllamaEndpoint string
	OllamaModel    string

	// Common settings
	MaxTokens int

	// QuotaRetry wraps the whole stack.
	QuotaRetry llm.QuotaRetryConfig

	// TokenCounter fills in usage for providers that do not report it.
	TokenCounter *llm.TokenCounter

	Logger *zap.Logger
	Tracer observability.Tracer
}

// ProviderFactory creates LLM providers based on configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if len(config.Order) == 0 {
		config.Order = DefaultOrder
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	return &ProviderFactory{config: config}
}

// CreateProvider creates a single named provider.
func (f *ProviderFactory) CreateProvider(ctx context.Context, name string) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:    f.config.AnthropicAPIKey,
			Model:     f.config.AnthropicModel,
			MaxTokens: f.config.MaxTokens,
		}), nil
	case "bedrock":
		return bedrock.NewClient(ctx, bedrock.Config{
			Region:          f.config.BedrockRegion,
			AccessKeyID:     f.config.BedrockAccessKeyID,
			SecretAccessKey: f.config.BedrockSecretAccessKey,
			SessionToken:    f.config.BedrockSessionToken,
			Profile:         f.config.BedrockProfile,
			ModelID:         f.config.BedrockModelID,
			MaxTokens:       f.config.MaxTokens,
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{
			Endpoint:  f.config.OllamaEndpoint,
			Model:     f.config.OllamaModel,
			MaxTokens: f.config.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// Build returns the full stack: quota retry around an ordered multi-provider
// of instrumented providers.
func (f *ProviderFactory) Build(ctx context.Context) (llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(f.config.Order))
	for _, name := range f.config.Order {
		p, err := f.CreateProvider(ctx, name)
		if err != nil {
			return nil, err
		}
		f.config.Logger.Debug("LLM provider created",
			zap.String("provider", p.Name()),
			zap.String("model", p.Model()),
			zap.Bool("configured", p.IsConfigured()))
		providers = append(providers, llm.NewInstrumentedProvider(p, f.config.Tracer))
	}
	return Wrap(providers, f.config), nil
}

// Wrap composes providers the same way Build does.
func Wrap(providers []llm.Provider, config FactoryConfig) llm.Provider {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	multi := llm.NewMultiProvider(providers,
		llm.WithMultiLogger(config.Logger),
		llm.WithMultiTracer(config.Tracer),
		llm.WithTokenCounter(config.TokenCounter))
	retry := config.QuotaRetry
	if retry.Logger == nil {
		retry.Logger = config.Logger
	}
	return llm.NewQuotaRetry(multi, retry, llm.WithRetryTracer(config.Tracer))
}
