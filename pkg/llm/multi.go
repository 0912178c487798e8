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
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// MultiProvider tries its providers in order and returns the first success.
// Unconfigured providers are skipped.
type MultiProvider struct {
	providers []Provider
	counter   *TokenCounter
	logger    *zap.Logger
	tracer    observability.Tracer
}

// MultiOption configures a MultiProvider.
type MultiOption func(*MultiProvider)

// WithMultiLogger sets the logger.
func WithMultiLogger(logger *zap.Logger) MultiOption {
	return func(m *MultiProvider) { m.logger = logger }
}

// WithMultiTracer sets the tracer.
func WithMultiTracer(tracer observability.Tracer) MultiOption {
	return func(m *MultiProvider) { m.tracer = tracer }
}

// WithTokenCounter estimates token usage for providers that do not report it.
func WithTokenCounter(counter *TokenCounter) MultiOption {
	return func(m *MultiProvider) { m.counter = counter }
}

// NewMultiProvider creates a façade over providers, in preference order.
func NewMultiProvider(providers []Provider, opts ...MultiOption) *MultiProvider {
	m := &MultiProvider{
		providers: providers,
		logger:    zap.NewNop(),
		tracer:    observability.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MultiProvider) Name() string { return "multi" }

// Model returns the model of the first configured provider.
func (m *MultiProvider) Model() string {
	for _, p := range m.providers {
		if p.IsConfigured() {
			return p.Model()
		}
	}
	return ""
}

func (m *MultiProvider) IsConfigured() bool {
	for _, p := range m.providers {
		if p.IsConfigured() {
			return true
		}
	}
	return false
}

// Providers returns the provider names in order.
func (m *MultiProvider) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// Prefer returns a MultiProvider that tries the named providers first, in the
// given order, followed by the remaining ones. Unknown names are ignored.
func (m *MultiProvider) Prefer(names []string) Provider {
	if len(names) == 0 {
		return m
	}
	ordered := make([]Provider, 0, len(m.providers))
	used := make(map[int]bool, len(m.providers))
	for _, name := range names {
		for i, p := range m.providers {
			if !used[i] && strings.EqualFold(p.Name(), name) {
				ordered = append(ordered, p)
				used[i] = true
			}
		}
	}
	for i, p := range m.providers {
		if !used[i] {
			ordered = append(ordered, p)
		}
	}
	clone := *m
	clone.providers = ordered
	return &clone
}

// GenerateText returns the first successful generation. If no provider is
// configured it returns ErrNoProviderConfigured; if all fail, an error wrapping
// ErrAllProvidersFailed joined with every provider error.
func (m *MultiProvider) GenerateText(ctx context.Context, messages []types.Message, opts GenerateOptions) (*Generation, error) {
	var errs []error
	tried := 0
	for _, p := range m.providers {
		if !p.IsConfigured() {
			continue
		}
		tried++
		gen, err := p.GenerateText(ctx, messages, opts)
		if err == nil {
			m.fillUsage(gen, p, messages)
			return gen, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("LLM provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("model", p.Model()),
			zap.Error(err))
		m.tracer.RecordMetric(observability.MetricProviderErrors, 1, map[string]string{
			observability.AttrLLMProvider: p.Name(),
		})
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if tried == 0 {
		return nil, ErrNoProviderConfigured
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (m *MultiProvider) fillUsage(gen *Generation, p Provider, messages []types.Message) {
	if gen.Provider == "" {
		gen.Provider = p.Name()
	}
	if gen.Model == "" {
		gen.Model = p.Model()
	}
	if gen.InputTokens == 0 && m.counter != nil {
		for _, msg := range messages {
			gen.InputTokens += m.counter.Count(msg.Content)
		}
	}
	if gen.OutputTokens == 0 && m.counter != nil {
		gen.OutputTokens = m.counter.Count(gen.Text)
	}
}
