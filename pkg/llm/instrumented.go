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
	"fmt"
	"time"

	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// InstrumentedProvider wraps a Provider with spans and metrics for every
// generation: token usage, cost, latency and errors.
type InstrumentedProvider struct {
	provider Provider
	tracer   observability.Tracer
}

// NewInstrumentedProvider creates a new instrumented provider.
func NewInstrumentedProvider(provider Provider, tracer observability.Tracer) *InstrumentedProvider {
	return &InstrumentedProvider{provider: provider, tracer: tracer}
}

func (p *InstrumentedProvider) Name() string       { return p.provider.Name() }
func (p *InstrumentedProvider) Model() string      { return p.provider.Model() }
func (p *InstrumentedProvider) IsConfigured() bool { return p.provider.IsConfigured() }

func (p *InstrumentedProvider) GenerateText(ctx context.Context, messages []types.Message, opts GenerateOptions) (*Generation, error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanLLMGenerate)
	defer p.tracer.EndSpan(span)

	labels := map[string]string{
		observability.AttrLLMProvider: p.provider.Name(),
		observability.AttrLLMModel:    p.provider.Model(),
	}
	span.SetAttribute(observability.AttrLLMProvider, p.provider.Name())
	span.SetAttribute(observability.AttrLLMModel, p.provider.Model())
	span.SetAttribute("llm.messages.count", len(messages))

	start := time.Now()
	gen, err := p.provider.GenerateText(ctx, messages, opts)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetAttribute(observability.AttrErrorType, fmt.Sprintf("%T", err))
		p.tracer.RecordMetric(observability.MetricProviderErrors, 1, labels)
		return nil, err
	}

	span.Status = observability.Status{Code: observability.StatusOK}
	span.SetAttribute(observability.AttrLLMInputTokens, gen.InputTokens)
	span.SetAttribute(observability.AttrLLMOutputTokens, gen.OutputTokens)
	span.SetAttribute(observability.AttrLLMCost, gen.Cost)
	span.SetAttribute("llm.duration_ms", duration.Milliseconds())

	p.tracer.RecordMetric(observability.MetricLLMCalls, 1, labels)
	p.tracer.RecordMetric(observability.MetricLLMLatency, float64(duration.Milliseconds()), labels)
	p.tracer.RecordMetric(observability.MetricLLMTokens, float64(gen.InputTokens+gen.OutputTokens), labels)
	p.tracer.RecordMetric(observability.MetricCost, gen.Cost, labels)
	return gen, nil
}
