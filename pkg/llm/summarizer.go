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

	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

const summarizePrompt = `You are summarizing the output of the function %s for an autonomous agent.
Keep every identifier, number, path, error message and result the agent may need.
Omit repetition and boilerplate. Reply with the summary only.`

// Summarizer condenses large function outputs with a provider. When a cache is
// set, summaries are memoized in the global scope keyed by function and text.
type Summarizer struct {
	provider Provider
	cache    *cache.Cache
	tracer   observability.Tracer
	maxInput int
}

type summary struct {
	Text string  `json:"text"`
	Cost float64 `json:"cost"`
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithSummaryCache memoizes summaries.
func WithSummaryCache(c *cache.Cache) SummarizerOption {
	return func(s *Summarizer) { s.cache = c }
}

// WithSummaryTracer sets the tracer.
func WithSummaryTracer(tracer observability.Tracer) SummarizerOption {
	return func(s *Summarizer) { s.tracer = tracer }
}

// NewSummarizer creates a summarizer backed by provider.
func NewSummarizer(provider Provider, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		provider: provider,
		tracer:   observability.NewNoOpTracer(),
		maxInput: 200 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns a summary of text and the generation cost. Cached
// summaries cost nothing.
func (s *Summarizer) Summarize(ctx context.Context, functionName, text string) (string, float64, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanLLMSummarize,
		observability.WithAttribute(observability.AttrToolName, functionName))
	defer s.tracer.EndSpan(span)

	if len(text) > s.maxInput {
		text = text[:s.maxInput]
	}

	generate := func(ctx context.Context) (summary, error) {
		gen, err := s.provider.GenerateText(ctx, []types.Message{
			{Role: types.RoleSystem, Content: fmt.Sprintf(summarizePrompt, functionName)},
			{Role: types.RoleUser, Content: text},
		}, GenerateOptions{MaxTokens: 1024, Temperature: Float(0)})
		if err != nil {
			return summary{}, err
		}
		return summary{Text: gen.Text, Cost: gen.Cost}, nil
	}

	if s.cache == nil {
		out, err := generate(ctx)
		if err != nil {
			span.RecordError(err)
			return "", 0, fmt.Errorf("failed to summarize %s output: %w", functionName, err)
		}
		return out.Text, out.Cost, nil
	}

	var computed bool
	out, err := cache.Do(ctx, s.cache, cache.Key{
		Scope:      cache.ScopeGlobal,
		Capability: "LLM",
		Method:     "summarize",
		Args:       []any{functionName, text},
	}, func(ctx context.Context) (summary, error) {
		computed = true
		return generate(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return "", 0, fmt.Errorf("failed to summarize %s output: %w", functionName, err)
	}
	if !computed {
		return out.Text, 0, nil
	}
	return out.Text, out.Cost, nil
}
