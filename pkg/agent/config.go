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
package agent

import (
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/capability/builtin"
	"github.com/teradata-labs/warp/pkg/completion"
	"github.com/teradata-labs/warp/pkg/observability"
)

// Config holds the engine settings shared by every agent.
type Config struct {
	// ApprovalRequired lists qualified function names ("Files.write") that
	// pause for a human in addition to methods flagged in their schema.
	ApprovalRequired []string

	// DefaultCapabilities are given to every agent when the catalog has them.
	DefaultCapabilities []string

	// DefaultHandlers are notified for agents started without handlers.
	DefaultHandlers []string

	// FinishFunction and FeedbackFunction are the qualified names of the
	// finish and ask-human signals.
	FinishFunction   string
	FeedbackFunction string

	// MaxIterations stops an execution in the error state once it has run
	// this many iterations. Zero means unlimited.
	MaxIterations int

	// MaxTokens and Temperature are passed to every generation.
	MaxTokens   int
	Temperature *float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCapabilities: []string{builtin.AgentName},
		DefaultHandlers:     []string{completion.ConsoleID},
		FinishFunction:      capability.QualifiedName(builtin.AgentName, builtin.CompletedMethod),
		FeedbackFunction:    capability.QualifiedName(builtin.AgentName, builtin.RequestFeedbackMethod),
		MaxTokens:           8192,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the engine configuration. Empty signal names keep
// their defaults.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		defaults := DefaultConfig()
		if config.FinishFunction == "" {
			config.FinishFunction = defaults.FinishFunction
		}
		if config.FeedbackFunction == "" {
			config.FeedbackFunction = defaults.FeedbackFunction
		}
		e.config = config
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for runs, iterations and dispatches.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithCompletions sets the completion handler registry.
func WithCompletions(registry *completion.Registry) Option {
	return func(e *Engine) { e.completions = registry }
}

// WithCache sets the cache whose agent scope is cleared on Delete.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithSummarizer sets the summarizer for large call outputs.
func WithSummarizer(s capability.Summarizer) Option {
	return func(e *Engine) { e.summarizer = s }
}

// WithParser replaces the JSONResponseParser.
func WithParser(p ResponseParser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithPromptBuilder replaces the DefaultPromptBuilder.
func WithPromptBuilder(b PromptBuilder) Option {
	return func(e *Engine) { e.prompts = b }
}

// WithPromptSections adds sections to the DefaultPromptBuilder.
func WithPromptSections(sections ...PromptSection) Option {
	return func(e *Engine) { e.sections = append(e.sections, sections...) }
}

// WithSystemPrompt overrides DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) { e.systemPrompt = prompt }
}

// WithIDGenerator overrides UUID generation for agent and execution ids.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}
