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
// Package llm defines the text generation provider abstraction used by the
// agent engine, and the wrappers composed around providers: quota-aware
// retry, ordered multi-provider failover and instrumentation.
package llm

import (
	"context"

	"github.com/teradata-labs/warp/pkg/types"
)

// Provider generates text from a conversation.
type Provider interface {
	// Name returns the provider name (e.g. "anthropic", "bedrock").
	Name() string

	// Model returns the model identifier.
	Model() string

	// IsConfigured reports whether the provider has the credentials it needs.
	IsConfigured() bool

	// GenerateText sends messages and returns the generated text.
	GenerateText(ctx context.Context, messages []types.Message, opts GenerateOptions) (*Generation, error)
}

// Preferrer is implemented by providers that can reorder their backends by name.
type Preferrer interface {
	Prefer(names []string) Provider
}

// GenerateOptions tune a single generation.
type GenerateOptions struct {
	MaxTokens     int
	Temperature   *float64
	StopSequences []string
}

// Generation is the result of one successful generation.
type Generation struct {
	Text         string
	Cost         float64 // USD
	InputTokens  int
	OutputTokens int
	Provider     string
	Model        string
}

// Float returns a pointer to f, for GenerateOptions.Temperature.
func Float(f float64) *float64 {
	return &f
}

// SystemAndTurns splits messages into the concatenated system prompt and the
// remaining conversation turns.
func SystemAndTurns(messages []types.Message) (string, []types.Message) {
	var system string
	turns := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
