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
// Package mock provides a scripted llm.Provider for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
)

// ErrScriptExhausted is returned once every step has been consumed and the
// provider does not repeat its last step.
var ErrScriptExhausted = errors.New("mock provider script exhausted")

// Step is one scripted generation: either Text or Err.
type Step struct {
	Text string
	Cost float64
	Err  error
}

// ScriptedProvider replays Steps in order and records every request.
type ScriptedProvider struct {
	name       string
	model      string
	configured bool
	repeat     bool
	respond    func(call int, messages []types.Message) (*llm.Generation, error)

	mu    sync.Mutex
	steps []Step
	calls [][]types.Message
}

// Option configures a ScriptedProvider.
type Option func(*ScriptedProvider)

// WithName sets the provider name (default "mock").
func WithName(name string) Option {
	return func(p *ScriptedProvider) { p.name = name }
}

// Unconfigured makes IsConfigured report false.
func Unconfigured() Option {
	return func(p *ScriptedProvider) { p.configured = false }
}

// RepeatLast keeps returning the last step once the script is consumed.
func RepeatLast() Option {
	return func(p *ScriptedProvider) { p.repeat = true }
}

// WithResponder computes responses instead of replaying steps. call is zero-based.
func WithResponder(fn func(call int, messages []types.Message) (*llm.Generation, error)) Option {
	return func(p *ScriptedProvider) { p.respond = fn }
}

// NewScriptedProvider creates a provider replaying steps.
func NewScriptedProvider(steps []Step, opts ...Option) *ScriptedProvider {
	p := &ScriptedProvider{
		name:       "mock",
		model:      "mock-model",
		configured: true,
		steps:      steps,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ScriptedProvider) Name() string       { return p.name }
func (p *ScriptedProvider) Model() string      { return p.model }
func (p *ScriptedProvider) IsConfigured() bool { return p.configured }

func (p *ScriptedProvider) GenerateText(ctx context.Context, messages []types.Message, opts llm.GenerateOptions) (*llm.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	call := len(p.calls)
	p.calls = append(p.calls, append([]types.Message(nil), messages...))
	respond := p.respond
	var step Step
	exhausted := false
	if respond == nil {
		switch {
		case call < len(p.steps):
			step = p.steps[call]
		case p.repeat && len(p.steps) > 0:
			step = p.steps[len(p.steps)-1]
		default:
			exhausted = true
		}
	}
	p.mu.Unlock()

	if respond != nil {
		return respond(call, messages)
	}
	if exhausted {
		return nil, ErrScriptExhausted
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &llm.Generation{
		Text:     step.Text,
		Cost:     step.Cost,
		Provider: p.name,
		Model:    p.model,
	}, nil
}

// Calls returns the number of generation requests received.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Request returns the messages of the i-th request.
func (p *ScriptedProvider) Request(i int) []types.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.calls) {
		return nil
	}
	return p.calls[i]
}
