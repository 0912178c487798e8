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

// Package capability defines the tool surface an agent can call.
//
// A Capability is an object exposing named methods described by a hand-written
// MethodSchema. The model requests a call with a qualified name
// ("Files.read") and a parameter map; the Dispatcher resolves the capability
// in a per-agent Registry, binds the parameters to positional arguments and
// turns the outcome into an immutable types.FunctionCallResult.
//
// Capabilities never reach the agent through ambient state. Each one is built
// by a Factory that receives an AgentAccessor for the agent it serves.
package capability

import (
	"context"
	"sort"
)

// Capability is a registered object exposing schema-described methods.
type Capability interface {
	// Name is the capability name used in qualified call names.
	Name() string

	// Schema describes every callable method and its ordered parameters.
	Schema() MethodSchema

	// Invoke calls method with positional arguments. Unknown methods must
	// return an error wrapping ErrUnknownMethod.
	Invoke(ctx context.Context, method string, args []any) (any, error)
}

// ParamSpec describes one positional parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// MethodSpec describes one callable method.
type MethodSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Params      []ParamSpec `json:"params,omitempty"`
	Returns     string      `json:"returns,omitempty"`

	// RequiresApproval pauses the agent for a human before the call runs.
	RequiresApproval bool `json:"requiresApproval,omitempty"`

	// ExecuteBeforeFinish marks calls that still run when the same response
	// carries the finish signal.
	ExecuteBeforeFinish bool `json:"executeBeforeFinish,omitempty"`

	// RedactParams and RedactResult keep payloads out of the call history;
	// the values are reachable through the agent memory instead.
	RedactParams []string `json:"-"`
	RedactResult bool     `json:"-"`
}

// Param looks up a parameter by name.
func (m MethodSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ParamNames returns the parameter names in index order.
func (m MethodSpec) ParamNames() []string {
	params := make([]ParamSpec, len(m.Params))
	copy(params, m.Params)
	sort.Slice(params, func(i, j int) bool { return params[i].Index < params[j].Index })
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// arity is the positional argument count implied by the declared indices.
func (m MethodSpec) arity() int {
	n := 0
	for _, p := range m.Params {
		if p.Index+1 > n {
			n = p.Index + 1
		}
	}
	return n
}

// MethodSchema enumerates the methods of a capability.
type MethodSchema struct {
	Description string       `json:"description,omitempty"`
	Methods     []MethodSpec `json:"methods"`
}

// Method looks up a method by name.
func (s MethodSchema) Method(name string) (MethodSpec, bool) {
	for _, m := range s.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodSpec{}, false
}

// AgentAccessor is the narrow view of an agent handed to capabilities.
// Implementations are safe for concurrent use.
type AgentAccessor interface {
	AgentID() string
	UserID() string

	GetMemory(key string) (string, bool)
	SetMemory(key, value string)
	DeleteMemory(key string) bool
	MemoryKeys() []string

	// LoadToolState decodes the persisted state of a capability into v.
	// It leaves v untouched when no state exists.
	LoadToolState(name string, v any) error
	// StoreToolState persists v as the state of a capability.
	StoreToolState(name string, v any) error
}

// Factory builds a capability instance for one agent.
type Factory func(agent AgentAccessor) (Capability, error)

// Summarizer condenses large call output for later prompts.
type Summarizer interface {
	Summarize(ctx context.Context, functionName, text string) (summary string, cost float64, err error)
}
