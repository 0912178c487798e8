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
// Package builtin provides the capabilities every warp agent can be given:
// the Agent control functions, sandboxed file access, live files and web fetch.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/teradata-labs/warp/pkg/capability"
)

const (
	// AgentName is the name of the agent control capability.
	AgentName = "Agent"

	// CompletedMethod signals that the agent has finished its task.
	CompletedMethod = "completed"
	// RequestFeedbackMethod signals that the agent needs an answer from a human.
	RequestFeedbackMethod = "requestFeedback"
)

// ErrMemoryKeyNotFound is returned by getMemory and deleteMemory for a missing key.
var ErrMemoryKeyNotFound = errors.New("memory key not found")

// Agent exposes the control functions and the agent memory.
type Agent struct {
	agent capability.AgentAccessor
}

// NewAgent creates the Agent capability bound to one agent.
func NewAgent(agent capability.AgentAccessor) *Agent {
	return &Agent{agent: agent}
}

func (a *Agent) Name() string {
	return AgentName
}

func (a *Agent) Schema() capability.MethodSchema {
	return capability.MethodSchema{
		Description: "Functions to control the agent and manage its memory",
		Methods: []capability.MethodSpec{
			{
				Name:        CompletedMethod,
				Description: "Notifies that the user request has been completed. Call this on its own, or after any function calls that must run first.",
				Params: []capability.ParamSpec{
					{Name: "note", Index: 0, Type: "string", Description: "A summary of the outcome of the request"},
				},
			},
			{
				Name:        RequestFeedbackMethod,
				Description: "Requests feedback from a human who will respond before the agent continues",
				Params: []capability.ParamSpec{
					{Name: "request", Index: 0, Type: "string", Description: "The question or clarification you need answered"},
				},
			},
			{
				Name:        "saveMemory",
				Description: "Stores content in the memory block under a key, overwriting any existing value",
				Params: []capability.ParamSpec{
					{Name: "key", Index: 0, Type: "string", Description: "A descriptive identifier for the content"},
					{Name: "content", Index: 1, Type: "string", Description: "The content to store"},
				},
				RedactParams: []string{"content"},
			},
			{
				Name:        "getMemory",
				Description: "Retrieves the content stored under a memory key",
				Params: []capability.ParamSpec{
					{Name: "key", Index: 0, Type: "string", Description: "The memory key"},
				},
				RedactResult: true,
			},
			{
				Name:        "deleteMemory",
				Description: "Removes a key from the memory block",
				Params: []capability.ParamSpec{
					{Name: "key", Index: 0, Type: "string", Description: "The memory key"},
				},
			},
		},
	}
}

func (a *Agent) Invoke(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case CompletedMethod:
		return capability.OptionalStringArg(args, 0, "note", "")
	case RequestFeedbackMethod:
		return capability.StringArg(args, 0, "request")
	case "saveMemory":
		key, err := capability.StringArg(args, 0, "key")
		if err != nil {
			return nil, err
		}
		content, err := capability.StringArg(args, 1, "content")
		if err != nil {
			return nil, err
		}
		a.agent.SetMemory(key, content)
		return nil, nil
	case "getMemory":
		key, err := capability.StringArg(args, 0, "key")
		if err != nil {
			return nil, err
		}
		value, ok := a.agent.GetMemory(key)
		if !ok {
			return nil, a.missingKey(key)
		}
		return value, nil
	case "deleteMemory":
		key, err := capability.StringArg(args, 0, "key")
		if err != nil {
			return nil, err
		}
		if !a.agent.DeleteMemory(key) {
			return nil, a.missingKey(key)
		}
		return nil, nil
	default:
		return nil, capability.UnknownMethod(AgentName, method)
	}
}

func (a *Agent) missingKey(key string) error {
	keys := a.agent.MemoryKeys()
	sort.Strings(keys)
	return fmt.Errorf("%w: %s (existing keys: %v)", ErrMemoryKeyNotFound, key, keys)
}
