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

// Package types contains the persisted agent model shared by the engine,
// the capability layer, the stores and the completion handlers.
// This package breaks import cycles: pkg/agent, pkg/capability, pkg/storage
// and pkg/completion all depend on it and on nothing else in the module.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the execution state of an agent.
type State string

const (
	// StateRunning means a loop is (or was, before a crash) iterating.
	StateRunning State = "running"
	// StateCompleted means the agent emitted the finish signal.
	StateCompleted State = "completed"
	// StateError means the run stopped on a fatal error or a cancellation.
	StateError State = "error"
	// StateHILThreshold means the iteration count or cost threshold was reached.
	StateHILThreshold State = "hitl_threshold"
	// StateHILTool means a tool call is waiting for human approval.
	StateHILTool State = "hitl_tool"
	// StateHILFeedback means the agent asked the operator a question.
	StateHILFeedback State = "hitl_feedback"
)

// AllStates lists every state in declaration order.
var AllStates = []State{
	StateRunning,
	StateCompleted,
	StateError,
	StateHILThreshold,
	StateHILTool,
	StateHILFeedback,
}

// IsHumanInLoop reports whether the state waits on a human.
func (s State) IsHumanInLoop() bool {
	return s == StateHILThreshold || s == StateHILTool || s == StateHILFeedback
}

// IsResumable reports whether a resume entry point exists for the state.
func (s State) IsResumable() bool {
	return s == StateCompleted || s == StateError || s.IsHumanInLoop()
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of text sent to a language model.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// FunctionCall is one tool invocation requested by the model.
// Name is qualified as "Capability.Method".
type FunctionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// FunctionCallResult is the immutable audit record of one dispatched call.
type FunctionCallResult struct {
	Iteration     int            `json:"iteration"`
	FunctionName  string         `json:"functionName"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Stdout        string         `json:"stdout,omitempty"`
	StdoutSummary string         `json:"stdoutSummary,omitempty"`
	Stderr        string         `json:"stderr,omitempty"`
	StderrSummary string         `json:"stderrSummary,omitempty"`
	DurationMs    int64          `json:"durationMs"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Failed reports whether the call produced an error.
func (r FunctionCallResult) Failed() bool {
	return r.Stderr != ""
}

// PromptStdout returns the output to show the model: the summary when one
// exists, the raw value otherwise.
func (r FunctionCallResult) PromptStdout() string {
	if r.StdoutSummary != "" {
		return r.StdoutSummary
	}
	return r.Stdout
}

// PromptStderr is the error counterpart of PromptStdout.
func (r FunctionCallResult) PromptStderr() string {
	if r.StderrSummary != "" {
		return r.StderrSummary
	}
	return r.Stderr
}

// HumanInLoop holds the thresholds that pause an agent for review.
// A zero value disables the corresponding check.
type HumanInLoop struct {
	Count  int     `json:"count"`
	Budget float64 `json:"budget"`
}

// AgentContext is the persisted, resumable state of one agent.
type AgentContext struct {
	AgentID     string `json:"agentId"`
	ExecutionID string `json:"executionId"`
	Name        string `json:"name,omitempty"`
	UserID      string `json:"userId,omitempty"`
	State       State  `json:"state"`

	Iterations int     `json:"iterations"`
	Cost       float64 `json:"cost"`

	UserPrompt          string               `json:"userPrompt"`
	Conversation        []Message            `json:"conversation,omitempty"`
	FunctionCallHistory []FunctionCallResult `json:"functionCallHistory,omitempty"`
	PendingMessages     []string             `json:"pendingMessages,omitempty"`
	PendingCalls        []FunctionCall       `json:"pendingCalls,omitempty"`

	Memory    map[string]string          `json:"memory,omitempty"`
	ToolState map[string]json.RawMessage `json:"toolState,omitempty"`
	Metadata  map[string]string          `json:"metadata,omitempty"`

	Capabilities      []string `json:"capabilities,omitempty"`
	CompletedHandlers []string `json:"completedHandlers,omitempty"`
	LLMs              []string `json:"llms,omitempty"`

	HumanInLoop   HumanInLoop `json:"humanInLoop"`
	HILIterations int         `json:"hilIterations"`
	HILCost       float64     `json:"hilCost"`

	FeedbackQuestion string `json:"feedbackQuestion,omitempty"`
	Output           string `json:"output,omitempty"`
	Error            string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Stores and read-only projections hand out
// clones so callers never share slices or maps with a live run.
func (c *AgentContext) Clone() *AgentContext {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		// Every field is JSON-safe; a failure here is a programming error.
		panic(fmt.Sprintf("agent context not serializable: %v", err))
	}
	var out AgentContext
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("agent context not deserializable: %v", err))
	}
	return &out
}

// Reason returns the human-readable explanation of a paused or terminal state.
func (c *AgentContext) Reason() string {
	switch c.State {
	case StateCompleted:
		return c.Output
	case StateError:
		return c.Error
	case StateHILFeedback:
		return c.FeedbackQuestion
	case StateHILThreshold:
		return fmt.Sprintf("human review thresholds reached (iterations %d/%d, cost $%.4f/$%.2f)",
			c.HILIterations, c.HumanInLoop.Count, c.HILCost, c.HumanInLoop.Budget)
	case StateHILTool:
		if len(c.PendingCalls) > 0 {
			return fmt.Sprintf("approval required for %s", c.PendingCalls[0].Name)
		}
		return "approval required"
	default:
		return ""
	}
}

// IterationRecord is the audit entry of one generation round trip.
type IterationRecord struct {
	AgentID      string         `json:"agentId"`
	ExecutionID  string         `json:"executionId"`
	Iteration    int            `json:"iteration"`
	Prompt       string         `json:"prompt"`
	Response     string         `json:"response"`
	Calls        []FunctionCall `json:"calls,omitempty"`
	Cost         float64        `json:"cost"`
	InputTokens  int            `json:"inputTokens"`
	OutputTokens int            `json:"outputTokens"`
	Provider     string         `json:"provider,omitempty"`
	Model        string         `json:"model,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
