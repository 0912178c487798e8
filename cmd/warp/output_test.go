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
package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/warp/pkg/types"
)

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour, "1 hour ago"},
		{30 * time.Hour, "1 day ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{30 * 24 * time.Hour, "2026-02-08"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTimeAgo(now.Add(-tt.ago), now), tt.ago.String())
	}
	assert.Equal(t, "unknown", formatTimeAgo(time.Time{}, now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a long ...", truncate("a long line of text", 10))
	assert.Equal(t, "two lines", truncate("two\nlines", 20))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestPrintAgents(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printAgents(&buf, nil, now)
	assert.Equal(t, "No agents found.\n", buf.String())

	buf.Reset()
	printAgents(&buf, []*types.AgentContext{
		{AgentID: "older", State: types.StateCompleted, Iterations: 4, Cost: 0.5, UpdatedAt: now.Add(-2 * time.Hour)},
		{AgentID: "newer", Name: "reviewer", State: types.StateHILThreshold, Iterations: 2, Cost: 0.125, UpdatedAt: now.Add(-time.Minute)},
	}, now)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines[0], "AGENT ID")
	assert.Contains(t, lines[1], "newer")
	assert.Contains(t, lines[1], "reviewer")
	assert.Contains(t, lines[1], "hitl_threshold")
	assert.Contains(t, lines[1], "$0.1250")
	assert.Contains(t, lines[2], "older")
	assert.Contains(t, lines[2], "2 hours ago")
	assert.Contains(t, buf.String(), "Showing 2 agent(s)")
}

func TestPrintAgent(t *testing.T) {
	ac := &types.AgentContext{
		AgentID:      "a1",
		ExecutionID:  "e1",
		Name:         "writer",
		State:        types.StateHILTool,
		UserPrompt:   "write the report\nin markdown",
		Iterations:   3,
		Cost:         0.03,
		Capabilities: []string{"Agent", "Files"},
		HumanInLoop:  types.HumanInLoop{Count: 5},
		PendingCalls: []types.FunctionCall{{Name: "Files.write", Parameters: map[string]any{"path": "out.md"}}},
		FunctionCallHistory: []types.FunctionCallResult{
			{Iteration: 1, FunctionName: "Files.read", DurationMs: 3},
			{Iteration: 2, FunctionName: "Files.list", Stderr: "permission denied"},
		},
	}
	var buf bytes.Buffer
	printAgent(&buf, ac)
	out := buf.String()

	assert.Contains(t, out, "Agent: a1")
	assert.Contains(t, out, "State: hitl_tool")
	assert.Contains(t, out, "Reason: approval required for Files.write")
	assert.Contains(t, out, "Capabilities: Agent, Files")
	assert.Contains(t, out, "  - Files.write path=out.md")
	assert.Contains(t, out, "write the report\n  in markdown")
	assert.Contains(t, out, "Function calls (2):")
	assert.Contains(t, out, "error: permission denied")
	assert.NotContains(t, out, "Output:")
}

func TestPrintIterations(t *testing.T) {
	var buf bytes.Buffer
	printIterations(&buf, nil)
	assert.Equal(t, "No iterations recorded.\n", buf.String())

	buf.Reset()
	printIterations(&buf, []*types.IterationRecord{
		{Iteration: 1, ExecutionID: "exec-1", Provider: "anthropic", InputTokens: 100, OutputTokens: 20, Cost: 0.01,
			Calls: []types.FunctionCall{{Name: "Files.read"}, {Name: "Agent.completed"}}},
		{Iteration: 2, ExecutionID: "exec-1", Provider: "bedrock", Error: "no function calls"},
	})
	out := buf.String()
	assert.Contains(t, out, "Files.read,Agent.completed")
	assert.Contains(t, out, "100/20")
	assert.Contains(t, out, "error: no function calls")
}
