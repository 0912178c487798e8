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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/types"
)

func TestJSONResponseParser(t *testing.T) {
	p := NewJSONResponseParser()

	tests := []struct {
		name    string
		text    string
		want    []types.FunctionCall
		wantErr error
	}{
		{
			name: "array with reasoning",
			text: "I will read the file.\n<function_calls>\n[{\"name\": \"Files.read\", \"parameters\": {\"path\": \"a.txt\"}}]\n</function_calls>",
			want: []types.FunctionCall{{Name: "Files.read", Parameters: map[string]any{"path": "a.txt"}}},
		},
		{
			name: "single object and code fence",
			text: "<function_calls>\n```json\n{\"name\": \"Agent.completed\", \"parameters\": {\"note\": \"done\"}}\n```\n</function_calls>",
			want: []types.FunctionCall{{Name: "Agent.completed", Parameters: map[string]any{"note": "done"}}},
		},
		{
			name: "no parameters",
			text: `<function_calls>[{"name": "Tools.noop"}, {"name": "Agent.completed"}]</function_calls>`,
			want: []types.FunctionCall{{Name: "Tools.noop"}, {Name: "Agent.completed"}},
		},
		{name: "no block", text: "just talking", wantErr: ErrNoFunctionCalls},
		{name: "unterminated", text: `<function_calls>[{"name": "a.b"}]`, wantErr: ErrMalformedResponse},
		{name: "invalid json", text: `<function_calls>[{"name": </function_calls>`, wantErr: ErrMalformedResponse},
		{name: "missing name", text: `<function_calls>[{"parameters": {}}]</function_calls>`, wantErr: ErrMalformedResponse},
		{name: "parameters not an object", text: `<function_calls>[{"name": "a.b", "parameters": [1]}]</function_calls>`, wantErr: ErrMalformedResponse},
		{name: "empty array", text: "Nothing to do yet.\n<function_calls>[]</function_calls>", want: []types.FunctionCall{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type staticSection string

func (s staticSection) Render(ctx context.Context, agent *types.AgentContext) (string, error) {
	return string(s), nil
}

type failingSection struct{}

func (failingSection) Render(ctx context.Context, agent *types.AgentContext) (string, error) {
	return "", errors.New("watch limit reached")
}

func TestDefaultPromptBuilder(t *testing.T) {
	b := &DefaultPromptBuilder{
		Parser:   NewJSONResponseParser(),
		Sections: []PromptSection{staticSection("<live-files>\n</live-files>"), staticSection(""), failingSection{}},
	}
	agent := &types.AgentContext{
		Iterations:   2,
		Conversation: []types.Message{{Role: types.RoleUser, Content: "refactor the parser"}},
		Memory:       map[string]string{"plan": "step 1"},
		FunctionCallHistory: []types.FunctionCallResult{
			{Iteration: 1, FunctionName: "Files.read", Parameters: map[string]any{"path": "big.go"}, Stdout: strings.Repeat("x", 100), StdoutSummary: "a large go file"},
			{Iteration: 2, FunctionName: "Ghost.run", Stderr: "unknown capability"},
		},
	}
	functions := []capability.Entry{{Name: "Files", Schema: capability.MethodSchema{Methods: []capability.MethodSpec{{Name: "read"}}}}}

	messages, err := b.Build(context.Background(), agent, functions)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	system := messages[0]
	assert.Equal(t, types.RoleSystem, system.Role)
	assert.Contains(t, system.Content, DefaultSystemPrompt)
	assert.Contains(t, system.Content, `<capability name="Files">`)
	assert.Contains(t, system.Content, "<function_calls>")

	user := messages[1].Content
	assert.Contains(t, user, "refactor the parser")
	assert.Contains(t, user, "<entry key=\"plan\">\nstep 1\n</entry>")
	assert.Contains(t, user, "<live-files>")
	assert.Contains(t, user, "<section-error>watch limit reached</section-error>")
	assert.Contains(t, user, "<output>a large go file</output>", "summaries replace large outputs")
	assert.NotContains(t, user, strings.Repeat("x", 100))
	assert.Contains(t, user, "<error>unknown capability</error>")
	assert.Contains(t, user, "This is iteration 3.")
}
