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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentFile(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errMsg   string
		validate func(t *testing.T, file *AgentFile)
	}{
		{
			name: "minimal",
			yaml: `apiVersion: warp/v1
kind: Agent
spec:
  prompt: summarize the repository
`,
			validate: func(t *testing.T, file *AgentFile) {
				assert.Equal(t, "summarize the repository", file.Spec.Prompt)
				assert.Empty(t, file.Spec.Capabilities)
			},
		},
		{
			name: "full",
			yaml: `apiVersion: warp/v1
kind: Agent
metadata:
  name: refactor
  user_id: u-42
  labels:
    team: platform
spec:
  prompt: refactor the parser
  capabilities: [Files, LiveFiles]
  llms: [anthropic]
  completed_handlers: [console, discord]
  human_in_loop:
    count: 5
    budget: 2.5
  discord:
    channel_id: "1234"
`,
			validate: func(t *testing.T, file *AgentFile) {
				assert.Equal(t, "refactor", file.Metadata.Name)
				assert.Equal(t, "u-42", file.Metadata.UserID)
				assert.Equal(t, []string{"Files", "LiveFiles"}, file.Spec.Capabilities)
				assert.Equal(t, []string{"anthropic"}, file.Spec.LLMs)
				assert.Equal(t, []string{"console", "discord"}, file.Spec.CompletedHandlers)
				assert.Equal(t, 5, file.Spec.HumanInLoop.Count)
				assert.InDelta(t, 2.5, file.Spec.HumanInLoop.Budget, 1e-9)
				assert.Equal(t, map[string]string{"team": "platform", "discord_channel_id": "1234"}, file.AgentMetadata())
			},
		},
		{
			name:   "missing apiVersion",
			yaml:   "kind: Agent\nspec:\n  prompt: x\n",
			errMsg: "apiVersion is required",
		},
		{
			name:   "wrong apiVersion",
			yaml:   "apiVersion: warp/v0\nkind: Agent\nspec:\n  prompt: x\n",
			errMsg: "unsupported apiVersion",
		},
		{
			name:   "wrong kind",
			yaml:   "apiVersion: warp/v1\nkind: Project\nspec:\n  prompt: x\n",
			errMsg: "kind must be 'Agent'",
		},
		{
			name:   "no prompt",
			yaml:   "apiVersion: warp/v1\nkind: Agent\n",
			errMsg: "spec.prompt or spec.prompt_file is required",
		},
		{
			name:   "negative threshold",
			yaml:   "apiVersion: warp/v1\nkind: Agent\nspec:\n  prompt: x\n  human_in_loop:\n    count: -1\n",
			errMsg: "must not be negative",
		},
		{
			name:   "missing prompt file",
			yaml:   "apiVersion: warp/v1\nkind: Agent\nspec:\n  prompt_file: ./nope.md\n",
			errMsg: "file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "agent.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			file, err := LoadAgentFile(path)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			tt.validate(t, file)
		})
	}
}

func TestLoadAgentFile_PromptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "task.md"), []byte("\nwrite the changelog\n"), 0644))
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: warp/v1\nkind: Agent\nspec:\n  prompt_file: prompts/task.md\n"), 0644))

	file, err := LoadAgentFile(path)
	require.NoError(t, err)
	assert.Equal(t, "write the changelog", file.Spec.Prompt)
	assert.Equal(t, filepath.Join(dir, "prompts", "task.md"), file.Spec.PromptFile)
}

func TestLoadAgentFile_EnvExpansion(t *testing.T) {
	t.Setenv("WARP_TEST_CHANNEL", "chan-7")
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: warp/v1\nkind: Agent\nspec:\n  prompt: x\n  discord:\n    channel_id: ${WARP_TEST_CHANNEL}\n"), 0644))

	file, err := LoadAgentFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chan-7", file.Spec.Discord.ChannelID)
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/abs/file", resolveRelativePath("/base", "/abs/file"))
	assert.Equal(t, filepath.Join("/base", "rel/file"), resolveRelativePath("/base", "rel/file"))
}
