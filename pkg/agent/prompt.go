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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/types"
)

// DefaultSystemPrompt opens the system message of DefaultPromptBuilder.
const DefaultSystemPrompt = `You are an autonomous agent completing a request for a user.
Work iteratively: each response may call functions, and you will see their results in the next prompt.
Use the memory to keep information you need later instead of repeating it.`

// PromptSection renders an extra block of the user prompt, such as the
// contents of live files. An empty string omits the section.
type PromptSection interface {
	Render(ctx context.Context, agent *types.AgentContext) (string, error)
}

// PromptBuilder assembles the messages sent to the model for one iteration.
type PromptBuilder interface {
	Build(ctx context.Context, agent *types.AgentContext, functions []capability.Entry) ([]types.Message, error)
}

// DefaultPromptBuilder renders a system message with the function schemas and
// the response format, and a single user message with the conversation,
// memory, sections and function call history.
type DefaultPromptBuilder struct {
	SystemPrompt string
	Parser       ResponseParser
	Sections     []PromptSection
}

func (b *DefaultPromptBuilder) Build(ctx context.Context, agent *types.AgentContext, functions []capability.Entry) ([]types.Message, error) {
	system, err := b.system(functions)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("<conversation>\n")
	for _, m := range agent.Conversation {
		fmt.Fprintf(&sb, "<message role=%q>\n%s\n</message>\n", m.Role, m.Content)
	}
	sb.WriteString("</conversation>\n")

	writeMemory(&sb, agent.Memory)

	for _, section := range b.Sections {
		text, err := section.Render(ctx, agent)
		if err != nil {
			fmt.Fprintf(&sb, "<section-error>%s</section-error>\n", err.Error())
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}

	writeHistory(&sb, agent.FunctionCallHistory)

	fmt.Fprintf(&sb, "\nThis is iteration %d. Decide which functions to call next.", agent.Iterations+1)

	return []types.Message{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleUser, Content: sb.String()},
	}, nil
}

func (b *DefaultPromptBuilder) system(functions []capability.Entry) (string, error) {
	var sb strings.Builder
	prompt := b.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	sb.WriteString(prompt)
	sb.WriteString("\n\n<functions>\n")
	for _, entry := range functions {
		data, err := json.Marshal(entry.Schema)
		if err != nil {
			return "", fmt.Errorf("failed to render schema of %s: %w", entry.Name, err)
		}
		fmt.Fprintf(&sb, "<capability name=%q>%s</capability>\n", entry.Name, data)
	}
	sb.WriteString("</functions>\n")
	if b.Parser != nil {
		sb.WriteString("\n")
		sb.WriteString(b.Parser.Instructions())
	}
	return sb.String(), nil
}

func writeMemory(sb *strings.Builder, memory map[string]string) {
	if len(memory) == 0 {
		return
	}
	keys := make([]string, 0, len(memory))
	for k := range memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("<memory>\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "<entry key=%q>\n%s\n</entry>\n", k, memory[k])
	}
	sb.WriteString("</memory>\n")
}

// writeHistory substitutes summaries for large outputs.
func writeHistory(sb *strings.Builder, history []types.FunctionCallResult) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("<function-call-history>\n")
	for _, call := range history {
		params, err := json.Marshal(call.Parameters)
		if err != nil {
			params = []byte("{}")
		}
		fmt.Fprintf(sb, "<call iteration=\"%d\" name=%q>\n<parameters>%s</parameters>\n", call.Iteration, call.FunctionName, params)
		if call.Failed() {
			fmt.Fprintf(sb, "<error>%s</error>\n", call.PromptStderr())
		} else {
			fmt.Fprintf(sb, "<output>%s</output>\n", call.PromptStdout())
		}
		sb.WriteString("</call>\n")
	}
	sb.WriteString("</function-call-history>\n")
}
