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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentAPIVersion is the apiVersion accepted in agent files.
const AgentAPIVersion = "warp/v1"

// AgentFile is an agent definition that `warp run --file` starts from.
type AgentFile struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   AgentMetadataYAML `yaml:"metadata"`
	Spec       AgentSpecYAML     `yaml:"spec"`
}

type AgentMetadataYAML struct {
	Name   string            `yaml:"name"`
	UserID string            `yaml:"user_id"`
	Labels map[string]string `yaml:"labels"`
}

type AgentSpecYAML struct {
	Prompt string `yaml:"prompt"`
	// PromptFile is read when Prompt is empty. Relative paths are resolved
	// against the agent file's directory.
	PromptFile        string           `yaml:"prompt_file"`
	Capabilities      []string         `yaml:"capabilities"`
	LLMs              []string         `yaml:"llms"`
	CompletedHandlers []string         `yaml:"completed_handlers"`
	HumanInLoop       HumanInLoopYAML  `yaml:"human_in_loop"`
	Discord           DiscordAgentYAML `yaml:"discord"`
}

type HumanInLoopYAML struct {
	Count  int     `yaml:"count"`
	Budget float64 `yaml:"budget"`
}

type DiscordAgentYAML struct {
	ChannelID string `yaml:"channel_id"`
}

// LoadAgentFile loads an agent definition from a YAML file. ${VAR} references
// are expanded from the environment before parsing.
func LoadAgentFile(path string) (*AgentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent file %s: %w", path, err)
	}

	var file AgentFile
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent YAML: %w", err)
	}
	if err := validateAgentFile(&file); err != nil {
		return nil, fmt.Errorf("invalid agent file: %w", err)
	}

	if file.Spec.Prompt == "" {
		promptPath := resolveRelativePath(filepath.Dir(path), file.Spec.PromptFile)
		if err := checkFileExists(promptPath); err != nil {
			return nil, fmt.Errorf("prompt file: %w", err)
		}
		prompt, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", promptPath, err)
		}
		file.Spec.Prompt = strings.TrimSpace(string(prompt))
		file.Spec.PromptFile = promptPath
	}
	return &file, nil
}

// AgentMetadata returns the labels plus the keys completion handlers read.
func (f *AgentFile) AgentMetadata() map[string]string {
	out := make(map[string]string, len(f.Metadata.Labels)+1)
	for k, v := range f.Metadata.Labels {
		out[k] = v
	}
	if f.Spec.Discord.ChannelID != "" {
		out["discord_channel_id"] = f.Spec.Discord.ChannelID
	}
	return out
}

func validateAgentFile(file *AgentFile) error {
	if file.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if file.APIVersion != AgentAPIVersion {
		return fmt.Errorf("unsupported apiVersion: %s (expected: %s)", file.APIVersion, AgentAPIVersion)
	}
	if file.Kind != "Agent" {
		return fmt.Errorf("kind must be 'Agent', got: %s", file.Kind)
	}
	if strings.TrimSpace(file.Spec.Prompt) == "" && file.Spec.PromptFile == "" {
		return fmt.Errorf("spec.prompt or spec.prompt_file is required")
	}
	if file.Spec.HumanInLoop.Count < 0 || file.Spec.HumanInLoop.Budget < 0 {
		return fmt.Errorf("human_in_loop thresholds must not be negative")
	}
	return nil
}

// resolveRelativePath resolves a relative path to absolute
func resolveRelativePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// expandEnvVars expands environment variables in YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

// checkFileExists checks if a file exists
func checkFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	} else if err != nil {
		return fmt.Errorf("failed to access file %s: %w", path, err)
	}
	return nil
}
