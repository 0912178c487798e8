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
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/types"
)

// LiveFilesName is the name of the live files capability and its tool state key.
const LiveFilesName = "LiveFiles"

// LiveFiles keeps a set of files whose current contents are shown to the
// model on every iteration.
type LiveFiles struct {
	agent capability.AgentAccessor
}

// NewLiveFiles creates the LiveFiles capability bound to one agent.
func NewLiveFiles(agent capability.AgentAccessor) *LiveFiles {
	return &LiveFiles{agent: agent}
}

func (l *LiveFiles) Name() string {
	return LiveFilesName
}

func (l *LiveFiles) Schema() capability.MethodSchema {
	return capability.MethodSchema{
		Description: "Functions to keep the current contents of files in the <live-files> section of the prompt",
		Methods: []capability.MethodSpec{
			{
				Name:        "addFiles",
				Description: "Adds files whose current contents are always displayed (increases token usage)",
				Params: []capability.ParamSpec{
					{Name: "files", Index: 0, Type: "string[]", Description: "File paths relative to the working directory"},
				},
			},
			{
				Name:        "removeFiles",
				Description: "Removes files from the <live-files> section that are no longer needed",
				Params: []capability.ParamSpec{
					{Name: "files", Index: 0, Type: "string[]", Description: "File paths to remove"},
				},
			},
		},
	}
}

func (l *LiveFiles) Invoke(ctx context.Context, method string, args []any) (any, error) {
	if method != "addFiles" && method != "removeFiles" {
		return nil, capability.UnknownMethod(LiveFilesName, method)
	}
	files, err := capability.StringSliceArg(args, 0, "files")
	if err != nil {
		return nil, err
	}
	current, err := l.load()
	if err != nil {
		return nil, err
	}

	if method == "addFiles" {
		current = addUnique(current, files)
	} else {
		current = removeAll(current, files)
	}

	if err := l.agent.StoreToolState(LiveFilesName, current); err != nil {
		return nil, fmt.Errorf("failed to store live files: %w", err)
	}
	return current, nil
}

func addUnique(current, files []string) []string {
	seen := make(map[string]bool, len(current))
	for _, f := range current {
		seen[f] = true
	}
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			current = append(current, f)
		}
	}
	return current
}

func removeAll(current, files []string) []string {
	drop := make(map[string]bool, len(files))
	for _, f := range files {
		drop[f] = true
	}
	kept := make([]string, 0, len(current))
	for _, f := range current {
		if !drop[f] {
			kept = append(kept, f)
		}
	}
	return kept
}

func (l *LiveFiles) load() ([]string, error) {
	var files []string
	if err := l.agent.LoadToolState(LiveFilesName, &files); err != nil {
		return nil, fmt.Errorf("failed to load live files: %w", err)
	}
	return files, nil
}

// LivePaths returns the live file paths recorded in an agent's tool state.
func LivePaths(ac *types.AgentContext) ([]string, error) {
	raw, ok := ac.ToolState[LiveFilesName]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var files []string
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("invalid %s tool state: %w", LiveFilesName, err)
	}
	return files, nil
}

// LiveFilesSection renders the <live-files> prompt section.
type LiveFilesSection struct {
	files   *Files
	watcher *Watcher
}

// NewLiveFilesSection creates a prompt section reading through files.
// watcher may be nil, in which case changes are not annotated.
func NewLiveFilesSection(files *Files, watcher *Watcher) *LiveFilesSection {
	return &LiveFilesSection{files: files, watcher: watcher}
}

// Render returns the section for ac, or an empty string when it has no live files.
func (s *LiveFilesSection) Render(ctx context.Context, ac *types.AgentContext) (string, error) {
	paths, err := LivePaths(ac)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		if s.watcher != nil {
			s.watcher.Forget(ac.AgentID)
		}
		return "", nil
	}

	changed := map[string]bool{}
	if s.watcher != nil {
		full := make([]string, 0, len(paths))
		for _, p := range paths {
			if resolved, err := s.files.resolve(p); err == nil {
				full = append(full, resolved)
			}
		}
		if err := s.watcher.Sync(ac.AgentID, full); err != nil {
			return "", err
		}
		for _, p := range s.watcher.Changed(ac.AgentID) {
			changed[p] = true
		}
	}

	var sb strings.Builder
	sb.WriteString("<live-files>\n")
	for _, p := range paths {
		content, err := s.files.Read(p)
		if err != nil {
			fmt.Fprintf(&sb, "<file path=%q error=%q/>\n", p, err.Error())
			continue
		}
		resolved, _ := s.files.resolve(p)
		if changed[resolved] {
			fmt.Fprintf(&sb, "<file path=%q changed=\"true\">\n%s\n</file>\n", p, content)
		} else {
			fmt.Fprintf(&sb, "<file path=%q>\n%s\n</file>\n", p, content)
		}
	}
	sb.WriteString("</live-files>")
	return sb.String(), nil
}
