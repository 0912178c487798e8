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
	"net/http"

	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/capability"
)

// Options configures the built-in capabilities.
type Options struct {
	// BaseDir roots Files and LiveFiles. Empty means the current directory.
	BaseDir string
	// WriteApproval makes Files.write require human approval.
	WriteApproval bool
	// Cache memoizes Web.fetch per agent when set.
	Cache *cache.Cache
	// HTTPClient is used by Web.
	HTTPClient *http.Client
}

// Register adds the built-in capability factories to catalog and returns the
// Files instance shared by Files and the live files prompt section.
func Register(catalog *capability.Catalog, opts Options) (*Files, error) {
	var fileOpts []FilesOption
	if opts.WriteApproval {
		fileOpts = append(fileOpts, WithWriteApproval())
	}
	files, err := NewFiles(opts.BaseDir, fileOpts...)
	if err != nil {
		return nil, err
	}

	catalog.Register(AgentName, func(agent capability.AgentAccessor) (capability.Capability, error) {
		return NewAgent(agent), nil
	})
	catalog.Register(FilesName, func(capability.AgentAccessor) (capability.Capability, error) {
		return files, nil
	})
	catalog.Register(LiveFilesName, func(agent capability.AgentAccessor) (capability.Capability, error) {
		return NewLiveFiles(agent), nil
	})
	catalog.Register(WebName, func(agent capability.AgentAccessor) (capability.Capability, error) {
		return capability.Cached(NewWeb(opts.HTTPClient), opts.Cache, agent,
			map[string]cache.Scope{"fetch": cache.ScopeAgent}), nil
	})
	return files, nil
}
