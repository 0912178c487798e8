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
package capability

import (
	"context"

	"github.com/teradata-labs/warp/pkg/cache"
)

// cachedCapability routes selected methods through a cache.
type cachedCapability struct {
	Capability
	cache   *cache.Cache
	agent   AgentAccessor
	methods map[string]cache.Scope
}

// Cached wraps c so the listed methods are memoized in the given scope.
// Agent and user scopes are keyed by the ids of agent.
func Cached(c Capability, store *cache.Cache, agent AgentAccessor, methods map[string]cache.Scope) Capability {
	if store == nil || len(methods) == 0 {
		return c
	}
	return &cachedCapability{Capability: c, cache: store, agent: agent, methods: methods}
}

// Invoke implements Capability.
func (c *cachedCapability) Invoke(ctx context.Context, method string, args []any) (any, error) {
	scope, ok := c.methods[method]
	if !ok {
		return c.Capability.Invoke(ctx, method, args)
	}

	key := cache.Key{
		Scope:      scope,
		Capability: c.Name(),
		Method:     method,
		Args:       args,
	}
	switch scope {
	case cache.ScopeAgent:
		key.ScopeID = c.agent.AgentID()
	case cache.ScopeUser:
		key.ScopeID = c.agent.UserID()
		if key.ScopeID == "" {
			return c.Capability.Invoke(ctx, method, args)
		}
	}

	return cache.Do(ctx, c.cache, key, func(ctx context.Context) (any, error) {
		return c.Capability.Invoke(ctx, method, args)
	})
}
