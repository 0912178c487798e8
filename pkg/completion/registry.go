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
// Package completion notifies integrations when an agent stops: it finished,
// failed, or paused for a human.
package completion

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/types"
)

// Handler is notified when an agent stops.
type Handler interface {
	// ID identifies the handler in AgentContext.CompletedHandlers.
	ID() string

	// Notify is called after the agent state has been persisted.
	Notify(ctx context.Context, agent *types.AgentContext) error
}

// Constructor creates a handler instance.
type Constructor func() Handler

// Registry maps handler ids to constructors. Create one per process (or per
// test) with NewRegistry; there is no package-level registry.
type Registry struct {
	mu       sync.RWMutex
	ctors    map[string]Constructor
	defaults map[string]Constructor
	logger   *zap.Logger
}

// NewRegistry creates a registry whose defaults are installed by Init and
// re-installed by Reset.
func NewRegistry(logger *zap.Logger, defaults map[string]Constructor) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		ctors:    make(map[string]Constructor),
		defaults: defaults,
		logger:   logger,
	}
	r.Init()
	return r
}

// Init installs the default handlers without removing registered ones.
func (r *Registry) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ctor := range r.defaults {
		if _, ok := r.ctors[id]; !ok {
			r.ctors[id] = ctor
		}
	}
}

// Reset removes every registered handler and re-installs the defaults.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.ctors = make(map[string]Constructor)
	r.mu.Unlock()
	r.Init()
}

// Register adds or replaces a handler.
func (r *Registry) Register(id string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[id]; exists {
		r.logger.Warn("Completion handler already registered, overwriting", zap.String("handler", id))
	}
	r.ctors[id] = ctor
}

// Get returns a new handler instance, or nil (logged) if id is unknown.
func (r *Registry) Get(id string) Handler {
	if id == "" {
		return nil
	}
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("No completion handler found", zap.String("handler", id))
		return nil
	}
	return ctor()
}

// IDs returns the registered handler ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NotifyAll runs every handler listed on the agent. Failures are logged and
// never returned: a notification cannot undo a persisted transition.
func (r *Registry) NotifyAll(ctx context.Context, agent *types.AgentContext) {
	for _, id := range agent.CompletedHandlers {
		h := r.Get(id)
		if h == nil {
			continue
		}
		if err := h.Notify(ctx, agent); err != nil {
			r.logger.Error("Completion handler failed",
				zap.String("handler", id),
				zap.String("agent_id", agent.AgentID),
				zap.String("state", string(agent.State)),
				zap.Error(err))
		}
	}
}
