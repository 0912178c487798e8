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
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// run owns the in-memory AgentContext of one agent while it is referenced.
// All reads and writes of ac, and every save, happen under mu, so writes
// for an agent are sequential. mu is never held across a generation or a
// dispatch.
type run struct {
	engine  *Engine
	agentID string
	refs    int // guarded by executionRegistry.mu

	mu        sync.Mutex
	ac        *types.AgentContext
	persisted *types.AgentContext // last saved copy
	looping   bool
	done      chan struct{}
	executed  int // iterations of the current execution

	cancelled    bool
	cancelReason string
	hilRequested bool
	approved     bool

	registry   *capability.Registry
	dispatcher *capability.Dispatcher
	logger     *zap.Logger
}

func (e *Engine) newRun(agentID string) *run {
	return &run{
		engine:  e,
		agentID: agentID,
		logger:  e.logger.With(zap.String("agent_id", agentID)),
	}
}

// load reads the agent from the store unless it is already in memory.
// Callers hold mu.
func (r *run) load(ctx context.Context) error {
	if r.ac != nil {
		return nil
	}
	ac, err := r.engine.store.Load(ctx, r.agentID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, r.agentID)
	}
	if err != nil {
		return persistenceError(err)
	}
	r.ac = ac
	r.persisted = ac.Clone()
	return nil
}

// save persists ac. Callers hold mu. Saves outlive the cancellation of
// ctx so a shutdown never loses a transition.
func (r *run) save(ctx context.Context) error {
	r.ac.UpdatedAt = r.engine.now()
	if err := r.engine.store.Save(context.WithoutCancel(ctx), r.ac); err != nil {
		return persistenceError(err)
	}
	r.persisted = r.ac.Clone()
	return nil
}

// saveBetween persists a change made while the loop is mid-iteration:
// mutate is applied to both the live context and the last saved copy, and
// the copy is what gets written. Callers hold mu.
func (r *run) saveBetween(ctx context.Context, mutate func(*types.AgentContext)) error {
	mutate(r.ac)
	if !r.looping || r.persisted == nil {
		return r.save(ctx)
	}
	next := r.persisted.Clone()
	mutate(next)
	next.UpdatedAt = r.engine.now()
	if err := r.engine.store.Save(context.WithoutCancel(ctx), next); err != nil {
		return persistenceError(err)
	}
	r.persisted = next
	return nil
}

// buildCapabilities creates the registry and dispatcher for the agent's
// capability list. Factories receive r as their accessor, so callers must
// not hold mu.
func (r *run) buildCapabilities() error {
	e := r.engine
	r.mu.Lock()
	names := e.capabilityNames(r.ac.Capabilities)
	r.mu.Unlock()

	registry, err := e.catalog.Build(r, names)
	if err != nil {
		return err
	}
	opts := []capability.DispatcherOption{
		capability.WithLogger(r.logger),
		capability.WithTracer(e.tracer),
	}
	if e.summarizer != nil {
		opts = append(opts, capability.WithSummarizer(e.summarizer))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry = registry
	r.dispatcher = capability.NewDispatcher(registry, opts...)
	return nil
}

func (r *run) isLooping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.looping
}

func (r *run) snapshot() *types.AgentContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ac.Clone()
}

// current returns the in-memory context, reloading it when a finished loop
// has released it. Callers hold mu.
func (r *run) current() *types.AgentContext {
	if err := r.load(context.Background()); err != nil {
		r.logger.Warn("Agent context unavailable", zap.Error(err))
		return nil
	}
	return r.ac
}

// AgentAccessor implementation handed to capability factories.

func (r *run) AgentID() string {
	return r.agentID
}

func (r *run) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return ""
	}
	return ac.UserID
}

func (r *run) GetMemory(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return "", false
	}
	v, ok := ac.Memory[key]
	return v, ok
}

func (r *run) SetMemory(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return
	}
	if ac.Memory == nil {
		ac.Memory = make(map[string]string)
	}
	ac.Memory[key] = value
}

func (r *run) DeleteMemory(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return false
	}
	if _, ok := ac.Memory[key]; !ok {
		return false
	}
	delete(ac.Memory, key)
	return true
}

func (r *run) MemoryKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return []string{}
	}
	keys := make([]string, 0, len(ac.Memory))
	for k := range ac.Memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *run) LoadToolState(name string, v any) error {
	r.mu.Lock()
	var raw json.RawMessage
	ac := r.current()
	if ac != nil {
		raw = ac.ToolState[name]
	}
	r.mu.Unlock()
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode tool state of %s: %w", name, err)
	}
	return nil
}

func (r *run) StoreToolState(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode tool state of %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ac := r.current()
	if ac == nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, r.agentID)
	}
	if ac.ToolState == nil {
		ac.ToolState = make(map[string]json.RawMessage)
	}
	ac.ToolState[name] = raw
	return nil
}
