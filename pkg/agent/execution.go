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
	"sort"
	"sync"

	"github.com/teradata-labs/warp/pkg/types"
)

// Execution is the handle of one loop entry.
type Execution struct {
	AgentID     string
	ExecutionID string

	done   <-chan struct{}
	engine *Engine
}

// Done is closed when the execution pauses or stops.
func (x *Execution) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the execution pauses or stops and returns the agent.
func (x *Execution) Wait(ctx context.Context) (*types.AgentContext, error) {
	select {
	case <-x.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return x.engine.Get(ctx, x.AgentID)
}

// executionRegistry holds one run per agent id for as long as any
// operation or a loop references it. A run with looping set is the single
// active execution of its agent.
type executionRegistry struct {
	mu   sync.Mutex
	runs map[string]*run
}

func newExecutionRegistry() *executionRegistry {
	return &executionRegistry{runs: make(map[string]*run)}
}

// acquire returns the run of agentID, creating it when absent.
// Every acquire must be paired with a release.
func (r *executionRegistry) acquire(agentID string, create func(string) *run) *run {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[agentID]
	if !ok {
		rn = create(agentID)
		r.runs[agentID] = rn
	}
	rn.refs++
	return rn
}

func (r *executionRegistry) release(rn *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn.refs--
	if rn.refs <= 0 && r.runs[rn.agentID] == rn {
		delete(r.runs, rn.agentID)
	}
}

// lookup returns the run of agentID without taking a reference.
func (r *executionRegistry) lookup(agentID string) (*run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[agentID]
	return rn, ok
}

// executing returns the ids of agents with an active loop, sorted.
func (r *executionRegistry) executing() []string {
	r.mu.Lock()
	runs := make([]*run, 0, len(r.runs))
	for _, rn := range r.runs {
		runs = append(runs, rn)
	}
	r.mu.Unlock()

	var ids []string
	for _, rn := range runs {
		if rn.isLooping() {
			ids = append(ids, rn.agentID)
		}
	}
	sort.Strings(ids)
	return ids
}
