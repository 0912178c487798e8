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
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/teradata-labs/warp/pkg/types"
)

// MemoryStore keeps agents in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	agents     map[string]*types.AgentContext
	iterations map[string][]*types.IterationRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:     make(map[string]*types.AgentContext),
		iterations: make(map[string][]*types.IterationRecord),
	}
}

func (s *MemoryStore) Save(ctx context.Context, agent *types.AgentContext) error {
	if err := validate(agent); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkProgress(s.agents[agent.AgentID], agent); err != nil {
		return err
	}
	s.agents[agent.AgentID] = agent.Clone()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, agentID string) (*types.AgentContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return nil, notFound(agentID)
	}
	return agent.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, agentIDs ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range agentIDs {
		if _, ok := s.agents[id]; ok {
			deleted++
		}
		delete(s.agents, id)
		delete(s.iterations, id)
	}
	return deleted, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*types.AgentContext, error) {
	return s.collect(nil), nil
}

func (s *MemoryStore) ListByState(ctx context.Context, states ...types.State) ([]*types.AgentContext, error) {
	set := stateSet(states)
	return s.collect(func(a *types.AgentContext) bool { return set[a.State] }), nil
}

func (s *MemoryStore) collect(keep func(*types.AgentContext) bool) []*types.AgentContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.AgentContext, 0, len(s.agents))
	for _, agent := range s.agents {
		if keep == nil || keep(agent) {
			out = append(out, agent.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

func (s *MemoryStore) SaveIteration(ctx context.Context, record *types.IterationRecord) error {
	if record == nil || record.AgentID == "" {
		return fmt.Errorf("iteration record requires an agent id")
	}
	copied, err := cloneRecord(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations[record.AgentID] = append(s.iterations[record.AgentID], copied)
	return nil
}

func (s *MemoryStore) ListIterations(ctx context.Context, agentID string) ([]*types.IterationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.iterations[agentID]
	out := make([]*types.IterationRecord, 0, len(records))
	for _, r := range records {
		copied, err := cloneRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneRecord(r *types.IterationRecord) (*types.IterationRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal iteration record: %w", err)
	}
	var out types.IterationRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal iteration record: %w", err)
	}
	return &out, nil
}
