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
// Package storage persists agent contexts and their iteration audit trail.
//
// Two implementations are provided: MemoryStore for tests and short-lived
// processes, and SQLiteStore for the CLI. Both hand out deep copies so a
// caller can never mutate persisted state by accident.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/teradata-labs/warp/pkg/types"
)

var (
	// ErrNotFound is returned when no agent exists for an id.
	ErrNotFound = errors.New("agent not found")
	// ErrRegression is returned when a save would move Iterations or Cost
	// backwards within the same execution.
	ErrRegression = errors.New("agent context regression")
)

// Store persists AgentContext values keyed by AgentID.
type Store interface {
	// Save inserts or replaces the context. Within one ExecutionID,
	// Iterations and Cost never decrease; a save that would decrease them
	// fails with ErrRegression and leaves the stored value untouched.
	Save(ctx context.Context, agent *types.AgentContext) error
	// Load returns a copy of the stored context or ErrNotFound.
	Load(ctx context.Context, agentID string) (*types.AgentContext, error)
	// Delete removes the agents and their iteration records and reports how
	// many agents existed.
	Delete(ctx context.Context, agentIDs ...string) (int, error)
	// List returns every agent, oldest first.
	List(ctx context.Context) ([]*types.AgentContext, error)
	// ListByState returns the agents in any of the given states, oldest first.
	ListByState(ctx context.Context, states ...types.State) ([]*types.AgentContext, error)
	// SaveIteration appends an iteration record.
	SaveIteration(ctx context.Context, record *types.IterationRecord) error
	// ListIterations returns the records of an agent in save order.
	ListIterations(ctx context.Context, agentID string) ([]*types.IterationRecord, error)
	Close() error
}

// checkProgress rejects next when it moves the counters of prev backwards
// within the same execution.
func checkProgress(prev, next *types.AgentContext) error {
	if prev == nil || prev.ExecutionID != next.ExecutionID {
		return nil
	}
	if next.Iterations < prev.Iterations || next.Cost < prev.Cost {
		return regression(next)
	}
	return nil
}

func regression(agent *types.AgentContext) error {
	return fmt.Errorf("%w: agent %s execution %s (iterations %d, cost %.6f)",
		ErrRegression, agent.AgentID, agent.ExecutionID, agent.Iterations, agent.Cost)
}

func notFound(agentID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, agentID)
}

func validate(agent *types.AgentContext) error {
	if agent == nil || agent.AgentID == "" {
		return errors.New("agent context requires an agent id")
	}
	if !agent.State.Valid() {
		return fmt.Errorf("agent %s has unknown state %q", agent.AgentID, agent.State)
	}
	return nil
}

func stateSet(states []types.State) map[types.State]bool {
	set := make(map[types.State]bool, len(states))
	for _, s := range states {
		set[s] = true
	}
	return set
}
