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
	"errors"
	"fmt"

	"github.com/teradata-labs/warp/pkg/types"
)

var (
	// ErrStaleResumption rejects a resume whose execution id, state or
	// timing no longer matches the agent. The agent is left untouched.
	ErrStaleResumption = errors.New("stale resumption")

	// ErrPersistence wraps a failed save. The run cannot continue without a
	// durable checkpoint.
	ErrPersistence = errors.New("persistence failure")

	// ErrAgentNotFound is returned for unknown agent ids.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentExecuting is returned by operations that need the agent idle.
	ErrAgentExecuting = errors.New("agent is executing")

	// ErrEngineClosed is returned once Shutdown has been called.
	ErrEngineClosed = errors.New("engine is shut down")
)

// StaleResumptionError explains why a resume was rejected.
type StaleResumptionError struct {
	AgentID string
	// ExecutionID is the id supplied by the caller.
	ExecutionID string
	// Current is the execution id of the stored agent.
	Current string
	State   types.State
	Reason  string
}

func (e *StaleResumptionError) Error() string {
	return fmt.Sprintf("stale resumption of agent %s (execution %s, current %s, state %s): %s",
		e.AgentID, e.ExecutionID, e.Current, e.State, e.Reason)
}

// Is makes errors.Is(err, ErrStaleResumption) hold.
func (e *StaleResumptionError) Is(target error) bool {
	return target == ErrStaleResumption
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
