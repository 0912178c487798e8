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
package completion

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/teradata-labs/warp/pkg/types"
)

// ConsoleID is the id of the console handler, installed by default.
const ConsoleID = "console"

// ConsoleHandler prints the outcome of an agent to a writer.
type ConsoleHandler struct {
	w io.Writer
}

// NewConsoleHandler creates a console handler. A nil writer means stdout.
func NewConsoleHandler(w io.Writer) *ConsoleHandler {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleHandler{w: w}
}

func (h *ConsoleHandler) ID() string {
	return ConsoleID
}

func (h *ConsoleHandler) Notify(ctx context.Context, agent *types.AgentContext) error {
	name := agent.Name
	if name == "" {
		name = agent.AgentID
	}
	var line string
	switch agent.State {
	case types.StateCompleted:
		line = fmt.Sprintf("Agent %s completed: %s", name, agent.Reason())
	case types.StateError:
		line = fmt.Sprintf("Agent %s failed: %s", name, agent.Reason())
	case types.StateHILFeedback:
		line = fmt.Sprintf("Agent %s needs feedback: %s", name, agent.Reason())
	default:
		line = fmt.Sprintf("Agent %s paused (%s): %s", name, agent.State, agent.Reason())
	}
	_, err := fmt.Fprintf(h.w, "%s\n  iterations=%d cost=$%.4f execution=%s\n", line, agent.Iterations, agent.Cost, agent.ExecutionID)
	return err
}

// ConsoleDefaults returns the default handler set, printing to w.
func ConsoleDefaults(w io.Writer) map[string]Constructor {
	return map[string]Constructor{
		ConsoleID: func() Handler { return NewConsoleHandler(w) },
	}
}
