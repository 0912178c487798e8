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
package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/teradata-labs/warp/pkg/types"
)

// printAgents writes one row per agent, newest first.
func printAgents(w io.Writer, agents []*types.AgentContext, now time.Time) {
	if len(agents) == 0 {
		fmt.Fprintln(w, "No agents found.")
		return
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].UpdatedAt.After(agents[j].UpdatedAt)
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT ID\tNAME\tSTATE\tITERATIONS\tCOST\tUPDATED")
	for _, ac := range agents {
		name := ac.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t$%.4f\t%s\n",
			ac.AgentID, truncate(name, 30), ac.State, ac.Iterations, ac.Cost, formatTimeAgo(ac.UpdatedAt, now))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nShowing %d agent(s)\n", len(agents))
}

// printAgent writes the details of one agent.
func printAgent(w io.Writer, ac *types.AgentContext) {
	fmt.Fprintf(w, "Agent: %s\n", ac.AgentID)
	if ac.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", ac.Name)
	}
	if ac.UserID != "" {
		fmt.Fprintf(w, "User: %s\n", ac.UserID)
	}
	fmt.Fprintf(w, "Execution: %s\n", ac.ExecutionID)
	fmt.Fprintf(w, "State: %s\n", ac.State)
	if reason := ac.Reason(); reason != "" && ac.State != types.StateCompleted {
		fmt.Fprintf(w, "Reason: %s\n", reason)
	}
	fmt.Fprintf(w, "Iterations: %d\n", ac.Iterations)
	fmt.Fprintf(w, "Cost: $%.4f\n", ac.Cost)
	if ac.HumanInLoop.Count > 0 || ac.HumanInLoop.Budget > 0 {
		fmt.Fprintf(w, "Human review: every %d iterations or $%.2f (since last review: %d, $%.4f)\n",
			ac.HumanInLoop.Count, ac.HumanInLoop.Budget, ac.HILIterations, ac.HILCost)
	}
	if len(ac.Capabilities) > 0 {
		fmt.Fprintf(w, "Capabilities: %s\n", strings.Join(ac.Capabilities, ", "))
	}
	if len(ac.LLMs) > 0 {
		fmt.Fprintf(w, "LLMs: %s\n", strings.Join(ac.LLMs, ", "))
	}
	if len(ac.PendingCalls) > 0 {
		fmt.Fprintln(w, "Pending calls:")
		for _, call := range ac.PendingCalls {
			fmt.Fprintf(w, "  - %s %s\n", call.Name, formatParams(call.Parameters))
		}
	}
	if len(ac.PendingMessages) > 0 {
		fmt.Fprintf(w, "Pending messages: %d\n", len(ac.PendingMessages))
	}
	fmt.Fprintf(w, "Created: %s\n", ac.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated: %s\n", ac.UpdatedAt.Format(time.RFC3339))

	fmt.Fprintf(w, "\nPrompt:\n  %s\n", indent(ac.UserPrompt))
	if ac.State == types.StateCompleted && ac.Output != "" {
		fmt.Fprintf(w, "\nOutput:\n  %s\n", indent(ac.Output))
	}
	if len(ac.FunctionCallHistory) > 0 {
		fmt.Fprintf(w, "\nFunction calls (%d):\n", len(ac.FunctionCallHistory))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, res := range ac.FunctionCallHistory {
			status := "ok"
			if res.Stderr != "" {
				status = "error: " + truncate(res.Stderr, 60)
			}
			fmt.Fprintf(tw, "  %d\t%s\t%dms\t%s\n", res.Iteration, res.FunctionName, res.DurationMs, status)
		}
		_ = tw.Flush()
	}
}

// printIterations writes the audit trail of an agent.
func printIterations(w io.Writer, records []*types.IterationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No iterations recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITERATION\tEXECUTION\tPROVIDER\tTOKENS\tCOST\tCALLS")
	for _, rec := range records {
		names := make([]string, 0, len(rec.Calls))
		for _, call := range rec.Calls {
			names = append(names, call.Name)
		}
		calls := strings.Join(names, ",")
		if rec.Error != "" {
			calls = "error: " + truncate(rec.Error, 50)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t$%.4f\t%s\n",
			rec.Iteration, truncate(rec.ExecutionID, 12), rec.Provider, rec.InputTokens, rec.OutputTokens, rec.Cost, calls)
	}
	_ = tw.Flush()
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, truncate(fmt.Sprint(params[k]), 40)))
	}
	return strings.Join(parts, " ")
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatTimeAgo formats t relative to now.
func formatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	case duration < 7*24*time.Hour:
		return plural(int(duration.Hours()/24), "day")
	default:
		return t.Format("2006-01-02")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
