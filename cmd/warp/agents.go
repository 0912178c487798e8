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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/warp/pkg/agent"
	warpconfig "github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/types"
)

const shutdownTimeout = 15 * time.Second

// runFlags holds the flags of `warp run`.
type runFlags struct {
	file         string
	id           string
	name         string
	user         string
	capabilities []string
	llms         []string
	handlers     []string
	count        int
	budget       float64
}

var (
	runOpts runFlags

	resumeCount  int
	resumeBudget float64
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Start a new agent",
	Long: `Start a new agent and wait until it completes or pauses.

The prompt comes from the argument or from an agent file (--file). Flags
override the values of the file.

Examples:
  warp run "Summarize the README"
  warp run --file agents/refactor.yaml --count 5 --budget 2.50
  warp run --capabilities Agent,Files,Web --llm anthropic "Find dead links in docs/"
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunCommand,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <agent-id> [input]",
	Short: "Resume a paused, failed or completed agent",
	Long: `Resume an agent from its current state.

The input is a note for human review pauses, a new prompt for failed or
completed agents and the answer for feedback pauses.

Examples:
  warp resume 3f2a... "Looks good, continue"
  warp resume 3f2a... --count 10 --budget 5
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResumeCommand,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <agent-id> <answer>",
	Short: "Answer the question of an agent waiting for feedback",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeedbackCommand,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <agent-id> [reason]",
	Short: "Cancel a paused agent",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCancelCommand,
}

var messageCmd = &cobra.Command{
	Use:   "message <agent-id> <text>",
	Short: "Queue a message for the next iteration of an agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runMessageCommand,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-enter every agent left running by an interrupted process",
	Args:  cobra.NoArgs,
	RunE:  runRecoverCommand,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.file, "file", "f", "", "Agent definition file (YAML)")
	f.StringVar(&runOpts.id, "id", "", "Agent id (generated when empty)")
	f.StringVar(&runOpts.name, "name", "", "Agent name")
	f.StringVar(&runOpts.user, "user", "", "User id owning the agent")
	f.StringSliceVar(&runOpts.capabilities, "capabilities", nil, "Capabilities to enable (default from config)")
	f.StringSliceVar(&runOpts.llms, "llm", nil, "Preferred LLM providers for this agent, in order")
	f.StringSliceVar(&runOpts.handlers, "handlers", nil, "Completion handlers to notify")
	f.IntVar(&runOpts.count, "count", 0, "Pause for human review every N iterations (0 disables)")
	f.Float64Var(&runOpts.budget, "budget", 0, "Pause for human review every N dollars (0 disables)")

	resumeCmd.Flags().IntVar(&resumeCount, "count", 0, "New iteration threshold for human review")
	resumeCmd.Flags().Float64Var(&resumeBudget, "budget", 0, "New cost threshold for human review")

	rootCmd.AddCommand(runCmd, resumeCmd, feedbackCmd, cancelCmd, messageCmd, recoverCmd)
}

// buildStartRequest merges an optional agent file with the command line.
func buildStartRequest(opts runFlags, args []string) (agent.StartRequest, error) {
	var req agent.StartRequest
	if opts.file != "" {
		file, err := warpconfig.LoadAgentFile(opts.file)
		if err != nil {
			return req, err
		}
		req = agent.StartRequest{
			Name:              file.Metadata.Name,
			UserID:            file.Metadata.UserID,
			Prompt:            file.Spec.Prompt,
			Capabilities:      file.Spec.Capabilities,
			LLMs:              file.Spec.LLMs,
			CompletedHandlers: file.Spec.CompletedHandlers,
			Metadata:          file.AgentMetadata(),
			HumanInLoop: types.HumanInLoop{
				Count:  file.Spec.HumanInLoop.Count,
				Budget: file.Spec.HumanInLoop.Budget,
			},
		}
	}

	if len(args) > 0 {
		req.Prompt = args[0]
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return req, errors.New("a prompt is required (argument or --file)")
	}
	if opts.id != "" {
		req.AgentID = opts.id
	}
	if opts.name != "" {
		req.Name = opts.name
	}
	if opts.user != "" {
		req.UserID = opts.user
	}
	if len(opts.capabilities) > 0 {
		req.Capabilities = opts.capabilities
	}
	if len(opts.llms) > 0 {
		req.LLMs = opts.llms
	}
	if len(opts.handlers) > 0 {
		req.CompletedHandlers = opts.handlers
	}
	if opts.count > 0 {
		req.HumanInLoop.Count = opts.count
	}
	if opts.budget > 0 {
		req.HumanInLoop.Budget = opts.budget
	}
	if req.HumanInLoop.Count < 0 || req.HumanInLoop.Budget < 0 {
		return req, errors.New("human review thresholds must not be negative")
	}
	return req, nil
}

// withApp builds the application under a signal-aware context, runs fn and
// shuts everything down.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.close(shutdownCtx)
	}()
	return fn(ctx, a)
}

// waitFor blocks until every execution pauses or stops. An interrupt leaves
// the agents running in the store so `warp recover` can pick them up.
func waitFor(ctx context.Context, execs ...*agent.Execution) error {
	for _, exec := range execs {
		ac, err := exec.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintf(os.Stderr, "\nInterrupted. Agent %s is still marked running; continue it with: warp recover\n", exec.AgentID)
				return nil
			}
			return err
		}
		if ac.State.IsHumanInLoop() {
			fmt.Printf("Resume with: warp resume %s [input]\n", ac.AgentID)
		}
	}
	return nil
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	req, err := buildStartRequest(runOpts, args)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		exec, err := a.engine.Start(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to start agent: %w", err)
		}
		fmt.Printf("Started agent %s\n", exec.AgentID)
		return waitFor(ctx, exec)
	})
}

func runResumeCommand(cmd *cobra.Command, args []string) error {
	agentID := args[0]
	input := ""
	if len(args) > 1 {
		input = args[1]
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ac, err := a.engine.Get(ctx, agentID)
		if err != nil {
			return err
		}

		var exec *agent.Execution
		if ac.State.IsHumanInLoop() && ac.State != types.StateHILFeedback && (resumeCount > 0 || resumeBudget > 0) {
			exec, err = a.engine.ResumeHIL(ctx, agentID, ac.ExecutionID, agent.HILInput{
				Note:   input,
				Count:  resumeCount,
				Budget: resumeBudget,
			})
		} else {
			exec, err = a.engine.Resume(ctx, agentID, ac.ExecutionID, input)
		}
		if err != nil {
			return fmt.Errorf("failed to resume agent: %w", err)
		}
		fmt.Printf("Resumed agent %s from %s\n", agentID, ac.State)
		return waitFor(ctx, exec)
	})
}

func runFeedbackCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ac, err := a.engine.Get(ctx, args[0])
		if err != nil {
			return err
		}
		exec, err := a.engine.ProvideFeedback(ctx, ac.AgentID, ac.ExecutionID, args[1])
		if err != nil {
			return fmt.Errorf("failed to provide feedback: %w", err)
		}
		return waitFor(ctx, exec)
	})
}

func runCancelCommand(cmd *cobra.Command, args []string) error {
	reason := "cancelled from the command line"
	if len(args) > 1 {
		reason = args[1]
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.Cancel(ctx, args[0], reason); err != nil {
			return err
		}
		ac, err := a.engine.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if ac.State == types.StateError {
			fmt.Printf("Agent %s cancelled\n", ac.AgentID)
		} else {
			fmt.Printf("Agent %s is %s; only paused agents can be cancelled from another process\n", ac.AgentID, ac.State)
		}
		return nil
	})
}

func runMessageCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.SubmitMessage(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Message queued for agent %s\n", args[0])
		return nil
	})
}

func runRecoverCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		execs, err := a.engine.Recover(ctx)
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			fmt.Println("No running agents to recover.")
			return nil
		}
		fmt.Printf("Recovered %d agent(s)\n", len(execs))
		return waitFor(ctx, execs...)
	})
}
