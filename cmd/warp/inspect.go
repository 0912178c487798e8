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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

var (
	listHIL        bool
	listState      string
	showIterations bool
	showJSON       bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	Long: `List stored agents, most recently updated first.

Examples:
  warp list
  warp list --hil
  warp list --state error
`,
	Args: cobra.NoArgs,
	RunE: runListCommand,
}

var showCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Show agent details",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowCommand,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <agent-id>...",
	Short: "Delete agents, their iterations and cached results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeleteCommand,
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List available capabilities",
	Args:  cobra.NoArgs,
	RunE:  runCapabilitiesCommand,
}

var capabilitiesSetCmd = &cobra.Command{
	Use:   "set <agent-id> <name>...",
	Short: "Replace the capabilities of an agent",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCapabilitiesSetCommand,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the agent database",
	Args:  cobra.NoArgs,
	RunE:  runBackupCommand,
}

func init() {
	listCmd.Flags().BoolVar(&listHIL, "hil", false, "Only agents waiting for a human")
	listCmd.Flags().StringVar(&listState, "state", "", "Only agents in this state")
	showCmd.Flags().BoolVar(&showIterations, "iterations", false, "Include the iteration audit trail")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the stored agent as JSON")

	capabilitiesCmd.AddCommand(capabilitiesSetCmd)
	rootCmd.AddCommand(listCmd, showCmd, deleteCmd, capabilitiesCmd, backupCmd)
}

// withStore opens only the database, for read-only commands that do not
// need an LLM provider.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *storage.SQLiteStore) error) error {
	logger, err := newLogger(config.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	store, err := openStore(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, store)
}

func listStates(hil bool, state string) ([]types.State, error) {
	if hil && state != "" {
		return nil, errors.New("--hil and --state are mutually exclusive")
	}
	if hil {
		return []types.State{types.StateHILThreshold, types.StateHILTool, types.StateHILFeedback}, nil
	}
	if state == "" {
		return nil, nil
	}
	s := types.State(strings.ToLower(state))
	if !s.Valid() {
		return nil, fmt.Errorf("unknown state %q", state)
	}
	return []types.State{s}, nil
}

func runListCommand(cmd *cobra.Command, args []string) error {
	states, err := listStates(listHIL, listState)
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, store *storage.SQLiteStore) error {
		var agents []*types.AgentContext
		if len(states) == 0 {
			agents, err = store.List(ctx)
		} else {
			agents, err = store.ListByState(ctx, states...)
		}
		if err != nil {
			return fmt.Errorf("failed to list agents: %w", err)
		}
		printAgents(os.Stdout, agents, time.Now())
		return nil
	})
}

func runShowCommand(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *storage.SQLiteStore) error {
		ac, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ac)
		}
		printAgent(os.Stdout, ac)
		if showIterations {
			records, err := store.ListIterations(ctx, ac.AgentID)
			if err != nil {
				return err
			}
			fmt.Println()
			printIterations(os.Stdout, records)
		}
		return nil
	})
}

func runDeleteCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		n, err := a.engine.Delete(ctx, args...)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d agent(s)\n", n)
		return nil
	})
}

func runCapabilitiesCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		names := a.engine.Capabilities()
		sort.Strings(names)
		defaults := make(map[string]bool)
		for _, name := range a.cfg.EngineConfig().DefaultCapabilities {
			defaults[name] = true
		}
		for _, name := range names {
			marker := ""
			if defaults[name] {
				marker = " (default)"
			}
			fmt.Printf("%s%s\n", name, marker)
		}
		return nil
	})
}

func runCapabilitiesSetCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.UpdateCapabilities(ctx, args[0], args[1:]); err != nil {
			return err
		}
		fmt.Printf("Agent %s capabilities: %s\n", args[0], strings.Join(args[1:], ", "))
		return nil
	})
}

func runBackupCommand(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *storage.SQLiteStore) error {
		path, err := store.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		if err := storage.VerifyBackup(ctx, path); err != nil {
			return fmt.Errorf("backup written to %s but failed verification: %w", path, err)
		}
		fmt.Printf("Backup written to %s\n", path)
		return nil
	})
}
