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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/warp/internal/version"
	warpconfig "github.com/teradata-labs/warp/pkg/config"
)

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:   "warp",
	Short: "Warp - autonomous agents that survive restarts",
	Long: `Warp runs autonomous LLM agents that call capabilities, pause for human
review, and resume from durable checkpoints.`,
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $WARP_DATA_DIR/warp.yaml)")

	// LLM flags
	rootCmd.PersistentFlags().StringSlice("llm-providers", nil, "LLM providers in preference order (anthropic, bedrock, ollama)")
	rootCmd.PersistentFlags().String("anthropic-key", "", "Anthropic API key (or use keyring/env)")
	rootCmd.PersistentFlags().String("anthropic-model", "", "Anthropic model")
	rootCmd.PersistentFlags().Float64("temperature", 1.0, "LLM temperature")
	rootCmd.PersistentFlags().Int("max-tokens", 8192, "Maximum tokens per generation")

	// Storage flags
	defaultDBPath := filepath.Join(warpconfig.GetWarpDataDir(), "warp.db")
	rootCmd.PersistentFlags().String("db", defaultDBPath, "SQLite database path")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL for the capability cache (default: in-memory)")

	// Agent flags
	rootCmd.PersistentFlags().Int("max-iterations", 0, "Stop an execution after this many iterations (0 = unlimited)")
	rootCmd.PersistentFlags().String("workspace", "", "Directory the Files capabilities are rooted in (default: $WARP_WORKSPACE_DIR or .)")

	// Observability and logging flags
	rootCmd.PersistentFlags().Bool("trace", false, "Export OpenTelemetry spans and metrics to stderr")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	_ = viper.BindPFlag("llm.providers", rootCmd.PersistentFlags().Lookup("llm-providers"))
	_ = viper.BindPFlag("llm.anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("llm.anthropic_model", rootCmd.PersistentFlags().Lookup("anthropic-model"))
	_ = viper.BindPFlag("llm.temperature", rootCmd.PersistentFlags().Lookup("temperature"))
	_ = viper.BindPFlag("llm.max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	_ = viper.BindPFlag("agent.max_iterations", rootCmd.PersistentFlags().Lookup("max-iterations"))
	_ = viper.BindPFlag("files.base_dir", rootCmd.PersistentFlags().Lookup("workspace"))

	_ = viper.BindPFlag("observability.trace", rootCmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
