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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit warp configuration",
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage secrets in the system keyring",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printConfig(cmd.OutOrStdout(), config)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a non-sensitive configuration value in the warp config file.

For secrets use 'warp secrets set' instead.

Examples:
  warp config set llm.providers anthropic,bedrock
  warp config set agent.max_iterations 50
  warp config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), viper.Get(args[0]))
	},
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <key-name>",
	Short: "Save a secret to the system keyring",
	Long: `Save a secret to the system keyring. The value is read from the
terminal without echo, or from stdin when it is not a terminal.

Available keys:
  anthropic_api_key, bedrock_access_key_id, bedrock_secret_access_key,
  bedrock_session_token, discord_token, redis_url`,
	Args: cobra.ExactArgs(1),
	RunE: runSecretsSet,
}

var secretsGetCmd = &cobra.Command{
	Use:   "get <key-name>",
	Short: "Show a masked secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := keyring.Get(ServiceName, args[0])
		if err != nil {
			return fmt.Errorf("key %s not found in keyring (set it with: warp secrets set %s): %w", args[0], args[0], err)
		}
		fmt.Printf("%s: %s\n", args[0], maskSecret(secret))
		return nil
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete <key-name>",
	Short: "Delete a secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := keyring.Delete(ServiceName, args[0]); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		fmt.Printf("✓ Deleted %s from system keyring\n", args[0])
		return nil
	},
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret keys the keyring can hold",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, m := range GetSecretMappings() {
			status := "not set"
			if m.IsSet(config) {
				status = "set"
			}
			fmt.Printf("  %-28s %-8s %s\n", m.Key, status, m.Description)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configGetCmd)
	secretsCmd.AddCommand(secretsSetCmd, secretsGetCmd, secretsDeleteCmd, secretsListCmd)
	rootCmd.AddCommand(configCmd, secretsCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	name := key[strings.LastIndex(key, ".")+1:]
	if _, secret := lookupSecretMapping(name); secret {
		return fmt.Errorf("%s is a secret; use: warp secrets set %s", key, name)
	}

	path := viper.ConfigFileUsed()
	if path == "" {
		path = filepath.Join(config.DataDir, DefaultConfigFileName+".yaml")
		if err := os.MkdirAll(config.DataDir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", config.DataDir, err)
		}
	}

	// Write only what the file already holds plus the new key, never defaults
	// or secrets loaded from elsewhere.
	file := viper.New()
	file.SetConfigFile(path)
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.Contains(value, ",") {
		file.Set(key, strings.Split(value, ","))
	} else {
		file.Set(key, value)
	}
	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("✓ Set %s in %s\n", key, path)
	return nil
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	if _, ok := lookupSecretMapping(keyName); !ok {
		return fmt.Errorf("invalid key name %s (see: warp secrets list)", keyName)
	}

	secret, err := readSecret(os.Stdin, keyName)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}
	if err := keyring.Set(ServiceName, keyName, secret); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	fmt.Printf("✓ Saved %s to system keyring\n", keyName)
	return nil
}

// readSecret reads without echo from a terminal and a single line otherwise.
func readSecret(in *os.File, keyName string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Printf("Enter %s (input hidden): ", keyName)
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printConfig(w io.Writer, c *Config) {
	secret := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return maskSecret(s)
	}

	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "======================")
	fmt.Fprintf(w, "Data dir: %s\n", c.DataDir)
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "Config file: %s\n", used)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "LLM:")
	fmt.Fprintf(w, "  Providers: %s\n", strings.Join(c.LLM.Providers, ", "))
	fmt.Fprintf(w, "  Anthropic model: %s\n", c.LLM.AnthropicModel)
	fmt.Fprintf(w, "  Anthropic API key: %s\n", secret(c.LLM.AnthropicAPIKey))
	fmt.Fprintf(w, "  Bedrock: %s in %s\n", c.LLM.BedrockModelID, c.LLM.BedrockRegion)
	fmt.Fprintf(w, "  Ollama: %s at %s\n", c.LLM.OllamaModel, c.LLM.OllamaEndpoint)
	fmt.Fprintf(w, "  Temperature: %.1f\n", c.LLM.Temperature)
	fmt.Fprintf(w, "  Max tokens: %d\n", c.LLM.MaxTokens)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Database:")
	fmt.Fprintf(w, "  Path: %s\n", c.Database.Path)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Cache:")
	if c.Cache.RedisURL != "" {
		fmt.Fprintf(w, "  Redis: %s\n", secret(c.Cache.RedisURL))
	} else {
		fmt.Fprintln(w, "  Store: memory")
	}
	fmt.Fprintf(w, "  TTL: %ds\n", c.Cache.TTLSeconds)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Agent:")
	fmt.Fprintf(w, "  Max iterations: %d\n", c.Agent.MaxIterations)
	fmt.Fprintf(w, "  Default capabilities: %s\n", strings.Join(c.Agent.DefaultCapabilities, ", "))
	fmt.Fprintf(w, "  Default handlers: %s\n", strings.Join(c.Agent.DefaultHandlers, ", "))
	if len(c.Agent.ApprovalRequired) > 0 {
		fmt.Fprintf(w, "  Approval required: %s\n", strings.Join(c.Agent.ApprovalRequired, ", "))
	}
	fmt.Fprintf(w, "  Workspace: %s\n", c.Files.BaseDir)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Notifications:")
	fmt.Fprintf(w, "  Discord token: %s\n", secret(c.Notifications.DiscordToken))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Logging:")
	fmt.Fprintf(w, "  Level: %s\n", c.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", c.Logging.Format)
}

// maskSecret masks a secret for display.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
