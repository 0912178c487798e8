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

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetWarpDataDir returns the warp data directory.
//
// Priority:
// 1. WARP_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.warp (default)
//
// The returned path is absolute. A leading ~ is expanded to the user's home
// directory and relative paths are resolved against the working directory.
//
// It reads os.Getenv directly, not viper, because it locates the config file
// itself.
//
//	WARP_DATA_DIR=/srv/warp     -> /srv/warp
//	WARP_DATA_DIR=~/agents      -> /home/user/agents
//	WARP_DATA_DIR not set       -> /home/user/.warp
func GetWarpDataDir() string {
	if dataDir := os.Getenv("WARP_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".warp"
	}
	return filepath.Join(homeDir, ".warp")
}

// GetWarpWorkspaceDir returns the directory the Files capabilities are rooted
// in: WARP_WORKSPACE_DIR when set, the current directory otherwise.
func GetWarpWorkspaceDir() string {
	if dir := os.Getenv("WARP_WORKSPACE_DIR"); dir != "" {
		return expandPath(dir)
	}
	return expandPath(".")
}

// GetWarpSubDir returns a subdirectory within the warp data directory.
func GetWarpSubDir(subdir string) string {
	return filepath.Join(GetWarpDataDir(), subdir)
}

// expandPath expands ~ and resolves to an absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
