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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWarpDataDir(t *testing.T) {
	t.Run("default to ~/.warp", func(t *testing.T) {
		t.Setenv("WARP_DATA_DIR", "")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, ".warp"), GetWarpDataDir())
	})

	t.Run("use WARP_DATA_DIR when set", func(t *testing.T) {
		t.Setenv("WARP_DATA_DIR", "/custom/warp/data")
		assert.Equal(t, "/custom/warp/data", GetWarpDataDir())
	})

	t.Run("expand ~ in WARP_DATA_DIR", func(t *testing.T) {
		t.Setenv("WARP_DATA_DIR", "~/custom/.warp")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, "custom", ".warp"), GetWarpDataDir())
	})

	t.Run("make relative path absolute", func(t *testing.T) {
		t.Setenv("WARP_DATA_DIR", "relative/path")

		dataDir := GetWarpDataDir()
		assert.True(t, filepath.IsAbs(dataDir))
		assert.True(t, strings.HasSuffix(dataDir, filepath.Join("relative", "path")))
	})
}

func TestGetWarpWorkspaceDir(t *testing.T) {
	t.Setenv("WARP_WORKSPACE_DIR", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, GetWarpWorkspaceDir())

	t.Setenv("WARP_WORKSPACE_DIR", "/work/repo")
	assert.Equal(t, "/work/repo", GetWarpWorkspaceDir())
}

func TestGetWarpSubDir(t *testing.T) {
	t.Setenv("WARP_DATA_DIR", "/data")
	assert.Equal(t, filepath.Join("/data", "backups"), GetWarpSubDir("backups"))
}
