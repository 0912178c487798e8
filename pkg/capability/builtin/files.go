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
package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teradata-labs/warp/pkg/capability"
)

const (
	// FilesName is the name of the file system capability.
	FilesName = "Files"

	// MaxFileReadSize is the largest file read will return (10MB).
	MaxFileReadSize = 10 * 1024 * 1024
)

// ErrPathEscape is returned for paths outside the base directory.
var ErrPathEscape = errors.New("path escapes the working directory")

// Files reads and writes files under a base directory.
type Files struct {
	baseDir       string
	writeApproval bool
}

// FilesOption configures Files.
type FilesOption func(*Files)

// WithWriteApproval makes every write require human approval.
func WithWriteApproval() FilesOption {
	return func(f *Files) { f.writeApproval = true }
}

// NewFiles creates a Files capability rooted at baseDir.
// If baseDir is empty the current directory is used.
func NewFiles(baseDir string, opts ...FilesOption) (*Files, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}
	f := &Files{baseDir: abs}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// BaseDir returns the absolute base directory.
func (f *Files) BaseDir() string {
	return f.baseDir
}

func (f *Files) Name() string {
	return FilesName
}

func (f *Files) Schema() capability.MethodSchema {
	return capability.MethodSchema{
		Description: "Functions to read and write files in the working directory",
		Methods: []capability.MethodSpec{
			{
				Name:        "read",
				Description: "Returns the contents of a file",
				Params: []capability.ParamSpec{
					{Name: "path", Index: 0, Type: "string", Description: "File path relative to the working directory"},
				},
			},
			{
				Name:        "write",
				Description: "Writes content to a file, creating parent directories and replacing existing content",
				Params: []capability.ParamSpec{
					{Name: "path", Index: 0, Type: "string", Description: "File path relative to the working directory"},
					{Name: "content", Index: 1, Type: "string", Description: "The full file contents"},
				},
				RequiresApproval:    f.writeApproval,
				ExecuteBeforeFinish: true,
			},
			{
				Name:        "list",
				Description: "Lists the entries of a directory. Directories have a trailing slash.",
				Params: []capability.ParamSpec{
					{Name: "dir", Index: 0, Type: "string", Description: "Directory relative to the working directory (default: .)", Optional: true},
				},
			},
		},
	}
}

func (f *Files) Invoke(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "read":
		path, err := capability.StringArg(args, 0, "path")
		if err != nil {
			return nil, err
		}
		return f.Read(path)
	case "write":
		path, err := capability.StringArg(args, 0, "path")
		if err != nil {
			return nil, err
		}
		content, err := capability.StringArg(args, 1, "content")
		if err != nil {
			return nil, err
		}
		if err := f.Write(path, content); err != nil {
			return nil, err
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
	case "list":
		dir, err := capability.OptionalStringArg(args, 0, "dir", ".")
		if err != nil {
			return nil, err
		}
		return f.List(dir)
	default:
		return nil, capability.UnknownMethod(FilesName, method)
	}
}

// Read returns the contents of a file under the base directory.
func (f *Files) Read(path string) (string, error) {
	full, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() > MaxFileReadSize {
		return "", fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), MaxFileReadSize)
	}
	data, err := os.ReadFile(full) // #nosec G304 -- path is confined to the base directory
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// Write replaces the contents of a file under the base directory.
func (f *Files) Write(path, content string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// List returns the sorted entries of a directory under the base directory.
func (f *Files) List(dir string) ([]string, error) {
	full, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *Files) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path is required", capability.ErrInvalidArgument)
	}
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(f.baseDir, clean)
	}
	rel, err := filepath.Rel(f.baseDir, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}
	return clean, nil
}
