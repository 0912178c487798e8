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
package capability

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SplitName splits "Capability.Method". The "Capability_Method" form is
// accepted when the name has no dot.
func SplitName(qualified string) (capability, method string, ok bool) {
	if i := strings.Index(qualified, "."); i > 0 && i < len(qualified)-1 {
		return qualified[:i], qualified[i+1:], true
	}
	if i := strings.Index(qualified, "_"); i > 0 && i < len(qualified)-1 {
		return qualified[:i], qualified[i+1:], true
	}
	return "", "", false
}

// QualifiedName joins a capability and method name.
func QualifiedName(capability, method string) string {
	return capability + "." + method
}

// StringArg returns args[i] as a string.
func StringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64, int, int64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgument, name, args[i])
	}
}

// OptionalStringArg is StringArg with a default for absent arguments.
func OptionalStringArg(args []any, i int, name, def string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	return StringArg(args, i, name)
}

// StringSliceArg returns args[i] as a []string. A single string is
// promoted to a one-element slice.
func StringSliceArg(args []any, i int, name string) ([]string, error) {
	if i >= len(args) || args[i] == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	switch v := args[i].(type) {
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain strings, got %T", ErrInvalidArgument, name, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrInvalidArgument, name, args[i])
	}
}

// FormatValue serializes a method return value for the call record.
func FormatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}
	return string(data), nil
}
