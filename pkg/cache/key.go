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

// Package cache memoizes idempotent external calls.
//
// Entries are keyed by scope, capability, method and the serialized
// arguments. The scope decides the invalidation boundary: agent-scoped
// entries disappear when the agent is deleted, user-scoped entries when the
// user cache is cleared, global entries only when the store expires them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Scope is the invalidation boundary of a cached value.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
	ScopeAgent  Scope = "agent"
)

// ErrInvalidKey is returned for keys that cannot be serialized.
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies one cached call.
type Key struct {
	Scope Scope
	// ScopeID is the user or agent id; ignored for ScopeGlobal.
	ScopeID    string
	Capability string
	Method     string
	Args       []any
}

// String renders the storage key: "<scope prefix><capability>.<method>:<args hash>".
func (k Key) String() (string, error) {
	prefix, err := ScopePrefix(k.Scope, k.ScopeID)
	if err != nil {
		return "", err
	}
	if k.Capability == "" || k.Method == "" {
		return "", fmt.Errorf("%w: capability and method are required", ErrInvalidKey)
	}
	args, err := json.Marshal(k.Args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sum := sha256.Sum256(args)
	return prefix + k.Capability + "." + k.Method + ":" + hex.EncodeToString(sum[:]), nil
}

// scopeIDEscaper keeps ':' out of scope ids so that no scope prefix is a
// prefix of another ("a" must not clear "a:b").
var scopeIDEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// ScopePrefix returns the key prefix shared by every entry of a scope.
func ScopePrefix(scope Scope, id string) (string, error) {
	switch scope {
	case ScopeGlobal:
		return "global:", nil
	case ScopeUser, ScopeAgent:
		if id == "" {
			return "", fmt.Errorf("%w: %s scope requires an id", ErrInvalidKey, scope)
		}
		return string(scope) + ":" + scopeIDEscaper.Replace(id) + ":", nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidKey, scope)
	}
}
