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
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the live capability instances of one agent.
// Capabilities are scoped to their agent and never shared across agents.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]Capability
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		caps:   make(map[string]Capability),
		logger: logger,
	}
}

// Register adds a capability. A capability already registered under the
// same name is replaced and the replacement is logged.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.Name()]; exists {
		r.logger.Warn("Replacing registered capability", zap.String("capability", c.Name()))
	}
	r.caps[c.Name()] = c
}

// Remove unregisters a capability. Later dispatches naming it fail with
// ErrUnknownCapability.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[name]; !exists {
		return false
	}
	delete(r.caps, name)
	r.logger.Info("Removed capability", zap.String("capability", name))
	return true
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry pairs a capability name with its schema.
type Entry struct {
	Name   string
	Schema MethodSchema
}

// Schemas returns the schema of every capability, sorted by name.
func (r *Registry) Schemas() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.caps))
	for name, c := range r.caps {
		entries = append(entries, Entry{Name: name, Schema: c.Schema()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// LookupMethod returns the spec of a qualified method name.
func (r *Registry) LookupMethod(qualified string) (MethodSpec, bool) {
	capName, method, ok := SplitName(qualified)
	if !ok {
		return MethodSpec{}, false
	}
	c, ok := r.Get(capName)
	if !ok {
		return MethodSpec{}, false
	}
	return c.Schema().Method(method)
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
