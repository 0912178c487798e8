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
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Catalog maps capability names to the factories that build them.
// It is process-wide; the registries it builds are per agent.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds a factory. Overwriting an existing name logs a warning.
func (c *Catalog) Register(name string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[name]; exists {
		c.logger.Warn("Capability factory already registered, overwriting", zap.String("capability", name))
	}
	c.factories[name] = factory
}

// Has reports whether a factory exists for name.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[name]
	return ok
}

// Names returns the known capability names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds one capability for agent.
func (c *Catalog) New(agent AgentAccessor, name string) (Capability, error) {
	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, unknownCapability(name)
	}
	capability, err := factory(agent)
	if err != nil {
		return nil, fmt.Errorf("failed to build capability %s: %w", name, err)
	}
	return capability, nil
}

// Build creates a registry holding the named capabilities for agent.
// Duplicate names are built once.
func (c *Catalog) Build(agent AgentAccessor, names []string) (*Registry, error) {
	registry := NewRegistry(c.logger)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		capability, err := c.New(agent, name)
		if err != nil {
			return nil, err
		}
		registry.Register(capability)
	}
	return registry, nil
}
