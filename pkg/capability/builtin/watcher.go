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
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must be quiet before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Debounce time.Duration // default: DefaultDebounce
	Logger   *zap.Logger
}

// Watcher reports which watched files changed between two calls to Changed.
// Each agent has its own watched set and its own changed set; a file watched
// by several agents is reported to each of them. Events are collected by a
// ticker-driven loop and a file is reported once it has been quiet for the
// debounce interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	agents  map[string]map[string]bool // agent id -> watched file paths
	files   map[string]int             // watched file paths and how many agents need them
	dirs    map[string]int             // watched directories and how many files need them
	pending map[string]time.Time
	changed map[string]map[string]bool // agent id -> changed file paths

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	stopMu  sync.Mutex
}

// NewWatcher creates a watcher. Call Start to begin collecting events.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		debounce: config.Debounce,
		logger:   config.Logger,
		agents:   make(map[string]map[string]bool),
		files:    make(map[string]int),
		dirs:     make(map[string]int),
		pending:  make(map[string]time.Time),
		changed:  make(map[string]map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.loop(ctx)
}

// Stop ends the event loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	if w.started {
		<-w.doneCh
	}
	return w.watcher.Close()
}

// Sync makes the set watched for agentID equal to paths (absolute file paths).
// Other agents' sets are left alone. Parent directories are watched so that
// files replaced by rename are still seen.
func (w *Watcher) Sync(agentID string, paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[filepath.Clean(p)] = true
	}
	have := w.agents[agentID]

	for p := range have {
		if want[p] {
			continue
		}
		delete(have, p)
		delete(w.changed[agentID], p)
		w.unwatchLocked(p)
	}

	for p := range want {
		if have[p] {
			continue
		}
		if err := w.watchLocked(p); err != nil {
			return err
		}
		if have == nil {
			have = make(map[string]bool)
			w.agents[agentID] = have
		}
		have[p] = true
	}

	if len(have) == 0 {
		delete(w.agents, agentID)
		delete(w.changed, agentID)
	}
	return nil
}

// Forget drops everything watched for agentID.
func (w *Watcher) Forget(agentID string) {
	_ = w.Sync(agentID, nil)
}

// Changed returns the files that changed for agentID since its previous
// call, sorted.
func (w *Watcher) Changed(agentID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.changed[agentID]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	delete(w.changed, agentID)
	sort.Strings(out)
	return out
}

// watchLocked adds one agent reference to p. Callers hold mu.
func (w *Watcher) watchLocked(p string) error {
	if w.files[p] == 0 {
		dir := filepath.Dir(p)
		if w.dirs[dir] == 0 {
			if err := w.watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		w.dirs[dir]++
	}
	w.files[p]++
	return nil
}

// unwatchLocked drops one agent reference to p. Callers hold mu.
func (w *Watcher) unwatchLocked(p string) {
	w.files[p]--
	if w.files[p] > 0 {
		return
	}
	delete(w.files, p)
	delete(w.pending, p)
	dir := filepath.Dir(p)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			w.logger.Debug("Failed to stop watching directory", zap.String("dir", dir), zap.Error(err))
		}
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("File watcher events channel closed")
				return
			}
			w.record(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("File watcher errors channel closed")
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) record(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Clean(event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[name] > 0 {
		w.pending[name] = time.Now()
	}
}

func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			delete(w.pending, p)
			for agentID, watched := range w.agents {
				if !watched[p] {
					continue
				}
				if w.changed[agentID] == nil {
					w.changed[agentID] = make(map[string]bool)
				}
				w.changed[agentID][p] = true
			}
			w.logger.Debug("Live file changed", zap.String("path", p))
		}
	}
}
