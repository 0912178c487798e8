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
package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

func newSQLiteStore(t *testing.T, tracer observability.Tracer) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "nested", "warp.db"),
		Tracer: tracer,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t, nil))
	})
}

func testAgent(id string, created time.Time) *types.AgentContext {
	return &types.AgentContext{
		AgentID:     id,
		ExecutionID: "exec-1",
		State:       types.StateRunning,
		UserPrompt:  "summarize the repo",
		Memory:      map[string]string{"k": "v"},
		ToolState:   map[string]json.RawMessage{"LiveFiles": json.RawMessage(`["a.txt"]`)},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		agent := testAgent("a1", time.UnixMilli(1_700_000_000_000).UTC())
		agent.FunctionCallHistory = []types.FunctionCallResult{{Iteration: 1, FunctionName: "Files.read", Stdout: "hi"}}
		require.NoError(t, store.Save(ctx, agent))

		loaded, err := store.Load(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, agent.UserPrompt, loaded.UserPrompt)
		assert.Equal(t, "v", loaded.Memory["k"])
		assert.JSONEq(t, `["a.txt"]`, string(loaded.ToolState["LiveFiles"]))
		require.Len(t, loaded.FunctionCallHistory, 1)
		assert.True(t, agent.CreatedAt.Equal(loaded.CreatedAt))

		// Mutating the loaded copy does not leak into the store.
		loaded.Memory["k"] = "changed"
		again, err := store.Load(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "v", again.Memory["k"])
	})
}

func TestStore_LoadMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		_, err := store.Load(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_RejectsInvalid(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		assert.Error(t, store.Save(ctx, &types.AgentContext{State: types.StateRunning}))
		assert.Error(t, store.Save(ctx, &types.AgentContext{AgentID: "a", State: "sleeping"}))
	})
}

func TestStore_Monotonicity(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		agent := testAgent("a1", time.Now())
		agent.Iterations = 3
		agent.Cost = 0.3
		require.NoError(t, store.Save(ctx, agent))

		stale := agent.Clone()
		stale.Iterations = 2
		stale.State = types.StateCompleted
		assert.ErrorIs(t, store.Save(ctx, stale), ErrRegression)

		cheaper := agent.Clone()
		cheaper.Cost = 0.1
		assert.ErrorIs(t, store.Save(ctx, cheaper), ErrRegression)

		loaded, err := store.Load(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Iterations)
		assert.Equal(t, types.StateRunning, loaded.State, "a rejected save leaves the stored value untouched")

		// Equal counters are allowed (state-only transitions).
		same := agent.Clone()
		same.State = types.StateHILThreshold
		require.NoError(t, store.Save(ctx, same))

		// A new execution may start from any counters.
		next := agent.Clone()
		next.ExecutionID = "exec-2"
		next.Iterations = 0
		require.NoError(t, store.Save(ctx, next))
	})
}

func TestStore_ListAndListByState(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)
		states := []types.State{types.StateCompleted, types.StateHILTool, types.StateRunning, types.StateHILFeedback}
		for i, st := range states {
			agent := testAgent(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
			agent.State = st
			require.NoError(t, store.Save(ctx, agent))
		}

		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(all))

		hil, err := store.ListByState(ctx, types.StateHILThreshold, types.StateHILTool, types.StateHILFeedback)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d"}, ids(hil))

		none, err := store.ListByState(ctx)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_DeleteRemovesIterations(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, testAgent("a1", time.Now())))
		require.NoError(t, store.Save(ctx, testAgent("a2", time.Now())))
		require.NoError(t, store.SaveIteration(ctx, &types.IterationRecord{AgentID: "a1", ExecutionID: "exec-1", Iteration: 1}))

		deleted, err := store.Delete(ctx, "a1", "missing")
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = store.Load(ctx, "a1")
		assert.ErrorIs(t, err, ErrNotFound)
		records, err := store.ListIterations(ctx, "a1")
		require.NoError(t, err)
		assert.Empty(t, records)

		_, err = store.Load(ctx, "a2")
		assert.NoError(t, err)
	})
}

func TestStore_Iterations(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			require.NoError(t, store.SaveIteration(ctx, &types.IterationRecord{
				AgentID:     "a1",
				ExecutionID: "exec-1",
				Iteration:   i,
				Prompt:      "p",
				Response:    "r",
				Calls:       []types.FunctionCall{{Name: "Files.read", Parameters: map[string]any{"path": "a.txt"}}},
				Cost:        0.01,
			}))
		}
		require.NoError(t, store.SaveIteration(ctx, &types.IterationRecord{AgentID: "a2", Iteration: 1}))

		records, err := store.ListIterations(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, r := range records {
			assert.Equal(t, i+1, r.Iteration)
		}
		assert.Equal(t, "a.txt", records[0].Calls[0].Parameters["path"])

		assert.Error(t, store.SaveIteration(ctx, &types.IterationRecord{}))
	})
}

func TestStore_ConcurrentSaves(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				agent := testAgent(string(rune('a'+i)), time.Now())
				assert.NoError(t, store.Save(ctx, agent))
			}(i)
		}
		wg.Wait()
		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 8)
	})
}

func TestSQLiteStore_Persistent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warp.db")

	store, err := NewSQLiteStore(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testAgent("a1", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "summarize the repo", loaded.UserPrompt)
}

func TestSQLiteStore_Traced(t *testing.T) {
	tracer := observability.NewMockTracer()
	store := newSQLiteStore(t, tracer)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testAgent("a1", time.Now())))
	_, err := store.Load(ctx, "a1")
	require.NoError(t, err)

	saves := tracer.GetSpansByName(observability.SpanStoreSave)
	require.Len(t, saves, 1)
	assert.Equal(t, "a1", saves[0].Attributes[observability.AttrAgentID])
	assert.Len(t, tracer.GetSpansByName(observability.SpanStoreLoad), 1)
	assert.NotEmpty(t, tracer.GetSpansByName("migrator.migrate_up"))
}

func TestSQLiteStore_Backup(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testAgent("a1", time.Now())))

	backupPath, err := store.Backup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, backupPath)
	assert.NoError(t, VerifyBackup(ctx, backupPath))

	copied, err := NewSQLiteStore(ctx, SQLiteConfig{Path: backupPath})
	require.NoError(t, err)
	defer copied.Close()
	_, err = copied.Load(ctx, "a1")
	assert.NoError(t, err)
}

func TestMigrator_UpDown(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	migrator, err := NewMigrator(store.db, nil)
	require.NoError(t, err)
	version, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrator.Latest(), version)
	assert.GreaterOrEqual(t, version, 2)

	// Re-running is a no-op.
	require.NoError(t, migrator.MigrateUp(ctx))

	require.NoError(t, migrator.MigrateDown(ctx, version))
	version, err = migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	var tables int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='agents'").Scan(&tables))
	assert.Equal(t, 0, tables)

	require.NoError(t, migrator.MigrateUp(ctx))
	require.NoError(t, store.Save(ctx, testAgent("a1", time.Now())))
}

func ids(agents []*types.AgentContext) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.AgentID
	}
	return out
}
