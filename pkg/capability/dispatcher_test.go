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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// recorder is a capability that records the arguments it was invoked with.
type recorder struct {
	name   string
	schema MethodSchema
	calls  [][]any
	result any
	err    error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Schema() MethodSchema { return r.schema }

func (r *recorder) Invoke(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "write", "read", "noop", "bare", "save":
		r.calls = append(r.calls, args)
		return r.result, r.err
	default:
		return nil, UnknownMethod(r.name, method)
	}
}

func filesRecorder() *recorder {
	return &recorder{
		name: "Files",
		schema: MethodSchema{Methods: []MethodSpec{
			{Name: "read", Params: []ParamSpec{{Name: "path", Index: 0}}},
			{Name: "write", Params: []ParamSpec{
				{Name: "path", Index: 0},
				{Name: "content", Index: 1},
				{Name: "mode", Index: 2, Optional: true},
			}},
			{Name: "bare"},
			{Name: "save", Params: []ParamSpec{{Name: "key", Index: 0}, {Name: "content", Index: 1}},
				RedactParams: []string{"content"}, RedactResult: true},
		}},
		result: "ok",
	}
}

func newTestDispatcher(t *testing.T, caps ...Capability) *Dispatcher {
	t.Helper()
	registry := NewRegistry(zaptest.NewLogger(t))
	for _, c := range caps {
		registry.Register(c)
	}
	return NewDispatcher(registry, WithLogger(zaptest.NewLogger(t)))
}

func TestDispatch_ZeroAndOneParameterSkipSchema(t *testing.T) {
	files := filesRecorder()
	d := newTestDispatcher(t, files)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, 1, types.FunctionCall{Name: "Files.noop"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Record.Stdout)

	// noop is absent from the schema, so binding cannot have consulted it.
	_, err = d.Dispatch(ctx, 1, types.FunctionCall{Name: "Files.noop", Parameters: map[string]any{"anything": "a.txt"}})
	require.NoError(t, err)

	require.Len(t, files.calls, 2)
	assert.Nil(t, files.calls[0])
	assert.Equal(t, []any{"a.txt"}, files.calls[1])
}

func TestDispatch_BindsBySchemaIndexRegardlessOfOrder(t *testing.T) {
	files := filesRecorder()
	d := newTestDispatcher(t, files)

	for i := 0; i < 20; i++ {
		_, err := d.Dispatch(context.Background(), 1, types.FunctionCall{
			Name:       "Files.write",
			Parameters: map[string]any{"content": "hello", "mode": "0644", "path": "out.txt"},
		})
		require.NoError(t, err)
	}
	for _, args := range files.calls {
		assert.Equal(t, []any{"out.txt", "hello", "0644"}, args)
	}

	files.calls = nil
	_, err := d.Dispatch(context.Background(), 1, types.FunctionCall{
		Name:       "Files.write",
		Parameters: map[string]any{"content": "hello", "path": "out.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"out.txt", "hello", nil}, files.calls[0])
}

func TestDispatch_InvalidParameterListsValidNames(t *testing.T) {
	files := filesRecorder()
	d := newTestDispatcher(t, files)

	res, err := d.Dispatch(context.Background(), 3, types.FunctionCall{
		Name:       "Files.write",
		Parameters: map[string]any{"path": "a", "body": "b"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	var ipe *InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "body", ipe.Param)
	assert.Equal(t, []string{"path", "content", "mode"}, ipe.Valid)

	assert.Contains(t, res.Record.Stderr, "Valid parameters are: path, content, mode")
	assert.Equal(t, 3, res.Record.Iteration)
	assert.Empty(t, files.calls)
}

func TestDispatch_SchemaMissingIsSurfaced(t *testing.T) {
	d := newTestDispatcher(t, filesRecorder())

	_, err := d.Dispatch(context.Background(), 1, types.FunctionCall{
		Name:       "Files.bare",
		Parameters: map[string]any{"a": 1, "b": 2},
	})
	assert.ErrorIs(t, err, ErrSchemaMissing)

	_, err = d.Dispatch(context.Background(), 1, types.FunctionCall{
		Name:       "Files.missing",
		Parameters: map[string]any{"a": 1, "b": 2},
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDispatch_UnknownCapabilityProducesFailedRecord(t *testing.T) {
	tracer := observability.NewMockTracer()
	registry := NewRegistry(zaptest.NewLogger(t))
	d := NewDispatcher(registry, WithTracer(tracer))

	res, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Ghost.run"})
	require.ErrorIs(t, err, ErrUnknownCapability)
	require.NotNil(t, res)
	assert.Equal(t, "Ghost.run", res.Record.FunctionName)
	assert.NotEmpty(t, res.Record.Stderr)
	assert.True(t, res.Record.Failed())
	assert.Equal(t, 1.0, tracer.SumMetric(observability.MetricToolFailures))

	_, err = d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "nodot"})
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestDispatch_UnknownMethodFromInvoke(t *testing.T) {
	d := newTestDispatcher(t, filesRecorder())
	res, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.delete"})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Contains(t, res.Record.Stderr, "Files has no method delete")
}

func TestDispatch_StderrIsCleaned(t *testing.T) {
	files := filesRecorder()
	files.err = errors.New("\x1b[31mfailed\x1b[0m\r\n\x00to open\tfile")
	d := newTestDispatcher(t, files)

	res, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "x"}})
	require.Error(t, err)
	assert.Equal(t, "failed\nto open\tfile", res.Record.Stderr)
	assert.Empty(t, res.Record.Stdout)
}

type stubSummarizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSummarizer) Summarize(ctx context.Context, name, text string) (string, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", 0, s.err
	}
	return fmt.Sprintf("summary of %s (%d bytes)", name, len(text)), 0.01, nil
}

func TestDispatch_LargeOutputGetsSummary(t *testing.T) {
	files := filesRecorder()
	files.result = strings.Repeat("x", 200)
	summarizer := &stubSummarizer{}
	registry := NewRegistry(zaptest.NewLogger(t))
	registry.Register(files)
	d := NewDispatcher(registry, WithSummarizer(summarizer), WithSummaryThreshold(100))

	res, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "big"}})
	require.NoError(t, err)
	assert.Equal(t, files.result, res.Record.Stdout, "raw output is retained")
	assert.Equal(t, "summary of Files.read (200 bytes)", res.Record.StdoutSummary)
	assert.Equal(t, res.Record.StdoutSummary, res.Record.PromptStdout())
	assert.InDelta(t, 0.01, res.Cost, 1e-9)

	summarizer.err = errors.New("provider down")
	res, err = d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "big"}})
	require.NoError(t, err)
	assert.Contains(t, res.Record.StdoutSummary, "[truncated 100 bytes]")

	files.result = "small"
	res, err = d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "small"}})
	require.NoError(t, err)
	assert.Empty(t, res.Record.StdoutSummary)
}

func TestDispatch_RedactsMemoryPayloads(t *testing.T) {
	files := filesRecorder()
	files.result = "secret value"
	d := newTestDispatcher(t, files)

	res, err := d.Dispatch(context.Background(), 1, types.FunctionCall{
		Name:       "Files.save",
		Parameters: map[string]any{"key": "notes", "content": "a very long note"},
	})
	require.NoError(t, err)
	assert.Equal(t, "notes", res.Record.Parameters["key"])
	assert.Equal(t, RedactedMarker, res.Record.Parameters["content"])
	assert.Equal(t, RedactedMarker, res.Record.Stdout)
	assert.Equal(t, []any{"notes", "a very long note"}, files.calls[0], "the capability still receives the payload")
}

func TestDispatch_RemovedCapabilityFails(t *testing.T) {
	files := filesRecorder()
	d := newTestDispatcher(t, files)

	assert.True(t, d.Registry().Remove("Files"))
	assert.False(t, d.Registry().Remove("Files"))

	_, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "x"}})
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in         string
		capability string
		method     string
		ok         bool
	}{
		{"Files.read", "Files", "read", true},
		{"Agent_completed", "Agent", "completed", true},
		{"Live_Files.add_files", "Live_Files", "add_files", true},
		{"Files.", "", "", false},
		{"read", "", "", false},
		{".read", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, m, ok := SplitName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.capability, c)
			assert.Equal(t, tt.method, m)
		})
	}
}

func TestFormatValue(t *testing.T) {
	s, err := FormatValue(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = FormatValue(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2}`, s)

	_, err = FormatValue(make(chan int))
	assert.Error(t, err)
}

func TestArgs(t *testing.T) {
	s, err := StringArg([]any{"x"}, 0, "path")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	_, err = StringArg([]any{}, 0, "path")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = StringArg([]any{[]int{1}}, 0, "path")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	def, err := OptionalStringArg(nil, 1, "mode", "text")
	require.NoError(t, err)
	assert.Equal(t, "text", def)

	list, err := StringSliceArg([]any{[]any{"a", "b"}}, 0, "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	list, err = StringSliceArg([]any{"a"}, 0, "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, list)

	_, err = StringSliceArg([]any{[]any{1}}, 0, "files")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// fakeAgent is an in-memory AgentAccessor.
type fakeAgent struct {
	mu     sync.Mutex
	id     string
	user   string
	memory map[string]string
	state  map[string]json.RawMessage
}

func newFakeAgent(id string) *fakeAgent {
	return &fakeAgent{id: id, memory: map[string]string{}, state: map[string]json.RawMessage{}}
}

func (a *fakeAgent) AgentID() string { return a.id }
func (a *fakeAgent) UserID() string  { return a.user }

func (a *fakeAgent) GetMemory(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.memory[key]
	return v, ok
}

func (a *fakeAgent) SetMemory(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory[key] = value
}

func (a *fakeAgent) DeleteMemory(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.memory[key]
	delete(a.memory, key)
	return ok
}

func (a *fakeAgent) MemoryKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.memory))
	for k := range a.memory {
		keys = append(keys, k)
	}
	return keys
}

func (a *fakeAgent) LoadToolState(name string, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	raw, ok := a.state[name]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (a *fakeAgent) StoreToolState(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[name] = data
	return nil
}

func TestCatalog_Build(t *testing.T) {
	catalog := NewCatalog(zaptest.NewLogger(t))
	built := 0
	catalog.Register("Files", func(agent AgentAccessor) (Capability, error) {
		built++
		return filesRecorder(), nil
	})
	catalog.Register("Broken", func(agent AgentAccessor) (Capability, error) {
		return nil, errors.New("missing credentials")
	})

	registry, err := catalog.Build(newFakeAgent("a1"), []string{"Files", " Files ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"Files"}, registry.Names())
	assert.Equal(t, 1, built)
	assert.True(t, catalog.Has("Files"))
	assert.Equal(t, []string{"Broken", "Files"}, catalog.Names())

	_, err = catalog.Build(newFakeAgent("a1"), []string{"Ghost"})
	assert.ErrorIs(t, err, ErrUnknownCapability)

	_, err = catalog.Build(newFakeAgent("a1"), []string{"Broken"})
	assert.ErrorContains(t, err, "missing credentials")

	spec, ok := registry.LookupMethod("Files.write")
	require.True(t, ok)
	assert.Len(t, spec.Params, 3)
	_, ok = registry.LookupMethod("Ghost.run")
	assert.False(t, ok)
}

func TestCached_MemoizesSelectedMethods(t *testing.T) {
	files := filesRecorder()
	c := cache.New(cache.NewMemoryStore())
	agent := newFakeAgent("agent-9")
	wrapped := Cached(files, c, agent, map[string]cache.Scope{"read": cache.ScopeAgent})

	d := newTestDispatcher(t, wrapped)
	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.read", Parameters: map[string]any{"path": "a"}})
		require.NoError(t, err)
		_, err = d.Dispatch(context.Background(), 1, types.FunctionCall{Name: "Files.write", Parameters: map[string]any{"path": "a", "content": "b"}})
		require.NoError(t, err)
	}
	assert.Len(t, files.calls, 4, "one read plus three writes")

	n, err := c.ClearAgent(context.Background(), "agent-9")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// User scope without a user id bypasses the cache.
	userScoped := Cached(filesRecorder(), c, agent, map[string]cache.Scope{"read": cache.ScopeUser})
	_, err = userScoped.Invoke(context.Background(), "read", []any{"a"})
	require.NoError(t, err)
}
