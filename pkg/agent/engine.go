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
// Package agent implements the execution engine: the iteration loop that
// prompts a model, dispatches the functions it calls, and moves each agent
// through its running, paused and terminal states with every transition
// persisted before it is announced.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/completion"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/types"
)

// Engine runs agents. It is safe for concurrent use; at most one loop runs
// per agent id.
type Engine struct {
	store       storage.Store
	provider    llm.Provider
	catalog     *capability.Catalog
	completions *completion.Registry
	cache       *cache.Cache
	summarizer  capability.Summarizer
	parser      ResponseParser
	prompts     PromptBuilder
	sections    []PromptSection

	systemPrompt string
	config       Config
	logger       *zap.Logger
	tracer       observability.Tracer
	newID        func() string
	now          func() time.Time

	runs       *executionRegistry
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	closed     atomic.Bool
}

// NewEngine creates an engine persisting to store and generating through
// provider. Capabilities are built from catalog.
func NewEngine(store storage.Store, provider llm.Provider, catalog *capability.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		provider: provider,
		catalog:  catalog,
		config:   DefaultConfig(),
		logger:   zap.NewNop(),
		tracer:   observability.NewNoOpTracer(),
		newID:    uuid.NewString,
		now:      time.Now,
		runs:     newExecutionRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.completions == nil {
		e.completions = completion.NewRegistry(e.logger, completion.ConsoleDefaults(nil))
	}
	if e.parser == nil {
		e.parser = NewJSONResponseParser()
	}
	if e.prompts == nil {
		e.prompts = &DefaultPromptBuilder{
			SystemPrompt: e.systemPrompt,
			Parser:       e.parser,
			Sections:     e.sections,
		}
	}
	e.baseCtx, e.cancelBase = context.WithCancel(context.Background())
	return e
}

// StartRequest describes a new agent.
type StartRequest struct {
	// AgentID is generated when empty.
	AgentID      string
	Name         string
	UserID       string
	Prompt       string
	Capabilities []string
	// LLMs orders providers by name for this agent.
	LLMs        []string
	HumanInLoop types.HumanInLoop
	Metadata    map[string]string
	// CompletedHandlers defaults to Config.DefaultHandlers.
	CompletedHandlers []string
}

// HILInput is the operator input when resuming from human review.
type HILInput struct {
	// Note is added to the conversation when not empty.
	Note string
	// Count and Budget replace the thresholds when positive.
	Count  int
	Budget float64
}

// Start persists a new agent in the running state and launches its loop.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*Execution, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("start request requires a prompt")
	}
	if err := e.checkCapabilities(req.Capabilities); err != nil {
		return nil, err
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = e.newID()
	}
	handlers := req.CompletedHandlers
	if len(handlers) == 0 {
		handlers = append([]string(nil), e.config.DefaultHandlers...)
	}
	now := e.now()
	ac := &types.AgentContext{
		AgentID:           agentID,
		ExecutionID:       e.newID(),
		Name:              req.Name,
		UserID:            req.UserID,
		State:             types.StateRunning,
		UserPrompt:        req.Prompt,
		Conversation:      []types.Message{{Role: types.RoleUser, Content: req.Prompt, Timestamp: now}},
		Metadata:          req.Metadata,
		Capabilities:      e.capabilityNames(req.Capabilities),
		CompletedHandlers: handlers,
		LLMs:              req.LLMs,
		HumanInLoop:       req.HumanInLoop,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r := e.runs.acquire(agentID, e.newRun)
	r.mu.Lock()
	if r.looping || r.ac != nil {
		r.mu.Unlock()
		e.runs.release(r)
		return nil, fmt.Errorf("agent %s already exists", agentID)
	}
	if _, err := e.store.Load(ctx, agentID); err == nil {
		r.mu.Unlock()
		e.runs.release(r)
		return nil, fmt.Errorf("agent %s already exists", agentID)
	}
	r.ac = ac
	if err := r.save(ctx); err != nil {
		r.ac = nil
		r.mu.Unlock()
		e.runs.release(r)
		return nil, err
	}
	exec := e.launchLocked(r)
	r.mu.Unlock()

	e.logger.Info("Agent started",
		zap.String("agent_id", agentID),
		zap.String("execution_id", exec.ExecutionID),
		zap.Strings("capabilities", ac.Capabilities))
	return exec, nil
}

// ResumeError re-enters the loop of an agent in the error state with an
// optional corrective prompt.
func (e *Engine) ResumeError(ctx context.Context, agentID, executionID, prompt string) (*Execution, error) {
	return e.resume(ctx, agentID, executionID, []types.State{types.StateError}, func(r *run, ac *types.AgentContext) error {
		ac.Error = ""
		appendUserMessage(ac, prompt, e.now())
		return nil
	})
}

// ResumeHIL continues an agent paused in hitl_threshold or hitl_tool. For
// hitl_tool the pending call is approved and runs first.
func (e *Engine) ResumeHIL(ctx context.Context, agentID, executionID string, input HILInput) (*Execution, error) {
	states := []types.State{types.StateHILThreshold, types.StateHILTool}
	return e.resume(ctx, agentID, executionID, states, func(r *run, ac *types.AgentContext) error {
		if input.Count > 0 {
			ac.HumanInLoop.Count = input.Count
		}
		if input.Budget > 0 {
			ac.HumanInLoop.Budget = input.Budget
		}
		ac.HILIterations = 0
		ac.HILCost = 0
		r.approved = ac.State == types.StateHILTool
		appendUserMessage(ac, input.Note, e.now())
		return nil
	})
}

// ProvideFeedback answers the question of an agent in hitl_feedback.
func (e *Engine) ProvideFeedback(ctx context.Context, agentID, executionID, answer string) (*Execution, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, errors.New("feedback requires an answer")
	}
	return e.resume(ctx, agentID, executionID, []types.State{types.StateHILFeedback}, func(r *run, ac *types.AgentContext) error {
		ac.FeedbackQuestion = ""
		ac.HILIterations = 0
		ac.HILCost = 0
		appendUserMessage(ac, answer, e.now())
		return nil
	})
}

// ResumeCompleted reopens a completed agent with a follow-up request,
// keeping its history.
func (e *Engine) ResumeCompleted(ctx context.Context, agentID, executionID, prompt string) (*Execution, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("follow-up requires a prompt")
	}
	return e.resume(ctx, agentID, executionID, []types.State{types.StateCompleted}, func(r *run, ac *types.AgentContext) error {
		ac.Output = ""
		ac.HILIterations = 0
		ac.HILCost = 0
		appendUserMessage(ac, prompt, e.now())
		return nil
	})
}

// Resume picks the entry point matching the persisted state of the agent.
func (e *Engine) Resume(ctx context.Context, agentID, executionID, input string) (*Execution, error) {
	ac, err := e.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	switch ac.State {
	case types.StateError:
		return e.ResumeError(ctx, agentID, executionID, input)
	case types.StateHILThreshold, types.StateHILTool:
		return e.ResumeHIL(ctx, agentID, executionID, HILInput{Note: input})
	case types.StateHILFeedback:
		return e.ProvideFeedback(ctx, agentID, executionID, input)
	case types.StateCompleted:
		return e.ResumeCompleted(ctx, agentID, executionID, input)
	default:
		return nil, &StaleResumptionError{
			AgentID:     agentID,
			ExecutionID: executionID,
			Current:     ac.ExecutionID,
			State:       ac.State,
			Reason:      "agent is not paused or stopped",
		}
	}
}

// resume validates the request against the stored agent, applies mutate,
// assigns a new execution id and launches the loop. A rejected request
// leaves the agent untouched.
func (e *Engine) resume(ctx context.Context, agentID, executionID string, states []types.State, mutate func(*run, *types.AgentContext) error) (*Execution, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanEngineResume,
		observability.WithAttribute(observability.AttrAgentID, agentID),
		observability.WithAttribute(observability.AttrExecutionID, executionID))
	defer e.tracer.EndSpan(span)

	r := e.runs.acquire(agentID, e.newRun)
	r.mu.Lock()
	exec, err := e.resumeLocked(ctx, r, executionID, states, mutate)
	r.mu.Unlock()
	if err != nil {
		e.runs.release(r)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttribute("new_execution_id", exec.ExecutionID)
	e.logger.Info("Agent resumed",
		zap.String("agent_id", agentID),
		zap.String("previous_execution_id", executionID),
		zap.String("execution_id", exec.ExecutionID))
	return exec, nil
}

func (e *Engine) resumeLocked(ctx context.Context, r *run, executionID string, states []types.State, mutate func(*run, *types.AgentContext) error) (*Execution, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	stale := func(reason string) error {
		return &StaleResumptionError{
			AgentID:     r.agentID,
			ExecutionID: executionID,
			Current:     r.ac.ExecutionID,
			State:       r.ac.State,
			Reason:      reason,
		}
	}
	if r.looping {
		return nil, stale("agent is already executing")
	}
	if r.ac.ExecutionID != executionID {
		return nil, stale("execution id does not match")
	}
	allowed := false
	for _, s := range states {
		allowed = allowed || r.ac.State == s
	}
	if !allowed {
		return nil, stale(fmt.Sprintf("cannot resume from state %s", r.ac.State))
	}

	prev := r.ac.Clone()
	if err := mutate(r, r.ac); err != nil {
		r.ac = prev
		r.approved = false
		return nil, err
	}
	r.ac.ExecutionID = e.newID()
	r.ac.State = types.StateRunning
	if err := r.save(ctx); err != nil {
		r.ac = prev
		r.approved = false
		return nil, err
	}
	return e.launchLocked(r), nil
}

// launchLocked starts the loop of r. The caller holds r.mu and one
// reference, which the loop releases when it ends.
func (e *Engine) launchLocked(r *run) *Execution {
	done := make(chan struct{})
	r.looping = true
	r.done = done
	r.executed = 0
	r.cancelled = false
	r.cancelReason = ""
	r.hilRequested = false

	exec := &Execution{
		AgentID:     r.agentID,
		ExecutionID: r.ac.ExecutionID,
		done:        done,
		engine:      e,
	}

	ctx := e.baseCtx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish(r, done)
		r.loop(ctx)
	}()
	return exec
}

func (e *Engine) finish(r *run, done chan struct{}) {
	r.mu.Lock()
	r.looping = false
	r.approved = false
	r.registry = nil
	r.dispatcher = nil
	// Drop the in-memory copy so the next reference reloads what was saved.
	r.ac = nil
	r.persisted = nil
	close(done)
	r.mu.Unlock()
	e.runs.release(r)
}

// Cancel stops an agent. A running agent stops at its next checkpoint; a
// paused agent moves to the error state immediately. Completed and failed
// agents are left as they are.
func (e *Engine) Cancel(ctx context.Context, agentID, reason string) error {
	r := e.runs.acquire(agentID, e.newRun)
	defer e.runs.release(r)

	r.mu.Lock()
	if err := r.load(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.looping {
		r.cancelled = true
		r.cancelReason = reason
		r.mu.Unlock()
		e.logger.Info("Cancellation requested", zap.String("agent_id", agentID), zap.String("reason", reason))
		return nil
	}
	if !r.ac.State.IsHumanInLoop() {
		r.mu.Unlock()
		return nil
	}
	r.ac.State = types.StateError
	r.ac.Error = cancelMessage(reason)
	r.ac.PendingCalls = nil
	err := r.save(ctx)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("Agent cancelled", zap.String("agent_id", agentID), zap.String("reason", reason))
	r.notify(ctx)
	return nil
}

// SubmitMessage queues a message for the next iteration and persists it.
// A running agent picks it up at its next iteration boundary.
func (e *Engine) SubmitMessage(ctx context.Context, agentID, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message is empty")
	}
	r := e.runs.acquire(agentID, e.newRun)
	defer e.runs.release(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return err
	}
	return r.saveBetween(ctx, func(ac *types.AgentContext) {
		ac.PendingMessages = append(ac.PendingMessages, text)
	})
}

// RequestHIL asks a running agent to pause for human review at its next
// checkpoint.
func (e *Engine) RequestHIL(ctx context.Context, agentID string) error {
	if r, ok := e.runs.lookup(agentID); ok {
		r.mu.Lock()
		looping := r.looping
		if looping {
			r.hilRequested = true
		}
		r.mu.Unlock()
		if looping {
			e.logger.Info("Human review requested", zap.String("agent_id", agentID))
			return nil
		}
	}
	if _, err := e.Get(ctx, agentID); err != nil {
		return err
	}
	return fmt.Errorf("agent %s is not executing", agentID)
}

// UpdateCapabilities replaces the capability list of an agent. A running
// agent sees the change from its next dispatch.
func (e *Engine) UpdateCapabilities(ctx context.Context, agentID string, names []string) error {
	if err := e.checkCapabilities(names); err != nil {
		return err
	}
	names = e.capabilityNames(names)

	r := e.runs.acquire(agentID, e.newRun)
	defer e.runs.release(r)

	r.mu.Lock()
	if err := r.load(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	added, removed := diffNames(r.ac.Capabilities, names)
	registry := r.registry
	r.mu.Unlock()

	// Factories may call back into r, so they run without the lock.
	var built []capability.Capability
	if registry != nil {
		for _, name := range added {
			c, err := e.catalog.New(r, name)
			if err != nil {
				return err
			}
			built = append(built, c)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The loop may have finished, or the agent been deleted, while the
	// lock was released.
	if err := r.load(ctx); err != nil {
		return err
	}
	added, removed = diffNames(r.ac.Capabilities, names)
	if err := r.saveBetween(ctx, func(ac *types.AgentContext) {
		ac.Capabilities = append([]string(nil), names...)
	}); err != nil {
		return err
	}
	if r.registry != nil && r.registry == registry {
		wanted := make(map[string]bool, len(added))
		for _, name := range added {
			wanted[name] = true
		}
		for _, c := range built {
			if wanted[c.Name()] {
				r.registry.Register(c)
			}
		}
		for _, name := range removed {
			r.registry.Remove(name)
		}
	}
	e.logger.Info("Agent capabilities updated",
		zap.String("agent_id", agentID),
		zap.Strings("added", added),
		zap.Strings("removed", removed))
	return nil
}

// Delete removes agents that are not executing, along with their iteration
// records and per-agent cache entries. Executing agents are refused.
func (e *Engine) Delete(ctx context.Context, agentIDs ...string) (int, error) {
	deleted := 0
	var errs []error
	for _, id := range agentIDs {
		n, err := e.deleteOne(ctx, id)
		deleted += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return deleted, errors.Join(errs...)
}

func (e *Engine) deleteOne(ctx context.Context, agentID string) (int, error) {
	r := e.runs.acquire(agentID, e.newRun)
	defer e.runs.release(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.looping {
		return 0, fmt.Errorf("%w: %s", ErrAgentExecuting, agentID)
	}
	n, err := e.store.Delete(ctx, agentID)
	if err != nil {
		return 0, persistenceError(err)
	}
	r.ac = nil
	r.persisted = nil
	if e.cache != nil {
		if _, err := e.cache.ClearAgent(ctx, agentID); err != nil {
			e.logger.Warn("Failed to clear agent cache", zap.String("agent_id", agentID), zap.Error(err))
		}
	}
	if n > 0 {
		e.logger.Info("Agent deleted", zap.String("agent_id", agentID))
	}
	return n, nil
}

// Get returns a copy of the agent, live when it is executing.
func (e *Engine) Get(ctx context.Context, agentID string) (*types.AgentContext, error) {
	if r, ok := e.runs.lookup(agentID); ok {
		r.mu.Lock()
		if r.ac != nil {
			ac := r.ac.Clone()
			r.mu.Unlock()
			return ac, nil
		}
		r.mu.Unlock()
	}
	ac, err := e.store.Load(ctx, agentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return ac, err
}

// List returns every persisted agent.
func (e *Engine) List(ctx context.Context) ([]*types.AgentContext, error) {
	return e.store.List(ctx)
}

// ListHumanInLoop returns the agents waiting on a human.
func (e *Engine) ListHumanInLoop(ctx context.Context) ([]*types.AgentContext, error) {
	return e.store.ListByState(ctx, types.StateHILThreshold, types.StateHILTool, types.StateHILFeedback)
}

// Iterations returns the iteration records of an agent.
func (e *Engine) Iterations(ctx context.Context, agentID string) ([]*types.IterationRecord, error) {
	return e.store.ListIterations(ctx, agentID)
}

// Executing returns the ids of agents with an active loop.
func (e *Engine) Executing() []string {
	return e.runs.executing()
}

// Recover re-enters the loop of every persisted running agent that is not
// executing in this process, for example after a crash.
func (e *Engine) Recover(ctx context.Context) ([]*Execution, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	running, err := e.store.ListByState(ctx, types.StateRunning)
	if err != nil {
		return nil, persistenceError(err)
	}

	var execs []*Execution
	for _, stored := range running {
		r := e.runs.acquire(stored.AgentID, e.newRun)
		r.mu.Lock()
		if err := r.load(ctx); err != nil || r.looping || r.ac.State != types.StateRunning {
			r.mu.Unlock()
			e.runs.release(r)
			continue
		}
		r.ac.ExecutionID = e.newID()
		if err := r.save(ctx); err != nil {
			r.ac = nil
			r.mu.Unlock()
			e.runs.release(r)
			return execs, err
		}
		exec := e.launchLocked(r)
		r.mu.Unlock()
		e.logger.Info("Recovered agent", zap.String("agent_id", stored.AgentID), zap.String("execution_id", exec.ExecutionID))
		execs = append(execs, exec)
	}
	return execs, nil
}

// Shutdown stops accepting work, interrupts in-flight generations and waits
// for loops to exit. Interrupted agents stay running for Recover.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closed.Store(true)
	e.cancelBase()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capabilities returns the names the catalog can build.
func (e *Engine) Capabilities() []string {
	return e.catalog.Names()
}

func (e *Engine) providerFor(agent *types.AgentContext) llm.Provider {
	if len(agent.LLMs) > 0 {
		if p, ok := e.provider.(llm.Preferrer); ok {
			return p.Prefer(agent.LLMs)
		}
	}
	return e.provider
}

// capabilityNames prepends the default capabilities the catalog provides.
func (e *Engine) capabilityNames(requested []string) []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, name := range e.config.DefaultCapabilities {
		if e.catalog.Has(name) {
			add(name)
		}
	}
	for _, name := range requested {
		add(name)
	}
	return names
}

func (e *Engine) checkCapabilities(names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" && !e.catalog.Has(name) {
			return fmt.Errorf("%w: %s (available: %s)", capability.ErrUnknownCapability, name, strings.Join(e.catalog.Names(), ", "))
		}
	}
	return nil
}

func appendUserMessage(ac *types.AgentContext, text string, now time.Time) {
	if strings.TrimSpace(text) == "" {
		return
	}
	ac.Conversation = append(ac.Conversation, types.Message{Role: types.RoleUser, Content: text, Timestamp: now})
}

func diffNames(current, next []string) (added, removed []string) {
	in := func(list []string, name string) bool {
		for _, n := range list {
			if n == name {
				return true
			}
		}
		return false
	}
	for _, n := range next {
		if !in(current, n) {
			added = append(added, n)
		}
	}
	for _, n := range current {
		if !in(next, n) {
			removed = append(removed, n)
		}
	}
	return added, removed
}
