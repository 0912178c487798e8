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
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// loop drives the agent until it pauses, stops, or the engine shuts down.
// Every exit path leaves a persisted state behind.
func (r *run) loop(ctx context.Context) {
	e := r.engine
	r.mu.Lock()
	executionID := r.ac.ExecutionID
	r.mu.Unlock()

	ctx, span := e.tracer.StartSpan(ctx, observability.SpanEngineRun,
		observability.WithAttribute(observability.AttrAgentID, r.agentID),
		observability.WithAttribute(observability.AttrExecutionID, executionID),
	)
	defer e.tracer.EndSpan(span)

	r.logger.Info("Agent execution started", zap.String("execution_id", executionID))

	if err := r.buildCapabilities(); err != nil {
		span.RecordError(err)
		r.fail(ctx, fmt.Errorf("failed to build capabilities: %w", err))
		return
	}

	if pending := r.takePendingCalls(); len(pending) > 0 {
		if r.checkpoint(ctx) {
			return
		}
		if r.execute(ctx, pending, nil) {
			return
		}
	}

	for {
		if r.iterate(ctx) {
			break
		}
	}

	r.mu.Lock()
	span.SetAttribute(observability.AttrAgentState, string(r.ac.State))
	r.mu.Unlock()
}

// iterate runs one prompt, parse and dispatch round and reports whether the
// loop must stop.
func (r *run) iterate(ctx context.Context) bool {
	e := r.engine

	if r.checkpoint(ctx) {
		return true
	}

	r.mu.Lock()
	if e.config.MaxIterations > 0 && r.executed >= e.config.MaxIterations {
		r.mu.Unlock()
		r.fail(ctx, fmt.Errorf("maximum of %d iterations reached in this execution", e.config.MaxIterations))
		return true
	}
	r.mergePending()
	snapshot := r.ac.Clone()
	r.mu.Unlock()

	iteration := snapshot.Iterations + 1
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanEngineIteration,
		observability.WithAttribute(observability.AttrAgentID, r.agentID),
		observability.WithAttribute(observability.AttrIteration, iteration),
	)
	defer e.tracer.EndSpan(span)

	messages, err := e.prompts.Build(ctx, snapshot, r.registry.Schemas())
	if err != nil {
		span.RecordError(err)
		r.fail(ctx, fmt.Errorf("failed to build prompt: %w", err))
		return true
	}

	gen, err := e.providerFor(snapshot).GenerateText(ctx, messages, llm.GenerateOptions{
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
	})
	if err != nil {
		if e.closed.Load() {
			// Shutdown interrupted the call; the agent stays running for Recover.
			return true
		}
		span.RecordError(err)
		r.fail(ctx, fmt.Errorf("generation failed: %w", err))
		return true
	}

	record := &types.IterationRecord{
		AgentID:      r.agentID,
		ExecutionID:  snapshot.ExecutionID,
		Iteration:    iteration,
		Prompt:       promptText(messages),
		Response:     gen.Text,
		Cost:         gen.Cost,
		InputTokens:  gen.InputTokens,
		OutputTokens: gen.OutputTokens,
		Provider:     gen.Provider,
		Model:        gen.Model,
		CreatedAt:    e.now(),
	}
	r.addCost(gen.Cost)
	e.tracer.RecordMetric(observability.MetricCost, gen.Cost, map[string]string{"provider": gen.Provider})

	calls, err := e.parser.Parse(gen.Text)
	if err != nil {
		r.logger.Warn("Could not parse function calls", zap.Int("iteration", iteration), zap.Error(err))
		record.Error = err.Error()
		r.correct(err)
		return r.endIteration(ctx, record)
	}
	record.Calls = calls
	return r.execute(ctx, calls, record)
}

// execute dispatches the calls of one response in order and applies the
// finish and ask-human signals. A finish signal beats an ask-human signal,
// and when present only calls flagged ExecuteBeforeFinish run.
func (r *run) execute(ctx context.Context, calls []types.FunctionCall, record *types.IterationRecord) bool {
	finish, feedback, ordinary := r.classify(calls)

	if finish != nil {
		kept := ordinary[:0:0]
		for _, call := range ordinary {
			if spec, ok := r.registry.LookupMethod(call.Name); ok && spec.ExecuteBeforeFinish {
				kept = append(kept, call)
				continue
			}
			r.logger.Info("Skipping function call after finish signal", zap.String("function", call.Name))
		}
		ordinary = kept
		if feedback != nil {
			r.logger.Info("Ignoring feedback request alongside finish signal")
			feedback = nil
		}
	}

	r.mu.Lock()
	approved := r.approved
	r.approved = false
	iteration := r.ac.Iterations + 1
	r.mu.Unlock()

	for i, call := range ordinary {
		if r.needsApproval(call) && !(approved && i == 0) {
			pending := append([]types.FunctionCall{}, ordinary[i:]...)
			if finish != nil {
				pending = append(pending, *finish)
			}
			if feedback != nil {
				pending = append(pending, *feedback)
			}
			return r.pauseForApproval(ctx, call, pending, record)
		}
		r.dispatch(ctx, iteration, call)

		r.mu.Lock()
		cancelled := r.cancelled
		r.mu.Unlock()
		if cancelled {
			return r.cancelNow(ctx, record)
		}
	}

	switch {
	case finish != nil:
		return r.complete(ctx, iteration, *finish, record)
	case feedback != nil:
		return r.askHuman(ctx, iteration, *feedback, record)
	default:
		return r.endIteration(ctx, record)
	}
}

// classify splits out the first finish and ask-human calls.
func (r *run) classify(calls []types.FunctionCall) (finish, feedback *types.FunctionCall, ordinary []types.FunctionCall) {
	cfg := r.engine.config
	for i := range calls {
		call := calls[i]
		switch normalizeName(call.Name) {
		case cfg.FinishFunction:
			if finish == nil {
				finish = &call
			}
		case cfg.FeedbackFunction:
			if feedback == nil {
				feedback = &call
			}
		default:
			ordinary = append(ordinary, call)
		}
	}
	return finish, feedback, ordinary
}

func (r *run) needsApproval(call types.FunctionCall) bool {
	if spec, ok := r.registry.LookupMethod(call.Name); ok && spec.RequiresApproval {
		return true
	}
	name := normalizeName(call.Name)
	for _, required := range r.engine.config.ApprovalRequired {
		if name == required {
			return true
		}
	}
	return false
}

func (r *run) dispatch(ctx context.Context, iteration int, call types.FunctionCall) *capability.DispatchResult {
	res, err := r.dispatcher.Dispatch(ctx, iteration, call)
	if err != nil {
		r.logger.Info("Function call failed",
			zap.String("function", call.Name),
			zap.Int("iteration", iteration),
			zap.Error(err))
	}
	r.mu.Lock()
	r.ac.FunctionCallHistory = append(r.ac.FunctionCallHistory, res.Record)
	r.ac.Cost += res.Cost
	r.ac.HILCost += res.Cost
	r.mu.Unlock()
	return res
}

func (r *run) complete(ctx context.Context, iteration int, call types.FunctionCall, record *types.IterationRecord) bool {
	res := r.dispatch(ctx, iteration, call)
	output, _ := res.Value.(string)
	if output == "" {
		output = stringParam(call.Parameters, "note")
	}
	return r.transition(ctx, record, func(ac *types.AgentContext) {
		r.countIteration()
		ac.State = types.StateCompleted
		ac.Output = output
	})
}

func (r *run) askHuman(ctx context.Context, iteration int, call types.FunctionCall, record *types.IterationRecord) bool {
	res := r.dispatch(ctx, iteration, call)
	question, _ := res.Value.(string)
	if question == "" {
		question = stringParam(call.Parameters, "request")
	}
	return r.transition(ctx, record, func(ac *types.AgentContext) {
		r.countIteration()
		ac.State = types.StateHILFeedback
		ac.FeedbackQuestion = question
	})
}

func (r *run) pauseForApproval(ctx context.Context, call types.FunctionCall, pending []types.FunctionCall, record *types.IterationRecord) bool {
	r.logger.Info("Function call requires approval", zap.String("function", call.Name))
	return r.transition(ctx, record, func(ac *types.AgentContext) {
		ac.State = types.StateHILTool
		ac.PendingCalls = pending
	})
}

// endIteration completes an iteration that produced no signal and pauses
// when a human review threshold is reached.
func (r *run) endIteration(ctx context.Context, record *types.IterationRecord) bool {
	r.mu.Lock()
	r.countIteration()
	r.ac.PendingCalls = nil
	hil := r.ac.HumanInLoop
	reached := (hil.Count > 0 && r.ac.HILIterations >= hil.Count) ||
		(hil.Budget > 0 && r.ac.HILCost >= hil.Budget)
	if reached {
		r.ac.State = types.StateHILThreshold
		r.applyLateCancel()
	}
	err := r.save(ctx)
	r.mu.Unlock()

	r.saveIteration(ctx, record)
	if err != nil {
		r.fail(ctx, err)
		return true
	}
	if reached {
		r.logger.Info("Human review threshold reached")
		r.notify(ctx)
		return true
	}
	return false
}

// transition applies a pausing or terminal change, persists it, then
// notifies.
func (r *run) transition(ctx context.Context, record *types.IterationRecord, mutate func(*types.AgentContext)) bool {
	r.mu.Lock()
	mutate(r.ac)
	r.applyLateCancel()
	if r.ac.State != types.StateHILTool {
		r.ac.PendingCalls = nil
	}
	state := r.ac.State
	err := r.save(ctx)
	r.mu.Unlock()

	r.saveIteration(ctx, record)
	if err != nil {
		r.fail(ctx, err)
		return true
	}
	r.logger.Info("Agent paused or stopped", zap.String("state", string(state)))
	r.notify(ctx)
	return true
}

// applyLateCancel turns a pause into the cancelled error state when Cancel
// arrived after the last checkpoint. A completed agent stays completed.
// Callers hold mu.
func (r *run) applyLateCancel() {
	if !r.cancelled {
		return
	}
	switch {
	case r.ac.State.IsHumanInLoop():
		r.ac.State = types.StateError
		r.ac.Error = cancelMessage(r.cancelReason)
		r.ac.PendingCalls = nil
	case r.ac.State == types.StateCompleted:
		r.logger.Info("Cancel arrived after the agent completed")
	}
}

// checkpoint applies a pending cancel or human review request. It also
// stops the loop quietly when the engine is shutting down.
func (r *run) checkpoint(ctx context.Context) bool {
	r.mu.Lock()
	cancelled := r.cancelled
	hil := r.hilRequested
	r.hilRequested = false
	r.mu.Unlock()

	if cancelled {
		return r.cancelNow(ctx, nil)
	}
	if hil {
		r.logger.Info("Pausing for requested human review")
		return r.transition(ctx, nil, func(ac *types.AgentContext) {
			ac.State = types.StateHILThreshold
		})
	}
	return r.engine.closed.Load()
}

func (r *run) cancelNow(ctx context.Context, record *types.IterationRecord) bool {
	r.mu.Lock()
	reason := r.cancelReason
	r.mu.Unlock()
	return r.transition(ctx, record, func(ac *types.AgentContext) {
		ac.State = types.StateError
		ac.Error = cancelMessage(reason)
	})
}

// fail moves the agent to the error state. A failed save is logged and the
// handlers are still notified with the in-memory state.
func (r *run) fail(ctx context.Context, cause error) {
	r.logger.Error("Agent execution failed", zap.Error(cause))
	r.mu.Lock()
	r.ac.State = types.StateError
	r.ac.Error = cause.Error()
	r.ac.PendingCalls = nil
	err := r.save(ctx)
	r.mu.Unlock()
	if err != nil {
		r.logger.Error("Failed to persist error state", zap.Error(err))
	}
	r.notify(ctx)
}

func (r *run) notify(ctx context.Context) {
	e := r.engine
	ctx, span := e.tracer.StartSpan(context.WithoutCancel(ctx), observability.SpanEngineNotify,
		observability.WithAttribute(observability.AttrAgentID, r.agentID))
	defer e.tracer.EndSpan(span)

	snapshot := r.snapshot()
	span.SetAttribute(observability.AttrAgentState, string(snapshot.State))
	e.completions.NotifyAll(ctx, snapshot)
}

func (r *run) saveIteration(ctx context.Context, record *types.IterationRecord) {
	if record == nil {
		return
	}
	if err := r.engine.store.SaveIteration(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Error("Failed to save iteration record", zap.Int("iteration", record.Iteration), zap.Error(err))
	}
}

// countIteration advances the counters. Callers hold mu.
func (r *run) countIteration() {
	r.ac.Iterations++
	r.ac.HILIterations++
	r.executed++
	r.engine.tracer.RecordMetric(observability.MetricIterations, 1, nil)
}

// mergePending moves queued messages into the conversation. Callers hold mu.
func (r *run) mergePending() {
	for _, text := range r.ac.PendingMessages {
		r.ac.Conversation = append(r.ac.Conversation, types.Message{
			Role:      types.RoleUser,
			Content:   text,
			Timestamp: r.engine.now(),
		})
	}
	r.ac.PendingMessages = nil
}

func (r *run) addCost(cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ac.Cost += cost
	r.ac.HILCost += cost
}

// correct asks the model to fix an unparseable response.
func (r *run) correct(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ac.Conversation = append(r.ac.Conversation, types.Message{
		Role:      types.RoleUser,
		Content:   fmt.Sprintf("Your previous response could not be processed (%v). Reply with the functions to call inside <function_calls> tags.", cause),
		Timestamp: r.engine.now(),
	})
}

func (r *run) takePendingCalls() []types.FunctionCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.ac.PendingCalls
	r.ac.PendingCalls = nil
	return pending
}

func normalizeName(name string) string {
	capName, method, ok := capability.SplitName(name)
	if !ok {
		return name
	}
	return capability.QualifiedName(capName, method)
}

func stringParam(params map[string]any, name string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return ""
}

func cancelMessage(reason string) string {
	if reason == "" {
		return "cancelled"
	}
	return "cancelled: " + reason
}

func promptText(messages []types.Message) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", m.Role, m.Content)
	}
	return sb.String()
}
