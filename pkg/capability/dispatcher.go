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
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

const (
	// DefaultSummaryThreshold is the output size (bytes) above which a summary
	// is attached to the call record.
	DefaultSummaryThreshold = 8 * 1024

	// RedactedMarker replaces redacted parameters and results in call records.
	RedactedMarker = "(elided: see the <memory> section)"
)

// DispatchResult is the outcome of one dispatched call.
type DispatchResult struct {
	// Record is always populated, also on failure.
	Record types.FunctionCallResult
	// Value is the raw return value on success.
	Value any
	// Cost is the generation cost spent on summaries.
	Cost float64
}

// Dispatcher resolves qualified call names against a Registry and invokes them.
type Dispatcher struct {
	registry   *Registry
	summarizer Summarizer
	threshold  int
	logger     *zap.Logger
	tracer     observability.Tracer
	now        func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSummarizer sets the summarizer used for large outputs.
func WithSummarizer(s Summarizer) DispatcherOption {
	return func(d *Dispatcher) { d.summarizer = s }
}

// WithSummaryThreshold overrides DefaultSummaryThreshold. A negative value
// disables summaries.
func WithSummaryThreshold(bytes int) DispatcherOption {
	return func(d *Dispatcher) { d.threshold = bytes }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTracer sets the tracer.
func WithTracer(tracer observability.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		threshold: DefaultSummaryThreshold,
		logger:    zap.NewNop(),
		tracer:    observability.NewNoOpTracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch invokes one call. The returned result always carries a record;
// the error classifies failures (ErrUnknownCapability, ErrUnknownMethod,
// ErrInvalidParameter, ErrSchemaMissing, or the method's own error) and has
// already been captured in the record's Stderr.
func (d *Dispatcher) Dispatch(ctx context.Context, iteration int, call types.FunctionCall) (*DispatchResult, error) {
	ctx, span := d.tracer.StartSpan(ctx, observability.SpanToolDispatch,
		observability.WithSpanKind("tool"),
		observability.WithAttribute(observability.AttrToolName, call.Name),
		observability.WithAttribute(observability.AttrIteration, iteration),
	)
	defer d.tracer.EndSpan(span)

	start := d.now()
	value, spec, err := d.invoke(ctx, call)

	result := &DispatchResult{
		Record: types.FunctionCallResult{
			Iteration:    iteration,
			FunctionName: call.Name,
			Parameters:   redactParams(call.Parameters, spec.RedactParams),
			CreatedAt:    start,
		},
	}

	labels := map[string]string{"tool": call.Name}
	d.tracer.RecordMetric(observability.MetricToolCalls, 1, labels)

	if err != nil {
		span.RecordError(err)
		span.SetAttribute(observability.AttrToolFailed, true)
		d.tracer.RecordMetric(observability.MetricToolFailures, 1, labels)
		result.Record.Stderr = CleanControlChars(err.Error())
		if result.Record.Stderr == "" {
			result.Record.Stderr = "error"
		}
		result.Record.StderrSummary, result.Cost = d.summarize(ctx, call.Name, result.Record.Stderr)
		result.Record.DurationMs = d.now().Sub(start).Milliseconds()
		d.logger.Debug("Function call failed",
			zap.String("function", call.Name),
			zap.Int("iteration", iteration),
			zap.Error(err))
		return result, err
	}

	result.Value = value
	stdout, fmtErr := FormatValue(value)
	if fmtErr != nil {
		stdout = fmt.Sprintf("%v", value)
	}
	if spec.RedactResult && stdout != "" {
		stdout = RedactedMarker
	}
	result.Record.Stdout = stdout
	result.Record.StdoutSummary, result.Cost = d.summarize(ctx, call.Name, stdout)
	result.Record.DurationMs = d.now().Sub(start).Milliseconds()
	return result, nil
}

// invoke resolves and binds the call. The returned spec is the zero value
// when the method could not be resolved from the schema.
func (d *Dispatcher) invoke(ctx context.Context, call types.FunctionCall) (any, MethodSpec, error) {
	capName, method, ok := SplitName(call.Name)
	if !ok {
		return nil, MethodSpec{}, unknownCapability(call.Name)
	}
	c, ok := d.registry.Get(capName)
	if !ok {
		return nil, MethodSpec{}, unknownCapability(capName)
	}
	spec, _ := c.Schema().Method(method)

	args, err := d.bind(c, method, call)
	if err != nil {
		return nil, spec, err
	}
	value, err := c.Invoke(ctx, method, args)
	return value, spec, err
}

// bind turns the parameter map into positional arguments.
// Zero and one parameter bypass the schema entirely.
func (d *Dispatcher) bind(c Capability, method string, call types.FunctionCall) ([]any, error) {
	switch len(call.Parameters) {
	case 0:
		return nil, nil
	case 1:
		for _, v := range call.Parameters {
			return []any{v}, nil
		}
	}

	spec, ok := c.Schema().Method(method)
	if !ok {
		return nil, UnknownMethod(c.Name(), method)
	}
	if len(spec.Params) == 0 {
		err := fmt.Errorf("%w: %s called with %d parameters", ErrSchemaMissing, call.Name, len(call.Parameters))
		d.logger.Error("Capability method has no parameter schema",
			zap.String("function", call.Name),
			zap.Int("parameters", len(call.Parameters)))
		return nil, err
	}

	names := make([]string, 0, len(call.Parameters))
	for name := range call.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, spec.arity())
	for _, name := range names {
		param, ok := spec.Param(name)
		if !ok {
			return nil, &InvalidParameterError{
				Function: call.Name,
				Param:    name,
				Valid:    spec.ParamNames(),
			}
		}
		args[param.Index] = call.Parameters[name]
	}
	return args, nil
}

// summarize returns a summary when text exceeds the threshold. Without a
// summarizer, or when it fails, a truncated head of the text is used.
func (d *Dispatcher) summarize(ctx context.Context, name, text string) (string, float64) {
	if d.threshold < 0 || len(text) <= d.threshold {
		return "", 0
	}
	if d.summarizer != nil {
		summary, cost, err := d.summarizer.Summarize(ctx, name, text)
		if err == nil && summary != "" {
			return summary, cost
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("Failed to summarize function output, truncating instead",
				zap.String("function", name),
				zap.Int("bytes", len(text)),
				zap.Error(err))
		}
		return truncate(text, d.threshold), cost
	}
	return truncate(text, d.threshold), 0
}

func redactParams(params map[string]any, redact []string) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for _, name := range redact {
		if _, ok := out[name]; ok {
			out[name] = RedactedMarker
		}
	}
	return out
}
