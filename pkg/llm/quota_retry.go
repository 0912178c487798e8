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
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/types"
)

// QuotaRetryConfig configures QuotaRetry.
type QuotaRetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 5
	MaxRetries int

	// InitialBackoff is the wait before the first retry (doubles each retry).
	// Default: 5s
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	// Default: 2m
	MaxBackoff time.Duration

	// Logger for retry events
	Logger *zap.Logger
}

// DefaultQuotaRetryConfig returns the default retry budget.
func DefaultQuotaRetryConfig() QuotaRetryConfig {
	return QuotaRetryConfig{
		MaxRetries:     5,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     2 * time.Minute,
		Logger:         zap.NewNop(),
	}
}

// QuotaRetry wraps a Provider and retries generations that fail with a quota
// or rate limit error. Other errors are returned immediately.
type QuotaRetry struct {
	provider Provider
	config   QuotaRetryConfig
	tracer   observability.Tracer
	sleep    func(ctx context.Context, d time.Duration) error
}

// QuotaRetryOption configures QuotaRetry.
type QuotaRetryOption func(*QuotaRetry)

// WithRetryTracer sets the tracer.
func WithRetryTracer(tracer observability.Tracer) QuotaRetryOption {
	return func(q *QuotaRetry) { q.tracer = tracer }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) QuotaRetryOption {
	return func(q *QuotaRetry) { q.sleep = sleep }
}

// NewQuotaRetry wraps provider. Zero config fields take their defaults.
func NewQuotaRetry(provider Provider, config QuotaRetryConfig, opts ...QuotaRetryOption) *QuotaRetry {
	defaults := DefaultQuotaRetryConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	q := &QuotaRetry{
		provider: provider,
		config:   config,
		tracer:   observability.NewNoOpTracer(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *QuotaRetry) Name() string       { return q.provider.Name() }
func (q *QuotaRetry) Model() string      { return q.provider.Model() }
func (q *QuotaRetry) IsConfigured() bool { return q.provider.IsConfigured() }

// Prefer reorders the wrapped provider when it supports it.
func (q *QuotaRetry) Prefer(names []string) Provider {
	inner, ok := q.provider.(Preferrer)
	if !ok || len(names) == 0 {
		return q
	}
	clone := *q
	clone.provider = inner.Prefer(names)
	return &clone
}

// GenerateText calls the wrapped provider, retrying quota errors with
// exponential backoff. When the budget is spent the returned error wraps
// ErrQuotaExceeded.
func (q *QuotaRetry) GenerateText(ctx context.Context, messages []types.Message, opts GenerateOptions) (*Generation, error) {
	ctx, span := q.tracer.StartSpan(ctx, observability.SpanLLMQuotaRetry,
		observability.WithAttribute(observability.AttrLLMProvider, q.provider.Name()))
	defer q.tracer.EndSpan(span)

	backoff := q.config.InitialBackoff
	for attempt := 0; ; attempt++ {
		gen, err := q.provider.GenerateText(ctx, messages, opts)
		span.SetAttribute(observability.AttrLLMAttempts, attempt+1)
		if err == nil {
			return gen, nil
		}
		if !IsQuotaError(err) {
			span.RecordError(err)
			return nil, err
		}
		if attempt >= q.config.MaxRetries {
			err = fmt.Errorf("%w: %s failed after %d retries: %v", ErrQuotaExceeded, q.provider.Name(), q.config.MaxRetries, err)
			span.RecordError(err)
			return nil, err
		}

		q.config.Logger.Warn("Quota exceeded, retrying with backoff",
			zap.String("provider", q.provider.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", q.config.MaxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		q.tracer.RecordMetric(observability.MetricQuotaRetries, 1, map[string]string{
			observability.AttrLLMProvider: q.provider.Name(),
		})

		if err := q.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > q.config.MaxBackoff {
			backoff = q.config.MaxBackoff
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
