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
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/pkg/observability"
)

const (
	// DefaultRetries is how many times a failed underlying call is retried.
	DefaultRetries = 2
	// DefaultRetryDelay is the first delay between retries; it doubles each retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Cache memoizes calls on top of a Store.
// The Store is process-wide; keys include the scope so agents never collide.
type Cache struct {
	store      Store
	retries    int
	retryDelay time.Duration
	ttl        time.Duration
	logger     *zap.Logger
	tracer     observability.Tracer
}

// Option configures a Cache.
type Option func(*Cache)

// WithRetries sets how many times a failed call is retried before the miss
// is propagated.
func WithRetries(n int) Option {
	return func(c *Cache) { c.retries = n }
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Cache) { c.retryDelay = d }
}

// WithTTL sets the expiry of stored entries. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithTracer sets the tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Cache) { c.tracer = tracer }
}

// New creates a cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		logger:     zap.NewNop(),
		tracer:     observability.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do returns the cached value for key or invokes fn, retrying failures up to
// the configured budget. Only successful results are stored.
func Do[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	storageKey, err := key.String()
	if err != nil {
		return zero, err
	}

	ctx, span := c.tracer.StartSpan(ctx, observability.SpanCacheLookup,
		observability.WithAttribute(observability.AttrCacheScope, string(key.Scope)),
		observability.WithAttribute(observability.AttrToolName, key.Capability+"."+key.Method),
	)
	defer c.tracer.EndSpan(span)

	labels := map[string]string{"scope": string(key.Scope), "function": key.Capability + "." + key.Method}

	data, found, err := c.store.Get(ctx, storageKey)
	if err != nil {
		c.logger.Warn("Cache lookup failed, invoking directly", zap.String("key", storageKey), zap.Error(err))
	}
	if found {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			span.SetAttribute(observability.AttrCacheHit, true)
			c.tracer.RecordMetric(observability.MetricCacheHits, 1, labels)
			return value, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", storageKey))
	}
	span.SetAttribute(observability.AttrCacheHit, false)
	c.tracer.RecordMetric(observability.MetricCacheMisses, 1, labels)

	delay := c.retryDelay
	var lastErr error
retry:
	for attempt := 0; attempt <= c.retries; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			c.put(ctx, storageKey, value)
			return value, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.retries {
			break
		}
		c.logger.Debug("Cached call failed, retrying",
			zap.String("function", key.Capability+"."+key.Method),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		}
	}

	span.RecordError(lastErr)
	return zero, fmt.Errorf("%s.%s failed after %d attempts: %w", key.Capability, key.Method, c.retries+1, lastErr)
}

func (c *Cache) put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Result not cacheable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to store cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Clear drops every entry of a scope.
func (c *Cache) Clear(ctx context.Context, scope Scope, id string) (int, error) {
	prefix, err := ScopePrefix(scope, id)
	if err != nil {
		return 0, err
	}
	n, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, fmt.Errorf("failed to clear %s cache: %w", scope, err)
	}
	c.logger.Debug("Cleared cache scope", zap.String("scope", string(scope)), zap.String("id", id), zap.Int("entries", n))
	return n, nil
}

// ClearAgent drops the entries of one agent.
func (c *Cache) ClearAgent(ctx context.Context, agentID string) (int, error) {
	return c.Clear(ctx, ScopeAgent, agentID)
}

// ClearUser drops the entries of one user.
func (c *Cache) ClearUser(ctx context.Context, userID string) (int, error) {
	return c.Clear(ctx, ScopeUser, userID)
}
