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
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/warp/internal/version"
	"github.com/teradata-labs/warp/pkg/agent"
	"github.com/teradata-labs/warp/pkg/cache"
	"github.com/teradata-labs/warp/pkg/capability"
	"github.com/teradata-labs/warp/pkg/capability/builtin"
	"github.com/teradata-labs/warp/pkg/completion"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/llm/factory"
	"github.com/teradata-labs/warp/pkg/observability"
	"github.com/teradata-labs/warp/pkg/storage"
)

// app holds every component a command needs. Build it with newApp and
// release it with close.
type app struct {
	cfg     *Config
	logger  *zap.Logger
	tracer  observability.Tracer
	store   *storage.SQLiteStore
	cache   *cache.Cache
	catalog *capability.Catalog
	engine  *agent.Engine

	closers []func(context.Context) error
}

// openStore opens only the database, for commands that do not run agents.
func openStore(ctx context.Context, cfg *Config, logger *zap.Logger) (*storage.SQLiteStore, error) {
	return storage.NewSQLiteStore(ctx, storage.SQLiteConfig{
		Path:        cfg.Database.Path,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeoutMs) * time.Millisecond,
		Tracer:      observability.NewNoOpTracer(),
		Logger:      logger,
	})
}

func newApp(ctx context.Context, cfg *Config) (_ *app, err error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if cfg.Observability.Trace {
		tracer, shutdown, err := observability.NewStdoutTracer(os.Stderr, "warp", version.Get())
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		a.tracer = tracer
		a.closers = append(a.closers, shutdown)
	} else {
		a.tracer = observability.NewNoOpTracer()
	}

	a.store, err = storage.NewSQLiteStore(ctx, storage.SQLiteConfig{
		Path:        cfg.Database.Path,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeoutMs) * time.Millisecond,
		Tracer:      a.tracer,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var cacheStore cache.Store
	if cfg.Cache.RedisURL != "" {
		redisStore, err := cache.NewRedisStoreFromURL(ctx, cfg.Cache.RedisURL, cfg.Cache.Namespace)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return redisStore.Close() })
		cacheStore = redisStore
	} else {
		cacheStore = cache.NewMemoryStore()
	}
	a.cache = cache.New(cacheStore,
		cache.WithRetries(cfg.Cache.Retries),
		cache.WithTTL(time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		cache.WithLogger(logger),
		cache.WithTracer(a.tracer),
	)

	factoryCfg := cfg.FactoryConfig()
	factoryCfg.TokenCounter = llm.NewTokenCounter()
	factoryCfg.QuotaRetry.Logger = logger
	factoryCfg.Logger = logger
	factoryCfg.Tracer = a.tracer
	provider, err := factory.NewProviderFactory(factoryCfg).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	a.catalog = capability.NewCatalog(logger)
	files, err := builtin.Register(a.catalog, builtin.Options{
		BaseDir:       cfg.Files.BaseDir,
		WriteApproval: cfg.Files.WriteApproval,
		Cache:         a.cache,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	watcher, err := builtin.NewWatcher(builtin.WatcherConfig{
		Debounce: time.Duration(cfg.Files.WatchDebounceMs) * time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	watcher.Start(ctx)
	a.closers = append(a.closers, func(context.Context) error { return watcher.Stop() })

	completions := completion.NewRegistry(logger, completion.ConsoleDefaults(os.Stdout))
	if cfg.Notifications.DiscordToken != "" {
		session, err := completion.NewDiscordSession(cfg.Notifications.DiscordToken)
		if err != nil {
			return nil, err
		}
		completions.Register(completion.DiscordID, func() completion.Handler {
			return completion.NewDiscordHandler(session)
		})
	}

	opts := []agent.Option{
		agent.WithConfig(cfg.EngineConfig()),
		agent.WithLogger(logger),
		agent.WithTracer(a.tracer),
		agent.WithCompletions(completions),
		agent.WithCache(a.cache),
		agent.WithPromptSections(builtin.NewLiveFilesSection(files, watcher)),
	}
	if cfg.Agent.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.Agent.SystemPrompt))
	}
	if cfg.Agent.SummarizeOutputs {
		opts = append(opts, agent.WithSummarizer(llm.NewSummarizer(provider,
			llm.WithSummaryCache(a.cache),
			llm.WithSummaryTracer(a.tracer),
		)))
	}
	a.engine = agent.NewEngine(a.store, provider, a.catalog, opts...)

	logger.Debug("warp initialized",
		zap.String("database", a.store.Path()),
		zap.String("provider", provider.Name()),
		zap.Strings("capabilities", a.engine.Capabilities()))
	return a, nil
}

// close stops the engine and releases resources in reverse order.
func (a *app) close(ctx context.Context) {
	if a.engine != nil {
		if err := a.engine.Shutdown(ctx); err != nil {
			a.logger.Warn("engine shutdown failed", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
