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
package observability

// Standard span names. Use these constants instead of hardcoding strings.
const (
	SpanEngineRun       = "engine.run"
	SpanEngineIteration = "engine.iteration"
	SpanEngineResume    = "engine.resume"
	SpanEngineNotify    = "engine.notify"

	SpanLLMGenerate   = "llm.generate"
	SpanLLMQuotaRetry = "llm.quota_retry"
	SpanLLMSummarize  = "llm.summarize"

	SpanToolDispatch = "tool.dispatch"

	SpanCacheLookup = "cache.lookup"

	SpanStoreSave      = "store.save"
	SpanStoreLoad      = "store.load"
	SpanStoreDelete    = "store.delete"
	SpanStoreList      = "store.list"
	SpanStoreIteration = "store.iteration"
)

// Standard attribute keys.
const (
	AttrAgentID     = "agent.id"
	AttrExecutionID = "agent.execution_id"
	AttrAgentState  = "agent.state"
	AttrIteration   = "agent.iteration"

	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMCost         = "llm.cost_usd"
	AttrLLMInputTokens  = "llm.tokens.input"
	AttrLLMOutputTokens = "llm.tokens.output"
	AttrLLMAttempts     = "llm.attempts"

	AttrToolName   = "tool.name"
	AttrToolFailed = "tool.failed"

	AttrCacheScope = "cache.scope"
	AttrCacheHit   = "cache.hit"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Metric names.
const (
	MetricIterations     = "warp.engine.iterations"
	MetricCost           = "warp.engine.cost_usd"
	MetricToolCalls      = "warp.tool.calls"
	MetricToolFailures   = "warp.tool.failures"
	MetricLLMCalls       = "warp.llm.calls"
	MetricLLMLatency     = "warp.llm.latency_ms"
	MetricLLMTokens      = "warp.llm.tokens"
	MetricQuotaRetries   = "warp.llm.quota_retries"
	MetricProviderErrors = "warp.llm.provider_errors"
	MetricCacheHits      = "warp.cache.hits"
	MetricCacheMisses    = "warp.cache.misses"
)
