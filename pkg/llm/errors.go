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
	"errors"
	"strings"
)

var (
	// ErrQuotaExceeded marks rate limit and quota errors. Providers wrap it so
	// QuotaRetry can classify them without string matching.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrNoProviderConfigured is returned when no provider has credentials.
	ErrNoProviderConfigured = errors.New("no LLM provider configured")

	// ErrAllProvidersFailed is returned when every configured provider failed.
	ErrAllProvidersFailed = errors.New("all LLM providers failed")

	// ErrNotConfigured is returned by a provider called without credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

var quotaMarkers = []string{
	"throttlingexception",
	"toomanyrequests",
	"too many requests",
	"resource_exhausted",
	"rate limit",
	"rate_limit",
	"quota",
	"throttl",
}

// IsQuotaError reports whether err is a rate limit or quota error.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if hasStatusCode(msg, "429") {
		return true
	}
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// hasStatusCode reports whether code appears in msg as a standalone number,
// so that "429" matches "status 429" but not "14290 tokens".
func hasStatusCode(msg, code string) bool {
	for i := 0; ; {
		j := strings.Index(msg[i:], code)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(code)
		if (start == 0 || !isDigit(msg[start-1])) && (end == len(msg) || !isDigit(msg[end])) {
			return true
		}
		i = start + 1
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
