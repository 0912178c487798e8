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
package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/teradata-labs/warp/pkg/capability"
)

const (
	// WebName is the name of the web capability.
	WebName = "Web"

	// MaxFetchSize bounds the body returned by fetch (2MB).
	MaxFetchSize = 2 * 1024 * 1024
)

// Web fetches pages from the public internet.
type Web struct {
	client    *http.Client
	userAgent string
}

// NewWeb creates a Web capability. A nil client gets a 30s timeout default.
func NewWeb(client *http.Client) *Web {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Web{client: client, userAgent: "warp-agent/1.0"}
}

func (w *Web) Name() string {
	return WebName
}

func (w *Web) Schema() capability.MethodSchema {
	return capability.MethodSchema{
		Description: "Functions for reading web pages on the public internet",
		Methods: []capability.MethodSpec{
			{
				Name:        "fetch",
				Description: "Returns the body of the page at a URL",
				Params: []capability.ParamSpec{
					{Name: "url", Index: 0, Type: "string", Description: "The http(s) URL to fetch"},
				},
			},
		},
	}
}

func (w *Web) Invoke(ctx context.Context, method string, args []any) (any, error) {
	if method != "fetch" {
		return nil, capability.UnknownMethod(WebName, method)
	}
	raw, err := capability.StringArg(args, 0, "url")
	if err != nil {
		return nil, err
	}
	return w.Fetch(ctx, raw)
}

// Fetch performs a GET and returns the body. Non-2xx responses are errors.
func (w *Web) Fetch(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be an absolute http(s) URL: %s", capability.ErrInvalidArgument, raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("GET %s returned %s", raw, resp.Status)
	}
	return string(body), nil
}
