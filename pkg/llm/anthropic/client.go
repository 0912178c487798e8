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
// Package anthropic implements llm.Provider on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens is the default maximum tokens per request
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey    string        // Default: $ANTHROPIC_API_KEY
	Model     string        // Default: claude-sonnet-4-5-20250929
	BaseURL   string        // Optional API endpoint override
	MaxTokens int           // Default: 4096
	Timeout   time.Duration // Default: 120s
}

// Client implements llm.Provider with the official Anthropic SDK.
type Client struct {
	client    sdk.Client
	apiKey    string
	model     string
	maxTokens int
}

// NewClient creates a new Anthropic provider. Retries are left to llm.QuotaRetry.
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			cfg.Model = envModel
		} else {
			cfg.Model = DefaultModel
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:    sdk.NewClient(opts...),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (c *Client) Name() string       { return "anthropic" }
func (c *Client) Model() string      { return c.model }
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

func (c *Client) GenerateText(ctx context.Context, messages []types.Message, opts llm.GenerateOptions) (*llm.Generation, error) {
	if !c.IsConfigured() {
		return nil, llm.ErrNotConfigured
	}
	params, err := BuildParams(c.model, c.maxTokens, messages, opts)
	if err != nil {
		return nil, err
	}
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return FromMessage(c.Name(), c.model, message), nil
}

// BuildParams converts a conversation into Messages API parameters. System
// messages become the system prompt; consecutive turns of the same role are
// merged since the API requires alternating roles.
func BuildParams(model string, maxTokens int, messages []types.Message, opts llm.GenerateOptions) (sdk.MessageNewParams, error) {
	system, turns := llm.SystemAndTurns(messages)

	var sdkMessages []sdk.MessageParam
	var role types.Role
	var buf []string
	flush := func() {
		if len(buf) == 0 {
			return
		}
		block := sdk.NewTextBlock(strings.Join(buf, "\n\n"))
		if role == types.RoleAssistant {
			sdkMessages = append(sdkMessages, sdk.NewAssistantMessage(block))
		} else {
			sdkMessages = append(sdkMessages, sdk.NewUserMessage(block))
		}
		buf = nil
	}
	for _, m := range turns {
		r := m.Role
		if r != types.RoleAssistant {
			r = types.RoleUser
		}
		if r != role {
			flush()
			role = r
		}
		buf = append(buf, m.Content)
	}
	flush()

	if len(sdkMessages) == 0 {
		return sdk.MessageNewParams{}, fmt.Errorf("no valid messages to send")
	}

	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		Messages:  sdkMessages,
		MaxTokens: int64(maxTokens),
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	if len(opts.StopSequences) > 0 {
		params.StopSequences = opts.StopSequences
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	return params, nil
}

// FromMessage converts an API response into a Generation.
func FromMessage(provider, model string, message *sdk.Message) *llm.Generation {
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	in := int(message.Usage.InputTokens)
	out := int(message.Usage.OutputTokens)
	return &llm.Generation{
		Text:         sb.String(),
		Cost:         llm.EstimateCost(model, in, out),
		InputTokens:  in,
		OutputTokens: out,
		Provider:     provider,
		Model:        model,
	}
}

// ClassifyError wraps rate limit and overload responses with llm.ErrQuotaExceeded.
func ClassifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, 529:
			return fmt.Errorf("%w: %w", llm.ErrQuotaExceeded, err)
		}
	}
	return err
}
