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
// Package bedrock implements llm.Provider for Claude models on AWS Bedrock,
// using the Anthropic SDK's Bedrock transport.
package bedrock

import (
	"context"
	"fmt"
	"os"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/teradata-labs/warp/pkg/llm"
	claude "github.com/teradata-labs/warp/pkg/llm/anthropic"
	"github.com/teradata-labs/warp/pkg/types"
)

const (
	// DefaultModelID uses Claude Sonnet 4.5 with a cross-region inference profile
	DefaultModelID   = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion    = "us-west-2"
	DefaultMaxTokens = 4096
)

// Config holds configuration for the Bedrock provider.
type Config struct {
	Region          string // Default: $AWS_DEFAULT_REGION or us-west-2
	AccessKeyID     string // Optional: if not using IAM role/profile
	SecretAccessKey string // Optional: if not using IAM role/profile
	SessionToken    string // Optional: for temporary credentials
	Profile         string // Optional: AWS profile name from ~/.aws/config

	ModelID   string // Default: us.anthropic.claude-sonnet-4-5-20250929-v1:0
	MaxTokens int    // Default: 4096
}

// Client implements llm.Provider for Bedrock.
type Client struct {
	client     sdk.Client
	modelID    string
	region     string
	maxTokens  int
	configured bool
}

// NewClient loads the AWS configuration and creates the provider. Explicit
// keys win over a named profile, which wins over the default credential chain.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		if envModel := os.Getenv("AWS_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else {
			cfg.ModelID = DefaultModelID
		}
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultRegion
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	case cfg.Profile != "":
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		client:     sdk.NewClient(bedrock.WithConfig(awsCfg), option.WithMaxRetries(0)),
		modelID:    cfg.ModelID,
		region:     cfg.Region,
		maxTokens:  cfg.MaxTokens,
		configured: hasCredentials(ctx, awsCfg),
	}, nil
}

func hasCredentials(ctx context.Context, awsCfg aws.Config) bool {
	if awsCfg.Credentials == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	return err == nil && creds.HasKeys()
}

func (c *Client) Name() string       { return "bedrock" }
func (c *Client) Model() string      { return c.modelID }
func (c *Client) Region() string     { return c.region }
func (c *Client) IsConfigured() bool { return c.configured }

func (c *Client) GenerateText(ctx context.Context, messages []types.Message, opts llm.GenerateOptions) (*llm.Generation, error) {
	if !c.configured {
		return nil, llm.ErrNotConfigured
	}
	params, err := claude.BuildParams(c.modelID, c.maxTokens, messages, opts)
	if err != nil {
		return nil, err
	}
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("bedrock invocation failed: %w", claude.ClassifyError(err))
	}
	return claude.FromMessage(c.Name(), c.modelID, message), nil
}
