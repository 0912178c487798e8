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
package bedrock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/warp/pkg/llm"
)

func TestNewClient_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_BEDROCK_MODEL_ID", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	c, err := NewClient(context.Background(), Config{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.True(t, c.IsConfigured())
	assert.Equal(t, DefaultModelID, c.Model())
	assert.Equal(t, DefaultRegion, c.Region())
	assert.Equal(t, "bedrock", c.Name())
}

func TestNewClient_EnvironmentDefaults(t *testing.T) {
	t.Setenv("AWS_BEDROCK_MODEL_ID", "anthropic.claude-haiku-4-5")
	t.Setenv("AWS_DEFAULT_REGION", "eu-central-1")

	c, err := NewClient(context.Background(), Config{AccessKeyID: "AKID", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-haiku-4-5", c.Model())
	assert.Equal(t, "eu-central-1", c.Region())
}

func TestGenerateText_Unconfigured(t *testing.T) {
	c := &Client{modelID: DefaultModelID}
	_, err := c.GenerateText(context.Background(), nil, llm.GenerateOptions{})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
