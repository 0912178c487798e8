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
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/teradata-labs/warp/pkg/types"
)

// ResponseParser turns model text into function calls.
type ResponseParser interface {
	Parse(text string) ([]types.FunctionCall, error)
	// Instructions describes the expected response format for the system prompt.
	Instructions() string
}

var (
	// ErrNoFunctionCalls is returned when the response has no call block.
	ErrNoFunctionCalls = errors.New("response contains no function calls")
	// ErrMalformedResponse is returned when the call block is not valid.
	ErrMalformedResponse = errors.New("malformed function calls")
)

const (
	callsOpenTag  = "<function_calls>"
	callsCloseTag = "</function_calls>"
)

const functionCallsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"parameters": {"type": "object"}
		}
	}
}`

// JSONResponseParser reads a JSON array of {"name", "parameters"} objects
// enclosed in <function_calls> tags. Text outside the tags is ignored.
type JSONResponseParser struct {
	schema *gojsonschema.Schema
}

// NewJSONResponseParser compiles the call schema.
func NewJSONResponseParser() *JSONResponseParser {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(functionCallsSchema))
	if err != nil {
		panic(fmt.Sprintf("function call schema does not compile: %v", err))
	}
	return &JSONResponseParser{schema: schema}
}

func (p *JSONResponseParser) Parse(text string) ([]types.FunctionCall, error) {
	start := strings.Index(text, callsOpenTag)
	if start < 0 {
		return nil, ErrNoFunctionCalls
	}
	body := text[start+len(callsOpenTag):]
	end := strings.Index(body, callsCloseTag)
	if end < 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, callsCloseTag)
	}
	body = stripCodeFence(strings.TrimSpace(body[:end]))
	if strings.HasPrefix(body, "{") {
		body = "[" + body + "]"
	}

	result, err := p.schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			problems[i] = e.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(problems, "; "))
	}

	var calls []types.FunctionCall
	if err := json.Unmarshal([]byte(body), &calls); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return calls, nil
}

func (p *JSONResponseParser) Instructions() string {
	return `Respond with your reasoning, then the functions to call as a JSON array inside <function_calls> tags:
<function_calls>
[{"name": "Capability.method", "parameters": {"param": "value"}}]
</function_calls>
Calls run in order. When the request is complete call Agent.completed. When you need a human to answer a question call Agent.requestFeedback.`
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
