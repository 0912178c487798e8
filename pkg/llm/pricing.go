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
	"strings"
)

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// EstimateCost prices a generation of a Claude model.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	var p price
	switch m := strings.ToLower(model); {
	case strings.Contains(m, "haiku"):
		p = price{input: 0.8, output: 4.0}
	case strings.Contains(m, "opus"):
		p = price{input: 15.0, output: 75.0}
	default:
		p = price{input: 3.0, output: 15.0}
	}
	return float64(inputTokens)*p.input/1_000_000 + float64(outputTokens)*p.output/1_000_000
}
