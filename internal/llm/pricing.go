// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"encoding/json"
	"os"
	"sync"
)

// ModelPricing is the per-1K-token input/output price for one model.
type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// PricingTable holds per-provider, per-model pricing, with a "*" entry
// as the per-provider default (ported from the teacher's
// cost.DefaultPricing, trimmed to this platform's three providers).
type PricingTable struct {
	mu        sync.RWMutex
	providers map[string]map[string]ModelPricing
}

// DefaultPricingTable mirrors the teacher's DefaultPricing literal,
// trimmed to Claude, Gemini, and Azure OpenAI.
func DefaultPricingTable() *PricingTable {
	return &PricingTable{
		providers: map[string]map[string]ModelPricing{
			"claude": {
				"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
				"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
				"claude-3-opus-20240229":     {InputPer1K: 0.015, OutputPer1K: 0.075},
				"*":                          {InputPer1K: 0.003, OutputPer1K: 0.015},
			},
			"gemini": {
				"gemini-1.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.005},
				"gemini-1.5-flash": {InputPer1K: 0.000075, OutputPer1K: 0.0003},
				"*":                {InputPer1K: 0.00125, OutputPer1K: 0.005},
			},
			"azure-openai": {
				"gpt-4o":      {InputPer1K: 0.0025, OutputPer1K: 0.01},
				"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
				"*":           {InputPer1K: 0.0025, OutputPer1K: 0.01},
			},
		},
	}
}

// LoadFromEnv merges a JSON-encoded override from PA_PRICING_CONFIG into
// the default table, mirroring the teacher's cost.LoadPricingFromEnv.
func (t *PricingTable) LoadFromEnv() {
	raw := os.Getenv("PA_PRICING_CONFIG")
	if raw == "" {
		return
	}
	var override map[string]map[string]ModelPricing
	if err := json.Unmarshal([]byte(raw), &override); err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for provider, models := range override {
		if _, ok := t.providers[provider]; !ok {
			t.providers[provider] = make(map[string]ModelPricing)
		}
		for model, price := range models {
			t.providers[provider][model] = price
		}
	}
}

// Cost computes input_tokens * input_price + output_tokens * output_price
// (§4.2.3). Falls back to the provider's "*" wildcard, then to zero.
func (t *PricingTable) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models, ok := t.providers[provider]
	if !ok {
		return 0
	}
	price, ok := models[model]
	if !ok {
		price, ok = models["*"]
		if !ok {
			return 0
		}
	}
	return float64(inputTokens)/1000*price.InputPer1K + float64(outputTokens)/1000*price.OutputPer1K
}
