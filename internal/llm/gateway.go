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
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/logging"
)

// RoutingTable maps each task category to an ordered provider preference
// list (§4.2 "Routing"). Configurable at startup.
type RoutingTable map[domain.TaskCategory][]domain.Provider

// DefaultRoutingTable matches §4.2: POLICY_REASONING, APPEAL_STRATEGY, and
// POLICY_QA prefer Claude; general text tasks prefer Gemini then Azure.
func DefaultRoutingTable() RoutingTable {
	reasoningFirst := []domain.Provider{domain.ProviderClaude, domain.ProviderGemini, domain.ProviderAzureOpenAI}
	generalFirst := []domain.Provider{domain.ProviderGemini, domain.ProviderAzureOpenAI, domain.ProviderClaude}
	return RoutingTable{
		domain.TaskPolicyReasoning:   reasoningFirst,
		domain.TaskAppealStrategy:    reasoningFirst,
		domain.TaskPolicyQA:          reasoningFirst,
		domain.TaskAppealDrafting:    generalFirst,
		domain.TaskSummaryGeneration: generalFirst,
		domain.TaskDataExtraction:    generalFirst,
		domain.TaskNotification:      generalFirst,
	}
}

// Gateway implements C2: task-based provider routing with per-provider
// circuit breakers, retry, timeouts, and usage accounting.
type Gateway struct {
	mu                  sync.RWMutex
	registry            map[domain.Provider]Provider
	breakers            map[domain.Provider]*CircuitBreaker
	routingTable        RoutingTable
	pricing             *PricingTable
	usage               UsageRecorder
	timeout             time.Duration
	transientRetryDelay time.Duration
	logger              *logging.Logger
}

// GatewayConfig configures a new Gateway.
type GatewayConfig struct {
	RoutingTable            RoutingTable
	Timeout                 time.Duration
	TransientRetryDelay     time.Duration
	CircuitBreakerThreshold int
	CooldownSeconds         int
	Pricing                 *PricingTable
	Usage                   UsageRecorder
}

// NewGateway wires a set of Provider implementations into a routing
// table, one circuit breaker per provider (§4.2, §9 "process-global,
// narrow, documented" circuit breaker state).
func NewGateway(providers map[domain.Provider]Provider, cfg GatewayConfig) *Gateway {
	if cfg.RoutingTable == nil {
		cfg.RoutingTable = DefaultRoutingTable()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.TransientRetryDelay == 0 {
		cfg.TransientRetryDelay = 2 * time.Second
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 3
	}
	if cfg.CooldownSeconds == 0 {
		cfg.CooldownSeconds = 60
	}
	if cfg.Pricing == nil {
		cfg.Pricing = DefaultPricingTable()
	}
	if cfg.Usage == nil {
		cfg.Usage = NewInMemoryUsageRecorder()
	}

	breakers := make(map[domain.Provider]*CircuitBreaker, len(providers))
	for name := range providers {
		breakers[name] = NewCircuitBreaker(cfg.CircuitBreakerThreshold, time.Duration(cfg.CooldownSeconds)*time.Second)
	}

	return &Gateway{
		registry:            providers,
		breakers:            breakers,
		routingTable:        cfg.RoutingTable,
		pricing:             cfg.Pricing,
		usage:               cfg.Usage,
		timeout:             cfg.Timeout,
		transientRetryDelay: cfg.TransientRetryDelay,
		logger:              logging.New("llm.gateway"),
	}
}

// Generate is the Gateway's public contract (§4.2). It walks the
// provider preference list for req.TaskCategory, skipping providers whose
// circuit breaker is open, retrying a transient failure once against the
// same provider, and falling through to the next provider otherwise.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	providers := g.providersFor(req.TaskCategory)
	var attempted []string
	var lastErr error

	for _, name := range providers {
		breaker := g.breakers[name]
		provider := g.registry[name]
		if breaker == nil || provider == nil {
			continue
		}
		if !breaker.Allow() {
			g.logger.Debug(req.CaseID, req.CorrelationID, "skipping provider: circuit open", map[string]interface{}{"provider": string(name)})
			continue
		}

		resp, err := g.attemptProvider(ctx, provider, req)
		if err != nil {
			attempted = append(attempted, string(name))
			breaker.RecordFailure()
			lastErr = err
			g.logger.Warn(req.CaseID, req.CorrelationID, "provider attempt failed", map[string]interface{}{
				"provider": string(name), "error": err.Error(),
			})
			continue
		}

		result, parseErr := g.buildResult(name, req, resp)
		if parseErr != nil {
			// A JSON parse failure is permanent for routing purposes — no
			// retry against the same provider (§4.2 "Response handling").
			attempted = append(attempted, string(name))
			breaker.RecordFailure()
			lastErr = parseErr
			continue
		}

		breaker.RecordSuccess()
		g.recordUsage(name, req, resp)
		return result, nil
	}

	return nil, &domain.GatewayExhausted{
		TaskCategory: string(req.TaskCategory),
		Attempted:    attempted,
		Cause:        lastErr,
	}
}

func (g *Gateway) providersFor(task domain.TaskCategory) []domain.Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if list, ok := g.routingTable[task]; ok {
		return list
	}
	return DefaultRoutingTable()[domain.TaskSummaryGeneration]
}

// attemptProvider invokes the provider once, and on a transient error
// waits the configured fixed backoff and retries the same provider
// exactly once more (§4.2 step 5-6). The retry is bounded by the same
// wall-clock deadline as the outer call — it does not extend it (§5).
func (g *Gateway) attemptProvider(ctx context.Context, provider Provider, req GenerateRequest) (*ProviderResponse, error) {
	resp, err := provider.Analyze(ctx, req.Prompt, req.SystemPrompt, req.Temperature, req.ResponseFormat)
	if err == nil {
		return resp, nil
	}
	if !isTransient(err) {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.transientRetryDelay):
	}

	return provider.Analyze(ctx, req.Prompt, req.SystemPrompt, req.Temperature, req.ResponseFormat)
}

func (g *Gateway) buildResult(name domain.Provider, req GenerateRequest, resp *ProviderResponse) (*GenerateResult, error) {
	result := &GenerateResult{
		Provider:     name,
		TaskCategory: req.TaskCategory,
		Usage:        resp.Usage,
	}

	if req.ResponseFormat == FormatText {
		result.Response = resp.Content
		return result, nil
	}

	payload, err := parseJSONPayload(resp.Content)
	if err != nil {
		return nil, &domain.MalformedAssessment{Reason: "gateway response is not valid JSON", Cause: err}
	}
	result.Payload = payload
	return result, nil
}

// parseJSONPayload strips markdown code fences (some providers wrap JSON
// in ```json ... ```) before parsing, per §4.2 "Response handling".
func parseJSONPayload(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
				lines = lines[:len(lines)-1]
			}
		}
		trimmed = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (g *Gateway) recordUsage(name domain.Provider, req GenerateRequest, resp *ProviderResponse) {
	cost := g.pricing.Cost(strings.ToLower(strings.ReplaceAll(string(name), "_", "-")), resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	g.usage.Record(UsageRow{
		CaseID:        req.CaseID,
		CorrelationID: req.CorrelationID,
		Provider:      string(name),
		Model:         resp.Model,
		TaskCategory:  string(req.TaskCategory),
		InputTokens:   resp.Usage.InputTokens,
		OutputTokens:  resp.Usage.OutputTokens,
		CostUSD:       cost,
		LatencyMs:     resp.Usage.LatencyMs,
	})
}

// HealthCheck probes every registered provider with a trivial prompt
// (§4.2 "Auxiliary operations").
func (g *Gateway) HealthCheck(ctx context.Context) map[domain.Provider]bool {
	results := make(map[domain.Provider]bool, len(g.registry))
	for name, provider := range g.registry {
		results[name] = provider.HealthCheck(ctx)
	}
	return results
}

// Embed proxies to the Gemini embedding channel per §4.2 "Auxiliary
// operations" (fixed 768-dim vectors via Gemini).
func (g *Gateway) Embed(ctx context.Context, text, taskType string) ([]float64, error) {
	provider, ok := g.registry[domain.ProviderGemini]
	if !ok {
		return nil, &domain.GatewayExhausted{TaskCategory: "embed", Cause: nil}
	}
	return provider.Embed(ctx, text, taskType)
}

// CosineSimilarity is the similarity utility exposed alongside Embed
// (§4.2).
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
