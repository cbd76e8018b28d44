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

package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

// GatewayClient is the narrow seam into the LLM Gateway, mirroring the
// same narrow-interface pattern package reasoner depends on.
type GatewayClient interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// confidenceBase and confidenceStep implement §4.7's confidence formula:
// min(0.95, 0.5 + 0.02 * |similar_cases|).
const (
	confidenceCeiling = 0.95
	confidenceBase    = 0.5
	confidenceStep    = 0.02
)

// Engine ties together similarity ranking, pattern analysis,
// compensating-factor detection, caching, and LLM synthesis to produce a
// StrategicInsights record (§4.7).
type Engine struct {
	repository    HistoricalCaseRepository
	cache         *Cache
	gateway       GatewayClient
	relationships []FactorRelationship
}

// Config configures an Engine.
type Config struct {
	Repository    HistoricalCaseRepository
	Cache         *Cache
	Gateway       GatewayClient
	Relationships []FactorRelationship
}

func New(cfg Config) *Engine {
	return &Engine{
		repository:    cfg.Repository,
		cache:         cfg.Cache,
		gateway:       cfg.Gateway,
		relationships: cfg.Relationships,
	}
}

// AnalyzeInput carries the current case's relevant fields for similarity
// matching, pattern analysis, and cache-key computation.
type AnalyzeInput struct {
	CaseID            string
	Patient           domain.Patient
	MedicationRequest domain.MedicationRequest
	Payer             string
	Aliases           []string
	CurrentDocPresent []string
	CurrentLabFlags   []string
}

// Analyze produces a StrategicInsights record for the given case,
// returning a cached copy when one exists and has not expired (§4.7).
func (e *Engine) Analyze(ctx context.Context, in AnalyzeInput) (*domain.StrategicInsights, error) {
	severityClass := ""
	if in.Patient.DiseaseSeverity != nil {
		severityClass = in.Patient.DiseaseSeverity.Classification
	}
	icd10Family := strings.TrimSpace(in.MedicationRequest.ICD10)
	if len(icd10Family) > 3 {
		icd10Family = icd10Family[:3]
	}
	cacheKey := CacheKey(in.MedicationRequest.DrugName, icd10Family, in.Payer, severityClass)

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	candidates, err := e.repository.ByMedication(ctx, in.MedicationRequest.DrugName, in.Aliases)
	if err != nil {
		return nil, err
	}

	query := newQueryProfile(in.Patient, in.MedicationRequest, in.Payer)
	similar := RankSimilar(query, candidates)
	similarCases := make([]domain.HistoricalCase, len(similar))
	for i, s := range similar {
		similarCases[i] = s.Case
	}

	analysis := Analyze(similarCases)
	factors := DetectCompensatingFactors(e.relationships, similarCases, caseFactorFields{
		DocumentationPresent: in.CurrentDocPresent,
		Severity:             severityClass,
		LabFlags:             in.CurrentLabFlags,
	})

	insights, err := e.synthesize(ctx, in, cacheKey, analysis, factors, len(similarCases))
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Set(ctx, cacheKey, *insights)
	}
	return insights, nil
}

func (e *Engine) synthesize(ctx context.Context, in AnalyzeInput, cacheKey string, analysis PatternAnalysis, factors []domain.CompensatingFactorPattern, similarCount int) (*domain.StrategicInsights, error) {
	prompt, err := buildSynthesisPrompt(in, analysis, factors, similarCount)
	if err != nil {
		return nil, err
	}

	result, err := e.gateway.Generate(ctx, llm.GenerateRequest{
		TaskCategory:   domain.TaskPolicyReasoning,
		Prompt:         prompt,
		Temperature:    0.3,
		ResponseFormat: llm.FormatJSON,
		CaseID:         in.CaseID,
	})
	if err != nil {
		return nil, err
	}

	insights := decodeInsightsPayload(result.Payload)
	insights.CacheKey = cacheKey
	insights.SimilarCasesCount = similarCount
	insights.ApprovalRate = analysis.ApprovalRate
	insights.DenialRate = analysis.DenialRate
	insights.InfoRequestRate = analysis.InfoRequestRate
	insights.AvgDaysToDecision = analysis.AvgDaysToDecision
	insights.Confidence = math.Min(confidenceCeiling, confidenceBase+confidenceStep*float64(similarCount))
	insights.ConfidenceTier = confidenceTier(insights.Confidence)
	return &insights, nil
}

func confidenceTier(confidence float64) string {
	switch {
	case confidence >= 0.85:
		return "high"
	case confidence >= 0.65:
		return "moderate"
	default:
		return "low"
	}
}

func buildSynthesisPrompt(in AnalyzeInput, analysis PatternAnalysis, factors []domain.CompensatingFactorPattern, similarCount int) (string, error) {
	synthesisContext := map[string]any{
		"medication":           in.MedicationRequest.DrugName,
		"payer":                in.Payer,
		"similar_cases_count":  similarCount,
		"pattern_analysis":     analysis,
		"compensating_factors": factors,
	}
	encoded, err := json.Marshal(synthesisContext)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Given the following historical pattern analysis and compensating-factor findings, synthesize documentation insights, payer insights, timing recommendations, risk factors, recommended actions, counterfactual scenarios, and agentic insights:\n%s",
		string(encoded),
	), nil
}

func decodeInsightsPayload(payload map[string]any) domain.StrategicInsights {
	var insights domain.StrategicInsights
	insights.DocumentationInsights = stringSlice(payload["documentation_insights"])
	insights.PayerInsights = stringSlice(payload["payer_insights"])
	insights.TimingRecommendations = stringSlice(payload["timing_recommendations"])
	insights.RiskFactors = stringSlice(payload["risk_factors"])
	insights.RecommendedActions = stringSlice(payload["recommended_actions"])
	insights.CounterfactualScenarios = stringSlice(payload["counterfactual_scenarios"])
	if agentic, ok := payload["agentic_insights"].(map[string]any); ok {
		insights.AgenticInsights = agentic
	}
	return insights
}

func stringSlice(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
