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

// Package reasoner implements the Policy Reasoner (C4) and Iterative
// Refiner (C5): the critical-core LLM-backed coverage assessment engine,
// adapted from the teacher's DynamicPolicyEngine condition-evaluation
// shape in orchestrator/dynamic_policy_engine.go.
package reasoner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
	"priorauth/platform/internal/logging"
	"priorauth/platform/internal/prompts"
)

// RubricRepository supplies payer-specific decision hints (§4.4 step 3).
type RubricRepository interface {
	Rubric(ctx context.Context, payer string) (map[string]string, error)
}

// GatewayClient is the seam the Reasoner invokes for both the main
// assessment call and the criterion-ID remap call; *llm.Gateway
// satisfies it, tests substitute a fake.
type GatewayClient interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// Reasoner implements assess_coverage (§4.4).
type Reasoner struct {
	gateway GatewayClient
	prompts *prompts.Store
	rubrics RubricRepository
	logger  *logging.Logger
}

func New(gateway GatewayClient, promptStore *prompts.Store, rubrics RubricRepository) *Reasoner {
	return &Reasoner{gateway: gateway, prompts: promptStore, rubrics: rubrics, logger: logging.New("reasoner")}
}

// AssessInput bundles assess_coverage's parameters (§4.4 "Public operation").
type AssessInput struct {
	CaseID            string
	CorrelationID     string
	Patient           domain.Patient
	Medication        domain.MedicationRequest
	PayerName         string
	Policy            *domain.DigitizedPolicy
	RawPolicyText     string
	SkipCache         bool
	HistoricalContext string // targeted refinement context (§4.5), empty on first pass
}

// llmCriterionAssessment is the wire shape the model is asked to emit —
// distinct from domain.CriterionAssessment because the model may echo
// unknown ids/names that must pass through ID matching (§4.4.2) first.
type llmCriterionAssessment struct {
	CriterionID   string   `json:"criterion_id"`
	CriterionName string   `json:"criterion_name"`
	IsMet         bool     `json:"is_met"`
	Confidence    float64  `json:"confidence"`
	Evidence      []string `json:"supporting_evidence"`
	Gaps          []string `json:"gaps"`
	Reasoning     string   `json:"reasoning"`
}

type llmExclusionAssessment struct {
	ExclusionID string  `json:"exclusion_id"`
	Triggered   bool    `json:"triggered"`
	Confidence  float64 `json:"confidence"`
}

type llmAssessmentResponse struct {
	CoverageStatus       string                    `json:"coverage_status"`
	ApprovalLikelihood   float64                   `json:"approval_likelihood"`
	Reasoning            string                    `json:"reasoning"`
	CriteriaAssessments  []llmCriterionAssessment  `json:"criteria_assessments"`
	Exclusions           []llmExclusionAssessment  `json:"exclusions"`
	DocumentationGaps    []domain.DocumentationGap `json:"documentation_gaps"`
	Recommendations      []string                  `json:"recommendations"`
	StepTherapySatisfied bool                      `json:"step_therapy_satisfied"`
}

// AssessCoverage runs the full §4.4 pipeline.
func (r *Reasoner) AssessCoverage(ctx context.Context, in AssessInput) (*domain.CoverageAssessment, error) {
	if in.Policy == nil && in.RawPolicyText == "" {
		return nil, &domain.MalformedAssessment{Reason: "neither digitized policy nor raw policy text is available"}
	}

	criteriaContext := ""
	if in.Policy != nil {
		criteriaContext = FormatCriteriaContext(in.Policy)
	}

	rubric := map[string]string{}
	if r.rubrics != nil {
		if loaded, err := r.rubrics.Rubric(ctx, in.PayerName); err == nil {
			rubric = loaded
		}
	}

	promptText, _, err := r.prompts.Load(ctx, "policy_analysis/coverage_assessment", map[string]any{
		"patient":            in.Patient,
		"medication":         in.Medication,
		"payer":              in.PayerName,
		"criteria":           criteriaContext,
		"raw_policy_text":    in.RawPolicyText,
		"rubric":             rubric,
		"historical_context": in.HistoricalContext,
	})
	if err != nil {
		return nil, err
	}

	result, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		TaskCategory:   domain.TaskPolicyReasoning,
		Prompt:         promptText,
		Temperature:    0,
		ResponseFormat: llm.FormatJSON,
		CaseID:         in.CaseID,
		CorrelationID:  in.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := decodeAssessmentResponse(result.Payload)
	if err != nil {
		return nil, err
	}
	if len(parsed.CriteriaAssessments) == 0 && parsed.CoverageStatus == "" {
		return nil, &domain.MalformedAssessment{Reason: "response missing both criteria_assessments and coverage_status"}
	}

	assessment := &domain.CoverageAssessment{
		PayerName:            in.PayerName,
		Reasoning:            parsed.Reasoning,
		Recommendations:      parsed.Recommendations,
		StepTherapySatisfied: parsed.StepTherapySatisfied,
	}

	assessed := r.matchCriterionIDs(ctx, in.Policy, parsed.CriteriaAssessments)
	assessed = r.backfillUnevaluated(in.Policy, assessed)
	assessment.CriteriaAssessments = assessed
	assessment.RecomputeCounts()

	assessment.DocumentationGaps = fillGapIDs(parsed.DocumentationGaps)
	assessment.TriggeredExclusions = triggeredExclusions(parsed.Exclusions)

	if in.Policy != nil {
		assessment.StepTherapyRequired = len(in.Policy.StepTherapyRequirements) > 0
	}

	status, likelihood := ApplyConservativeMapping(parsed.CoverageStatus, parsed.ApprovalLikelihood)
	likelihood = ValidateLikelihood(likelihood, assessment.CriteriaAssessments, in.Policy)
	assessment.CoverageStatus = status
	assessment.ApprovalLikelihood = likelihood

	if raw, err := json.Marshal(result.Payload); err == nil {
		assessment.RawLLMPayload = raw
	}

	return assessment, nil
}

func decodeAssessmentResponse(payload map[string]any) (*llmAssessmentResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.MalformedAssessment{Reason: "response payload could not be re-encoded", Cause: err}
	}
	var parsed llmAssessmentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &domain.MalformedAssessment{Reason: "response payload does not match the expected assessment shape", Cause: err}
	}
	return &parsed, nil
}

func fillGapIDs(gaps []domain.DocumentationGap) []domain.DocumentationGap {
	out := make([]domain.DocumentationGap, len(gaps))
	for i, g := range gaps {
		if g.GapID == "" {
			g.GapID = uuid.NewString()
		}
		out[i] = g
	}
	return out
}

// triggeredExclusions implements §4.4.5: exclusions the LLM marks met
// with confidence >= 0.7 are surfaced for human review but never auto-cap
// likelihood.
func triggeredExclusions(exclusions []llmExclusionAssessment) []string {
	var triggered []string
	for _, e := range exclusions {
		if e.Triggered && e.Confidence >= 0.7 {
			triggered = append(triggered, e.ExclusionID)
		}
	}
	return triggered
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
