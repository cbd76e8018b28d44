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

package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/evaluation"
	"priorauth/platform/internal/reasoner"
)

// requiresHumanDecision implements §4.10's predicate: any payer whose
// coverage_status is NOT_COVERED, REQUIRES_HUMAN_REVIEW, or UNKNOWN, or
// whose approval_likelihood is below 0.5, forces a human gate.
func requiresHumanDecision(assessments map[string]domain.CoverageAssessment) (bool, string) {
	for payer, a := range assessments {
		switch a.CoverageStatus {
		case domain.CoverageNotCovered, domain.CoverageRequiresHumanReview, domain.CoverageUnknown:
			return true, fmt.Sprintf("%s coverage status is %s", payer, a.CoverageStatus)
		}
		if a.ApprovalLikelihood < 0.5 {
			return true, fmt.Sprintf("%s approval likelihood %.2f is below the 0.5 human-review threshold", payer, a.ApprovalLikelihood)
		}
	}
	return false, ""
}

// handlePolicyAnalysis assesses coverage for every payer already seeded
// into the case's PayerStates (by CreateCase), refines low-confidence
// assessments, and routes to AWAITING_HUMAN_DECISION or straight to
// STRATEGY_GENERATION per the §4.10 predicate.
func handlePolicyAnalysis(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	payers := sortedPayerNames(c.PayerStates)
	assessments := make(map[string]domain.CoverageAssessment, len(payers))

	for i, payer := range payers {
		select {
		case <-ctx.Done():
			return "", nil, ErrCancelled
		default:
		}

		o.publisher.Publish(c.CaseID, "payer_start", map[string]any{
			"payer_name": payer,
			"percent":    percentComplete(i, len(payers)),
		})

		policy, err := o.policies.Load(ctx, payer, c.MedicationRequest.DrugName)
		if err != nil {
			return "", nil, fmt.Errorf("orchestrator: load policy for %s: %w", payer, err)
		}
		rawText, err := o.policies.LoadRawText(ctx, payer, c.MedicationRequest.DrugName)
		if err != nil {
			return "", nil, fmt.Errorf("orchestrator: load raw policy text for %s: %w", payer, err)
		}

		in := reasoner.AssessInput{
			CaseID:        c.CaseID,
			CorrelationID: c.CaseID,
			Patient:       c.Patient,
			Medication:    c.MedicationRequest,
			PayerName:     payer,
			Policy:        policy,
			RawPolicyText: rawText,
		}

		assessment, err := o.reasoner.AssessCoverage(ctx, in)
		if err != nil {
			return "", nil, fmt.Errorf("orchestrator: assess coverage for %s: %w", payer, err)
		}
		assessment = o.reasoner.Refine(ctx, in, assessment)
		assessments[payer] = *assessment

		o.outcomes.Record(evaluation.PredictionOutcome{
			CaseID:              c.CaseID,
			PredictedLikelihood: assessment.ApprovalLikelihood,
			PredictedStatus:     string(assessment.CoverageStatus),
			PayerName:           payer,
			MedicationName:      c.MedicationRequest.DrugName,
		})

		o.publisher.Publish(c.CaseID, "payer_complete", map[string]any{
			"payer_name": payer,
			"likelihood": assessment.ApprovalLikelihood,
			"percent":    percentComplete(i+1, len(payers)),
		})
	}

	needsHuman, reason := requiresHumanDecision(assessments)

	return "policy analysis completed for all payers", func(next *domain.Case) {
		next.CoverageAssessments = assessments
		if needsHuman {
			next.Stage = domain.StageAwaitingHumanDecision
			next.RequiresHumanDecision = true
			next.HumanDecisionReason = reason
		} else {
			next.Stage = domain.StageStrategyGeneration
			next.RequiresHumanDecision = false
		}
	}, nil
}

func sortedPayerNames(states map[string]domain.PayerState) []string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func percentComplete(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
