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

package reasoner

import (
	"context"
	"fmt"
	"strings"

	"priorauth/platform/internal/domain"
)

const (
	lowConfidenceThreshold = 0.70
	maxRefinementIterations = 2
)

// Refine implements the Iterative Refiner (C5, §4.5): up to
// maxRefinementIterations targeted re-evaluations of low-confidence
// criteria, merging only strict confidence improvements.
func (r *Reasoner) Refine(ctx context.Context, in AssessInput, initial *domain.CoverageAssessment) *domain.CoverageAssessment {
	current := initial

	for i := 0; i < maxRefinementIterations; i++ {
		lowConfidence := lowConfidenceCriteria(current)
		if len(lowConfidence) == 0 {
			break
		}

		refinementIn := in
		refinementIn.SkipCache = true
		refinementIn.HistoricalContext = buildRefinementContext(lowConfidence)

		refined, err := r.AssessCoverage(ctx, refinementIn)
		if err != nil {
			// A failed iteration preserves the current assessment and
			// terminates refinement (§4.5).
			break
		}

		merged, improved := mergeRefinement(current, refined, lowConfidence)
		if !improved {
			break
		}
		current = merged
	}

	return current
}

func lowConfidenceCriteria(assessment *domain.CoverageAssessment) []domain.CriterionAssessment {
	var out []domain.CriterionAssessment
	for _, a := range assessment.CriteriaAssessments {
		if a.Confidence < lowConfidenceThreshold {
			out = append(out, a)
		}
	}
	return out
}

func buildRefinementContext(lowConfidence []domain.CriterionAssessment) string {
	var b strings.Builder
	b.WriteString("Re-evaluate only the following low-confidence criteria:\n")
	for _, a := range lowConfidence {
		fmt.Fprintf(&b, "- id=%s prior_confidence=%.2f prior_reasoning=%q prior_evidence=%v prior_gaps=%v\n",
			a.CriterionID, a.Confidence, a.Reasoning, a.SupportingEvidence, a.Gaps)
	}
	return b.String()
}

// mergeRefinement replaces a targeted criterion's assessment only if the
// refined confidence is strictly greater; non-targeted criteria are
// preserved unchanged. If at least one criterion improved, the refined
// assessment's overall likelihood/status/gaps/recommendations are
// adopted wholesale (§4.5 "Merge rule").
func mergeRefinement(current, refined *domain.CoverageAssessment, targeted []domain.CriterionAssessment) (*domain.CoverageAssessment, bool) {
	targetedIDs := make(map[string]bool, len(targeted))
	for _, a := range targeted {
		targetedIDs[a.CriterionID] = true
	}

	refinedByID := make(map[string]domain.CriterionAssessment, len(refined.CriteriaAssessments))
	for _, a := range refined.CriteriaAssessments {
		refinedByID[a.CriterionID] = a
	}

	improved := false
	merged := make([]domain.CriterionAssessment, len(current.CriteriaAssessments))
	for i, a := range current.CriteriaAssessments {
		merged[i] = a
		if !targetedIDs[a.CriterionID] {
			continue
		}
		refinedAssessment, ok := refinedByID[a.CriterionID]
		if !ok || refinedAssessment.Confidence <= a.Confidence {
			continue
		}
		merged[i] = refinedAssessment
		improved = true
	}

	if !improved {
		return current, false
	}

	out := *current
	out.CriteriaAssessments = merged
	out.ApprovalLikelihood = refined.ApprovalLikelihood
	out.CoverageStatus = refined.CoverageStatus
	out.DocumentationGaps = refined.DocumentationGaps
	out.Recommendations = refined.Recommendations
	out.RecomputeCounts()
	return &out, true
}
