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

package strategy

import (
	"fmt"
	"sort"

	"priorauth/platform/internal/domain"
)

// Score computes a purely deterministic StrategyScore for one strategy,
// given the coverage assessment of its first (primary) payer (§4.6
// "Scoring").
func Score(s *domain.Strategy, assessments map[string]domain.CoverageAssessment, weights domain.ScoringWeights) domain.StrategyScore {
	score := domain.StrategyScore{
		StrategyID:  s.StrategyID,
		Adjustments: make(map[string]float64),
		WeightsUsed: weights,
	}

	approvalScore := s.BaseApprovalScore
	var primaryAssessment *domain.CoverageAssessment
	if len(s.PayerSequence) > 0 {
		if a, ok := assessments[s.PayerSequence[0]]; ok {
			primaryAssessment = &a
		}
	}

	if primaryAssessment != nil {
		likelihood := primaryAssessment.ApprovalLikelihood
		adjustment := 4 * (likelihood - 0.5)
		approvalScore = clampRange(approvalScore+adjustment, 0, 10)
		score.Adjustments["first_payer_likelihood"] = adjustment
		score.Reasoning = append(score.Reasoning, fmt.Sprintf("first-payer approval likelihood %.2f adjusted approval score by %.2f", likelihood, adjustment))

		ceiling := 10*likelihood + 1
		if approvalScore > ceiling {
			delta := ceiling - approvalScore
			score.Adjustments["likelihood_ceiling"] = delta
			score.Reasoning = append(score.Reasoning, fmt.Sprintf("approval score clamped to likelihood ceiling %.2f", ceiling))
			approvalScore = ceiling
		}

		criticalGaps := countCriticalGaps(primaryAssessment.DocumentationGaps)
		if criticalGaps > 0 {
			penalty := -0.5 * float64(criticalGaps)
			score.Adjustments["gap_penalty"] = penalty
			score.Reasoning = append(score.Reasoning, fmt.Sprintf("%d critical documentation gap(s) applied a %.2f penalty", criticalGaps, penalty))
			approvalScore += penalty
		}

		if primaryAssessment.StepTherapyRequired && !primaryAssessment.StepTherapySatisfied {
			const penalty = -2.0
			score.Adjustments["step_therapy_penalty"] = penalty
			score.Reasoning = append(score.Reasoning, "step therapy required but not satisfied applied a -2.0 penalty")
			approvalScore += penalty
		}
	}

	score.ApprovalScore = clampRange(approvalScore, 0, 10)
	score.SpeedScore = s.BaseSpeedScore
	score.ReworkScore = 10 - s.BaseReworkRisk
	score.PatientScore = 10 - s.BasePatientBurden

	score.TotalScore = weights.Speed*score.SpeedScore +
		weights.Approval*score.ApprovalScore +
		weights.LowRework*score.ReworkScore +
		weights.PatientBurden*score.PatientScore

	return score
}

func countCriticalGaps(gaps []domain.DocumentationGap) int {
	count := 0
	for _, g := range gaps {
		if g.Priority == domain.GapPriorityHigh {
			count++
		}
	}
	return count
}

func clampRange(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// Rank orders scores descending by TotalScore, assigns Rank, and marks
// rank 1 as recommended, writing a synthesized rationale onto the
// corresponding Strategy (§4.6).
func Rank(scores []domain.StrategyScore, strategies map[string]*domain.Strategy) []domain.StrategyScore {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})
	for i := range scores {
		scores[i].Rank = i + 1
		scores[i].IsRecommended = i == 0
		if i == 0 {
			if s, ok := strategies[scores[i].StrategyID]; ok {
				s.Rationale = fmt.Sprintf(
					"Highest total score (%.2f) among %d candidate strategies: speed %.1f, approval %.1f, low-rework %.1f, patient burden %.1f.",
					scores[i].TotalScore, len(scores), scores[i].SpeedScore, scores[i].ApprovalScore, scores[i].ReworkScore, scores[i].PatientScore,
				)
			}
		}
	}
	return scores
}
