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
	"priorauth/platform/internal/domain"
)

var knownStatuses = map[string]domain.CoverageStatus{
	"covered":        domain.CoverageCovered,
	"likely_covered": domain.CoverageLikelyCovered,
	"requires_pa":    domain.CoverageRequiresPA,
	"conditional":    domain.CoverageConditional,
	"pend":           domain.CoveragePend,
	"not_covered":    domain.CoverageNotCovered,
	"unknown":        domain.CoverageUnknown,
}

// ApplyConservativeMapping implements §4.4.6. The AI may never emit a
// final denial — NOT_COVERED, low-confidence, or unrecognized statuses
// are all routed to REQUIRES_HUMAN_REVIEW.
func ApplyConservativeMapping(rawStatus string, likelihood float64) (domain.CoverageStatus, float64) {
	status, known := knownStatuses[trimLower(rawStatus)]
	switch {
	case known && status == domain.CoverageNotCovered:
		return domain.CoverageRequiresHumanReview, likelihood
	case !known:
		return domain.CoverageRequiresHumanReview, likelihood
	case likelihood < 0.30:
		return domain.CoverageRequiresHumanReview, likelihood
	case status == domain.CoverageUnknown && likelihood < 0.50:
		return domain.CoverageRequiresHumanReview, likelihood
	default:
		return status, likelihood
	}
}

// ValidateLikelihood implements §4.4.7: compute an OR-group-aware met
// ratio and clamp the LLM-reported likelihood against it.
func ValidateLikelihood(likelihood float64, assessments []domain.CriterionAssessment, policy *domain.DigitizedPolicy) float64 {
	r := metRatio(assessments, policy)

	switch {
	case likelihood > 0.85 && r < 0.50:
		if candidate := r + 0.1; candidate < likelihood {
			likelihood = candidate
		}
	case likelihood < 0.20 && r > 0.80:
		if candidate := 0.5; candidate > likelihood {
			likelihood = candidate
		}
	}

	return clamp01(likelihood)
}

// metRatio treats each OR-group as a single logical unit (satisfied if
// any member is met) and counts non-grouped criteria individually.
func metRatio(assessments []domain.CriterionAssessment, policy *domain.DigitizedPolicy) float64 {
	metByID := make(map[string]bool, len(assessments))
	for _, a := range assessments {
		metByID[a.CriterionID] = metByID[a.CriterionID] || a.IsMet
	}
	if len(metByID) == 0 {
		return 0
	}

	grouped := make(map[string]bool)
	effectiveTotal := 0
	effectiveMet := 0

	if policy != nil {
		for _, group := range policy.CriterionGroups {
			if group.Operator != domain.GroupOR {
				continue
			}
			anyMet := false
			present := false
			for _, id := range group.Criteria {
				if _, ok := metByID[id]; !ok {
					continue
				}
				present = true
				grouped[id] = true
				if metByID[id] {
					anyMet = true
				}
			}
			if !present {
				continue
			}
			effectiveTotal++
			if anyMet {
				effectiveMet++
			}
		}
	}

	for id, met := range metByID {
		if grouped[id] {
			continue
		}
		effectiveTotal++
		if met {
			effectiveMet++
		}
	}

	if effectiveTotal == 0 {
		return 0
	}
	return float64(effectiveMet) / float64(effectiveTotal)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
