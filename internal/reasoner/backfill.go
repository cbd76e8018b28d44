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
	"fmt"

	"priorauth/platform/internal/domain"
)

const notEvaluatedReasoning = "not evaluated by AI — requires manual review"

// backfillUnevaluated implements §4.4.3: infer the patient's indication
// from the matched-ID overlap with each indication's criterion sub-tree,
// then synthesize is_met=false/confidence=0 assessments for anything in
// that sub-tree the LLM never evaluated.
func (r *Reasoner) backfillUnevaluated(policy *domain.DigitizedPolicy, assessed []domain.CriterionAssessment) []domain.CriterionAssessment {
	if policy == nil {
		return assessed
	}

	matchedIDs := make(map[string]bool, len(assessed))
	for _, a := range assessed {
		matchedIDs[a.CriterionID] = true
	}

	targetIDs := inferredIndicationCriteria(policy, matchedIDs)
	if targetIDs == nil {
		targetIDs = allCriterionIDs(policy)
	}

	groupMembership := orGroupMembership(policy)

	for _, id := range targetIDs {
		if matchedIDs[id] {
			continue
		}
		c, ok := policy.AtomicCriteria[id]
		if !ok {
			continue
		}
		reasoning := notEvaluatedReasoning
		if groups := groupMembership[id]; len(groups) > 0 {
			reasoning = fmt.Sprintf("%s (member of OR-group(s) %v)", reasoning, groups)
		}
		assessed = append(assessed, domain.CriterionAssessment{
			CriterionID:   id,
			CriterionName: c.Description,
			IsMet:         false,
			Confidence:    0,
			Reasoning:     reasoning,
		})
		matchedIDs[id] = true
	}

	return assessed
}

// inferredIndicationCriteria selects, among policy.Indications, the one
// whose sub-tree has the maximum intersection with matchedIDs, returning
// nil if no indication has any overlap (§4.4.3 step 3 fallback).
func inferredIndicationCriteria(policy *domain.DigitizedPolicy, matchedIDs map[string]bool) []string {
	var best []string
	bestOverlap := 0

	for _, ind := range policy.Indications {
		subtree := policy.CollectGroup(ind.GroupID)
		overlap := 0
		for _, id := range subtree {
			if matchedIDs[id] {
				overlap++
			}
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = subtree
		}
	}

	if bestOverlap == 0 {
		return nil
	}
	return best
}

func allCriterionIDs(policy *domain.DigitizedPolicy) []string {
	ids := make([]string, 0, len(policy.AtomicCriteria))
	for id := range policy.AtomicCriteria {
		ids = append(ids, id)
	}
	return ids
}
