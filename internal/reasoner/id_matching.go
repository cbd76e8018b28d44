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
	"encoding/json"
	"fmt"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

// matchCriterionIDs implements §4.4.2: exact-name-match, then an LLM
// remap call for anything still unmatched, discarding low-confidence
// leftovers.
func (r *Reasoner) matchCriterionIDs(ctx context.Context, policy *domain.DigitizedPolicy, assessments []llmCriterionAssessment) []domain.CriterionAssessment {
	if policy == nil {
		return toDomainAssessments(assessments)
	}

	nameToID := make(map[string]string, len(policy.AtomicCriteria))
	for id, c := range policy.AtomicCriteria {
		nameToID[trimLower(criterionMatchName(c))] = id
	}

	matched := make(map[string]bool)
	out := make([]domain.CriterionAssessment, 0, len(assessments))
	var unmatched []llmCriterionAssessment

	for _, a := range assessments {
		if _, known := policy.AtomicCriteria[a.CriterionID]; known {
			matched[a.CriterionID] = true
			out = append(out, toDomainAssessment(a))
			continue
		}
		if id, ok := nameToID[trimLower(a.CriterionName)]; ok && !matched[id] {
			matched[id] = true
			a.CriterionID = id
			out = append(out, toDomainAssessment(a))
			continue
		}
		unmatched = append(unmatched, a)
	}

	if len(unmatched) == 0 {
		return out
	}

	remapped := r.remapUnmatched(ctx, policy, unmatched, matched)
	for _, a := range remapped {
		out = append(out, a)
	}
	return out
}

// remapUnmatched invokes a DATA_EXTRACTION call asking the model to map
// each unmatched (id, name, description) to a known id or "NONE", then
// discards anything still unmapped with confidence < 0.7.
func (r *Reasoner) remapUnmatched(ctx context.Context, policy *domain.DigitizedPolicy, unmatched []llmCriterionAssessment, matched map[string]bool) []domain.CriterionAssessment {
	knownIDs := make([]string, 0, len(policy.AtomicCriteria))
	for id := range policy.AtomicCriteria {
		knownIDs = append(knownIDs, id)
	}

	prompt := buildRemapPrompt(unmatched, knownIDs)
	result, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		TaskCategory:   domain.TaskDataExtraction,
		Prompt:         prompt,
		Temperature:    0,
		ResponseFormat: llm.FormatJSON,
	})

	var remap map[string]string
	if err == nil {
		remap = decodeRemap(result.Payload)
	}

	var out []domain.CriterionAssessment
	for _, a := range unmatched {
		targetID, ok := remap[a.CriterionID]
		if ok && targetID != "NONE" {
			if _, known := policy.AtomicCriteria[targetID]; known && !matched[targetID] {
				matched[targetID] = true
				a.CriterionID = targetID
				out = append(out, toDomainAssessment(a))
				continue
			}
		}
		if a.Confidence >= 0.7 {
			out = append(out, toDomainAssessment(a))
		}
		// else: discarded per §4.4.2(3) — remains unmapped and low-confidence.
	}
	return out
}

func buildRemapPrompt(unmatched []llmCriterionAssessment, knownIDs []string) string {
	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	entries := make([]entry, len(unmatched))
	for i, a := range unmatched {
		entries[i] = entry{ID: a.CriterionID, Name: a.CriterionName}
	}
	payload, _ := json.Marshal(map[string]any{
		"unmatched_criteria":  entries,
		"known_criterion_ids": knownIDs,
		"instruction":         "map each unmatched criterion to exactly one known_criterion_id, or the literal string NONE",
	})
	return fmt.Sprintf("Map each unmatched criterion to a known criterion id.\n%s", payload)
}

func decodeRemap(payload map[string]any) map[string]string {
	remap := make(map[string]string)
	mappings, ok := payload["mappings"].([]any)
	if !ok {
		return remap
	}
	for _, m := range mappings {
		entry, ok := m.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["id"].(string)
		target, _ := entry["target_id"].(string)
		if id != "" && target != "" {
			remap[id] = target
		}
	}
	return remap
}

// criterionMatchName returns the short canonical name a known criterion is
// matched against (§4.4.2 step 1). Digitized policies are expected to carry
// a distinct Name separate from the prose Description; a policy digitized
// before Name was populated falls back to Description rather than never
// matching at all.
func criterionMatchName(c domain.Criterion) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Description
}

func toDomainAssessment(a llmCriterionAssessment) domain.CriterionAssessment {
	return domain.CriterionAssessment{
		CriterionID:        a.CriterionID,
		CriterionName:      a.CriterionName,
		IsMet:              a.IsMet,
		Confidence:         a.Confidence,
		SupportingEvidence: a.Evidence,
		Gaps:               a.Gaps,
		Reasoning:          a.Reasoning,
	}
}

func toDomainAssessments(assessments []llmCriterionAssessment) []domain.CriterionAssessment {
	out := make([]domain.CriterionAssessment, len(assessments))
	for i, a := range assessments {
		out[i] = toDomainAssessment(a)
	}
	return out
}
