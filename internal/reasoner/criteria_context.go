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
	"sort"
	"strings"

	"priorauth/platform/internal/domain"
)

// FormatCriteriaContext renders the prompt section enumerating atomic
// criteria, exclusions, and step-therapy requirements (§4.4.1).
func FormatCriteriaContext(policy *domain.DigitizedPolicy) string {
	var b strings.Builder

	groupMembership := orGroupMembership(policy)

	ids := make([]string, 0, len(policy.AtomicCriteria))
	for id := range policy.AtomicCriteria {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("Criteria:\n")
	for _, id := range ids {
		c := policy.AtomicCriteria[id]
		tag := "optional"
		if c.Required {
			tag = "required"
		}
		if groups := groupMembership[id]; len(groups) > 0 {
			tag = fmt.Sprintf("%s; member of OR-group(s) %s — satisfying any one member suffices", tag, strings.Join(groups, ","))
		}

		fmt.Fprintf(&b, "- id=%s [%s]\n", c.ID, tag)
		fmt.Fprintf(&b, "  type=%s category=%s description=%q policy_text=%q\n", c.Type, c.Category, c.Description, c.PolicyText)
		if len(c.ClinicalCodes) > 0 {
			fmt.Fprintf(&b, "  clinical_codes=%s\n", strings.Join(c.ClinicalCodes, ","))
		}
		if len(c.DrugRestrictions) > 0 || len(c.ClassRestrictions) > 0 {
			fmt.Fprintf(&b, "  drugs=%s classes=%s\n", strings.Join(c.DrugRestrictions, ","), strings.Join(c.ClassRestrictions, ","))
		}
		if len(c.AllowedValues) > 0 {
			fmt.Fprintf(&b, "  allowed_values=%s\n", strings.Join(c.AllowedValues, ","))
		}
		if c.Threshold != nil {
			upper := ""
			if c.Threshold.Upper != nil {
				upper = fmt.Sprintf(" upper=%v", *c.Threshold.Upper)
			}
			fmt.Fprintf(&b, "  threshold: %s %v%s %s\n", c.Threshold.Operator, c.Threshold.Value, upper, c.Threshold.Unit)
		}
		if c.MinDurationDays > 0 {
			fmt.Fprintf(&b, "  min_duration_days=%d\n", c.MinDurationDays)
		}
	}

	if len(policy.Exclusions) > 0 {
		b.WriteString("\nExclusions:\n")
		for _, e := range policy.Exclusions {
			fmt.Fprintf(&b, "- exclusion_id=%s description=%q\n", e.ExclusionID, e.Description)
		}
	}

	if len(policy.StepTherapyRequirements) > 0 {
		b.WriteString("\nStep therapy requirements:\n")
		for _, s := range policy.StepTherapyRequirements {
			fmt.Fprintf(&b, "- id=%s required_drugs=%s required_classes=%s min_trials=%d min_duration_days=%d intolerance_satisfies_failure=%v\n",
				s.ID, strings.Join(s.RequiredDrugs, ","), strings.Join(s.RequiredClasses, ","), s.MinTrialCount, s.MinTrialDurationDays, s.IntoleranceSatisfiesFailure)
		}
	}

	return b.String()
}

// orGroupMembership maps each atomic criterion id to the OR-type group
// ids it directly belongs to.
func orGroupMembership(policy *domain.DigitizedPolicy) map[string][]string {
	membership := make(map[string][]string)
	for groupID, group := range policy.CriterionGroups {
		if group.Operator != domain.GroupOR {
			continue
		}
		for _, critID := range group.Criteria {
			membership[critID] = append(membership[critID], groupID)
		}
	}
	return membership
}
