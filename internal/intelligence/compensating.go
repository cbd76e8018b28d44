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
	"math"
	"sort"
	"strings"

	"priorauth/platform/internal/domain"
)

// compensationBucketMinimum is the minimum case count required in both
// the with- and without-compensation buckets (§4.7 step 3).
const compensationBucketMinimum = 2

// compensationUpliftThreshold is the minimum approval-rate uplift a
// compensating-factor pattern must clear to be emitted (§4.7 step 4).
const compensationUpliftThreshold = 0.20

// labSeverityBundleMinimum and its uplift threshold are stricter,
// dedicated constants for the lab-severity bundle pattern (§4.7).
const (
	labSeverityBundleMinimum  = 3
	labSeverityUpliftThreshold = 0.15
)

// FactorRelationship configures one compensating-factor relationship to
// evaluate: a missing documentation type and the clinical factors known
// to offset it (§4.7 step 1, example config).
type FactorRelationship struct {
	MissingDocumentation string
	CompensatingFactors  []string
}

// caseFactorFields is the subset of fields compensating-factor detection
// inspects for factor presence: documentation lists plus a flattened
// severity/lab text blob.
type caseFactorFields struct {
	DocumentationPresent []string
	Severity             string
	LabFlags             []string // e.g. "high_crp", "fistula" when present in the case
}

// DetectCompensatingFactors evaluates each configured relationship
// against the corpus (already filtered to medication-alias matches) and
// emits a pattern for every relationship clearing the bucket-size and
// uplift thresholds (§4.7 steps 1-5).
func DetectCompensatingFactors(relationships []FactorRelationship, cases []domain.HistoricalCase, currentCase caseFactorFields) []domain.CompensatingFactorPattern {
	var patterns []domain.CompensatingFactorPattern

	for _, rel := range relationships {
		missingCases := filterMissingDocumentation(cases, rel.MissingDocumentation)

		var withComp, withoutComp []domain.HistoricalCase
		for _, c := range missingCases {
			if hasAnyFactor(c, rel.CompensatingFactors) {
				withComp = append(withComp, c)
			} else {
				withoutComp = append(withoutComp, c)
			}
		}

		if len(withComp) < compensationBucketMinimum || len(withoutComp) < compensationBucketMinimum {
			continue
		}

		rateWith := approvalRate(withComp)
		rateWithout := approvalRate(withoutComp)
		uplift := rateWith - rateWithout
		if uplift < compensationUpliftThreshold {
			continue
		}

		caseMissing := !contains(currentCase.DocumentationPresent, rel.MissingDocumentation)
		caseHasComp := hasFactorFields(currentCase, rel.CompensatingFactors)

		patterns = append(patterns, domain.CompensatingFactorPattern{
			MissingDocumentation: rel.MissingDocumentation,
			CompensatingFactors:  rel.CompensatingFactors,
			RateWithCompensation: rateWith,
			RateWithout:          rateWithout,
			Uplift:               uplift,
			CaseMissingDoc:       caseMissing,
			CaseHasCompensation:  caseHasComp,
			Priority:             compensationPriority(caseMissing, caseHasComp),
			Recommendation:       compensationRecommendation(rel, caseMissing, caseHasComp),
		})
	}

	patterns = append(patterns, detectLabSeverityBundle(cases, currentCase)...)

	sortPatternsByUplift(patterns)
	return patterns
}

func filterMissingDocumentation(cases []domain.HistoricalCase, docType string) []domain.HistoricalCase {
	var out []domain.HistoricalCase
	for _, c := range cases {
		if contains(c.DocumentationMissing, docType) {
			out = append(out, c)
		}
	}
	return out
}

func hasAnyFactor(c domain.HistoricalCase, factors []string) bool {
	for _, f := range factors {
		if strings.EqualFold(c.Severity.Classification, f) {
			return true
		}
		if contains(c.DocumentationPresent, f) {
			return true
		}
	}
	return false
}

func hasFactorFields(c caseFactorFields, factors []string) bool {
	for _, f := range factors {
		if strings.EqualFold(c.Severity, f) {
			return true
		}
		if contains(c.DocumentationPresent, f) || contains(c.LabFlags, f) {
			return true
		}
	}
	return false
}

func approvalRate(cases []domain.HistoricalCase) float64 {
	if len(cases) == 0 {
		return 0
	}
	approved := 0
	for _, c := range cases {
		if c.Outcome == domain.OutcomeApproved {
			approved++
		}
	}
	return float64(approved) / float64(len(cases))
}

func compensationPriority(caseMissing, caseHasComp bool) string {
	switch {
	case caseMissing && !caseHasComp:
		return "high"
	case caseMissing && caseHasComp:
		return "medium"
	default:
		return "low"
	}
}

func compensationRecommendation(rel FactorRelationship, caseMissing, caseHasComp bool) string {
	if !caseMissing {
		return ""
	}
	if caseHasComp {
		return "Documentation is missing but compensating factors are present in this case; cite them explicitly in the submission."
	}
	return "Obtain " + rel.MissingDocumentation + " or document one of: " + strings.Join(rel.CompensatingFactors, ", ") + "."
}

func detectLabSeverityBundle(cases []domain.HistoricalCase, currentCase caseFactorFields) []domain.CompensatingFactorPattern {
	const bundleLabel = "lab_severity_bundle"

	var withBundle, withoutBundle []domain.HistoricalCase
	for _, c := range cases {
		if hasLabSeverityBundle(c) {
			withBundle = append(withBundle, c)
		} else {
			withoutBundle = append(withoutBundle, c)
		}
	}

	if len(withBundle) < labSeverityBundleMinimum || len(withoutBundle) < labSeverityBundleMinimum {
		return nil
	}

	rateWith := approvalRate(withBundle)
	rateWithout := approvalRate(withoutBundle)
	uplift := rateWith - rateWithout
	if uplift < labSeverityUpliftThreshold {
		return nil
	}

	caseHasBundle := hasFactorFields(currentCase, []string{"crp_above_20", "albumin_below_3", "esr_above_40"})
	return []domain.CompensatingFactorPattern{{
		MissingDocumentation: bundleLabel,
		CompensatingFactors:  []string{"crp_above_20", "albumin_below_3", "esr_above_40"},
		RateWithCompensation: rateWith,
		RateWithout:          rateWithout,
		Uplift:               uplift,
		CaseMissingDoc:       false,
		CaseHasCompensation:  caseHasBundle,
		Priority:             "medium",
		Recommendation:       "CRP > 20, albumin < 3.0, and ESR > 40 together correlate with higher approval; cite the full lab panel if present.",
	}}
}

func hasLabSeverityBundle(c domain.HistoricalCase) bool {
	return contains(c.DocumentationPresent, "crp_above_20") &&
		contains(c.DocumentationPresent, "albumin_below_3") &&
		contains(c.DocumentationPresent, "esr_above_40")
}

func sortPatternsByUplift(patterns []domain.CompensatingFactorPattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return math.Abs(patterns[i].Uplift) > math.Abs(patterns[j].Uplift)
	})
}
