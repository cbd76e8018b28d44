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

	"priorauth/platform/internal/domain"
)

// minBucketSupport is the minimum case count required on each side of a
// documentation-impact or timing comparison before it is reported (§4.7).
const minBucketSupport = 3

// docImpactThreshold is the minimum |approval-rate delta| a documentation
// type must clear to be surfaced (§4.7).
const docImpactThreshold = 0.1

// PatternAnalysis is the aggregate statistics computed over a filtered
// set of similar historical cases (§4.7 "Pattern analysis").
type PatternAnalysis struct {
	ApprovalRate        float64
	DenialRate          float64
	InfoRequestRate     float64
	AvgDaysToDecision   float64
	DocumentationImpact []DocumentationImpact
	TimingPatterns      []TimingPattern
}

// DocumentationImpact reports the approval-rate delta attributable to
// the presence of a given documentation type.
type DocumentationImpact struct {
	DocumentationType string
	RateWith          float64
	RateWithout       float64
	Delta             float64
}

// TimingPattern reports approval rate by submission day-of-week.
type TimingPattern struct {
	Weekday      string
	ApprovalRate float64
	CaseCount    int
}

// Analyze computes outcome rates, average days-to-decision,
// documentation-impact deltas, and timing patterns over cases (§4.7).
func Analyze(cases []domain.HistoricalCase) PatternAnalysis {
	if len(cases) == 0 {
		return PatternAnalysis{}
	}

	var approved, denied, infoRequest int
	var totalDays int
	for _, c := range cases {
		switch c.Outcome {
		case domain.OutcomeApproved:
			approved++
		case domain.OutcomeDenied:
			denied++
		case domain.OutcomeInfoRequest:
			infoRequest++
		}
		totalDays += c.DaysToDecision
	}

	n := float64(len(cases))
	return PatternAnalysis{
		ApprovalRate:        float64(approved) / n,
		DenialRate:          float64(denied) / n,
		InfoRequestRate:     float64(infoRequest) / n,
		AvgDaysToDecision:   float64(totalDays) / n,
		DocumentationImpact: documentationImpact(cases),
		TimingPatterns:      timingPatterns(cases),
	}
}

func documentationImpact(cases []domain.HistoricalCase) []DocumentationImpact {
	docTypes := make(map[string]bool)
	for _, c := range cases {
		for _, d := range c.DocumentationPresent {
			docTypes[d] = true
		}
		for _, d := range c.DocumentationMissing {
			docTypes[d] = true
		}
	}

	var impacts []DocumentationImpact
	for docType := range docTypes {
		var withApproved, withTotal, withoutApproved, withoutTotal int
		for _, c := range cases {
			has := contains(c.DocumentationPresent, docType)
			if !has && !contains(c.DocumentationMissing, docType) {
				continue // case doesn't speak to this documentation type at all
			}
			if has {
				withTotal++
				if c.Outcome == domain.OutcomeApproved {
					withApproved++
				}
			} else {
				withoutTotal++
				if c.Outcome == domain.OutcomeApproved {
					withoutApproved++
				}
			}
		}

		if withTotal < minBucketSupport || withoutTotal < minBucketSupport {
			continue
		}

		rateWith := float64(withApproved) / float64(withTotal)
		rateWithout := float64(withoutApproved) / float64(withoutTotal)
		delta := rateWith - rateWithout
		if math.Abs(delta) <= docImpactThreshold {
			continue
		}

		impacts = append(impacts, DocumentationImpact{
			DocumentationType: docType,
			RateWith:          rateWith,
			RateWithout:       rateWithout,
			Delta:             delta,
		})
	}
	return impacts
}

func timingPatterns(cases []domain.HistoricalCase) []TimingPattern {
	byWeekday := make(map[string][]domain.HistoricalCase)
	for _, c := range cases {
		if c.SubmittedWeekday == "" {
			continue
		}
		byWeekday[c.SubmittedWeekday] = append(byWeekday[c.SubmittedWeekday], c)
	}

	var patterns []TimingPattern
	for weekday, bucket := range byWeekday {
		if len(bucket) < minBucketSupport {
			continue
		}
		approved := 0
		for _, c := range bucket {
			if c.Outcome == domain.OutcomeApproved {
				approved++
			}
		}
		patterns = append(patterns, TimingPattern{
			Weekday:      weekday,
			ApprovalRate: float64(approved) / float64(len(bucket)),
			CaseCount:    len(bucket),
		})
	}
	return patterns
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
