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

// Package intelligence implements the Strategic Intelligence core (C7):
// similarity-based historical matching, pattern analysis, compensating-
// factor discovery, and cached synthesized insights.
package intelligence

import (
	"math"
	"sort"
	"strings"

	"priorauth/platform/internal/domain"
)

// Component weights for the similarity score (§4.7); must sum to 1.0.
const (
	weightMedication       = 0.30
	weightDiagnosisFamily  = 0.25
	weightPayer            = 0.20
	weightDiseaseSeverity  = 0.15
	weightPriorTreatments  = 0.10

	// defaultSimilarityThreshold filters the ranked result list.
	defaultSimilarityThreshold = 0.5
	maxSimilarCases            = 20
)

var severityOrder = map[string]int{
	"mild":               0,
	"moderate":           1,
	"moderate_to_severe": 2,
	"severe":             3,
}

// ScoredCase pairs a historical case with its similarity score against
// the query case.
type ScoredCase struct {
	Case  domain.HistoricalCase
	Score float64
}

// queryProfile is the subset of the current case's fields similarity
// comparisons are run against.
type queryProfile struct {
	Medication      string
	DiagnosisFamily string
	Payer           string
	Severity        *domain.DiseaseSeverity
	PriorTreatments []string
}

func newQueryProfile(patient domain.Patient, med domain.MedicationRequest, payer string) queryProfile {
	return queryProfile{
		Medication:      med.DrugName,
		DiagnosisFamily: med.ICD10,
		Payer:           payer,
		Severity:        patient.DiseaseSeverity,
		PriorTreatments: med.PriorTreatments,
	}
}

// RankSimilar scores every candidate against the query profile, filters
// by the minimum threshold, sorts descending, and caps at 20 (§4.7).
func RankSimilar(query queryProfile, candidates []domain.HistoricalCase) []ScoredCase {
	scored := make([]ScoredCase, 0, len(candidates))
	for _, c := range candidates {
		score := similarityScore(query, c)
		if score >= defaultSimilarityThreshold {
			scored = append(scored, ScoredCase{Case: c, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > maxSimilarCases {
		scored = scored[:maxSimilarCases]
	}
	return scored
}

func similarityScore(q queryProfile, c domain.HistoricalCase) float64 {
	return weightMedication*substringSimilarity(q.Medication, c.Medication) +
		weightDiagnosisFamily*diagnosisFamilySimilarity(q.DiagnosisFamily, c.DiagnosisFamily) +
		weightPayer*substringSimilarity(q.Payer, c.Payer) +
		weightDiseaseSeverity*severitySimilarity(q.Severity, c.Severity) +
		weightPriorTreatments*jaccardSimilarity(q.PriorTreatments, c.PriorTreatments)
}

func substringSimilarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1.0
	}
	return 0
}

func diagnosisFamilySimilarity(a, b string) float64 {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	if len(a) >= 3 && len(b) >= 3 && a[:3] == b[:3] {
		return 1.0
	}
	if len(a) >= 2 && len(b) >= 2 && a[:2] == b[:2] {
		return 0.7
	}
	return 0
}

func severitySimilarity(a *domain.DiseaseSeverity, b domain.DiseaseSeverity) float64 {
	if a == nil {
		return 0
	}

	var scores []float64
	if a.Classification != "" && b.Classification != "" {
		scores = append(scores, classificationSimilarity(a.Classification, b.Classification))
	}
	if numeric, ok := numericSimilarity(a.CDAI, b.CDAI); ok {
		scores = append(scores, numeric)
	}
	if numeric, ok := numericSimilarity(a.HBI, b.HBI); ok {
		scores = append(scores, numeric)
	}

	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func classificationSimilarity(a, b string) float64 {
	oa, aok := severityOrder[a]
	ob, bok := severityOrder[b]
	if !aok || !bok {
		return 0
	}
	diff := oa - ob
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.7
	case 2:
		return 0.4
	default:
		return 0
	}
}

func numericSimilarity(a, b *float64) (float64, bool) {
	if a == nil || b == nil || *b == 0 {
		return 0, false
	}
	diffPct := math.Abs(*a-*b) / math.Abs(*b)
	if diffPct <= 0.20 {
		return 1 - diffPct, true
	}
	return math.Max(0, 1-2*diffPct), true
}

func jaccardSimilarity(a, b []string) float64 {
	setA := lowerSet(a)
	setB := lowerSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}
