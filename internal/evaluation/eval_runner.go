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

package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/logging"
	"priorauth/platform/internal/reasoner"
)

// GoldenCase is one golden-dataset entry: a case to assess plus the
// human-adjudicated expectation it is scored against.
type GoldenCase struct {
	CaseID                        string                   `json:"case_id"`
	Description                   string                   `json:"description"`
	Patient                       domain.Patient           `json:"patient_info"`
	Medication                    domain.MedicationRequest `json:"medication_info"`
	PayerName                     string                   `json:"payer_name"`
	ExpectedCoverageStatus        string                   `json:"expected_coverage_status"`
	ExpectedApprovalLikelihoodMin float64                  `json:"expected_approval_likelihood_min"`
	ExpectedApprovalLikelihoodMax float64                  `json:"expected_approval_likelihood_max"`
	ExpectedCriteriaMetKeys       []string                 `json:"expected_criteria_met_keys"`
	ExpectedCriteriaUnmetKeys     []string                 `json:"expected_criteria_unmet_keys"`
}

// CaseResult is the per-case scoring row, mirroring eval_runner.py's
// _evaluate_case flat-dict return shape.
type CaseResult struct {
	CaseID                     string     `json:"case_id"`
	Description                string     `json:"description"`
	ExpectedStatus             string     `json:"expected_status"`
	PredictedStatus            string     `json:"predicted_status"`
	StatusCorrect              bool       `json:"status_correct"`
	PredictedLikelihood        float64    `json:"predicted_likelihood"`
	ExpectedLikelihoodMidpoint float64    `json:"expected_likelihood_midpoint"`
	ExpectedLikelihoodRange    [2]float64 `json:"expected_likelihood_range"`
	LikelihoodInRange          bool       `json:"likelihood_in_range"`
	LikelihoodError            float64    `json:"likelihood_error"`
	CriteriaMetPredicted       []string   `json:"criteria_met_predicted"`
	CriteriaMetExpected        []string   `json:"criteria_met_expected"`
	CriteriaUnmetPredicted     []string   `json:"criteria_unmet_predicted"`
	CriteriaUnmetExpected      []string   `json:"criteria_unmet_expected"`
	CriteriaPrecision          float64    `json:"criteria_precision"`
	CriteriaRecall             float64    `json:"criteria_recall"`
	CriteriaF1                 float64    `json:"criteria_f1"`
	Error                      string     `json:"error,omitempty"`
	Skipped                    bool       `json:"skipped"`
}

// Metrics is the aggregate report eval_runner.py's _compute_metrics
// returns, plus the run-level fields main() attaches to it.
type Metrics struct {
	TotalCases            int            `json:"total_cases"`
	EvaluatedCases        int            `json:"evaluated_cases"`
	SkippedCases          int            `json:"skipped_cases"`
	Accuracy              float64        `json:"accuracy"`
	PrecisionCovered      float64        `json:"precision_covered"`
	RecallCovered         float64        `json:"recall_covered"`
	F1Covered             float64        `json:"f1_covered"`
	LikelihoodMAE         *float64       `json:"likelihood_mae"`
	LikelihoodInRangePct  float64        `json:"likelihood_in_range_pct"`
	CriteriaF1Mean        float64        `json:"criteria_f1_mean"`
	CriteriaPrecisionMean float64        `json:"criteria_precision_mean"`
	CriteriaRecallMean    float64        `json:"criteria_recall_mean"`
	PredictedStatusDist   map[string]int `json:"predicted_status_distribution,omitempty"`
	ExpectedStatusDist    map[string]int `json:"expected_status_distribution,omitempty"`
	ElapsedSeconds        float64        `json:"elapsed_seconds"`
	Timestamp             string         `json:"timestamp"`
	GoldenPath            string         `json:"golden_path"`
}

// Report bundles the aggregate Metrics with every CaseResult, the shape
// written to the timestamped JSON report file.
type Report struct {
	Metrics        Metrics      `json:"metrics"`
	PerCaseResults []CaseResult `json:"per_case_results"`
}

// CoverageReasoner is the subset of reasoner.Reasoner the evaluator
// depends on.
type CoverageReasoner interface {
	AssessCoverage(ctx context.Context, in reasoner.AssessInput) (*domain.CoverageAssessment, error)
}

// conservativeEquivalentGroups lists coverage statuses the conservative
// decision mapping treats as interchangeable for scoring purposes
// (§4.4.4's NOT_COVERED -> REQUIRES_HUMAN_REVIEW collapse means a
// golden case expecting one should accept the other).
var conservativeEquivalentGroups = []map[string]bool{
	{"requires_human_review": true, "not_covered": true},
	{"covered": true, "likely_covered": true},
	{"pend": true, "conditional": true},
}

// criterionKeyPrefixes are stripped when fuzzy-matching a criterion id
// against a golden dataset's short canonical keys.
var criterionKeyPrefixes = []string{
	"clinical_cd_", "clinical_ra_", "clinical_uc_", "clinical_psa_",
	"clinical_", "admin_", "criterion_",
}

// Runner runs the coverage-assessment golden-dataset evaluation,
// grounded on the original EvalRunner (backend/evaluation/eval_runner.py):
// assess every golden case, score it against its expectation, and
// aggregate accuracy/precision/recall/F1/MAE across the run.
type Runner struct {
	reasoner CoverageReasoner
	logger   *logging.Logger
}

func NewRunner(r CoverageReasoner) *Runner {
	return &Runner{reasoner: r, logger: logging.New("evaluation.runner")}
}

// Run evaluates every case in golden, writes a timestamped report to
// reportDir (skipped if reportDir is empty), and returns the aggregate
// Metrics.
func (r *Runner) Run(ctx context.Context, golden []GoldenCase, goldenPath, reportDir string, skipCache bool) (*Metrics, error) {
	if len(golden) == 0 {
		return nil, fmt.Errorf("evaluation: golden dataset must be non-empty")
	}

	start := time.Now()
	results := make([]CaseResult, 0, len(golden))
	for _, gc := range golden {
		r.logger.Info(gc.CaseID, "", "evaluating case", map[string]interface{}{"description": gc.Description})
		assessment, err := r.reasoner.AssessCoverage(ctx, reasoner.AssessInput{
			CaseID:     gc.CaseID,
			Patient:    gc.Patient,
			Medication: gc.Medication,
			PayerName:  gc.PayerName,
			SkipCache:  skipCache,
		})
		if err != nil {
			r.logger.ErrorWithCause(gc.CaseID, "", "case evaluation failed", err, nil)
			results = append(results, skippedResult(gc, err))
			continue
		}
		results = append(results, evaluateCase(gc, assessment))
	}

	metrics := computeMetrics(results)
	metrics.ElapsedSeconds = time.Since(start).Seconds()
	metrics.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	metrics.GoldenPath = goldenPath

	if reportDir != "" {
		if err := writeReport(reportDir, &Report{Metrics: *metrics, PerCaseResults: results}); err != nil {
			r.logger.ErrorWithCause("", "", "failed to write evaluation report", err, nil)
		}
	}

	return metrics, nil
}

func skippedResult(gc GoldenCase, err error) CaseResult {
	return CaseResult{
		CaseID:                     gc.CaseID,
		Description:                gc.Description,
		ExpectedStatus:             gc.ExpectedCoverageStatus,
		StatusCorrect:              false,
		ExpectedLikelihoodMidpoint: (gc.ExpectedApprovalLikelihoodMin + gc.ExpectedApprovalLikelihoodMax) / 2.0,
		ExpectedLikelihoodRange:    [2]float64{gc.ExpectedApprovalLikelihoodMin, gc.ExpectedApprovalLikelihoodMax},
		CriteriaMetExpected:        gc.ExpectedCriteriaMetKeys,
		CriteriaUnmetExpected:      gc.ExpectedCriteriaUnmetKeys,
		Error:                      err.Error(),
		Skipped:                    true,
	}
}

func evaluateCase(gc GoldenCase, assessment *domain.CoverageAssessment) CaseResult {
	predictedStatus := string(assessment.CoverageStatus)
	expectedStatus := gc.ExpectedCoverageStatus
	statusCorrect := statusesMatch(predictedStatus, expectedStatus)

	expectedMidpoint := (gc.ExpectedApprovalLikelihoodMin + gc.ExpectedApprovalLikelihoodMax) / 2.0
	likelihoodInRange := assessment.ApprovalLikelihood >= gc.ExpectedApprovalLikelihoodMin &&
		assessment.ApprovalLikelihood <= gc.ExpectedApprovalLikelihoodMax
	likelihoodError := absFloat(assessment.ApprovalLikelihood - expectedMidpoint)

	metPredicted, unmetPredicted := extractCriteriaKeys(assessment)
	metExpected := toSet(gc.ExpectedCriteriaMetKeys)
	unmetExpected := toSet(gc.ExpectedCriteriaUnmetKeys)

	precision, recall, f1 := criteriaF1(metPredicted, unmetPredicted, metExpected, unmetExpected)

	return CaseResult{
		CaseID:                     gc.CaseID,
		Description:                gc.Description,
		ExpectedStatus:             expectedStatus,
		PredictedStatus:            predictedStatus,
		StatusCorrect:              statusCorrect,
		PredictedLikelihood:        assessment.ApprovalLikelihood,
		ExpectedLikelihoodMidpoint: expectedMidpoint,
		ExpectedLikelihoodRange:    [2]float64{gc.ExpectedApprovalLikelihoodMin, gc.ExpectedApprovalLikelihoodMax},
		LikelihoodInRange:          likelihoodInRange,
		LikelihoodError:            likelihoodError,
		CriteriaMetPredicted:       sortedSlice(metPredicted),
		CriteriaMetExpected:        sortedSlice(metExpected),
		CriteriaUnmetPredicted:     sortedSlice(unmetPredicted),
		CriteriaUnmetExpected:      sortedSlice(unmetExpected),
		CriteriaPrecision:          precision,
		CriteriaRecall:             recall,
		CriteriaF1:                 f1,
		Skipped:                    false,
	}
}

// statusesMatch allows the semantic equivalences the conservative
// decision model introduces, mirroring eval_runner.py's _statuses_match.
func statusesMatch(predicted, expected string) bool {
	if predicted == "" {
		return false
	}
	pred := strings.ToLower(strings.TrimSpace(predicted))
	exp := strings.ToLower(strings.TrimSpace(expected))
	if pred == exp {
		return true
	}
	for _, group := range conservativeEquivalentGroups {
		if group[pred] && group[exp] {
			return true
		}
	}
	return false
}

// extractCriteriaKeys splits an assessment's criteria into met/unmet key
// sets, each key also contributing its simplified form, matching
// eval_runner.py's _extract_criteria_keys.
func extractCriteriaKeys(assessment *domain.CoverageAssessment) (met, unmet map[string]bool) {
	met = make(map[string]bool)
	unmet = make(map[string]bool)
	for _, ca := range assessment.CriteriaAssessments {
		rawID := strings.ToLower(strings.TrimSpace(ca.CriterionID))
		rawName := strings.ToLower(strings.TrimSpace(ca.CriterionName))
		key := rawID
		if key == "" {
			key = rawName
		}
		simplified := simplifyCriterionKey(key)
		target := unmet
		if ca.IsMet {
			target = met
		}
		if key != "" {
			target[key] = true
		}
		if simplified != "" {
			target[simplified] = true
		}
	}
	return met, unmet
}

// simplifyCriterionKey strips a known payer/disease prefix so e.g.
// "clinical_cd_step_therapy" fuzzy-matches a golden key of
// "step_therapy", matching eval_runner.py's _simplify_criterion_key.
func simplifyCriterionKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, prefix := range criterionKeyPrefixes {
		if strings.HasPrefix(k, prefix) {
			k = strings.TrimPrefix(k, prefix)
			break
		}
	}
	return strings.Trim(k, "_")
}

// criteriaF1 computes micro-averaged precision/recall/F1: the met and
// unmet label sets are matched separately (fuzzy-matching via
// simplifyCriterionKey), their TP/FP/FN counts are summed, and the
// ratios are taken over the totals, matching eval_runner.py's _criteria_f1.
func criteriaF1(predictedMet, predictedUnmet, expectedMet, expectedUnmet map[string]bool) (precision, recall, f1 float64) {
	tpMet, fpMet, fnMet := matchSets(predictedMet, expectedMet)
	tpUnmet, fpUnmet, fnUnmet := matchSets(predictedUnmet, expectedUnmet)

	totalTP := tpMet + tpUnmet
	totalFP := fpMet + fpUnmet
	totalFN := fnMet + fnUnmet

	if totalTP+totalFP > 0 {
		precision = float64(totalTP) / float64(totalTP+totalFP)
	}
	if totalTP+totalFN > 0 {
		recall = float64(totalTP) / float64(totalTP+totalFN)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return round4(precision), round4(recall), round4(f1)
}

func matchSets(predicted, expected map[string]bool) (tp, fp, fn int) {
	matchedExpected := make(map[string]bool)
	for pKey := range predicted {
		pSimple := simplifyCriterionKey(pKey)
		for eKey := range expected {
			if matchedExpected[eKey] {
				continue
			}
			eSimple := simplifyCriterionKey(eKey)
			if pSimple == eSimple || pKey == eKey || strings.Contains(eSimple, pSimple) || strings.Contains(pSimple, eSimple) {
				tp++
				matchedExpected[eKey] = true
				break
			}
		}
	}
	fp = len(predicted) - tp
	fn = len(expected) - len(matchedExpected)
	return tp, fp, fn
}

// computeMetrics aggregates per-case results into a Metrics summary,
// matching eval_runner.py's _compute_metrics.
func computeMetrics(results []CaseResult) *Metrics {
	total := len(results)
	evaluated := make([]CaseResult, 0, total)
	for _, r := range results {
		if !r.Skipped {
			evaluated = append(evaluated, r)
		}
	}
	skipped := total - len(evaluated)

	if len(evaluated) == 0 {
		return &Metrics{TotalCases: total, EvaluatedCases: 0, SkippedCases: skipped}
	}

	correct := 0
	for _, r := range evaluated {
		if r.StatusCorrect {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(evaluated))

	coveredLike := map[string]bool{"covered": true, "likely_covered": true}
	var tpCovered, fpCovered, fnCovered int
	for _, r := range evaluated {
		predictedCovered := r.PredictedStatus != "" && coveredLike[strings.ToLower(r.PredictedStatus)]
		expectedCovered := coveredLike[strings.ToLower(r.ExpectedStatus)]
		switch {
		case predictedCovered && expectedCovered:
			tpCovered++
		case predictedCovered && !expectedCovered:
			fpCovered++
		case !predictedCovered && expectedCovered:
			fnCovered++
		}
	}
	var precisionCovered, recallCovered, f1Covered float64
	if tpCovered+fpCovered > 0 {
		precisionCovered = float64(tpCovered) / float64(tpCovered+fpCovered)
	}
	if tpCovered+fnCovered > 0 {
		recallCovered = float64(tpCovered) / float64(tpCovered+fnCovered)
	}
	if precisionCovered+recallCovered > 0 {
		f1Covered = 2 * precisionCovered * recallCovered / (precisionCovered + recallCovered)
	}

	var likelihoodErrors []float64
	inRangeCount := 0
	for _, r := range evaluated {
		likelihoodErrors = append(likelihoodErrors, r.LikelihoodError)
		if r.LikelihoodInRange {
			inRangeCount++
		}
	}
	var likelihoodMAE *float64
	if len(likelihoodErrors) > 0 {
		sum := 0.0
		for _, e := range likelihoodErrors {
			sum += e
		}
		mae := round4(sum / float64(len(likelihoodErrors)))
		likelihoodMAE = &mae
	}

	var f1Sum, precisionSum, recallSum float64
	for _, r := range evaluated {
		f1Sum += r.CriteriaF1
		precisionSum += r.CriteriaPrecision
		recallSum += r.CriteriaRecall
	}
	n := float64(len(evaluated))

	predictedDist := map[string]int{}
	expectedDist := map[string]int{}
	for _, r := range evaluated {
		if r.PredictedStatus != "" {
			predictedDist[r.PredictedStatus]++
		}
		expectedDist[r.ExpectedStatus]++
	}

	return &Metrics{
		TotalCases:            total,
		EvaluatedCases:        len(evaluated),
		SkippedCases:          skipped,
		Accuracy:              round4(accuracy),
		PrecisionCovered:      round4(precisionCovered),
		RecallCovered:         round4(recallCovered),
		F1Covered:             round4(f1Covered),
		LikelihoodMAE:         likelihoodMAE,
		LikelihoodInRangePct:  round4(float64(inRangeCount) / n),
		CriteriaF1Mean:        round4(f1Sum / n),
		CriteriaPrecisionMean: round4(precisionSum / n),
		CriteriaRecallMean:    round4(recallSum / n),
		PredictedStatusDist:   predictedDist,
		ExpectedStatusDist:    expectedDist,
	}
}

func writeReport(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("eval_results_%s.json", time.Now().UTC().Format("20060102_150405"))
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dir+string(os.PathSeparator)+name, raw, 0o644)
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func sortedSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}
