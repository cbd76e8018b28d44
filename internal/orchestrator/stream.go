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

package orchestrator

import (
	"context"
	"fmt"

	"priorauth/platform/internal/audit"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/evaluation"
	"priorauth/platform/internal/reasoner"
)

// ProgressEvent is one record yielded by StreamPolicyAnalysis (§4.10,
// §6.3). Type is one of stage_start, progress, payer_start,
// payer_complete, stage_complete, or error.
type ProgressEvent struct {
	Type    string
	Payload map[string]any
}

// StreamPolicyAnalysis is the async-generator variant of the
// POLICY_ANALYSIS stage: a channel-based producer that flushes each
// event as it happens rather than buffering the whole analysis (§4.10,
// §6.3 "Coroutine / streaming control flow"). The channel is closed when
// the analysis finishes or ctx is cancelled; a cancelled stream performs
// no persistence, matching RunStage's "no partial snapshot" contract.
func (o *Orchestrator) StreamPolicyAnalysis(ctx context.Context, caseID string, refresh bool) <-chan ProgressEvent {
	out := make(chan ProgressEvent, 8)

	go func() {
		defer close(out)

		c, err := o.cases.Get(ctx, caseID)
		if err != nil {
			out <- ProgressEvent{Type: "error", Payload: map[string]any{"error": err.Error()}}
			return
		}
		if c == nil {
			out <- ProgressEvent{Type: "error", Payload: map[string]any{"error": fmt.Sprintf("case %s not found", caseID)}}
			return
		}

		if !refresh && hasCachedOutput(domain.StagePolicyAnalysis, c) {
			out <- ProgressEvent{Type: "stage_complete", Payload: map[string]any{"cached": true, "coverage_assessments": c.CoverageAssessments}}
			return
		}

		if c.Stage != domain.StagePolicyAnalysis {
			out <- ProgressEvent{Type: "error", Payload: map[string]any{"error": fmt.Sprintf("case is at stage %s, not POLICY_ANALYSIS", c.Stage)}}
			return
		}

		out <- ProgressEvent{Type: "stage_start", Payload: map[string]any{"case_id": caseID}}
		o.publisher.Publish(caseID, "stage_start", map[string]any{"stage": string(domain.StagePolicyAnalysis)})

		payers := sortedPayerNames(c.PayerStates)
		result, err := o.streamAssessPayers(ctx, c, payers, out)
		if err != nil {
			out <- ProgressEvent{Type: "error", Payload: map[string]any{"error": err.Error()}}
			return
		}

		needsHuman, reason := requiresHumanDecision(result)
		updated, err := o.cases.Update(ctx, caseID, c.Version, "policy analysis completed (streamed)", "system", func(next *domain.Case) {
			next.CoverageAssessments = result
			if needsHuman {
				next.Stage = domain.StageAwaitingHumanDecision
				next.RequiresHumanDecision = true
				next.HumanDecisionReason = reason
			} else {
				next.Stage = domain.StageStrategyGeneration
				next.RequiresHumanDecision = false
			}
		})
		if err != nil {
			out <- ProgressEvent{Type: "error", Payload: map[string]any{"error": err.Error()}}
			return
		}

		if _, auditErr := o.audit.LogEvent(ctx, audit.LogInput{
			CaseID:       caseID,
			EventType:    "stage_transition",
			DecisionMade: "policy analysis completed (streamed)",
			Stage:        domain.StagePolicyAnalysis,
			InputData:    map[string]any{"to_stage": string(updated.Stage)},
			Actor:        "system",
		}); auditErr != nil {
			o.logger.ErrorWithCause(caseID, caseID, "failed to log streamed stage_transition audit event", auditErr, nil)
		}

		out <- ProgressEvent{Type: "stage_complete", Payload: map[string]any{
			"coverage_assessments": result,
			"next_stage":           string(updated.Stage),
		}}
		o.publisher.Publish(caseID, "stage_complete", map[string]any{"to_stage": string(updated.Stage)})
	}()

	return out
}

// streamAssessPayers runs the same per-payer assessment loop
// handlePolicyAnalysis does, emitting payer_start/progress/payer_complete
// events to out as it goes.
func (o *Orchestrator) streamAssessPayers(ctx context.Context, c *domain.Case, payers []string, out chan<- ProgressEvent) (map[string]domain.CoverageAssessment, error) {
	assessments := make(map[string]domain.CoverageAssessment, len(payers))

	for i, payer := range payers {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		percent := percentComplete(i, len(payers))
		out <- ProgressEvent{Type: "payer_start", Payload: map[string]any{"payer_name": payer, "percent": percent}}
		out <- ProgressEvent{Type: "progress", Payload: map[string]any{"percent": percent}}

		policy, err := o.policies.Load(ctx, payer, c.MedicationRequest.DrugName)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load policy for %s: %w", payer, err)
		}
		rawText, err := o.policies.LoadRawText(ctx, payer, c.MedicationRequest.DrugName)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load raw policy text for %s: %w", payer, err)
		}

		in := reasoner.AssessInput{
			CaseID:        c.CaseID,
			CorrelationID: c.CaseID,
			Patient:       c.Patient,
			Medication:    c.MedicationRequest,
			PayerName:     payer,
			Policy:        policy,
			RawPolicyText: rawText,
		}

		assessment, err := o.reasoner.AssessCoverage(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: assess coverage for %s: %w", payer, err)
		}
		assessment = o.reasoner.Refine(ctx, in, assessment)
		assessments[payer] = *assessment

		o.outcomes.Record(evaluation.PredictionOutcome{
			CaseID:              c.CaseID,
			PredictedLikelihood: assessment.ApprovalLikelihood,
			PredictedStatus:     string(assessment.CoverageStatus),
			PayerName:           payer,
			MedicationName:      c.MedicationRequest.DrugName,
		})

		completePercent := percentComplete(i+1, len(payers))
		out <- ProgressEvent{Type: "payer_complete", Payload: map[string]any{
			"payer_name": payer,
			"likelihood": assessment.ApprovalLikelihood,
			"percent":    completePercent,
		}}
	}

	return assessments, nil
}
