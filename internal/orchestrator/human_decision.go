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
	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
)

// ErrNotAwaitingDecision is returned by IngestHumanDecision when the
// case is not currently paused for a human decision.
var ErrNotAwaitingDecision = fmt.Errorf("orchestrator: case is not awaiting a human decision")

// IngestHumanDecision records an external reviewer's action and routes
// the case accordingly (§4.10 "Human-decision ingestion"). Every
// ingestion appends an audit event whose actor is the reviewer id,
// regardless of the action taken.
func (o *Orchestrator) IngestHumanDecision(ctx context.Context, caseID string, decision domain.HumanDecision) (*domain.Case, error) {
	c, err := o.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("orchestrator: case %s not found", caseID)
	}
	if c.Stage != domain.StageAwaitingHumanDecision {
		return nil, ErrNotAwaitingDecision
	}

	changeDescription, mutate := humanDecisionDelta(decision)

	updated, err := o.cases.Update(ctx, caseID, c.Version, changeDescription, decision.ReviewerID, func(next *domain.Case) {
		next.HumanDecisions = append(next.HumanDecisions, decision)
		mutate(next)
	})
	if err != nil {
		return nil, err
	}

	if _, auditErr := o.audit.LogEvent(ctx, audit.LogInput{
		CaseID:       caseID,
		EventType:    "human_decision",
		DecisionMade: string(decision.Action),
		Reasoning:    decision.Notes,
		Stage:        domain.StageAwaitingHumanDecision,
		InputData:    map[string]any{
			"action":          string(decision.Action),
			"reviewer_id":     decision.ReviewerID,
			"override_reason": decision.OverrideReason,
		},
		Actor: decision.ReviewerID,
	}); auditErr != nil {
		o.logger.ErrorWithCause(caseID, caseID, "failed to log human_decision audit event", auditErr, nil)
	}

	o.publisher.Publish(caseID, "human_decision_ingested", map[string]any{
		"action": string(decision.Action),
	})

	return updated, nil
}

// humanDecisionDelta maps a HumanAction to its stage transition
// (§4.10). escalate leaves the case in AWAITING_HUMAN_DECISION.
func humanDecisionDelta(decision domain.HumanDecision) (string, casestore.UpdateFunc) {
	switch decision.Action {
	case domain.ActionApprove, domain.ActionFollowRecommendation, domain.ActionSubmitToPayer:
		return fmt.Sprintf("human decision %q: proceeding to strategy generation", decision.Action), func(next *domain.Case) {
			next.Stage = domain.StageStrategyGeneration
			next.RequiresHumanDecision = false
		}

	case domain.ActionOverride:
		return "human override applied: proceeding to strategy generation", func(next *domain.Case) {
			next.Stage = domain.StageStrategyGeneration
			next.RequiresHumanDecision = false
			next.HumanOverrideApplied = true
		}

	case domain.ActionReject:
		return "human decision: rejected", func(next *domain.Case) {
			next.Stage = domain.StageFailed
			next.ErrorMessage = "case rejected by human reviewer"
		}

	case domain.ActionReturnToProvider:
		return "human decision: returned to provider for additional documentation", func(next *domain.Case) {
			next.Stage = domain.StageCompleted
			next.ErrorMessage = ""
		}

	case domain.ActionEscalate:
		return "human decision: escalated, remaining in human review", func(next *domain.Case) {
			next.HumanDecisionReason = decision.Notes
		}

	default:
		return fmt.Sprintf("unrecognized human action %q, escalating for safety", decision.Action), func(next *domain.Case) {
			next.HumanDecisionReason = fmt.Sprintf("unrecognized action %q treated as escalation", decision.Action)
		}
	}
}
