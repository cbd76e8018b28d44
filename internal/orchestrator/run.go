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
	"fmt"

	"context"

	"priorauth/platform/internal/audit"
	"priorauth/platform/internal/domain"
)

// RunStageResult is RunStage's return value; Cached reports whether the
// result was read from the case's existing state instead of freshly
// computed (§4.10 "Single-stage and streaming variants").
type RunStageResult struct {
	Case   *domain.Case
	Cached bool
}

// hasCachedOutput reports whether the case already carries persisted
// output for stage, so RunStage(refresh=false) can skip recomputation.
func hasCachedOutput(stage domain.Stage, c *domain.Case) bool {
	switch stage {
	case domain.StagePolicyAnalysis:
		return len(c.CoverageAssessments) > 0
	case domain.StageStrategyGeneration:
		return len(c.AvailableStrategies) > 0
	case domain.StageStrategySelection:
		return c.SelectedStrategyID != ""
	case domain.StageActionCoordination:
		return len(c.PendingActions) > 0 || len(c.CompletedActions) > 0
	default:
		return false
	}
}

// RunStage runs exactly one stage handler for stage (§4.10). When
// refresh is false and the case already carries that stage's output, it
// returns the existing state marked Cached instead of doing the work
// again. Otherwise it requires stage to equal the case's current stage
// (you cannot re-run a stage the case has already moved past without
// first resetting it via package casestore), executes the handler, and
// persists the resulting delta plus an audit event in one step.
func (o *Orchestrator) RunStage(ctx context.Context, caseID string, stage domain.Stage, refresh bool) (*RunStageResult, error) {
	c, err := o.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("orchestrator: case %s not found", caseID)
	}

	if !refresh && hasCachedOutput(stage, c) {
		return &RunStageResult{Case: c, Cached: true}, nil
	}

	if stage != c.Stage {
		return nil, fmt.Errorf("orchestrator: case %s is at stage %s, cannot run %s", caseID, c.Stage, stage)
	}

	handler, ok := stageHandlers[stage]
	if !ok {
		return nil, ErrUnknownStage
	}

	updated, err := o.runHandler(ctx, c, handler)
	if err != nil {
		return nil, err
	}
	return &RunStageResult{Case: updated, Cached: false}, nil
}

// runHandler executes handler, and on success persists the delta via
// CaseStore.Update and appends an audit event; on ctx cancellation it
// returns ErrCancelled without touching the store, leaving the case at
// its prior version (§4.10 "Cancellation and timeout").
func (o *Orchestrator) runHandler(ctx context.Context, c *domain.Case, handler stageHandler) (*domain.Case, error) {
	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	default:
	}

	fromStage := c.Stage
	changeDescription, mutate, err := handler(ctx, o, c)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	default:
	}

	updated, err := o.cases.Update(ctx, c.CaseID, c.Version, changeDescription, "system", mutate)
	if err != nil {
		return nil, err
	}

	if _, auditErr := o.audit.LogEvent(ctx, audit.LogInput{
		CaseID:       c.CaseID,
		EventType:    "stage_transition",
		DecisionMade: changeDescription,
		Reasoning:    changeDescription,
		Stage:        fromStage,
		InputData:    map[string]any{"from_stage": string(fromStage), "to_stage": string(updated.Stage)},
		Actor:        "system",
	}); auditErr != nil {
		o.logger.ErrorWithCause(c.CaseID, c.CaseID, "failed to log stage_transition audit event", auditErr, nil)
	}

	o.publisher.Publish(c.CaseID, "stage_complete", map[string]any{
		"from_stage": string(fromStage),
		"to_stage":   string(updated.Stage),
	})

	return updated, nil
}

// RunFull advances a case stage by stage until it reaches
// AWAITING_HUMAN_DECISION or a terminal stage, looping MONITORING passes
// internally within its own bounded limits (§4.10 "Stage machine").
func (o *Orchestrator) RunFull(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := o.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("orchestrator: case %s not found", caseID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		if isTerminal(c.Stage) || c.Stage == domain.StageAwaitingHumanDecision {
			return c, nil
		}

		handler, ok := stageHandlers[c.Stage]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStage, c.Stage)
		}

		updated, err := o.runHandler(ctx, c, handler)
		if err != nil {
			return nil, err
		}
		c = updated
	}
}
