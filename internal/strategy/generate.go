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

// Package strategy implements the Strategy Scorer (C6): deterministic,
// template-driven strategy generation and scoring, grounded on the
// teacher's declarative WorkflowStep shape in
// orchestrator/workflow_engine.go adapted from a YAML-authored step list
// to a fixed two-payer submission template.
package strategy

import (
	"fmt"

	"github.com/google/uuid"

	"priorauth/platform/internal/domain"
)

// Generate produces the SEQUENTIAL_PRIMARY_FIRST strategy for a payer
// sequence (primary first, optional secondary) — the only strategy
// template this system ever emits (§4.6, §3.2 invariant 6).
func Generate(payerSequence []string) *domain.Strategy {
	steps := buildSteps(payerSequence)

	return &domain.Strategy{
		StrategyID:         uuid.NewString(),
		StrategyType:       domain.StrategySequentialPrimaryFirst,
		Name:               "Sequential: primary payer first",
		Description:        fmt.Sprintf("Submit to %s first; escalate to subsequent payers only if needed.", firstOrEmpty(payerSequence)),
		PayerSequence:      payerSequence,
		ParallelSubmission: false,
		BaseSpeedScore:     7.0,
		BaseApprovalScore:  5.0,
		BaseReworkRisk:     3.0,
		BasePatientBurden:  3.0,
		Steps:              steps,
	}
}

func buildSteps(payerSequence []string) []domain.StrategyStep {
	var steps []domain.StrategyStep
	stepNum := 1

	if len(payerSequence) == 0 {
		return steps
	}

	primary := payerSequence[0]
	primarySubmit := stepNum
	steps = append(steps, domain.StrategyStep{
		StepNumber:       stepNum,
		ActionType:       "submit_pa",
		TargetPayer:      primary,
		Description:      fmt.Sprintf("Submit prior authorization request to %s.", primary),
		DurationEstimate: "1-2 business days",
		SuccessCriterion: "payer acknowledges receipt with a reference number",
	})
	stepNum++

	primaryCheck := stepNum
	steps = append(steps, domain.StrategyStep{
		StepNumber:       stepNum,
		ActionType:       "check_status",
		TargetPayer:      primary,
		Description:      fmt.Sprintf("Check %s submission status.", primary),
		Dependencies:     []int{primarySubmit},
		DurationEstimate: "3-5 business days",
		SuccessCriterion: "payer returns a coverage determination",
	})
	stepNum++

	if len(payerSequence) > 1 {
		secondary := payerSequence[1]
		secondarySubmit := stepNum
		steps = append(steps, domain.StrategyStep{
			StepNumber:       stepNum,
			ActionType:       "submit_pa",
			TargetPayer:      secondary,
			Description:      fmt.Sprintf("Submit prior authorization request to %s.", secondary),
			Dependencies:     []int{primaryCheck},
			DurationEstimate: "1-2 business days",
			SuccessCriterion: "payer acknowledges receipt with a reference number",
		})
		stepNum++

		secondaryCheck := stepNum
		steps = append(steps, domain.StrategyStep{
			StepNumber:       stepNum,
			ActionType:       "check_status",
			TargetPayer:      secondary,
			Description:      fmt.Sprintf("Check %s submission status.", secondary),
			Dependencies:     []int{secondarySubmit},
			DurationEstimate: "3-5 business days",
			SuccessCriterion: "payer returns a coverage determination",
		})
		stepNum++

		steps = append(steps, domain.StrategyStep{
			StepNumber:       stepNum,
			ActionType:       "coordinate_benefits",
			TargetPayer:      secondary,
			Description:      "Coordinate benefits between primary and secondary payer determinations.",
			Dependencies:     []int{secondaryCheck},
			DurationEstimate: "2-3 business days",
			SuccessCriterion: "coordination-of-benefits record reconciled",
		})
	}

	return steps
}

func firstOrEmpty(seq []string) string {
	if len(seq) == 0 {
		return ""
	}
	return seq[0]
}
