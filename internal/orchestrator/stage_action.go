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

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
)

// handleActionCoordination executes every submit_pa step of the
// selected strategy in order (never in parallel — invariant 6):
// submitting to the primary payer first, then any secondary. A failure
// submitting to the primary payer aborts the stage; a failure on a
// secondary is logged, leaves that payer's state unchanged (still
// NOT_SUBMITTED), and does not block the primary's submission from
// standing (§8.3 "critical failures on the primary payer abort the stage
// and move the case into an error state").
func handleActionCoordination(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	selected := selectedStrategy(c)
	if selected == nil {
		return "", nil, fmt.Errorf("orchestrator: no selected strategy for action coordination")
	}

	now := o.now()
	states := make(map[string]domain.PayerState, len(selected.PayerSequence))
	var pending []string

	for i, payer := range selected.PayerSequence {
		select {
		case <-ctx.Done():
			return "", nil, ErrCancelled
		default:
		}

		state := c.PayerStates[payer]
		if o.submitter != nil {
			ref, err := o.submitter.Submit(ctx, payer, c)
			if err != nil {
				if i == 0 {
					return "", nil, fmt.Errorf("orchestrator: submit to primary payer %s: %w", payer, err)
				}
				o.logger.ErrorWithCause(c.CaseID, c.CaseID, "secondary payer submission failed, continuing", err, map[string]any{"payer": payer})
				states[payer] = state
				continue
			}
			state.ReferenceNumber = ref
		}
		state.Status = domain.PayerSubmitted
		state.SubmittedAt = &now
		state.LastUpdatedAt = &now
		states[payer] = state
		pending = append(pending, fmt.Sprintf("check_status:%s", payer))
	}

	return "submitted PA requests per strategy step order", func(next *domain.Case) {
		for payer, state := range states {
			next.PayerStates[payer] = state
		}
		next.PendingActions = pending
		next.Stage = domain.StageMonitoring
	}, nil
}

func selectedStrategy(c *domain.Case) *domain.Strategy {
	for i := range c.AvailableStrategies {
		if c.AvailableStrategies[i].StrategyID == c.SelectedStrategyID {
			return &c.AvailableStrategies[i]
		}
	}
	return nil
}
