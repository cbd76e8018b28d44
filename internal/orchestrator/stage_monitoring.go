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
	"time"

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
)

// monitoredStatuses are the payer-submission states the monitoring loop
// actively polls (§4.10 "Monitoring loop"). appeal_submitted is this
// spec's analogue of the spec prose's "appeal_pending" — the payer
// states vocabulary has no separate appeal_pending value.
var monitoredStatuses = map[domain.PayerSubmissionStatus]bool{
	domain.PayerSubmitted:       true,
	domain.PayerPendingInfo:     true,
	domain.PayerUnderReview:     true,
	domain.PayerAppealSubmitted: true,
}

const (
	monitoringStaleLimit = 2
	monitoringHardCap    = 10
)

// handleMonitoring polls every actively-monitored payer once, updates
// PayerStates, and either transitions per outcome or stays in MONITORING
// for another bounded pass (§4.10 "Monitoring loop").
func handleMonitoring(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	before := snapshotStatuses(c.PayerStates)
	now := o.now()

	states := make(map[string]domain.PayerState, len(c.PayerStates))
	for payer, state := range c.PayerStates {
		states[payer] = state
	}

	if o.poller != nil {
		for payer, state := range c.PayerStates {
			if !monitoredStatuses[state.Status] {
				continue
			}
			select {
			case <-ctx.Done():
				return "", nil, ErrCancelled
			default:
			}

			newStatus, details, err := o.poller.PollStatus(ctx, payer, state.ReferenceNumber)
			if err != nil {
				o.logger.ErrorWithCause(c.CaseID, c.CaseID, "poll payer status failed, retaining prior status", err, map[string]any{"payer": payer})
				continue
			}
			if isTerminalPayerStatus(newStatus) && newStatus != state.Status {
				o.outcomes.Resolve(c.CaseID, string(newStatus), now, "", nil)
			}
			state.Status = newStatus
			state.ResponseDetails = details
			state.LastUpdatedAt = &now
			states[payer] = state
		}
	}

	after := snapshotStatuses(states)
	unchanged := statusesEqual(before, after)

	outcome := monitoringOutcome(states, now)

	return "monitoring pass completed", func(next *domain.Case) {
		next.PayerStates = states
		next.MonitoringIterations++
		if unchanged {
			next.StaleIterations++
		} else {
			next.StaleIterations = 0
		}

		switch {
		case outcome == outcomeApproved:
			next.Stage = domain.StageCompleted
		case outcome == outcomeDeniedAppealable:
			next.Stage = domain.StageRecovery
		case outcome == outcomeDeniedFinal:
			next.Stage = domain.StageFailed
			next.ErrorMessage = "prior authorization denied by all payers with no appeal option remaining"
		case next.StaleIterations >= monitoringStaleLimit:
			next.Stage = domain.StageCompleted
			next.ErrorMessage = "monitoring stopped: payer statuses unchanged across consecutive polls, awaiting determinations"
		case next.MonitoringIterations >= monitoringHardCap:
			next.Stage = domain.StageCompleted
			next.ErrorMessage = "monitoring stopped: hard iteration cap reached, awaiting determinations"
		default:
			// stays in MONITORING for another bounded pass.
		}
	}, nil
}

const (
	outcomeApproved         = "approved"
	outcomeDeniedAppealable = "denied_appealable"
	outcomeDeniedFinal      = "denied_final"
	outcomePartialOrPending = "partial_pending"
)

// monitoringOutcome classifies the aggregate state of all payers
// (§4.10): every payer approved, any payer denied-but-appealable, all
// payers finally denied, or still partial/pending.
func monitoringOutcome(states map[string]domain.PayerState, now time.Time) string {
	approved, deniedAppealable, deniedFinal := 0, 0, 0
	for _, state := range states {
		switch state.Status {
		case domain.PayerApproved, domain.PayerAppealApproved:
			approved++
		case domain.PayerDenied, domain.PayerAppealDenied:
			if state.Appealable(now) {
				deniedAppealable++
			} else {
				deniedFinal++
			}
		}
	}

	switch {
	case approved == len(states):
		return outcomeApproved
	case deniedAppealable > 0:
		return outcomeDeniedAppealable
	case deniedFinal == len(states):
		return outcomeDeniedFinal
	default:
		return outcomePartialOrPending
	}
}

// isTerminalPayerStatus reports whether status is a payer's final word on
// a submission (approved/denied, including an appeal's own approval or
// denial) rather than an in-flight state — the point at which a
// prediction_outcomes row can be resolved against reality (§6.1).
func isTerminalPayerStatus(status domain.PayerSubmissionStatus) bool {
	switch status {
	case domain.PayerApproved, domain.PayerDenied, domain.PayerAppealApproved, domain.PayerAppealDenied:
		return true
	default:
		return false
	}
}

func snapshotStatuses(states map[string]domain.PayerState) map[string]domain.PayerSubmissionStatus {
	out := make(map[string]domain.PayerSubmissionStatus, len(states))
	for payer, state := range states {
		out[payer] = state.Status
	}
	return out
}

func statusesEqual(a, b map[string]domain.PayerSubmissionStatus) bool {
	if len(a) != len(b) {
		return false
	}
	for payer, status := range a {
		if b[payer] != status {
			return false
		}
	}
	return true
}
