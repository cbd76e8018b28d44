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

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
)

// handleRecovery files an appeal for every denied-but-appealable payer
// and returns to MONITORING to await the appeal decision (§4.10
// "RECOVERY ──► MONITORING").
func handleRecovery(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	now := o.now()
	states := make(map[string]domain.PayerState, len(c.PayerStates))
	for payer, state := range c.PayerStates {
		if state.Status == domain.PayerDenied && state.Appealable(now) {
			state.Status = domain.PayerAppealSubmitted
			state.LastUpdatedAt = &now
		}
		states[payer] = state
	}

	return "filed appeal for denied-but-appealable payers", func(next *domain.Case) {
		next.PayerStates = states
		next.Stage = domain.StageMonitoring
		next.StaleIterations = 0
	}, nil
}
