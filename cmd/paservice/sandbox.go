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

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"priorauth/platform/internal/domain"
)

// sandboxPayerConnector is a deterministic stand-in for a real payer API
// or clearinghouse integration, which spec.md's Non-goals place outside
// this repo's scope. It satisfies both orchestrator.PayerSubmitter and
// orchestrator.PayerStatusPoller so cmd/paservice can exercise
// ACTION_COORDINATION and MONITORING without a live payer connection,
// mirroring the teacher's practice of keeping node_enforcement's
// heartbeat/monitor pair in-process rather than calling out to hardware.
//
// Every submission is accepted and, after one poll, reported approved —
// this is intentionally the simplest behavior that lets a full case
// reach COMPLETED; it is not a coverage simulator.
type sandboxPayerConnector struct {
	mu   sync.Mutex
	seen map[string]int
}

func newSandboxPayerConnector() *sandboxPayerConnector {
	return &sandboxPayerConnector{seen: make(map[string]int)}
}

func (s *sandboxPayerConnector) Submit(ctx context.Context, payerName string, c *domain.Case) (string, error) {
	return fmt.Sprintf("SANDBOX-%s-%s", payerName, c.CaseID), nil
}

func (s *sandboxPayerConnector) PollStatus(ctx context.Context, payerName, referenceNumber string) (domain.PayerSubmissionStatus, string, error) {
	s.mu.Lock()
	s.seen[referenceNumber]++
	polls := s.seen[referenceNumber]
	s.mu.Unlock()

	if polls < 2 {
		return domain.PayerUnderReview, "sandbox connector: under review", nil
	}
	return domain.PayerApproved, "sandbox connector: approved on poll " + fmt.Sprint(polls) + " at " + time.Now().UTC().Format(time.RFC3339), nil
}
