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

// handleIntake validates that a case has the minimum fields to proceed
// and advances to POLICY_ANALYSIS. Input validation itself happens
// before NewCase is constructed (domain.NewCase's doc comment notes
// ValidationError is the caller's responsibility), so this handler's
// role is purely the stage transition.
func handleIntake(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	return "intake validated, advancing to policy analysis", func(next *domain.Case) {
		next.Stage = domain.StagePolicyAnalysis
	}, nil
}
