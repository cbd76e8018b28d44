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

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/strategy"
)

// handleStrategyGeneration builds the single SEQUENTIAL_PRIMARY_FIRST
// candidate (invariant 6 forbids parallel submission, so there is never
// more than one template to score), scores it against the case's
// coverage assessments, and ranks it (trivially, as the sole candidate)
// per §4.6.
func handleStrategyGeneration(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	payerSequence := targetPayerSequence(c)

	candidate := strategy.Generate(payerSequence)
	strategies := map[string]*domain.Strategy{candidate.StrategyID: candidate}

	weights := domain.DefaultScoringWeights()
	score := strategy.Score(candidate, c.CoverageAssessments, weights)
	scores := strategy.Rank([]domain.StrategyScore{score}, strategies)

	return "generated and scored candidate strategy", func(next *domain.Case) {
		next.AvailableStrategies = []domain.Strategy{*candidate}
		next.StrategyScores = scores
		next.Stage = domain.StageStrategySelection
	}, nil
}

// handleStrategySelection picks the top-ranked strategy — rank 1, which
// Rank always marks IsRecommended — and records its rationale on the
// case.
func handleStrategySelection(ctx context.Context, o *Orchestrator, c *domain.Case) (string, casestore.UpdateFunc, error) {
	if len(c.StrategyScores) == 0 {
		return "", nil, fmt.Errorf("orchestrator: no strategy scores available for selection")
	}

	var selected *domain.StrategyScore
	for i := range c.StrategyScores {
		if c.StrategyScores[i].IsRecommended {
			selected = &c.StrategyScores[i]
			break
		}
	}
	if selected == nil {
		selected = &c.StrategyScores[0]
	}

	var rationale string
	for _, s := range c.AvailableStrategies {
		if s.StrategyID == selected.StrategyID {
			rationale = s.Rationale
			break
		}
	}

	return fmt.Sprintf("selected strategy %s (rank %d)", selected.StrategyID, selected.Rank), func(next *domain.Case) {
		next.SelectedStrategyID = selected.StrategyID
		next.StrategyRationale = rationale
		next.Stage = domain.StageActionCoordination
	}, nil
}
