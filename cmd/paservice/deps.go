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

	"priorauth/platform/internal/domain"
)

// staticRubrics satisfies reasoner.RubricRepository with no per-payer
// hints configured; the Policy Reasoner treats an empty rubric as "no
// payer-specific guidance available" rather than an error (§4.4 step 3).
type staticRubrics struct{}

func (staticRubrics) Rubric(ctx context.Context, payer string) (map[string]string, error) {
	return map[string]string{}, nil
}

// emptyHistoricalCaseRepository satisfies intelligence.HistoricalCaseRepository
// when no database is configured; Strategic Intelligence degrades to
// "no similar cases found" rather than failing (§4.7).
type emptyHistoricalCaseRepository struct{}

func (emptyHistoricalCaseRepository) ByMedication(ctx context.Context, medication string, aliases []string) ([]domain.HistoricalCase, error) {
	return nil, nil
}
