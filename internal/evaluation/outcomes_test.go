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

package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryOutcomeStore_RecordAssignsIDAndTimestamp(t *testing.T) {
	store := NewInMemoryOutcomeStore()
	store.Record(PredictionOutcome{
		CaseID:              "case-1",
		PredictedLikelihood: 0.8,
		PredictedStatus:     "covered",
		PayerName:           "Aetna",
		MedicationName:      "Humira",
	})

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].ID)
	assert.False(t, rows[0].CreatedAt.IsZero())
	assert.Equal(t, "case-1", rows[0].CaseID)
	assert.Equal(t, "", rows[0].ActualOutcome)
}

func TestInMemoryOutcomeStore_ResolveAmendsExistingRow(t *testing.T) {
	store := NewInMemoryOutcomeStore()
	store.Record(PredictionOutcome{CaseID: "case-1", PredictedStatus: "covered"})

	decidedAt := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	effective := true
	store.Resolve("case-1", "approved", decidedAt, "peer_to_peer", &effective)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "approved", rows[0].ActualOutcome)
	require.NotNil(t, rows[0].ActualDecisionDate)
	assert.Equal(t, decidedAt, *rows[0].ActualDecisionDate)
	assert.Equal(t, "peer_to_peer", rows[0].StrategyUsed)
	require.NotNil(t, rows[0].WasStrategyEffective)
	assert.True(t, *rows[0].WasStrategyEffective)
}

func TestInMemoryOutcomeStore_ResolveUnknownCaseIsNoop(t *testing.T) {
	store := NewInMemoryOutcomeStore()
	store.Resolve("missing-case", "approved", time.Now(), "", nil)
	assert.Empty(t, store.Rows())
}

func TestInMemoryOutcomeStore_ResolveAmendsEveryPayerRowForCase(t *testing.T) {
	store := NewInMemoryOutcomeStore()
	store.Record(PredictionOutcome{CaseID: "case-1", PayerName: "Aetna", PredictedStatus: "covered"})
	store.Record(PredictionOutcome{CaseID: "case-1", PayerName: "Cigna", PredictedStatus: "pend"})
	store.Record(PredictionOutcome{CaseID: "case-2", PayerName: "Aetna", PredictedStatus: "covered"})

	store.Resolve("case-1", "approved", time.Now(), "", nil)

	for _, row := range store.Rows() {
		if row.CaseID == "case-1" {
			assert.Equal(t, "approved", row.ActualOutcome)
		} else {
			assert.Empty(t, row.ActualOutcome)
		}
	}
}

func TestInMemoryOutcomeStore_RecordPreservesInsertionOrder(t *testing.T) {
	store := NewInMemoryOutcomeStore()
	store.Record(PredictionOutcome{CaseID: "case-2"})
	store.Record(PredictionOutcome{CaseID: "case-1"})

	rows := store.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "case-2", rows[0].CaseID)
	assert.Equal(t, "case-1", rows[1].CaseID)
}
