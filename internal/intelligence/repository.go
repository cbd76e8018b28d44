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

package intelligence

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"priorauth/platform/internal/domain"
)

// HistoricalCaseRepository is the corpus-access seam Strategic
// Intelligence depends on, mirroring the teacher's narrow-interface
// habit (e.g. Storage in orchestrator/llm/storage.go) so tests substitute
// an in-memory fake instead of a live database.
type HistoricalCaseRepository interface {
	// ByMedication returns historical cases whose medication matches
	// medication (or one of its aliases) case-insensitively.
	ByMedication(ctx context.Context, medication string, aliases []string) ([]domain.HistoricalCase, error)
}

// PostgresHistoricalCaseRepository is the Postgres-backed
// HistoricalCaseRepository, grounded on the teacher's raw database/sql
// query/scan style in orchestrator/llm/storage.go (no ORM).
type PostgresHistoricalCaseRepository struct {
	db *sql.DB
}

func NewPostgresHistoricalCaseRepository(db *sql.DB) *PostgresHistoricalCaseRepository {
	return &PostgresHistoricalCaseRepository{db: db}
}

func (r *PostgresHistoricalCaseRepository) ByMedication(ctx context.Context, medication string, aliases []string) ([]domain.HistoricalCase, error) {
	names := append([]string{medication}, aliases...)

	rows, err := r.db.QueryContext(ctx, `
		SELECT case_id, medication, diagnosis_family, payer, severity_classification,
		       cdai, hbi, prior_treatments, outcome, days_to_decision,
		       documentation_present, documentation_missing, submitted_weekday
		FROM historical_cases
		WHERE lower(medication) = ANY($1)
	`, pq.Array(lowerAll(names)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.HistoricalCase
	for rows.Next() {
		var c domain.HistoricalCase
		var cdai, hbi sql.NullFloat64
		var priorTreatments, docPresent, docMissing pq.StringArray
		if err := rows.Scan(
			&c.CaseID, &c.Medication, &c.DiagnosisFamily, &c.Payer, &c.Severity.Classification,
			&cdai, &hbi, &priorTreatments, &c.Outcome, &c.DaysToDecision,
			&docPresent, &docMissing, &c.SubmittedWeekday,
		); err != nil {
			return nil, err
		}
		if cdai.Valid {
			v := cdai.Float64
			c.Severity.CDAI = &v
		}
		if hbi.Valid {
			v := hbi.Float64
			c.Severity.HBI = &v
		}
		c.PriorTreatments = []string(priorTreatments)
		c.DocumentationPresent = []string(docPresent)
		c.DocumentationMissing = []string(docMissing)
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}
