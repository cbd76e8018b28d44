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

// Package evaluation implements accuracy analytics: persisting
// prediction_outcomes rows (§6.1) and, separately, running the
// coverage-assessment golden-dataset evaluation grounded on the
// original backend/evaluation/eval_runner.py.
package evaluation

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"priorauth/platform/internal/logging"
)

// PredictionOutcome is one prediction_outcomes record (§6.1): a
// coverage-assessment prediction paired, once known, with what actually
// happened to the case — the feed for measuring real-world accuracy
// rather than just golden-dataset accuracy.
type PredictionOutcome struct {
	ID                   string
	CaseID               string
	PredictedLikelihood  float64
	PredictedStatus      string
	PayerName            string
	MedicationName       string
	ActualOutcome        string
	ActualDecisionDate   *time.Time
	StrategyUsed         string
	WasStrategyEffective *bool
	CreatedAt            time.Time
}

// OutcomeStore persists and later amends prediction_outcomes rows.
// Recording the prediction happens at assessment time; recording the
// actual outcome happens later, out of band, once the payer decides —
// so Record and Resolve are separate operations rather than one
// write-once insert.
type OutcomeStore interface {
	Record(o PredictionOutcome)
	Resolve(caseID string, actualOutcome string, decisionDate time.Time, strategyUsed string, wasEffective *bool)
}

// PostgresOutcomeStore writes prediction_outcomes rows to Postgres,
// mirroring llm.PostgresUsageRecorder's best-effort, errors-logged-not-
// propagated recording style (§4.2.3 propagation policy applies equally
// here: accuracy bookkeeping must never fail the caller's request).
type PostgresOutcomeStore struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresOutcomeStore(db *sql.DB) *PostgresOutcomeStore {
	return &PostgresOutcomeStore{db: db, logger: logging.New("evaluation.outcomes")}
}

func (s *PostgresOutcomeStore) Record(o PredictionOutcome) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO prediction_outcomes (
			id, case_id, predicted_likelihood, predicted_status, payer_name,
			medication_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.CaseID, o.PredictedLikelihood, o.PredictedStatus, o.PayerName, o.MedicationName, o.CreatedAt)
	if err != nil {
		s.logger.ErrorWithCause(o.CaseID, "", "failed to record prediction outcome", err, nil)
	}
}

func (s *PostgresOutcomeStore) Resolve(caseID string, actualOutcome string, decisionDate time.Time, strategyUsed string, wasEffective *bool) {
	_, err := s.db.Exec(`
		UPDATE prediction_outcomes
		SET actual_outcome = $2, actual_decision_date = $3, strategy_used = $4, was_strategy_effective = $5
		WHERE case_id = $1
	`, caseID, actualOutcome, decisionDate, nullableString(strategyUsed), wasEffective)
	if err != nil {
		s.logger.ErrorWithCause(caseID, "", "failed to resolve prediction outcome", err, nil)
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InMemoryOutcomeStore buffers rows for tests and Postgres-less
// environments, matching llm.InMemoryUsageRecorder's shape. A case
// carries one row per payer (mirroring the Postgres table's shape, which
// has no uniqueness constraint on case_id alone), so rows are keyed by
// their own ID and Resolve amends every row sharing a case_id, matching
// PostgresOutcomeStore.Resolve's "WHERE case_id = $1" multi-row update.
type InMemoryOutcomeStore struct {
	mu   sync.Mutex
	rows map[string]PredictionOutcome
	seq  []string
}

func NewInMemoryOutcomeStore() *InMemoryOutcomeStore {
	return &InMemoryOutcomeStore{rows: make(map[string]PredictionOutcome)}
}

func (s *InMemoryOutcomeStore) Record(o PredictionOutcome) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = append(s.seq, o.ID)
	s.rows[o.ID] = o
}

func (s *InMemoryOutcomeStore) Resolve(caseID string, actualOutcome string, decisionDate time.Time, strategyUsed string, wasEffective *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.CaseID != caseID {
			continue
		}
		row.ActualOutcome = actualOutcome
		row.ActualDecisionDate = &decisionDate
		row.StrategyUsed = strategyUsed
		row.WasStrategyEffective = wasEffective
		s.rows[id] = row
	}
}

// Rows returns the recorded outcomes in insertion order.
func (s *InMemoryOutcomeStore) Rows() []PredictionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PredictionOutcome, 0, len(s.seq))
	for _, id := range s.seq {
		out = append(out, s.rows[id])
	}
	return out
}
