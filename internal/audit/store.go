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

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"priorauth/platform/internal/domain"
)

// MemoryStore is an in-memory Store, adapted from the teacher's
// memoryStore map mode (agent/decision_chain.go) for tests and for
// environments without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]domain.DecisionEvent
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]domain.DecisionEvent)}
}

func (s *MemoryStore) Latest(ctx context.Context, caseID string) (*domain.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.events[caseID]
	if len(trail) == 0 {
		return nil, nil
	}
	latest := trail[len(trail)-1]
	return &latest, nil
}

func (s *MemoryStore) Append(ctx context.Context, event domain.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CaseID] = append(s.events[event.CaseID], event)
	return nil
}

func (s *MemoryStore) Trail(ctx context.Context, caseID string) ([]domain.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := make([]domain.DecisionEvent, len(s.events[caseID]))
	copy(trail, s.events[caseID])
	return trail, nil
}

// PostgresStore persists events to the decision_events table, following
// the teacher's raw database/sql query style (orchestrator/llm/storage.go,
// agent/decision_chain.go's recordToDB/GetChain).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a PostgresStore over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Latest(ctx context.Context, caseID string) (*domain.DecisionEvent, error) {
	const query = `
		SELECT event_id, case_id, event_type, timestamp, decision_made, reasoning,
		       stage, actor, input_data_hash, input_data_summary, alternatives,
		       signature, previous_event_id, previous_signature
		FROM decision_events
		WHERE case_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, caseID)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: fetch latest event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) Append(ctx context.Context, event domain.DecisionEvent) error {
	const query = `
		INSERT INTO decision_events (
			event_id, case_id, event_type, timestamp, decision_made, reasoning,
			stage, actor, input_data_hash, input_data_summary, alternatives,
			signature, previous_event_id, previous_signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14)
	`
	summary, err := json.Marshal(event.InputDataSummary)
	if err != nil {
		summary = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, query,
		event.EventID, event.CaseID, event.EventType, event.Timestamp, event.DecisionMade, event.Reasoning,
		string(event.Stage), event.Actor, event.InputDataHash, summary, pq.Array(event.Alternatives),
		event.Signature, event.PreviousEventID, event.PreviousSignature,
	)
	if err != nil {
		return fmt.Errorf("audit: append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Trail(ctx context.Context, caseID string) ([]domain.DecisionEvent, error) {
	const query = `
		SELECT event_id, case_id, event_type, timestamp, decision_made, reasoning,
		       stage, actor, input_data_hash, input_data_summary, alternatives,
		       signature, previous_event_id, previous_signature
		FROM decision_events
		WHERE case_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("audit: query trail: %w", err)
	}
	defer rows.Close()

	var trail []domain.DecisionEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		trail = append(trail, *event)
	}
	return trail, rows.Err()
}

// rowScanner abstracts *sql.Row/*sql.Rows so scanEvent serves both Latest
// and Trail.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.DecisionEvent, error) {
	var (
		event      domain.DecisionEvent
		stage      string
		summary    []byte
		alts       pq.StringArray
		previousID sql.NullString
	)

	if err := row.Scan(
		&event.EventID, &event.CaseID, &event.EventType, &event.Timestamp, &event.DecisionMade, &event.Reasoning,
		&stage, &event.Actor, &event.InputDataHash, &summary, &alts,
		&event.Signature, &previousID, &event.PreviousSignature,
	); err != nil {
		return nil, err
	}

	event.Stage = domain.Stage(stage)
	event.Alternatives = []string(alts)
	event.PreviousEventID = previousID.String
	if len(summary) > 0 {
		_ = json.Unmarshal(summary, &event.InputDataSummary)
	}
	return &event, nil
}
