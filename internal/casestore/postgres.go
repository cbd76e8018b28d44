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

package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"priorauth/platform/internal/domain"
)

// PostgresStore persists cases and their snapshot history, following the
// teacher's raw database/sql query style (orchestrator/llm/storage.go).
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore builds a PostgresStore over db.
func NewPostgresStore(db *sql.DB, now func() time.Time) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now}
}

func (s *PostgresStore) Get(ctx context.Context, caseID string) (*domain.Case, error) {
	const query = `SELECT state_data FROM cases WHERE case_id = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, caseID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("casestore: get case: %w", err)
	}

	var c domain.Case
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("casestore: decode case: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) Create(ctx context.Context, c domain.Case, changedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("casestore: begin create: %w", err)
	}
	defer tx.Rollback()

	stateJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("casestore: encode case: %w", err)
	}

	const insertCase = `
		INSERT INTO cases (case_id, version, stage, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertCase, c.CaseID, c.Version, string(c.Stage), stateJSON, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("casestore: insert case: %w", err)
	}

	if err := insertSnapshot(ctx, tx, NewSnapshot(c, "case created", changedBy, s.now())); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, expectedVersion int, next domain.Case, changeDescription, changedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("casestore: begin update: %w", err)
	}
	defer tx.Rollback()

	stateJSON, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("casestore: encode case: %w", err)
	}

	const updateCase = `
		UPDATE cases
		SET version = $1, stage = $2, state_data = $3, updated_at = $4
		WHERE case_id = $5 AND version = $6
	`
	result, err := tx.ExecContext(ctx, updateCase, next.Version, string(next.Stage), stateJSON, next.UpdatedAt, next.CaseID, expectedVersion)
	if err != nil {
		return fmt.Errorf("casestore: update case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("casestore: rows affected: %w", err)
	}
	if rows == 0 {
		exists, checkErr := caseExists(ctx, tx, next.CaseID)
		if checkErr != nil {
			return checkErr
		}
		if !exists {
			return ErrCaseNotFound
		}
		return ErrOptimisticLockFailed
	}

	if err := insertSnapshot(ctx, tx, NewSnapshot(next, changeDescription, changedBy, s.now())); err != nil {
		return err
	}

	return tx.Commit()
}

func caseExists(ctx context.Context, tx *sql.Tx, caseID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE case_id = $1)`, caseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("casestore: check case exists: %w", err)
	}
	return exists, nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, snap domain.CaseStateSnapshot) error {
	stateJSON, err := json.Marshal(snap.StateData)
	if err != nil {
		return fmt.Errorf("casestore: encode snapshot: %w", err)
	}

	const insertSnap = `
		INSERT INTO case_snapshots (id, case_id, version, created_at, state_data, change_description, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, insertSnap, snap.ID, snap.CaseID, snap.Version, snap.CreatedAt, stateJSON, snap.ChangeDescription, snap.ChangedBy); err != nil {
		return fmt.Errorf("casestore: insert snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Snapshot(ctx context.Context, caseID string, version int) (*domain.CaseStateSnapshot, error) {
	const query = `
		SELECT id, case_id, version, created_at, state_data, change_description, changed_by
		FROM case_snapshots
		WHERE case_id = $1 AND version = $2
	`
	return scanSnapshot(s.db.QueryRowContext(ctx, query, caseID, version))
}

func (s *PostgresStore) Snapshots(ctx context.Context, caseID string) ([]domain.CaseStateSnapshot, error) {
	const query = `
		SELECT id, case_id, version, created_at, state_data, change_description, changed_by
		FROM case_snapshots
		WHERE case_id = $1
		ORDER BY version ASC
	`
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("casestore: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.CaseStateSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

type snapshotScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row snapshotScanner) (*domain.CaseStateSnapshot, error) {
	var (
		snap      domain.CaseStateSnapshot
		stateJSON []byte
	)
	err := row.Scan(&snap.ID, &snap.CaseID, &snap.Version, &snap.CreatedAt, &stateJSON, &snap.ChangeDescription, &snap.ChangedBy)
	if err == sql.ErrNoRows {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("casestore: scan snapshot: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &snap.StateData); err != nil {
		return nil, fmt.Errorf("casestore: decode snapshot state: %w", err)
	}
	return &snap, nil
}
