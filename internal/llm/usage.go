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

package llm

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"priorauth/platform/internal/logging"
)

// UsageRow is one llm_usage record (§6.1).
type UsageRow struct {
	ID            string
	CaseID        string
	CorrelationID string
	Provider      string
	Model         string
	TaskCategory  string
	InputTokens   int
	OutputTokens  int
	CostUSD       float64
	LatencyMs     int64
	CreatedAt     time.Time
}

// UsageRecorder persists llm_usage rows. Recording is best-effort and
// must never fail the parent Gateway call (§4.2.3, §7 propagation
// policy) — both implementations swallow their own errors after logging.
type UsageRecorder interface {
	Record(row UsageRow)
}

// PostgresUsageRecorder writes usage rows to Postgres, mirroring the
// teacher's common/usage.UsageRecorder (single INSERT per event, errors
// logged not propagated).
type PostgresUsageRecorder struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresUsageRecorder(db *sql.DB) *PostgresUsageRecorder {
	return &PostgresUsageRecorder{db: db, logger: logging.New("llm.usage")}
}

func (r *PostgresUsageRecorder) Record(row UsageRow) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO llm_usage (
			id, case_id, correlation_id, provider, model, task_category,
			input_tokens, output_tokens, cost_usd, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, row.ID, nullableString(row.CaseID), row.CorrelationID, row.Provider, row.Model,
		row.TaskCategory, row.InputTokens, row.OutputTokens, row.CostUSD, row.LatencyMs, row.CreatedAt)
	if err != nil {
		r.logger.ErrorWithCause(row.CaseID, row.CorrelationID, "failed to record llm usage", err, nil)
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InMemoryUsageRecorder buffers rows for tests and for environments
// without a Postgres connection.
type InMemoryUsageRecorder struct {
	mu   sync.Mutex
	rows []UsageRow
}

func NewInMemoryUsageRecorder() *InMemoryUsageRecorder {
	return &InMemoryUsageRecorder{}
}

func (r *InMemoryUsageRecorder) Record(row UsageRow) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

func (r *InMemoryUsageRecorder) Rows() []UsageRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UsageRow, len(r.rows))
	copy(out, r.rows)
	return out
}
