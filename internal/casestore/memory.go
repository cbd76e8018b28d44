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
	"sort"
	"sync"
	"time"

	"priorauth/platform/internal/domain"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments, following the teacher's pattern of pairing every Postgres
// storage type with a mutex-guarded in-memory twin
// (orchestrator/workflow_engine.go's InMemoryWorkflowStorage).
type MemoryStore struct {
	mu        sync.Mutex
	cases     map[string]domain.Case
	snapshots map[string][]domain.CaseStateSnapshot
	now       func() time.Time
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		cases:     make(map[string]domain.Case),
		snapshots: make(map[string][]domain.CaseStateSnapshot),
		now:       now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, caseID string) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) Create(ctx context.Context, c domain.Case, changedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.CaseID] = c
	m.snapshots[c.CaseID] = []domain.CaseStateSnapshot{
		NewSnapshot(c, "case created", changedBy, m.now()),
	}
	return nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, expectedVersion int, next domain.Case, changeDescription, changedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.cases[next.CaseID]
	if !ok {
		return ErrCaseNotFound
	}
	if current.Version != expectedVersion {
		return ErrOptimisticLockFailed
	}

	m.cases[next.CaseID] = next
	m.snapshots[next.CaseID] = append(m.snapshots[next.CaseID], NewSnapshot(next, changeDescription, changedBy, m.now()))
	return nil
}

func (m *MemoryStore) Snapshot(ctx context.Context, caseID string, version int) (*domain.CaseStateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots[caseID] {
		if s.Version == version {
			return &s, nil
		}
	}
	return nil, ErrCaseNotFound
}

func (m *MemoryStore) Snapshots(ctx context.Context, caseID string) ([]domain.CaseStateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CaseStateSnapshot, len(m.snapshots[caseID]))
	copy(out, m.snapshots[caseID])
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
