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

// Package casestore implements the Case Store (C9): versioned Case
// persistence with a full CaseStateSnapshot written on every mutation
// (§4.9). The Case Store owns Case/PayerState/snapshot rows; package
// audit owns DecisionEvent rows — the two are deliberately separate
// stores, mirroring how the teacher splits llm.Storage (provider config)
// from agent.DecisionChainTracker (audit rows).
package casestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"priorauth/platform/internal/domain"
)

// ErrOptimisticLockFailed is returned by Update when expectedVersion does
// not match the case's current stored version (§4.9, invariant 1).
var ErrOptimisticLockFailed = errors.New("casestore: optimistic lock failed")

// ErrCaseNotFound is returned when the requested case or snapshot does
// not exist.
var ErrCaseNotFound = errors.New("casestore: case not found")

// Store is the persistence seam a Postgres- or memory-backed
// implementation satisfies.
type Store interface {
	// Get returns the current state of a case.
	Get(ctx context.Context, caseID string) (*domain.Case, error)

	// Create inserts a brand-new case at version 1 and writes its initial
	// snapshot in the same transaction.
	Create(ctx context.Context, c domain.Case, changedBy string) error

	// CompareAndSwap atomically verifies the stored version equals
	// expectedVersion, persists next (whose Version must be
	// expectedVersion+1), and appends a snapshot — all as one unit, so a
	// reader never observes a version bump without its snapshot or vice
	// versa. Returns ErrOptimisticLockFailed on a version mismatch.
	CompareAndSwap(ctx context.Context, expectedVersion int, next domain.Case, changeDescription, changedBy string) error

	// Snapshot returns the stored snapshot for a case at a specific
	// version.
	Snapshot(ctx context.Context, caseID string, version int) (*domain.CaseStateSnapshot, error)

	// Snapshots returns every snapshot for a case in ascending version
	// order.
	Snapshots(ctx context.Context, caseID string) ([]domain.CaseStateSnapshot, error)
}

// CaseStore is the package's primary API, wrapping a Store with the
// read-modify-write and reset semantics §4.9 specifies.
type CaseStore struct {
	store Store
	now   func() time.Time
}

// New builds a CaseStore. now defaults to time.Now when nil; tests can
// supply a deterministic clock.
func New(store Store, now func() time.Time) *CaseStore {
	if now == nil {
		now = time.Now
	}
	return &CaseStore{store: store, now: now}
}

// Create persists a brand-new case at version 1 (§4.9).
func (cs *CaseStore) Create(ctx context.Context, c domain.Case, changedBy string) error {
	return cs.store.Create(ctx, c, changedBy)
}

// Get returns a case's current state.
func (cs *CaseStore) Get(ctx context.Context, caseID string) (*domain.Case, error) {
	return cs.store.Get(ctx, caseID)
}

// UpdateFunc mutates a copy of the case in place; Update supplies the
// current state and persists whatever UpdateFunc leaves behind.
type UpdateFunc func(c *domain.Case)

// Update applies mutate to the case's current state under optimistic
// locking: it loads the case, confirms its version equals
// expectedVersion (when expectedVersion > 0), applies mutate, bumps
// Version by exactly 1, stamps UpdatedAt, and persists atomically along
// with a full-state snapshot (§4.9, invariant 1). expectedVersion <= 0
// skips the version check (last-writer-wins), for callers that already
// hold their own serialization.
func (cs *CaseStore) Update(ctx context.Context, caseID string, expectedVersion int, changeDescription, changedBy string, mutate UpdateFunc) (*domain.Case, error) {
	current, err := cs.store.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrCaseNotFound
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return nil, ErrOptimisticLockFailed
	}

	next := *current
	next.PayerStates = cloneStates(current.PayerStates)
	next.CoverageAssessments = cloneAssessments(current.CoverageAssessments)
	mutate(&next)

	next.Version = current.Version + 1
	next.UpdatedAt = cs.now()

	if err := cs.store.CompareAndSwap(ctx, current.Version, next, changeDescription, changedBy); err != nil {
		return nil, err
	}
	return &next, nil
}

// Reset reverts a case to an intake-equivalent state — patient and
// medication data preserved, everything else cleared. The version keeps
// counting (current version + 1) and the reset is recorded as one more
// snapshot, like any other mutation. The audit chain is untouched here;
// callers that need "fresh audit chain start" semantics log a dedicated
// reset event through package audit, since DecisionEvent rows are not
// this package's responsibility (§4.9).
func (cs *CaseStore) Reset(ctx context.Context, caseID, changedBy string) (*domain.Case, error) {
	current, err := cs.store.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrCaseNotFound
	}

	reset := domain.NewCase(current.CaseID, current.Patient, current.MedicationRequest, cs.now())
	reset.Version = current.Version + 1

	if err := cs.store.CompareAndSwap(ctx, current.Version, *reset, "case reset to intake-equivalent state", changedBy); err != nil {
		return nil, err
	}
	return reset, nil
}

// GetSnapshot returns a case's state as of a specific version.
func (cs *CaseStore) GetSnapshot(ctx context.Context, caseID string, version int) (*domain.CaseStateSnapshot, error) {
	return cs.store.Snapshot(ctx, caseID, version)
}

// GetSnapshots returns all of a case's snapshots, oldest first.
func (cs *CaseStore) GetSnapshots(ctx context.Context, caseID string) ([]domain.CaseStateSnapshot, error) {
	return cs.store.Snapshots(ctx, caseID)
}

// NewSnapshot builds a CaseStateSnapshot row for c, used by Store
// implementations when persisting a mutation.
func NewSnapshot(c domain.Case, changeDescription, changedBy string, now time.Time) domain.CaseStateSnapshot {
	return domain.CaseStateSnapshot{
		ID:                uuid.NewString(),
		CaseID:            c.CaseID,
		Version:           c.Version,
		CreatedAt:         now,
		StateData:         c,
		ChangeDescription: changeDescription,
		ChangedBy:         changedBy,
	}
}

func cloneStates(m map[string]domain.PayerState) map[string]domain.PayerState {
	out := make(map[string]domain.PayerState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAssessments(m map[string]domain.CoverageAssessment) map[string]domain.CoverageAssessment {
	out := make(map[string]domain.CoverageAssessment, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
