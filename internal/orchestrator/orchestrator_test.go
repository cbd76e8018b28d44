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
	"context"
	"sync"
	"time"

	"priorauth/platform/internal/audit"
	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/intelligence"
	"priorauth/platform/internal/reasoner"
)

// fakeCaseStore is an in-memory CaseStore fake mirroring
// casestore.MemoryStore's semantics closely enough for orchestrator unit
// tests, without depending on package casestore's concrete store.
type fakeCaseStore struct {
	mu    sync.Mutex
	cases map[string]domain.Case
	now   func() time.Time
}

func newFakeCaseStore(now func() time.Time) *fakeCaseStore {
	return &fakeCaseStore{cases: make(map[string]domain.Case), now: now}
}

func (f *fakeCaseStore) Get(ctx context.Context, caseID string) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[caseID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCaseStore) Create(ctx context.Context, c domain.Case, changedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.CaseID] = c
	return nil
}

func (f *fakeCaseStore) Update(ctx context.Context, caseID string, expectedVersion int, changeDescription, changedBy string, mutate casestore.UpdateFunc) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[caseID]
	if !ok {
		return nil, casestore.ErrCaseNotFound
	}
	if c.Version != expectedVersion {
		return nil, casestore.ErrOptimisticLockFailed
	}

	payerStates := make(map[string]domain.PayerState, len(c.PayerStates))
	for k, v := range c.PayerStates {
		payerStates[k] = v
	}
	c.PayerStates = payerStates

	assessments := make(map[string]domain.CoverageAssessment, len(c.CoverageAssessments))
	for k, v := range c.CoverageAssessments {
		assessments[k] = v
	}
	c.CoverageAssessments = assessments

	mutate(&c)
	c.Version++
	c.UpdatedAt = f.now()
	f.cases[caseID] = c
	updated := c
	return &updated, nil
}

func (f *fakeCaseStore) Reset(ctx context.Context, caseID, changedBy string) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[caseID]
	if !ok {
		return nil, casestore.ErrCaseNotFound
	}
	reset := *domain.NewCase(caseID, c.Patient, c.MedicationRequest, f.now())
	reset.Version = c.Version + 1
	f.cases[caseID] = reset
	result := reset
	return &result, nil
}

// fakeAuditChain records LogEvent calls without any real signing.
type fakeAuditChain struct {
	mu     sync.Mutex
	events []audit.LogInput
}

func (f *fakeAuditChain) LogEvent(ctx context.Context, in audit.LogInput) (*domain.DecisionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, in)
	return &domain.DecisionEvent{CaseID: in.CaseID, EventType: in.EventType, Actor: in.Actor}, nil
}

func (f *fakeAuditChain) entries() []audit.LogInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audit.LogInput, len(f.events))
	copy(out, f.events)
	return out
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	CaseID    string
	EventType string
	Payload   map[string]any
}

func (f *fakePublisher) Publish(caseID, eventType string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{CaseID: caseID, EventType: eventType, Payload: payload})
}

func (f *fakePublisher) entries() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}

// fakePolicyLoader always returns a trivially satisfiable policy.
type fakePolicyLoader struct {
	policy *domain.DigitizedPolicy
}

func (f *fakePolicyLoader) Load(ctx context.Context, payer, medication string) (*domain.DigitizedPolicy, error) {
	if f.policy != nil {
		return f.policy, nil
	}
	return &domain.DigitizedPolicy{PayerName: payer, MedicationName: medication}, nil
}

func (f *fakePolicyLoader) LoadRawText(ctx context.Context, payer, medication string) (string, error) {
	return "policy text for " + payer, nil
}

// fakeReasoner returns a scripted assessment per payer, defaulting to a
// comfortably-covered assessment when none is scripted.
type fakeReasoner struct {
	mu          sync.Mutex
	byPayer     map[string]domain.CoverageAssessment
	refineCalls int
}

func (f *fakeReasoner) AssessCoverage(ctx context.Context, in reasoner.AssessInput) (*domain.CoverageAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byPayer[in.PayerName]; ok {
		out := a
		return &out, nil
	}
	return &domain.CoverageAssessment{
		CoverageStatus:     domain.CoverageCovered,
		ApprovalLikelihood: 0.9,
		Reasoning:          "criteria satisfied",
	}, nil
}

func (f *fakeReasoner) Refine(ctx context.Context, in reasoner.AssessInput, initial *domain.CoverageAssessment) *domain.CoverageAssessment {
	f.mu.Lock()
	f.refineCalls++
	f.mu.Unlock()
	return initial
}

// fakeIntelligence satisfies IntelligenceEngine without exercising
// package intelligence's real similarity search.
type fakeIntelligence struct {
	insights *domain.StrategicInsights
}

func (f *fakeIntelligence) Analyze(ctx context.Context, in intelligence.AnalyzeInput) (*domain.StrategicInsights, error) {
	if f.insights != nil {
		return f.insights, nil
	}
	return &domain.StrategicInsights{}, nil
}

// fakePoller returns a scripted status transition per payer.
type fakePoller struct {
	mu      sync.Mutex
	byPayer map[string]domain.PayerSubmissionStatus
	calls   int
}

func (f *fakePoller) PollStatus(ctx context.Context, payerName, referenceNumber string) (domain.PayerSubmissionStatus, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if s, ok := f.byPayer[payerName]; ok {
		return s, "polled status", nil
	}
	return domain.PayerUnderReview, "polled status", nil
}

// fakeSubmitter records submissions and can be scripted to fail for a
// given payer.
type fakeSubmitter struct {
	mu        sync.Mutex
	failFor   map[string]bool
	submitted []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, payerName string, c *domain.Case) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, payerName)
	if f.failFor[payerName] {
		return "", errSubmitFailed
	}
	return "ref-" + payerName, nil
}

var errSubmitFailed = &submitError{"submission rejected"}

type submitError struct{ msg string }

func (e *submitError) Error() string { return e.msg }

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testPatient() domain.Patient {
	return domain.Patient{
		PatientID:         "pat-1",
		FirstName:         "Jane",
		LastName:          "Doe",
		DateOfBirth:       "1980-01-01",
		InsuranceMemberID: "mem-1",
		DiagnosisCodes:    []string{"K50.9"},
	}
}

func testMedication() domain.MedicationRequest {
	return domain.MedicationRequest{
		DrugName:          "Humira",
		Dose:              "40mg",
		Frequency:         "biweekly",
		Route:             "subcutaneous",
		Indication:        "Crohn's disease",
		ICD10:             "K50.9",
		PrescriberID:      "doc-1",
		ClinicalRationale: "failed conventional therapy",
	}
}

func newTestOrchestrator(cases *fakeCaseStore, auditChain *fakeAuditChain, pub *fakePublisher, reasonerFake *fakeReasoner, poller *fakePoller, submitter *fakeSubmitter, now func() time.Time) *Orchestrator {
	return New(Config{
		Cases:        cases,
		Audit:        auditChain,
		Policies:     &fakePolicyLoader{},
		Reasoner:     reasonerFake,
		Intelligence: &fakeIntelligence{},
		Poller:       poller,
		Submitter:    submitter,
		Publisher:    pub,
		Now:          now,
	})
}
