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

// Package orchestrator implements the Orchestrator (C10): the stage
// machine coordinating C2-C9, adapted from the teacher's WorkflowEngine
// (orchestrator/workflow_engine.go) and HITLWorkflowEngine
// (orchestrator/hitl_execution.go) — the closest analogue in the pack to
// spec §4.10's pause-for-human-decision gate, retargeted from workflow
// steps to case stages.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"priorauth/platform/internal/audit"
	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/evaluation"
	"priorauth/platform/internal/intelligence"
	"priorauth/platform/internal/logging"
	"priorauth/platform/internal/reasoner"
)

// CaseStore is the subset of casestore.CaseStore the orchestrator
// depends on.
type CaseStore interface {
	Get(ctx context.Context, caseID string) (*domain.Case, error)
	Create(ctx context.Context, c domain.Case, changedBy string) error
	Update(ctx context.Context, caseID string, expectedVersion int, changeDescription, changedBy string, mutate casestore.UpdateFunc) (*domain.Case, error)
	Reset(ctx context.Context, caseID, changedBy string) (*domain.Case, error)
}

// AuditChain is the subset of audit.Chain the orchestrator depends on.
type AuditChain interface {
	LogEvent(ctx context.Context, in audit.LogInput) (*domain.DecisionEvent, error)
}

// Publisher is the narrow seam the orchestrator uses to fan out progress
// events; package events' Hub satisfies it (§4.10 streaming, §4.11).
type Publisher interface {
	Publish(caseID string, eventType string, payload map[string]any)
}

// noopPublisher discards events, used when no Publisher is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(string, string, map[string]any) {}

// PolicyLoader is the subset of policyrepo.Repository the orchestrator
// depends on for the policy-analysis stage.
type PolicyLoader interface {
	Load(ctx context.Context, payer, medication string) (*domain.DigitizedPolicy, error)
	LoadRawText(ctx context.Context, payer, medication string) (string, error)
}

// CoverageReasoner is the subset of reasoner.Reasoner the orchestrator
// depends on.
type CoverageReasoner interface {
	AssessCoverage(ctx context.Context, in reasoner.AssessInput) (*domain.CoverageAssessment, error)
	Refine(ctx context.Context, in reasoner.AssessInput, initial *domain.CoverageAssessment) *domain.CoverageAssessment
}

// IntelligenceEngine is the subset of intelligence.Engine the
// orchestrator depends on.
type IntelligenceEngine interface {
	Analyze(ctx context.Context, in intelligence.AnalyzeInput) (*domain.StrategicInsights, error)
}

// PayerStatusPoller reports a payer's current submission status during
// monitoring; a mock/sandbox implementation satisfies this against the
// teacher's connector-fake pattern, a real implementation calls out to a
// payer API or clearinghouse.
type PayerStatusPoller interface {
	PollStatus(ctx context.Context, payerName, referenceNumber string) (domain.PayerSubmissionStatus, string, error)
}

// PayerSubmitter submits a prior-authorization request to a payer during
// ACTION_COORDINATION, returning the payer's reference number.
type PayerSubmitter interface {
	Submit(ctx context.Context, payerName string, c *domain.Case) (referenceNumber string, err error)
}

// OutcomeRecorder is the narrow seam the orchestrator uses to feed
// accuracy analytics (§6.1 prediction_outcomes): every per-payer
// coverage assessment is recorded as a prediction the moment it is
// made, independent of whether the case ever reaches a known outcome.
type OutcomeRecorder interface {
	Record(o evaluation.PredictionOutcome)
	Resolve(caseID string, actualOutcome string, decisionDate time.Time, strategyUsed string, wasEffective *bool)
}

// noopOutcomeRecorder discards predictions, used when no OutcomeRecorder
// is configured.
type noopOutcomeRecorder struct{}

func (noopOutcomeRecorder) Record(evaluation.PredictionOutcome) {}
func (noopOutcomeRecorder) Resolve(string, string, time.Time, string, *bool) {}

// Config bundles every dependency RunFull/RunStage need.
type Config struct {
	Cases        CaseStore
	Audit        AuditChain
	Policies     PolicyLoader
	Reasoner     CoverageReasoner
	Intelligence IntelligenceEngine
	Poller       PayerStatusPoller
	Submitter    PayerSubmitter
	Publisher    Publisher
	Outcomes     OutcomeRecorder
	Now          func() time.Time
}

// Orchestrator runs the case stage machine (§4.10).
type Orchestrator struct {
	cases        CaseStore
	audit        AuditChain
	policies     PolicyLoader
	reasoner     CoverageReasoner
	intelligence IntelligenceEngine
	poller       PayerStatusPoller
	submitter    PayerSubmitter
	publisher    Publisher
	outcomes     OutcomeRecorder
	now          func() time.Time
	logger       *logging.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}
	outcomes := cfg.Outcomes
	if outcomes == nil {
		outcomes = noopOutcomeRecorder{}
	}
	return &Orchestrator{
		cases:        cfg.Cases,
		audit:        cfg.Audit,
		policies:     cfg.Policies,
		reasoner:     cfg.Reasoner,
		intelligence: cfg.Intelligence,
		poller:       cfg.Poller,
		submitter:    cfg.Submitter,
		publisher:    publisher,
		outcomes:     outcomes,
		now:          now,
		logger:       logging.New("orchestrator"),
	}
}

// stageHandler advances a case by exactly one stage and returns the
// mutation to apply; handlers never call CaseStore.Update themselves so
// RunStage/RunFull can honor the "cancellation leaves prior version"
// invariant in one place (§4.10 "Cancellation and timeout").
type stageHandler func(ctx context.Context, o *Orchestrator, c *domain.Case) (changeDescription string, mutate casestore.UpdateFunc, err error)

var stageHandlers = map[domain.Stage]stageHandler{
	domain.StageIntake:             handleIntake,
	domain.StagePolicyAnalysis:     handlePolicyAnalysis,
	domain.StageStrategyGeneration: handleStrategyGeneration,
	domain.StageStrategySelection:  handleStrategySelection,
	domain.StageActionCoordination: handleActionCoordination,
	domain.StageMonitoring:         handleMonitoring,
	domain.StageRecovery:           handleRecovery,
}

// ErrUnknownStage is returned by RunStage for a stage with no handler
// (terminal stages COMPLETED/FAILED, or AWAITING_HUMAN_DECISION which
// only advances via IngestHumanDecision).
var ErrUnknownStage = fmt.Errorf("orchestrator: stage has no handler")

// ErrCancelled wraps a context cancellation observed mid-stage, making
// the "no partial snapshot" contract explicit to callers.
var ErrCancelled = fmt.Errorf("orchestrator: stage cancelled, case left at prior version")

func isTerminal(stage domain.Stage) bool {
	return stage == domain.StageCompleted || stage == domain.StageFailed
}
