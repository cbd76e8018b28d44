package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func TestRunFull_AdvancesThroughToAwaitingHumanDecisionWhenGated(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{byPayer: map[string]domain.CoverageAssessment{
		"Aetna": {CoverageStatus: domain.CoverageNotCovered, ApprovalLikelihood: 0.1},
	}}, nil, nil, fixedNow(time.Unix(0, 0)))

	_, err := o.CreateCase(context.Background(), "case-1", testPatient(), testMedication(), []string{"Aetna"})
	require.NoError(t, err)

	c, err := o.RunFull(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingHumanDecision, c.Stage)
}

func TestRunFull_AdvancesAllTheWayToCompletedWhenUncontested(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerApproved}}
	submitter := &fakeSubmitter{}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, submitter, fixedNow(time.Unix(0, 0)))

	_, err := o.CreateCase(context.Background(), "case-1", testPatient(), testMedication(), []string{"Aetna"})
	require.NoError(t, err)

	c, err := o.RunFull(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, c.Stage)
}

func TestRunHandler_CancellationLeavesCaseAtPriorVersionWithNoPersistence(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	c := seedCase(t, cases, "Aetna")
	c.Stage = domain.StagePolicyAnalysis
	cases.cases["case-1"] = *c

	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RunStage(ctx, "case-1", domain.StagePolicyAnalysis, false)
	assert.ErrorIs(t, err, ErrCancelled)

	c, getErr := cases.Get(context.Background(), "case-1")
	require.NoError(t, getErr)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, domain.StagePolicyAnalysis, c.Stage)
}
