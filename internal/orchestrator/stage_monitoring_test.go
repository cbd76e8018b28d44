package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func seedMonitoringCase(t *testing.T, cases *fakeCaseStore, statuses map[string]domain.PayerSubmissionStatus) *domain.Case {
	t.Helper()
	payers := make([]string, 0, len(statuses))
	for p := range statuses {
		payers = append(payers, p)
	}
	c := seedCase(t, cases, payers...)
	c.Stage = domain.StageMonitoring
	states := make(map[string]domain.PayerState, len(statuses))
	for payer, status := range statuses {
		states[payer] = domain.PayerState{PayerName: payer, Status: status, ReferenceNumber: "ref-" + payer}
	}
	c.PayerStates = states
	cases.cases["case-1"] = *c
	return c
}

func TestHandleMonitoring_AllApprovedTransitionsToCompleted(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedMonitoringCase(t, cases, map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerSubmitted})

	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerApproved}}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageMonitoring, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, result.Case.Stage)
}

func TestHandleMonitoring_DeniedAppealableTransitionsToRecovery(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedMonitoringCase(t, cases, map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerSubmitted})

	future := time.Unix(0, 0).Add(48 * time.Hour)
	c, _ := cases.Get(context.Background(), "case-1")
	state := c.PayerStates["Aetna"]
	state.AppealDeadline = &future
	c.PayerStates["Aetna"] = state
	cases.cases["case-1"] = *c

	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerDenied}}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageMonitoring, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageRecovery, result.Case.Stage)
}

func TestHandleMonitoring_AllFinallyDeniedTransitionsToFailed(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedMonitoringCase(t, cases, map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerSubmitted})

	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerDenied}}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageMonitoring, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, result.Case.Stage)
	assert.NotEmpty(t, result.Case.ErrorMessage)
}

func TestHandleMonitoring_StaleStatusForcesCompletionAfterLimit(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	c := seedMonitoringCase(t, cases, map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerUnderReview})
	c.StaleIterations = monitoringStaleLimit - 1
	cases.cases["case-1"] = *c

	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerUnderReview}}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageMonitoring, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, result.Case.Stage)
}

func TestHandleMonitoring_PartialPendingStaysInMonitoring(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedMonitoringCase(t, cases, map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerUnderReview, "Cigna": domain.PayerUnderReview})

	poller := &fakePoller{byPayer: map[string]domain.PayerSubmissionStatus{"Aetna": domain.PayerApproved, "Cigna": domain.PayerUnderReview}}
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, poller, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageMonitoring, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageMonitoring, result.Case.Stage)
	assert.Equal(t, 1, result.Case.MonitoringIterations)
	assert.Equal(t, 0, result.Case.StaleIterations)
}
