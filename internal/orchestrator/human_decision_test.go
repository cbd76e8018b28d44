package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func seedAwaitingCase(t *testing.T, cases *fakeCaseStore) *domain.Case {
	t.Helper()
	c := seedCase(t, cases, "Aetna")
	c.Stage = domain.StageAwaitingHumanDecision
	c.RequiresHumanDecision = true
	cases.cases["case-1"] = *c
	return c
}

func TestIngestHumanDecision_ApproveRoutesToStrategyGeneration(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedAwaitingCase(t, cases)
	auditChain := &fakeAuditChain{}
	o := newTestOrchestrator(cases, auditChain, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	c, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionApprove, ReviewerID: "rev-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageStrategyGeneration, c.Stage)
	assert.False(t, c.RequiresHumanDecision)

	entries := auditChain.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "rev-1", entries[0].Actor)
}

func TestIngestHumanDecision_OverrideSetsFlagAndAdvances(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedAwaitingCase(t, cases)
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	c, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionOverride, ReviewerID: "rev-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageStrategyGeneration, c.Stage)
	assert.True(t, c.HumanOverrideApplied)
}

func TestIngestHumanDecision_RejectMarksCaseFailed(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedAwaitingCase(t, cases)
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	c, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionReject, ReviewerID: "rev-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, c.Stage)
	assert.NotEmpty(t, c.ErrorMessage)
}

func TestIngestHumanDecision_ReturnToProviderMarksCaseCompleted(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedAwaitingCase(t, cases)
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	c, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionReturnToProvider, ReviewerID: "rev-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, c.Stage)
}

func TestIngestHumanDecision_EscalateStaysAwaitingDecision(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedAwaitingCase(t, cases)
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	c, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionEscalate, ReviewerID: "rev-1", Notes: "need second opinion"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingHumanDecision, c.Stage)
	assert.Equal(t, "need second opinion", c.HumanDecisionReason)
}

func TestIngestHumanDecision_RejectsWhenCaseNotAwaitingDecision(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	seedCase(t, cases, "Aetna")
	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	_, err := o.IngestHumanDecision(context.Background(), "case-1", domain.HumanDecision{Action: domain.ActionApprove, ReviewerID: "rev-1"})
	assert.ErrorIs(t, err, ErrNotAwaitingDecision)
}
