package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func TestHandleStrategyGeneration_ProducesSinglePrimaryFirstCandidate(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	c := seedCase(t, cases, "Aetna", "Cigna")
	c.Stage = domain.StageStrategyGeneration
	c.CoverageAssessments = map[string]domain.CoverageAssessment{
		"Aetna": {CoverageStatus: domain.CoverageCovered, ApprovalLikelihood: 0.9},
		"Cigna": {CoverageStatus: domain.CoverageCovered, ApprovalLikelihood: 0.9},
	}
	cases.cases["case-1"] = *c

	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageStrategyGeneration, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageStrategySelection, result.Case.Stage)
	require.Len(t, result.Case.AvailableStrategies, 1)
	assert.Equal(t, []string{"Aetna", "Cigna"}, result.Case.AvailableStrategies[0].PayerSequence)
	require.Len(t, result.Case.StrategyScores, 1)
	assert.True(t, result.Case.StrategyScores[0].IsRecommended)
}

func TestHandleStrategySelection_SelectsRecommendedStrategy(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	c := seedCase(t, cases, "Aetna")
	c.Stage = domain.StageStrategySelection
	c.AvailableStrategies = []domain.Strategy{{StrategyID: "strat-1", PayerSequence: []string{"Aetna"}, Rationale: "single payer sequential"}}
	c.StrategyScores = []domain.StrategyScore{{StrategyID: "strat-1", Rank: 1, IsRecommended: true, TotalScore: 0.8}}
	cases.cases["case-1"] = *c

	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	result, err := o.RunStage(context.Background(), "case-1", domain.StageStrategySelection, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StageActionCoordination, result.Case.Stage)
	assert.Equal(t, "strat-1", result.Case.SelectedStrategyID)
	assert.Equal(t, "single payer sequential", result.Case.StrategyRationale)
}

func TestHandleStrategySelection_FailsWithoutScores(t *testing.T) {
	cases := newFakeCaseStore(fixedNow(time.Unix(0, 0)))
	c := seedCase(t, cases, "Aetna")
	c.Stage = domain.StageStrategySelection
	cases.cases["case-1"] = *c

	o := newTestOrchestrator(cases, &fakeAuditChain{}, &fakePublisher{}, &fakeReasoner{}, nil, nil, fixedNow(time.Unix(0, 0)))

	_, err := o.RunStage(context.Background(), "case-1", domain.StageStrategySelection, false)
	assert.Error(t, err)
}
