package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"priorauth/platform/internal/domain"
)

func baseStrategy(id string, payers ...string) *domain.Strategy {
	return &domain.Strategy{
		StrategyID:        id,
		PayerSequence:     payers,
		BaseSpeedScore:    7.0,
		BaseApprovalScore: 5.0,
		BaseReworkRisk:    3.0,
		BasePatientBurden: 3.0,
	}
}

func TestScore_LikelihoodAdjustmentRaisesApprovalScore(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	assessments := map[string]domain.CoverageAssessment{
		"Aetna": {ApprovalLikelihood: 0.90},
	}
	weights := domain.DefaultScoringWeights()

	result := Score(s, assessments, weights)

	// base 5.0 + 4*(0.90-0.5) = 6.6, then ceiling = 10*0.9+1 = 10, no clamp.
	assert.InDelta(t, 6.6, result.ApprovalScore, 0.001)
	assert.InDelta(t, 1.6, result.Adjustments["first_payer_likelihood"], 0.001)
}

func TestScore_LikelihoodCeilingClampsApprovalScore(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	s.BaseApprovalScore = 9.5
	assessments := map[string]domain.CoverageAssessment{
		"Aetna": {ApprovalLikelihood: 0.40},
	}
	weights := domain.DefaultScoringWeights()

	// base 9.5 + 4*(0.4-0.5) = 9.1; ceiling = 10*0.4+1 = 5.0 -> clamp to 5.0.
	result := Score(s, assessments, weights)
	assert.InDelta(t, 5.0, result.ApprovalScore, 0.001)
	_, ok := result.Adjustments["likelihood_ceiling"]
	assert.True(t, ok)
}

func TestScore_CriticalGapPenaltyAppliesHalfPointPerGap(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	assessments := map[string]domain.CoverageAssessment{
		"Aetna": {
			ApprovalLikelihood: 0.5,
			DocumentationGaps:  []domain.DocumentationGap{
				{Priority: domain.GapPriorityHigh},
				{Priority: domain.GapPriorityHigh},
				{Priority: domain.GapPriorityLow},
			},
		},
	}
	weights := domain.DefaultScoringWeights()

	result := Score(s, assessments, weights)
	assert.InDelta(t, -1.0, result.Adjustments["gap_penalty"], 0.001)
	assert.InDelta(t, 4.0, result.ApprovalScore, 0.001) // 5.0 + 0 (likelihood adj) - 1.0
}

func TestScore_StepTherapyPenaltyAppliesWhenUnsatisfied(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	assessments := map[string]domain.CoverageAssessment{
		"Aetna": {
			ApprovalLikelihood:   0.5,
			StepTherapyRequired:  true,
			StepTherapySatisfied: false,
		},
	}
	weights := domain.DefaultScoringWeights()

	result := Score(s, assessments, weights)
	assert.Equal(t, -2.0, result.Adjustments["step_therapy_penalty"])
}

func TestScore_InvertsReworkAndPatientBurden(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	weights := domain.DefaultScoringWeights()
	result := Score(s, map[string]domain.CoverageAssessment{}, weights)

	assert.Equal(t, 7.0, result.ReworkScore)   // 10 - 3.0
	assert.Equal(t, 7.0, result.PatientScore)  // 10 - 3.0
	assert.Equal(t, s.BaseSpeedScore, result.SpeedScore)
}

func TestScore_WeightedSumMatchesDefaultWeights(t *testing.T) {
	s := baseStrategy("s1", "Aetna")
	weights := domain.DefaultScoringWeights()
	result := Score(s, map[string]domain.CoverageAssessment{}, weights)

	expected := weights.Speed*result.SpeedScore + weights.Approval*result.ApprovalScore +
		weights.LowRework*result.ReworkScore + weights.PatientBurden*result.PatientScore
	assert.InDelta(t, expected, result.TotalScore, 0.0001)
}

func TestRank_OrdersDescendingAndMarksTopRecommended(t *testing.T) {
	strategies := map[string]*domain.Strategy{
		"low":  baseStrategy("low"),
		"high": baseStrategy("high"),
	}
	scores := []domain.StrategyScore{
		{StrategyID: "low", TotalScore: 4.0},
		{StrategyID: "high", TotalScore: 8.0},
	}

	ranked := Rank(scores, strategies)

	assert.Equal(t, "high", ranked[0].StrategyID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.True(t, ranked[0].IsRecommended)
	assert.Equal(t, "low", ranked[1].StrategyID)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.False(t, ranked[1].IsRecommended)
	assert.NotEmpty(t, strategies["high"].Rationale)
	assert.Empty(t, strategies["low"].Rationale)
}
