package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"priorauth/platform/internal/domain"
)

func TestApplyConservativeMapping_NotCoveredAlwaysRoutesToHumanReview(t *testing.T) {
	status, likelihood := ApplyConservativeMapping("not_covered", 0.95)
	assert.Equal(t, domain.CoverageRequiresHumanReview, status)
	assert.Equal(t, 0.95, likelihood)
}

func TestApplyConservativeMapping_LowLikelihoodRoutesToHumanReview(t *testing.T) {
	status, _ := ApplyConservativeMapping("covered", 0.10)
	assert.Equal(t, domain.CoverageRequiresHumanReview, status)
}

func TestApplyConservativeMapping_UnknownWithLowLikelihoodRoutesToHumanReview(t *testing.T) {
	status, _ := ApplyConservativeMapping("unknown", 0.40)
	assert.Equal(t, domain.CoverageRequiresHumanReview, status)
}

func TestApplyConservativeMapping_UnrecognizedStringRoutesToHumanReview(t *testing.T) {
	status, _ := ApplyConservativeMapping("garbage_status", 0.99)
	assert.Equal(t, domain.CoverageRequiresHumanReview, status)
}

func TestApplyConservativeMapping_PassthroughOtherwise(t *testing.T) {
	status, likelihood := ApplyConservativeMapping("covered", 0.90)
	assert.Equal(t, domain.CoverageCovered, status)
	assert.Equal(t, 0.90, likelihood)
}

func TestValidateLikelihood_ClampsHighLikelihoodLowMetRatio(t *testing.T) {
	assessments := []domain.CriterionAssessment{
		{CriterionID: "c1", IsMet: true},
		{CriterionID: "c2", IsMet: false},
		{CriterionID: "c3", IsMet: false},
		{CriterionID: "c4", IsMet: false},
	}
	result := ValidateLikelihood(0.95, assessments, nil)
	assert.InDelta(t, 0.35, result, 0.001) // r=0.25, clamp to min(0.95, 0.25+0.1)
}

func TestValidateLikelihood_RaisesLowLikelihoodHighMetRatio(t *testing.T) {
	assessments := []domain.CriterionAssessment{
		{CriterionID: "c1", IsMet: true},
		{CriterionID: "c2", IsMet: true},
		{CriterionID: "c3", IsMet: true},
		{CriterionID: "c4", IsMet: true},
		{CriterionID: "c5", IsMet: true},
		{CriterionID: "c6", IsMet: false},
	}
	result := ValidateLikelihood(0.10, assessments, nil) // r = 5/6 ≈ 0.833 > 0.80
	assert.Equal(t, 0.5, result)
}

func TestValidateLikelihood_PassthroughClampedToUnitRange(t *testing.T) {
	assessments := []domain.CriterionAssessment{{CriterionID: "c1", IsMet: true}}
	result := ValidateLikelihood(1.5, assessments, nil)
	assert.Equal(t, 1.0, result)
}

func TestValidateLikelihood_ORGroupCountsAsSingleUnit(t *testing.T) {
	policy := &domain.DigitizedPolicy{
		CriterionGroups: map[string]domain.CriterionGroup{
			"g1": {ID: "g1", Operator: domain.GroupOR, Criteria: []string{"c1", "c2"}},
		},
	}
	assessments := []domain.CriterionAssessment{
		{CriterionID: "c1", IsMet: true},
		{CriterionID: "c2", IsMet: false},
		{CriterionID: "c3", IsMet: false},
	}
	// OR-group (c1,c2) is one satisfied unit; c3 unmet standalone -> r = 1/2 = 0.5
	result := metRatio(assessments, policy)
	assert.Equal(t, 0.5, result)
}
