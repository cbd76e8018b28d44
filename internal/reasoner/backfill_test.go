package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func testPolicy() *domain.DigitizedPolicy {
	return &domain.DigitizedPolicy{
		AtomicCriteria: map[string]domain.Criterion{
			"c1": {ID: "c1", Description: "diagnosis confirmed"},
			"c2": {ID: "c2", Description: "prior treatment failure"},
			"c3": {ID: "c3", Description: "disease severity documented"},
		},
		CriterionGroups: map[string]domain.CriterionGroup{
			"rheumatoid_arthritis": {ID: "rheumatoid_arthritis", Operator: domain.GroupAND, Criteria: []string{"c1", "c2"}},
		},
		Indications: []domain.Indication{
			{Name: "rheumatoid_arthritis", GroupID: "rheumatoid_arthritis"},
		},
	}
}

func TestBackfillUnevaluated_SynthesizesMissingCriteriaInInferredIndication(t *testing.T) {
	r := &Reasoner{}
	policy := testPolicy()
	assessed := []domain.CriterionAssessment{
		{CriterionID: "c1", IsMet: true, Confidence: 0.9},
	}

	out := r.backfillUnevaluated(policy, assessed)
	require.Len(t, out, 2)

	var backfilled *domain.CriterionAssessment
	for i := range out {
		if out[i].CriterionID == "c2" {
			backfilled = &out[i]
		}
	}
	require.NotNil(t, backfilled)
	assert.False(t, backfilled.IsMet)
	assert.Equal(t, float64(0), backfilled.Confidence)
	assert.Contains(t, backfilled.Reasoning, "not evaluated by AI")

	// c3 is outside the inferred indication's sub-tree and must not be backfilled.
	for _, a := range out {
		assert.NotEqual(t, "c3", a.CriterionID)
	}
}

func TestBackfillUnevaluated_FallsBackToFullSetWhenNoIndicationInferred(t *testing.T) {
	r := &Reasoner{}
	policy := testPolicy()

	out := r.backfillUnevaluated(policy, nil)
	assert.Len(t, out, 3)
}

func TestInferredIndicationCriteria_PicksMaxOverlap(t *testing.T) {
	policy := &domain.DigitizedPolicy{
		CriterionGroups: map[string]domain.CriterionGroup{
			"ind_a": {ID: "ind_a", Criteria: []string{"c1", "c2"}},
			"ind_b": {ID: "ind_b", Criteria: []string{"c3"}},
		},
		Indications: []domain.Indication{
			{Name: "a", GroupID: "ind_a"},
			{Name: "b", GroupID: "ind_b"},
		},
	}
	matched := map[string]bool{"c1": true, "c2": true}

	result := inferredIndicationCriteria(policy, matched)
	assert.ElementsMatch(t, []string{"c1", "c2"}, result)
}
