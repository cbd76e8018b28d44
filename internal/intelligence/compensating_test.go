package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func TestDetectCompensatingFactors_EmitsWhenUpliftClearsThreshold(t *testing.T) {
	relationships := []FactorRelationship{
		{MissingDocumentation: "tb_screening", CompensatingFactors: []string{"severe", "fistula"}},
	}

	var cases []domain.HistoricalCase
	// with compensation (severe): 2 cases, both approved -> rate 1.0
	for i := 0; i < 2; i++ {
		cases = append(cases, domain.HistoricalCase{
			DocumentationMissing: []string{"tb_screening"},
			Severity:             domain.DiseaseSeverity{Classification: "severe"},
			Outcome:              domain.OutcomeApproved,
		})
	}
	// without compensation: 2 cases, both denied -> rate 0.0
	for i := 0; i < 2; i++ {
		cases = append(cases, domain.HistoricalCase{
			DocumentationMissing: []string{"tb_screening"},
			Severity:             domain.DiseaseSeverity{Classification: "mild"},
			Outcome:              domain.OutcomeDenied,
		})
	}

	current := caseFactorFields{Severity: "severe"}
	patterns := DetectCompensatingFactors(relationships, cases, current)

	require.Len(t, patterns, 1)
	assert.Equal(t, "tb_screening", patterns[0].MissingDocumentation)
	assert.InDelta(t, 1.0, patterns[0].Uplift, 0.001)
	assert.True(t, patterns[0].CaseMissingDoc)
	assert.True(t, patterns[0].CaseHasCompensation)
	assert.Equal(t, "medium", patterns[0].Priority)
}

func TestDetectCompensatingFactors_BelowBucketMinimumIsSkipped(t *testing.T) {
	relationships := []FactorRelationship{
		{MissingDocumentation: "tb_screening", CompensatingFactors: []string{"severe"}},
	}
	cases := []domain.HistoricalCase{
		{DocumentationMissing: []string{"tb_screening"}, Severity: domain.DiseaseSeverity{Classification: "severe"}, Outcome: domain.OutcomeApproved},
	}

	patterns := DetectCompensatingFactors(relationships, cases, caseFactorFields{})
	assert.Empty(t, patterns)
}

func TestDetectLabSeverityBundle_EmitsWhenUpliftClearsThreshold(t *testing.T) {
	var cases []domain.HistoricalCase
	for i := 0; i < 3; i++ {
		cases = append(cases, domain.HistoricalCase{
			DocumentationPresent: []string{"crp_above_20", "albumin_below_3", "esr_above_40"},
			Outcome:              domain.OutcomeApproved,
		})
	}
	for i := 0; i < 3; i++ {
		cases = append(cases, domain.HistoricalCase{
			Outcome: domain.OutcomeDenied,
		})
	}

	patterns := detectLabSeverityBundle(cases, caseFactorFields{})
	require.Len(t, patterns, 1)
	assert.Equal(t, "lab_severity_bundle", patterns[0].MissingDocumentation)
	assert.InDelta(t, 1.0, patterns[0].Uplift, 0.001)
}

func TestSortPatternsByUplift_DescendingAbsoluteValue(t *testing.T) {
	patterns := []domain.CompensatingFactorPattern{
		{MissingDocumentation: "a", Uplift: 0.2},
		{MissingDocumentation: "b", Uplift: 0.5},
		{MissingDocumentation: "c", Uplift: 0.3},
	}
	sortPatternsByUplift(patterns)
	assert.Equal(t, "b", patterns[0].MissingDocumentation)
	assert.Equal(t, "c", patterns[1].MissingDocumentation)
	assert.Equal(t, "a", patterns[2].MissingDocumentation)
}
