package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"priorauth/platform/internal/domain"
)

func TestAnalyze_ComputesOutcomeRatesAndAvgDays(t *testing.T) {
	cases := []domain.HistoricalCase{
		{Outcome: domain.OutcomeApproved, DaysToDecision: 10},
		{Outcome: domain.OutcomeApproved, DaysToDecision: 20},
		{Outcome: domain.OutcomeDenied, DaysToDecision: 30},
		{Outcome: domain.OutcomeInfoRequest, DaysToDecision: 40},
	}

	result := Analyze(cases)
	assert.InDelta(t, 0.5, result.ApprovalRate, 0.001)
	assert.InDelta(t, 0.25, result.DenialRate, 0.001)
	assert.InDelta(t, 0.25, result.InfoRequestRate, 0.001)
	assert.InDelta(t, 25.0, result.AvgDaysToDecision, 0.001)
}

func TestDocumentationImpact_RequiresThreeCaseSupportBothSidesAndDeltaAboveThreshold(t *testing.T) {
	var cases []domain.HistoricalCase
	// 3 with "mri_scan" present, all approved.
	for i := 0; i < 3; i++ {
		cases = append(cases, domain.HistoricalCase{
			DocumentationPresent: []string{"mri_scan"},
			Outcome:              domain.OutcomeApproved,
		})
	}
	// 3 with "mri_scan" missing, all denied.
	for i := 0; i < 3; i++ {
		cases = append(cases, domain.HistoricalCase{
			DocumentationMissing: []string{"mri_scan"},
			Outcome:              domain.OutcomeDenied,
		})
	}

	result := Analyze(cases)
	require := assert.New(t)
	require.Len(result.DocumentationImpact, 1)
	require.Equal("mri_scan", result.DocumentationImpact[0].DocumentationType)
	require.InDelta(1.0, result.DocumentationImpact[0].RateWith, 0.001)
	require.InDelta(0.0, result.DocumentationImpact[0].RateWithout, 0.001)
}

func TestDocumentationImpact_InsufficientSupportIsExcluded(t *testing.T) {
	cases := []domain.HistoricalCase{
		{DocumentationPresent: []string{"mri_scan"}, Outcome: domain.OutcomeApproved},
		{DocumentationMissing: []string{"mri_scan"}, Outcome: domain.OutcomeDenied},
	}
	result := Analyze(cases)
	assert.Empty(t, result.DocumentationImpact)
}

func TestTimingPatterns_RequiresThreeCaseBucket(t *testing.T) {
	var cases []domain.HistoricalCase
	for i := 0; i < 3; i++ {
		cases = append(cases, domain.HistoricalCase{SubmittedWeekday: "Monday", Outcome: domain.OutcomeApproved})
	}
	cases = append(cases, domain.HistoricalCase{SubmittedWeekday: "Tuesday", Outcome: domain.OutcomeDenied})

	result := Analyze(cases)
	require := assert.New(t)
	require.Len(result.TimingPatterns, 1)
	require.Equal("Monday", result.TimingPatterns[0].Weekday)
	require.Equal(1.0, result.TimingPatterns[0].ApprovalRate)
}
