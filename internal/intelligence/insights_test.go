package intelligence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

type fakeHistoricalRepo struct {
	cases []domain.HistoricalCase
}

func (f *fakeHistoricalRepo) ByMedication(ctx context.Context, medication string, aliases []string) ([]domain.HistoricalCase, error) {
	return f.cases, nil
}

type fakeInsightsGateway struct {
	payload map[string]any
	calls   int
}

func (f *fakeInsightsGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	f.calls++
	return &llm.GenerateResult{Payload: f.payload}, nil
}

func TestEngine_Analyze_SynthesizesAndCachesInsights(t *testing.T) {
	var cases []domain.HistoricalCase
	for i := 0; i < 4; i++ {
		cases = append(cases, domain.HistoricalCase{
			CaseID:          "hc",
			Medication:      "Humira",
			DiagnosisFamily: "K50",
			Payer:           "Aetna",
			Severity:        domain.DiseaseSeverity{Classification: "moderate"},
			Outcome:         domain.OutcomeApproved,
		})
	}

	gw := &fakeInsightsGateway{payload: map[string]any{
		"documentation_insights": []any{"cite prior failures explicitly"},
		"risk_factors":           []any{"no step therapy on file"},
	}}

	engine := New(Config{
		Repository: &fakeHistoricalRepo{cases: cases},
		Cache:      NewCache(newTestCacheRedis(t), 0),
		Gateway:    gw,
	})

	in := AnalyzeInput{
		CaseID:            "case-1",
		Patient:           domain.Patient{DiseaseSeverity: &domain.DiseaseSeverity{Classification: "moderate"}},
		MedicationRequest: domain.MedicationRequest{
			DrugName: "Humira",
			ICD10:    "K50",
		},
		Payer: "Aetna",
	}

	insights, err := engine.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 4, insights.SimilarCasesCount)
	assert.InDelta(t, 1.0, insights.ApprovalRate, 0.001)
	assert.Contains(t, insights.DocumentationInsights, "cite prior failures explicitly")
	assert.InDelta(t, 0.58, insights.Confidence, 0.001) // min(0.95, 0.5+0.02*4)
	assert.Equal(t, 1, gw.calls)

	// second call within TTL should hit the cache, not the gateway.
	insights2, err := engine.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, insights2.Cached)
	assert.Equal(t, 1, gw.calls)
}

func TestConfidenceTier(t *testing.T) {
	assert.Equal(t, "high", confidenceTier(0.90))
	assert.Equal(t, "moderate", confidenceTier(0.70))
	assert.Equal(t, "low", confidenceTier(0.55))
}
