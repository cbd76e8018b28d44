package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"priorauth/platform/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestSubstringSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, substringSimilarity("Humira", "humira"))
	assert.Equal(t, 1.0, substringSimilarity("adalimumab", "adalimumab (humira)"))
	assert.Equal(t, 0.0, substringSimilarity("Humira", "Enbrel"))
	assert.Equal(t, 0.0, substringSimilarity("", "Enbrel"))
}

func TestDiagnosisFamilySimilarity(t *testing.T) {
	assert.Equal(t, 1.0, diagnosisFamilySimilarity("K50.1", "K50.9"))
	assert.Equal(t, 0.7, diagnosisFamilySimilarity("K50", "K51"))
	assert.Equal(t, 0.0, diagnosisFamilySimilarity("K50", "M05"))
}

func TestClassificationSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, classificationSimilarity("moderate", "moderate"))
	assert.Equal(t, 0.4, classificationSimilarity("moderate", "severe"))
	assert.InDelta(t, 0.4, classificationSimilarity("mild", "moderate_to_severe"), 0.001)
	assert.Equal(t, 0.0, classificationSimilarity("mild", "severe"))
}

func TestNumericSimilarity_WithinTwentyPercent(t *testing.T) {
	result, ok := numericSimilarity(ptr(110), ptr(100))
	assert.True(t, ok)
	assert.InDelta(t, 0.9, result, 0.001)
}

func TestNumericSimilarity_BeyondTwentyPercent(t *testing.T) {
	result, ok := numericSimilarity(ptr(160), ptr(100))
	assert.True(t, ok)
	assert.InDelta(t, 0.0, result, 0.001) // max(0, 1-2*0.6) = max(0,-0.2) = 0
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"Methotrexate", "Sulfasalazine"}
	b := []string{"methotrexate", "Leflunomide"}
	// intersection=1 (methotrexate), union=3
	assert.InDelta(t, 1.0/3.0, jaccardSimilarity(a, b), 0.001)
}

func TestRankSimilar_FiltersThresholdSortsAndCaps(t *testing.T) {
	query := queryProfile{
		Medication:      "Humira",
		DiagnosisFamily: "K50",
		Payer:           "Aetna",
		Severity:        &domain.DiseaseSeverity{Classification: "severe"},
	}

	var candidates []domain.HistoricalCase
	for i := 0; i < 25; i++ {
		candidates = append(candidates, domain.HistoricalCase{
			CaseID:          "strong",
			Medication:      "Humira",
			DiagnosisFamily: "K50",
			Payer:           "Aetna",
			Severity:        domain.DiseaseSeverity{Classification: "severe"},
		})
	}
	candidates = append(candidates, domain.HistoricalCase{
		CaseID:          "weak",
		Medication:      "Enbrel",
		DiagnosisFamily: "M05",
		Payer:           "Cigna",
		Severity:        domain.DiseaseSeverity{Classification: "mild"},
	})

	result := RankSimilar(query, candidates)
	assert.Len(t, result, 20) // capped
	for _, r := range result {
		assert.Equal(t, "strong", r.Case.CaseID)
		assert.GreaterOrEqual(t, r.Score, defaultSimilarityThreshold)
	}
}
