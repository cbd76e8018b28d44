package domain

import "encoding/json"

// CriterionAssessment is the LLM-derived (or backfilled) verdict on a
// single atomic criterion (§3.1).
type CriterionAssessment struct {
	CriterionID          string   `json:"criterion_id"`
	CriterionName        string   `json:"criterion_name"`
	CriterionDescription string   `json:"criterion_description,omitempty"`
	IsMet                bool     `json:"is_met"`
	Confidence           float64  `json:"confidence"`
	SupportingEvidence   []string `json:"supporting_evidence,omitempty"`
	Gaps                 []string `json:"gaps,omitempty"`
	Reasoning            string   `json:"reasoning,omitempty"`
}

// DocumentationGap flags missing documentation that affects coverage
// likelihood (§3.1).
type DocumentationGap struct {
	GapID           string      `json:"gap_id"`
	GapType         string      `json:"gap_type"`
	Description     string      `json:"description"`
	RequiredFor     []string    `json:"required_for,omitempty"`
	Priority        GapPriority `json:"priority"`
	SuggestedAction string      `json:"suggested_action,omitempty"`
	Complexity      string      `json:"complexity,omitempty"`
}

// CoverageAssessment is the per-payer analysis result produced by the
// Policy Reasoner (§3.1).
type CoverageAssessment struct {
	PayerName            string                `json:"payer_name"`
	CoverageStatus       CoverageStatus        `json:"coverage_status"`
	ApprovalLikelihood   float64               `json:"approval_likelihood"`
	Reasoning            string                `json:"reasoning"`
	CriteriaAssessments  []CriterionAssessment `json:"criteria_assessments"`
	CriteriaMetCount     int                   `json:"criteria_met_count"`
	CriteriaTotalCount   int                   `json:"criteria_total_count"`
	DocumentationGaps    []DocumentationGap    `json:"documentation_gaps"`
	Recommendations      []string              `json:"recommendations,omitempty"`
	StepTherapyRequired  bool                  `json:"step_therapy_required"`
	StepTherapySatisfied bool                  `json:"step_therapy_satisfied"`
	RawPolicyExcerpt     string                `json:"raw_policy_excerpt,omitempty"`
	RawLLMPayload        json.RawMessage       `json:"raw_llm_payload,omitempty"`
	TriggeredExclusions  []string              `json:"triggered_exclusions,omitempty"`
	Cached               bool                  `json:"cached,omitempty"`
}

// RecomputeCounts enforces invariant 4 (§3.2): criteria_met_count and
// criteria_total_count must reflect the current CriteriaAssessments slice.
func (c *CoverageAssessment) RecomputeCounts() {
	c.CriteriaTotalCount = len(c.CriteriaAssessments)
	met := 0
	for _, ca := range c.CriteriaAssessments {
		if ca.IsMet {
			met++
		}
	}
	c.CriteriaMetCount = met
}
