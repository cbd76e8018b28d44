package domain

// StrategyStep is a single ordered action within a Strategy (§3.1).
type StrategyStep struct {
	StepNumber       int    `json:"step_number"`
	ActionType       string `json:"action_type"` // submit_pa | check_status | coordinate_benefits
	TargetPayer      string `json:"target_payer"`
	Description      string `json:"description"`
	Dependencies     []int  `json:"dependencies,omitempty"`
	DurationEstimate string `json:"duration_estimate"`
	SuccessCriterion string `json:"success_criterion,omitempty"`
}

// Strategy is a candidate submission plan (§3.1). Always sequential,
// primary-payer first — parallel submission is forbidden (invariant 6).
type Strategy struct {
	StrategyID         string         `json:"strategy_id"`
	StrategyType       StrategyType   `json:"strategy_type"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	PayerSequence      []string       `json:"payer_sequence"`
	ParallelSubmission bool           `json:"parallel_submission"`
	BaseSpeedScore     float64        `json:"base_speed_score"`
	BaseApprovalScore  float64        `json:"base_approval_score"`
	BaseReworkRisk     float64        `json:"base_rework_risk"`
	BasePatientBurden  float64        `json:"base_patient_burden"`
	Rationale          string         `json:"rationale,omitempty"`
	RiskFactors        []string       `json:"risk_factors,omitempty"`
	Mitigations        []string       `json:"mitigations,omitempty"`
	Steps              []StrategyStep `json:"steps"`
}

// StrategyScore is the deterministic, weighted evaluation of a Strategy
// (§3.1, §4.6).
type StrategyScore struct {
	StrategyID    string             `json:"strategy_id"`
	SpeedScore    float64            `json:"speed_score"`
	ApprovalScore float64            `json:"approval_score"`
	ReworkScore   float64            `json:"rework_score"`
	PatientScore  float64            `json:"patient_score"`
	Adjustments   map[string]float64 `json:"adjustments"`
	Reasoning     []string           `json:"reasoning"`
	TotalScore    float64            `json:"total_score"`
	Rank          int                `json:"rank"`
	IsRecommended bool               `json:"is_recommended"`
	WeightsUsed   ScoringWeights     `json:"weights_used"`
}

// ScoringWeights are the component weights used in a StrategyScore; they
// must sum to exactly 1.0 (within fp epsilon — invariant 7/§8.1.7).
type ScoringWeights struct {
	Speed         float64 `json:"speed" yaml:"speed"`
	Approval      float64 `json:"approval" yaml:"approval"`
	LowRework     float64 `json:"low_rework" yaml:"low_rework"`
	PatientBurden float64 `json:"patient_burden" yaml:"patient_burden"`
}

// DefaultScoringWeights matches spec §4.6's defaults.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Speed: 0.30, Approval: 0.40, LowRework: 0.20, PatientBurden: 0.10}
}

// Sum returns the sum of all four weight components.
func (w ScoringWeights) Sum() float64 {
	return w.Speed + w.Approval + w.LowRework + w.PatientBurden
}
