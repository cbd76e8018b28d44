package domain

import "time"

// Case is the root aggregate for a single prior-authorization workflow
// (§3.1). Version increases by exactly 1 per mutation (invariant 1);
// every mutation writes a full CaseStateSnapshot via package casestore.
type Case struct {
	CaseID                string                        `json:"case_id"`
	Version               int                           `json:"version"`
	CreatedAt             time.Time                     `json:"created_at"`
	UpdatedAt             time.Time                     `json:"updated_at"`
	Stage                 Stage                         `json:"stage"`
	Patient               Patient                       `json:"patient"`
	MedicationRequest     MedicationRequest             `json:"medication_request"`
	PayerStates           map[string]PayerState         `json:"payer_states"`
	CoverageAssessments   map[string]CoverageAssessment `json:"coverage_assessments"`
	AvailableStrategies   []Strategy                    `json:"available_strategies,omitempty"`
	StrategyScores        []StrategyScore               `json:"strategy_scores,omitempty"`
	SelectedStrategyID    string                        `json:"selected_strategy_id,omitempty"`
	StrategyRationale     string                        `json:"strategy_rationale,omitempty"`
	HumanDecisions        []HumanDecision               `json:"human_decisions"`
	RequiresHumanDecision bool                          `json:"requires_human_decision"`
	HumanDecisionReason   string                        `json:"human_decision_reason,omitempty"`
	HumanOverrideApplied  bool                          `json:"human_override_applied,omitempty"`
	PendingActions        []string                      `json:"pending_actions,omitempty"`
	CompletedActions      []string                      `json:"completed_actions,omitempty"`
	StaleIterations       int                           `json:"stale_iterations,omitempty"`
	MonitoringIterations  int                           `json:"monitoring_iterations,omitempty"`
	ErrorMessage          string                        `json:"error_message,omitempty"`
	Metadata              map[string]any                `json:"metadata,omitempty"`
}

// PrimaryPayer returns PayerSequence[0] of the case's selected strategy,
// or "" when no strategy is selected or the selected one has no payers.
// Primacy comes from the strategy rather than from the payer-state map,
// whose iteration order is unordered in Go.
func (c *Case) PrimaryPayer() string {
	if c.SelectedStrategyID == "" {
		return ""
	}
	for _, s := range c.AvailableStrategies {
		if s.StrategyID == c.SelectedStrategyID && len(s.PayerSequence) > 0 {
			return s.PayerSequence[0]
		}
	}
	return ""
}

// NewCase constructs an intake-stage case. Callers must validate inputs
// before calling — ValidationError is raised by the orchestrator's intake
// handler, not here.
func NewCase(caseID string, patient Patient, med MedicationRequest, now time.Time) *Case {
	return &Case{
		CaseID:              caseID,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
		Stage:               StageIntake,
		Patient:             patient,
		MedicationRequest:   med,
		PayerStates:         make(map[string]PayerState),
		CoverageAssessments: make(map[string]CoverageAssessment),
		HumanDecisions:      []HumanDecision{},
	}
}

// CaseStateSnapshot is a full point-in-time copy of a Case, written on
// every mutation (§4.9, §6.1).
type CaseStateSnapshot struct {
	ID                string    `json:"id"`
	CaseID            string    `json:"case_id"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	StateData         Case      `json:"state_data"`
	ChangeDescription string    `json:"change_description"`
	ChangedBy         string    `json:"changed_by"`
}
