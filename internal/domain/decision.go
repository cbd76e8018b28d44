package domain

import "time"

// DecisionEvent is a single append-only, hash-chained entry in a case's
// audit trail (§3.1, §4.8).
type DecisionEvent struct {
	EventID           string         `json:"event_id"`
	CaseID            string         `json:"case_id"`
	EventType         string         `json:"event_type"`
	Timestamp         time.Time      `json:"timestamp"`
	DecisionMade      string         `json:"decision_made"`
	Reasoning         string         `json:"reasoning"`
	Stage             Stage          `json:"stage"`
	Actor             string         `json:"actor"`
	InputDataHash     string         `json:"input_data_hash"`
	InputDataSummary  map[string]any `json:"input_data_summary,omitempty"`
	Alternatives      []string       `json:"alternatives,omitempty"`
	Signature         string         `json:"signature"`
	PreviousEventID   string         `json:"previous_event_id,omitempty"`
	PreviousSignature string         `json:"-"`
}

// HumanDecision records an external reviewer's action on a case (§3.1).
type HumanDecision struct {
	DecisionID             string      `json:"decision_id"`
	Stage                  Stage       `json:"stage"`
	Action                 HumanAction `json:"action"`
	ReviewerID             string      `json:"reviewer_id"`
	ReviewerName           string      `json:"reviewer_name,omitempty"`
	Timestamp              time.Time   `json:"timestamp"`
	OriginalRecommendation string      `json:"original_recommendation,omitempty"`
	OverrideReason         string      `json:"override_reason,omitempty"`
	Notes                  string      `json:"notes,omitempty"`
}
