package domain

import "time"

// PayerState tracks one payer's submission lifecycle for a case (§3.1).
type PayerState struct {
	PayerName         string                `json:"payer_name"`
	Status            PayerSubmissionStatus `json:"status"`
	ReferenceNumber   string                `json:"reference_number,omitempty"`
	SubmittedAt       *time.Time            `json:"submitted_at,omitempty"`
	LastUpdatedAt     *time.Time            `json:"last_updated_at,omitempty"`
	ResponseDetails   string                `json:"response_details,omitempty"`
	RequiredDocuments []string              `json:"required_documents,omitempty"`
	DenialReason      string                `json:"denial_reason,omitempty"`
	AppealDeadline    *time.Time            `json:"appeal_deadline,omitempty"`
}

// Appealable reports whether a denied payer state can still be escalated
// to an appeal (a deadline is set and not yet passed).
func (p *PayerState) Appealable(now time.Time) bool {
	if p.Status != PayerDenied {
		return false
	}
	return p.AppealDeadline != nil && now.Before(*p.AppealDeadline)
}
