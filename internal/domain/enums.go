package domain

// Stage identifies a case's position in the stage machine (§3.3).
type Stage string

const (
	StageIntake                  Stage = "INTAKE"
	StagePolicyAnalysis          Stage = "POLICY_ANALYSIS"
	StageCohortAnalysis          Stage = "COHORT_ANALYSIS"
	StageAIRecommendation        Stage = "AI_RECOMMENDATION"
	StageAwaitingHumanDecision   Stage = "AWAITING_HUMAN_DECISION"
	StageStrategyGeneration      Stage = "STRATEGY_GENERATION"
	StageStrategySelection       Stage = "STRATEGY_SELECTION"
	StageActionCoordination      Stage = "ACTION_COORDINATION"
	StageMonitoring              Stage = "MONITORING"
	StageRecovery                Stage = "RECOVERY"
	StageCompleted               Stage = "COMPLETED"
	StageFailed                  Stage = "FAILED"
)

// CoverageStatus is the outcome classification of a per-payer coverage
// assessment (§3.3). NotCovered is never surfaced in output — see
// ApplyConservativeMapping in package reasoner.
type CoverageStatus string

const (
	CoverageCovered             CoverageStatus = "COVERED"
	CoverageLikelyCovered       CoverageStatus = "LIKELY_COVERED"
	CoverageRequiresPA          CoverageStatus = "REQUIRES_PA"
	CoverageConditional         CoverageStatus = "CONDITIONAL"
	CoveragePend                CoverageStatus = "PEND"
	CoverageNotCovered          CoverageStatus = "NOT_COVERED"
	CoverageRequiresHumanReview CoverageStatus = "REQUIRES_HUMAN_REVIEW"
	CoverageUnknown             CoverageStatus = "UNKNOWN"
)

// TaskCategory is the routing key the LLM Gateway uses to pick an ordered
// provider preference list (§4.2).
type TaskCategory string

const (
	TaskPolicyReasoning   TaskCategory = "POLICY_REASONING"
	TaskAppealStrategy    TaskCategory = "APPEAL_STRATEGY"
	TaskAppealDrafting    TaskCategory = "APPEAL_DRAFTING"
	TaskSummaryGeneration TaskCategory = "SUMMARY_GENERATION"
	TaskDataExtraction    TaskCategory = "DATA_EXTRACTION"
	TaskNotification      TaskCategory = "NOTIFICATION"
	TaskPolicyQA          TaskCategory = "POLICY_QA"
)

// Provider identifies a concrete LLM backend.
type Provider string

const (
	ProviderClaude     Provider = "CLAUDE"
	ProviderGemini     Provider = "GEMINI"
	ProviderAzureOpenAI Provider = "AZURE_OPENAI"
)

// PayerSubmissionStatus is the lifecycle of a single payer's PA submission
// (§3.1 PayerState).
type PayerSubmissionStatus string

const (
	PayerNotSubmitted    PayerSubmissionStatus = "not_submitted"
	PayerSubmitted       PayerSubmissionStatus = "submitted"
	PayerPendingInfo     PayerSubmissionStatus = "pending_info"
	PayerUnderReview     PayerSubmissionStatus = "under_review"
	PayerApproved        PayerSubmissionStatus = "approved"
	PayerDenied          PayerSubmissionStatus = "denied"
	PayerAppealSubmitted PayerSubmissionStatus = "appeal_submitted"
	PayerAppealApproved  PayerSubmissionStatus = "appeal_approved"
	PayerAppealDenied    PayerSubmissionStatus = "appeal_denied"
)

// GapPriority ranks a documentation gap's urgency.
type GapPriority string

const (
	GapPriorityHigh   GapPriority = "high"
	GapPriorityMedium GapPriority = "medium"
	GapPriorityLow    GapPriority = "low"
)

// StrategyType enumerates strategy shapes. Only SequentialPrimaryFirst is
// ever produced (§3.2 invariant 6 — parallel submission is forbidden).
type StrategyType string

const (
	StrategySequentialPrimaryFirst StrategyType = "sequential_primary_first"
)

// HumanAction is the action a reviewer attaches to a HumanDecision.
type HumanAction string

const (
	ActionApprove             HumanAction = "approve"
	ActionReject              HumanAction = "reject"
	ActionOverride            HumanAction = "override"
	ActionEscalate            HumanAction = "escalate"
	ActionSubmitToPayer       HumanAction = "submit_to_payer"
	ActionFollowRecommendation HumanAction = "follow_recommendation"
	ActionReturnToProvider    HumanAction = "return_to_provider"
)

// HistoricalOutcome is the terminal outcome recorded on a historical case.
type HistoricalOutcome string

const (
	OutcomeApproved   HistoricalOutcome = "approved"
	OutcomeDenied     HistoricalOutcome = "denied"
	OutcomeInfoRequest HistoricalOutcome = "info_request"
)
