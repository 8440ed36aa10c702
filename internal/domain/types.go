package domain

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunPlanning RunStatus = "planning"
	RunWorking  RunStatus = "working"
	RunBlocked  RunStatus = "blocked"
	RunPaused   RunStatus = "paused"
	RunStopped  RunStatus = "stopped"
	RunSuccess  RunStatus = "success"
	RunFailed   RunStatus = "failed"
)

// Terminal returns true if the run can no longer advance
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunStopped
}

// Stage represents a step in the PR lifecycle
type Stage string

const (
	StageWorking          Stage = "working"
	StageSubmitted        Stage = "submitted"
	StageAwaitingChecks   Stage = "awaiting_checks"
	StageChecksFailed     Stage = "checks_failed"
	StageAwaitingReview   Stage = "awaiting_review"
	StageAddressingReview Stage = "addressing_review"
	StageReadyToMerge     Stage = "ready_to_merge"
	StageMerged           Stage = "merged"
)

// Phase identifies the kind of agent session being run
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseWorking      Phase = "working"
	PhaseVerification Phase = "verification"
)

// Outcome is the result of one orchestrator step
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeSuccess
	OutcomeBlocked
	OutcomeInterrupted
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeSuccess:
		return "success"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Classification tags an agent-call failure for the retry policy
type Classification string

const (
	ClassTransientNetwork  Classification = "transient-network"
	ClassRateLimited       Classification = "rate-limited"
	ClassAuthFatal         Classification = "authentication-fatal"
	ClassContentFiltered   Classification = "content-filtered"
	ClassWorkingDirInvalid Classification = "working-directory-invalid"
	ClassSDKUnavailable    Classification = "sdk-unavailable"
	ClassUnknown           Classification = "unknown"
)

// Retryable returns true if the classification allows another attempt
func (c Classification) Retryable() bool {
	switch c {
	case ClassTransientNetwork, ClassRateLimited:
		return true
	case ClassUnknown:
		return true // single retry, bounded by the policy
	default:
		return false
	}
}
