package domain

import "time"

// SessionOutcome classifies how an agent invocation attempt ended
type SessionOutcome string

const (
	SessionCompleted SessionOutcome = "completed"
	SessionRetried   SessionOutcome = "retried"
	SessionFailed    SessionOutcome = "failed"
	SessionBlocked   SessionOutcome = "blocked"
)

// SessionRecord captures one agent invocation attempt. Records are
// appended to the durable log and never mutated afterward.
type SessionRecord struct {
	RunID          string
	Session        int // monotonically increasing per run, never reused
	Phase          Phase
	Outcome        SessionOutcome
	Classification Classification // set when the session errored
	Attempts       int            // invocation attempts including retries
	WaitTotal      time.Duration  // total backoff wait across retries
	Duration       time.Duration
	Error          string
	StartedAt      time.Time
}
