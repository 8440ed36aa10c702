package agent

import (
	"context"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// Request describes one agent invocation
type Request struct {
	Phase      domain.Phase
	Prompt     string
	Model      string // API model name, empty for backend default
	WorkingDir string
	SessionKey string // stable key, same key resumes the same session
}

// Result is the outcome of one agent invocation
type Result struct {
	Text      string // final result text from the session
	SessionID string
	Duration  time.Duration

	TokensInput  int
	TokensOutput int
	CostUSD      float64
}

// Backend runs agent sessions. Implementations must return an error
// whose text carries enough signal for retry classification.
type Backend interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}
