package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// Policy controls exponential backoff between agent invocation attempts
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64

	// Sleep is replaceable for tests. Defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each backoff wait with the failed
	// attempt number (1-based), the classified error, and the wait.
	OnRetry func(attempt int, err *ClassifiedError, wait time.Duration)
}

// DefaultPolicy returns the standard retry configuration
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  5,
		BaseDelay:    2 * time.Second,
		MaxDelay:     5 * time.Minute,
		JitterFactor: 0.25,
	}
}

// Backoff returns the base delay for a given attempt number (0-based).
// The delay doubles each attempt and is capped at MaxDelay.
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Delay returns the wait before the next attempt, honoring a server
// retry-after hint when it exceeds the computed backoff. Jitter is
// added on top so concurrent runs do not retry in lockstep.
func (p *Policy) Delay(attempt int, hint time.Duration) time.Duration {
	delay := p.Backoff(attempt)
	if hint > delay {
		delay = hint
	}
	if p.JitterFactor > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFactor * float64(delay))
		delay += jitter
	}
	return delay
}

// Result summarizes a completed Do call for observability
type Result struct {
	Attempts  int
	WaitTotal time.Duration
}

// unknownAttempts bounds unclassifiable failures: one retry, then
// fatal. Only recognized transient classes earn the full budget.
const unknownAttempts = 2

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget for its classification is exhausted. The last
// classified error is returned alongside the attempt accounting.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (Result, error) {
	res := Result{}
	sleep := p.Sleep
	if sleep == nil {
		sleep = waitCtx
	}

	var last *ClassifiedError
	budget := p.MaxAttempts
	for attempt := 0; attempt < budget; attempt++ {
		res.Attempts++
		err := fn(ctx)
		if err == nil {
			return res, nil
		}

		ce := Classify(err)
		last = ce
		if !ce.Class.Retryable() {
			return res, ce
		}
		if ce.Class == domain.ClassUnknown && budget > unknownAttempts {
			budget = unknownAttempts
		}
		if attempt >= budget-1 {
			break
		}

		wait := p.Delay(attempt, ce.RetryAfter)
		res.WaitTotal += wait
		if p.OnRetry != nil {
			p.OnRetry(res.Attempts, ce, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return res, err
		}
	}
	return res, last
}

func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
