package prcycle

import (
	"context"
	"errors"
	"time"
)

// ErrStalled indicates a PR made no observable progress within the
// stall timeout and the run should block for human attention.
var ErrStalled = errors.New("pr made no progress within stall timeout")

// Poller paces status checks while a PR waits on CI or review. The
// interval doubles up to a cap and resets whenever the PR progresses.
// This backoff is independent from the agent retry policy.
type Poller struct {
	Interval     time.Duration
	MaxInterval  time.Duration
	StallTimeout time.Duration

	// Sleep is replaceable for tests
	Sleep func(ctx context.Context, d time.Duration) error

	current      time.Duration
	lastProgress time.Time
	now          func() time.Time
}

// NewPoller creates a poller with the given pacing
func NewPoller(interval, maxInterval, stallTimeout time.Duration) *Poller {
	p := &Poller{
		Interval:     interval,
		MaxInterval:  maxInterval,
		StallTimeout: stallTimeout,
		now:          time.Now,
	}
	p.Reset()
	return p
}

// Reset marks progress: the next wait starts from the base interval
// and the stall clock restarts.
func (p *Poller) Reset() {
	p.current = 0
	p.lastProgress = p.now()
}

// Wait blocks until the next poll is due. It returns ErrStalled when
// the stall timeout has elapsed without a Reset.
func (p *Poller) Wait(ctx context.Context) error {
	if p.StallTimeout > 0 && p.now().Sub(p.lastProgress) >= p.StallTimeout {
		return ErrStalled
	}

	if p.current == 0 {
		p.current = p.Interval
	} else {
		p.current *= 2
		if p.current > p.MaxInterval {
			p.current = p.MaxInterval
		}
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = waitCtx
	}
	return sleep(ctx, p.current)
}

// NextInterval returns the delay the next Wait call will use
func (p *Poller) NextInterval() time.Duration {
	if p.current == 0 {
		return p.Interval
	}
	next := p.current * 2
	if next > p.MaxInterval {
		return p.MaxInterval
	}
	return next
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
