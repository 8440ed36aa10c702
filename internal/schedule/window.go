package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hochfrequenz/claude-task-master/internal/console"
)

// Window restricts when new agent sessions may start. A cron
// expression marks each opening; Length is how long the window stays
// open afterward. Sessions already in flight are never cut off, the
// gate only delays new ones.
type Window struct {
	schedule cron.Schedule
	length   time.Duration

	// replaceable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Parse builds a window from a standard five-field cron expression
func Parse(expr string, length time.Duration) (*Window, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid work window %q: %w", expr, err)
	}
	if length <= 0 {
		length = 8 * time.Hour
	}
	return &Window{
		schedule: sched,
		length:   length,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

// Open reports whether t falls inside the work window, i.e. the
// schedule activated within the last window length.
func (w *Window) Open(t time.Time) bool {
	opened := w.schedule.Next(t.Add(-w.length))
	return !opened.After(t)
}

// NextOpen returns the moment the window is next open at or after t
func (w *Window) NextOpen(t time.Time) time.Time {
	if w.Open(t) {
		return t
	}
	return w.schedule.Next(t)
}

// Wait blocks until the window is open or the context ends
func (w *Window) Wait(ctx context.Context) error {
	t := w.now()
	if w.Open(t) {
		return nil
	}
	next := w.schedule.Next(t)
	console.Info("outside the work window, next session at %s", next.Format("Mon 15:04"))
	return w.sleep(ctx, next.Sub(t))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
