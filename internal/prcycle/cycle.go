package prcycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hochfrequenz/claude-task-master/internal/console"
	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/events"
	"github.com/hochfrequenz/claude-task-master/internal/github"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

// Signal is the result of one cycle step
type Signal int

const (
	// SigContinue means the stage advanced or is still waiting; step again.
	SigContinue Signal = iota
	// SigMerged means the PR is merged and the owning tasks can complete.
	SigMerged
	// SigBlocked means the cycle needs human attention.
	SigBlocked
	// SigPaused means the run pauses for a manual action (review or merge).
	SigPaused
)

// Platform is the subset of the collaboration client the cycle uses
type Platform interface {
	PRForCurrentBranch(ctx context.Context) (int, error)
	PRStatus(ctx context.Context, prNumber int) (*github.PRStatus, error)
	Merge(ctx context.Context, prNumber int) error
	IsMerged(ctx context.Context, prNumber int) (bool, error)
	FailedRunLogs(ctx context.Context, runID int64, branch string, maxLines int) (string, error)
}

// FixRunner runs an agent session to address PR feedback. The runner
// owns session accounting and state persistence for the session itself.
type FixRunner interface {
	RunFix(ctx context.Context, run *domain.Run, prompt string) error
}

// Cycle drives a PR through checks, review, and merge
type Cycle struct {
	gh     Platform
	state  *state.Manager
	fixer  FixRunner
	sink   events.Sink
	poller *Poller
}

// New creates a cycle over the given collaborators
func New(gh Platform, st *state.Manager, fixer FixRunner, sink events.Sink, poller *Poller) *Cycle {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Cycle{gh: gh, state: st, fixer: fixer, sink: sink, poller: poller}
}

// Step advances the PR lifecycle by at most one transition and saves
// the run. Callers loop on SigContinue and observe interrupts between
// steps.
func (c *Cycle) Step(ctx context.Context, run *domain.Run) (Signal, error) {
	if run.PR == nil {
		return SigMerged, nil
	}

	// A PR merged out of band (by a human, from any stage) short-circuits
	// the rest of the cycle.
	if run.PR.Stage != domain.StageMerged && run.PR.Number != 0 {
		merged, err := c.gh.IsMerged(ctx, run.PR.Number)
		if err == nil && merged {
			console.Success("PR #%d was merged externally", run.PR.Number)
			return c.toMerged(run)
		}
	}

	switch run.PR.Stage {
	case domain.StageSubmitted:
		return c.stepSubmitted(ctx, run)
	case domain.StageAwaitingChecks:
		return c.stepAwaitingChecks(ctx, run)
	case domain.StageChecksFailed:
		return c.stepChecksFailed(ctx, run)
	case domain.StageAwaitingReview:
		return c.stepAwaitingReview(ctx, run)
	case domain.StageAddressingReview:
		return c.stepAddressingReview(ctx, run)
	case domain.StageReadyToMerge:
		return c.stepReadyToMerge(ctx, run)
	case domain.StageMerged:
		return SigMerged, nil
	default:
		return SigBlocked, fmt.Errorf("unknown pr stage %q", run.PR.Stage)
	}
}

// stepSubmitted resolves the PR number for the current branch
func (c *Cycle) stepSubmitted(ctx context.Context, run *domain.Run) (Signal, error) {
	if run.PR.Number == 0 {
		num, err := c.gh.PRForCurrentBranch(ctx)
		if err != nil || num == 0 {
			// Nothing was submitted after all; treat the work as done locally.
			console.Detail("no PR found for current branch, skipping PR cycle")
			return c.toMerged(run)
		}
		run.PR.Number = num
		console.Success("detected PR #%d for current branch", num)
		c.sink.Emit(events.New(events.PRCreated, run.ID, map[string]any{
			"pr": num, "branch": run.PR.Branch,
		}))
	}

	if run.Options.PauseOnSubmit {
		run.PR.Stage = domain.StageAwaitingChecks
		if err := c.state.Save(run); err != nil {
			return SigBlocked, err
		}
		console.Info("PR #%d submitted, pausing for manual review", run.PR.Number)
		return SigPaused, nil
	}

	return c.transition(run, domain.StageAwaitingChecks)
}

// stepAwaitingChecks polls the CI rollup state
func (c *Cycle) stepAwaitingChecks(ctx context.Context, run *domain.Run) (Signal, error) {
	status, err := c.gh.PRStatus(ctx, run.PR.Number)
	if err != nil {
		// Transient platform errors keep the stage; the poller paces retries.
		console.Warning("checking PR #%d: %v", run.PR.Number, err)
		return c.waitOrStall(ctx, run)
	}

	switch {
	case status.CheckState == github.ChecksSuccess:
		console.Success("checks passed (%d passed, %d skipped)",
			status.ChecksPassed, status.ChecksSkipped)
		c.poller.Reset()
		return c.transition(run, domain.StageAwaitingReview)
	case status.CheckState.Failed():
		console.Warning("checks failed: %d failed, %d passed",
			status.ChecksFailed, status.ChecksPassed)
		c.poller.Reset()
		return c.transition(run, domain.StageChecksFailed)
	default:
		console.Info("waiting for checks (%d pending, %d passed)",
			status.ChecksPending, status.ChecksPassed)
		return c.waitOrStall(ctx, run)
	}
}

// stepChecksFailed captures failing logs and runs a fix session
func (c *Cycle) stepChecksFailed(ctx context.Context, run *domain.Run) (Signal, error) {
	status, err := c.gh.PRStatus(ctx, run.PR.Number)
	if err == nil {
		for _, check := range status.Checks {
			conclusion := strings.ToUpper(check.Conclusion)
			if conclusion != "FAILURE" && conclusion != "ERROR" {
				continue
			}
			logs, logErr := c.gh.FailedRunLogs(ctx, 0, run.PR.Branch, 200)
			if logErr != nil {
				logs = fmt.Sprintf("could not fetch logs: %v\ncheck URL: %s", logErr, check.URL)
			}
			if err := c.state.SaveCIFailure(run.PR.Number, check.Name, logs); err != nil {
				return SigBlocked, err
			}
		}
	}

	prDir, _ := c.state.PRDir(run.PR.Number)
	prompt := ciFixPrompt(run.PR.Number, run.PR.Branch, prDir)
	if err := c.fixer.RunFix(ctx, run, prompt); err != nil {
		return SigBlocked, err
	}

	c.poller.Reset()
	return c.transition(run, domain.StageAwaitingChecks)
}

// stepAwaitingReview waits for all checks to settle, then routes on
// unresolved review threads. Thread resolution state decides, not
// comment authorship: a bot thread resolved by a human sign-off does
// not hold the PR back.
func (c *Cycle) stepAwaitingReview(ctx context.Context, run *domain.Run) (Signal, error) {
	status, err := c.gh.PRStatus(ctx, run.PR.Number)
	if err != nil {
		console.Warning("checking reviews on PR #%d: %v", run.PR.Number, err)
		return c.waitOrStall(ctx, run)
	}

	if !status.AllChecksSettled() {
		console.Info("waiting for %d checks to settle", status.ChecksPending)
		return c.waitOrStall(ctx, run)
	}

	if status.UnresolvedThreads > 0 {
		console.Warning("%d of %d review threads unresolved",
			status.UnresolvedThreads, status.TotalThreads)
		c.poller.Reset()
		return c.transition(run, domain.StageAddressingReview)
	}

	if status.TotalThreads > 0 {
		console.Success("all %d review threads resolved", status.TotalThreads)
	} else {
		console.Success("no review comments")
	}
	c.poller.Reset()
	return c.transition(run, domain.StageReadyToMerge)
}

// stepAddressingReview captures unresolved comments and runs a fix session
func (c *Cycle) stepAddressingReview(ctx context.Context, run *domain.Run) (Signal, error) {
	status, err := c.gh.PRStatus(ctx, run.PR.Number)
	if err != nil {
		return c.waitOrStall(ctx, run)
	}

	unresolved := status.UnresolvedComments()
	if len(unresolved) == 0 {
		// Resolved while we were transitioning
		return c.transition(run, domain.StageAwaitingReview)
	}

	comments := make([]state.PRComment, 0, len(unresolved))
	for _, rc := range unresolved {
		comments = append(comments, state.PRComment{
			ThreadID: rc.ThreadID,
			Author:   rc.Author,
			Path:     rc.Path,
			Line:     rc.Line,
			Body:     rc.Body,
			Resolved: rc.Resolved,
			IsBot:    rc.IsBot(),
		})
	}
	if err := c.state.SavePRComments(run.PR.Number, comments); err != nil {
		return SigBlocked, err
	}

	prDir, _ := c.state.PRDir(run.PR.Number)
	prompt := reviewFixPrompt(run.PR.Number, run.PR.Branch, prDir, comments)
	if err := c.fixer.RunFix(ctx, run, prompt); err != nil {
		return SigBlocked, err
	}

	// Pushed fixes restart checks before review is re-examined.
	c.poller.Reset()
	return c.transition(run, domain.StageAwaitingChecks)
}

// stepReadyToMerge merges when auto-merge is on, otherwise pauses. A
// merge refused because the branch conflicts with the base is not
// fatal: the conflict details become fix-session context and the
// cycle re-enters working through awaiting_checks.
func (c *Cycle) stepReadyToMerge(ctx context.Context, run *domain.Run) (Signal, error) {
	if !run.Options.AutoMerge {
		console.Info("PR #%d ready to merge (auto-merge disabled), resume after merging", run.PR.Number)
		return SigPaused, nil
	}

	console.Info("merging PR #%d", run.PR.Number)
	err := c.gh.Merge(ctx, run.PR.Number)
	if err == nil {
		console.Success("PR #%d merged", run.PR.Number)
		return c.toMerged(run)
	}

	if c.mergeConflicted(ctx, run.PR.Number, err) {
		console.Warning("PR #%d conflicts with the base branch, scheduling a fix session", run.PR.Number)
		return c.resolveConflict(ctx, run, err)
	}

	console.Warning("merge failed: %v", err)
	return SigBlocked, fmt.Errorf("merging PR #%d: %w", run.PR.Number, err)
}

// mergeConflicted decides whether a failed merge is a branch conflict
// rather than a fatal platform error, by the merge error text or the
// platform's mergeable verdict.
func (c *Cycle) mergeConflicted(ctx context.Context, prNumber int, mergeErr error) bool {
	text := strings.ToLower(mergeErr.Error())
	if strings.Contains(text, "conflict") || strings.Contains(text, "not mergeable") {
		return true
	}
	status, err := c.gh.PRStatus(ctx, prNumber)
	return err == nil && status != nil && status.Mergeable == "CONFLICTING"
}

// resolveConflict saves the conflict details and runs a fix session to
// rebase the branch. The pushed resolution restarts checks before the
// merge is retried.
func (c *Cycle) resolveConflict(ctx context.Context, run *domain.Run, mergeErr error) (Signal, error) {
	if err := c.state.SaveMergeConflict(run.PR.Number, mergeErr.Error()); err != nil {
		return SigBlocked, err
	}

	prDir, _ := c.state.PRDir(run.PR.Number)
	prompt := mergeConflictPrompt(run.PR.Number, run.PR.Branch, prDir)
	if err := c.fixer.RunFix(ctx, run, prompt); err != nil {
		return SigBlocked, err
	}

	c.poller.Reset()
	return c.transition(run, domain.StageAwaitingChecks)
}

func (c *Cycle) toMerged(run *domain.Run) (Signal, error) {
	run.PR.Stage = domain.StageMerged
	if err := c.state.Save(run); err != nil {
		return SigBlocked, err
	}
	if run.PR.Number != 0 {
		c.sink.Emit(events.New(events.PRMerged, run.ID, map[string]any{"pr": run.PR.Number}))
	}
	return SigMerged, nil
}

func (c *Cycle) transition(run *domain.Run, next domain.Stage) (Signal, error) {
	run.PR.Stage = next
	if err := c.state.Save(run); err != nil {
		return SigBlocked, err
	}
	return SigContinue, nil
}

func (c *Cycle) waitOrStall(ctx context.Context, run *domain.Run) (Signal, error) {
	err := c.poller.Wait(ctx)
	if errors.Is(err, ErrStalled) {
		console.Warning("PR #%d stalled, blocking for attention", run.PR.Number)
		return SigBlocked, ErrStalled
	}
	if err != nil {
		return SigBlocked, err
	}
	return SigContinue, nil
}
