package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/agent"
	"github.com/hochfrequenz/claude-task-master/internal/console"
	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/events"
	"github.com/hochfrequenz/claude-task-master/internal/parser"
	"github.com/hochfrequenz/claude-task-master/internal/prcycle"
	"github.com/hochfrequenz/claude-task-master/internal/retry"
	"github.com/hochfrequenz/claude-task-master/internal/sessionlog"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

// TokenSource provides a valid agent backend token, refreshing if needed
type TokenSource interface {
	ValidToken() (string, error)
}

// Gate blocks the loop until a new agent session may start. A nil gate
// allows sessions at any time.
type Gate interface {
	Wait(ctx context.Context) error
}

// Interrupt is a cooperative interruption observed at a checkpoint.
// Pause keeps the run resumable in place; stop marks it stopped and
// runs stop cleanup.
type Interrupt int

const (
	InterruptNone Interrupt = iota
	InterruptPause
	InterruptStop
)

// Orchestrator drives a run from its persisted status to completion,
// block, or interruption. It owns the run exclusively while advancing;
// every Advance call ends with a save, so every call is a checkpoint.
type Orchestrator struct {
	State   *state.Manager
	Backend agent.Backend
	Policy  *retry.Policy
	Log     *sessionlog.Store
	Sink    events.Sink
	Cycle   *prcycle.Cycle
	Creds   TokenSource
	Gate    Gate
	WorkDir string

	// Interrupted reports a pending user stop or pause request. It is
	// observed only at checkpoint boundaries, never mid-invocation.
	Interrupted func() Interrupt

	credFailures int
}

// New creates an orchestrator with the default retry policy. Callers
// wire the PR cycle, sinks, and control hooks on the returned value.
func New(st *state.Manager, backend agent.Backend) *Orchestrator {
	return &Orchestrator{
		State:   st,
		Backend: backend,
		Policy:  retry.DefaultPolicy(),
		Sink:    events.NoopSink{},
	}
}

// Run loops Advance until the run leaves the continue outcome.
func (o *Orchestrator) Run(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	for {
		out, err := o.Advance(ctx, run)
		if out != domain.OutcomeContinue {
			return out, err
		}
	}
}

// Advance performs one orchestration step: credential check, budget
// check, then one agent session or one PR cycle step. The run is saved
// before every return.
func (o *Orchestrator) Advance(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	switch o.interruptPending(ctx) {
	case InterruptPause:
		run.Status = domain.RunPaused
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		console.Warning("run paused by user request")
		return domain.OutcomeInterrupted, nil
	case InterruptStop:
		run.Status = domain.RunStopped
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		if err := o.State.CleanupOnStop(run); err != nil {
			console.Warning("stop cleanup: %v", err)
		}
		console.Warning("run stopped by user request")
		return domain.OutcomeInterrupted, nil
	}

	switch run.Status {
	case domain.RunSuccess:
		return domain.OutcomeSuccess, nil
	case domain.RunBlocked, domain.RunFailed:
		return domain.OutcomeBlocked, nil
	case domain.RunPaused, domain.RunStopped:
		return domain.OutcomeInterrupted, nil
	}

	if err := o.ensureCredentials(); err != nil {
		return o.block(run, fmt.Sprintf("credential refresh failed twice: %v", err), err)
	}

	if run.Options.MaxSessions > 0 && run.SessionCount >= run.Options.MaxSessions {
		return o.block(run, fmt.Sprintf("session budget exhausted (%d sessions)", run.SessionCount), nil)
	}

	switch run.Status {
	case domain.RunPlanning:
		return o.advancePlanning(ctx, run)
	case domain.RunWorking:
		return o.advanceWorking(ctx, run)
	default:
		return o.block(run, fmt.Sprintf("cannot advance run in status %q", run.Status), nil)
	}
}

// advancePlanning runs one planning session and parses the resulting
// task checklist.
func (o *Orchestrator) advancePlanning(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	if out, err, done := o.gateWait(ctx, run); done {
		return out, err
	}

	console.Info("planning: %s", run.Goal)
	contextText, _ := o.State.LoadContext()

	res, err := o.invoke(ctx, run, domain.PhasePlanning, agent.PlanningPrompt(run.Goal, contextText))
	if err != nil {
		return o.block(run, fmt.Sprintf("planning session failed: %v", err), err)
	}

	plan, err := parser.ParsePlan([]byte(res.Text))
	if err != nil || len(plan.Tasks) == 0 {
		return o.block(run, "planning session produced no task checklist", err)
	}

	run.Tasks = plan.Tasks
	run.CurrentTaskIndex = 0
	run.Status = domain.RunWorking
	if err := o.State.SavePlan(plan.Render()); err != nil {
		return domain.OutcomeBlocked, err
	}
	if err := o.State.Save(run); err != nil {
		return domain.OutcomeBlocked, err
	}
	o.saveProgress(run, fmt.Sprintf("plan created with %d tasks", len(run.Tasks)))
	console.Success("plan created: %d tasks", len(run.Tasks))
	return domain.OutcomeContinue, nil
}

// advanceWorking runs the next work session, or steps the PR cycle if
// a submission is in flight, or enters verification when all tasks are
// done.
func (o *Orchestrator) advanceWorking(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	if run.PR != nil {
		return o.advanceSubmission(ctx, run)
	}

	task := run.NextTask()
	if task == nil {
		return o.advanceVerification(ctx, run)
	}

	if out, err, done := o.gateWait(ctx, run); done {
		return out, err
	}

	console.Info("task %d/%d: %s", task.Index+1, len(run.Tasks), task.Description)
	o.emit(run, events.TaskStarted, map[string]any{
		"task":        task.Index,
		"description": task.Description,
	})

	contextText, _ := o.State.LoadContext()
	branch := taskBranch(run, task)
	prompt := agent.WorkPrompt(task.Description, contextText, branch, true)

	res, err := o.invoke(ctx, run, domain.PhaseWorking, prompt)
	if err != nil {
		o.emit(run, events.TaskFailed, map[string]any{"task": task.Index, "error": err.Error()})
		return o.block(run, fmt.Sprintf("task %d failed: %v", task.Index+1, err), err)
	}

	outcome := agent.DecodeOutcome(res.Text)
	if outcome.Summary != "" {
		if err := o.State.AppendContext(run.SessionCount, outcome.Summary); err != nil {
			console.Warning("context not saved: %v", err)
		}
	}

	if outcome.Blocked {
		o.emit(run, events.TaskFailed, map[string]any{"task": task.Index, "reason": outcome.BlockReason})
		return o.block(run, "agent blocked: "+outcome.BlockReason, nil)
	}

	if outcome.PRNumber > 0 || outcome.PRURL != "" {
		run.PR = &domain.PRContext{
			Number:      outcome.PRNumber,
			Stage:       domain.StageSubmitted,
			Branch:      branch,
			TaskIndices: []int{task.Index},
		}
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		if outcome.PRNumber > 0 {
			o.emit(run, events.PRCreated, map[string]any{"pr": outcome.PRNumber, "url": outcome.PRURL})
			console.Success("PR #%d submitted", outcome.PRNumber)
		}
		o.saveProgress(run, fmt.Sprintf("task %d submitted for review", task.Index+1))
		return domain.OutcomeContinue, nil
	}

	if outcome.TaskComplete {
		o.completeTasks(run, task.Index)
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		o.saveProgress(run, fmt.Sprintf("task %d completed", task.Index+1))
		return domain.OutcomeContinue, nil
	}

	// No explicit outcome marker. The task stays open and the next
	// session resumes it, bounded by the session budget.
	console.Warning("session ended without an outcome marker, task stays open")
	if err := o.State.Save(run); err != nil {
		return domain.OutcomeBlocked, err
	}
	return domain.OutcomeContinue, nil
}

// advanceSubmission steps the PR cycle once and maps its signal onto
// the run.
func (o *Orchestrator) advanceSubmission(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	stage := run.PR.Stage
	sig, err := o.Cycle.Step(ctx, run)
	switch sig {
	case prcycle.SigMerged:
		for _, idx := range pendingIndices(run) {
			o.completeTasks(run, idx)
		}
		prNumber := run.PR.Number
		run.PR = nil
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		if prNumber != 0 {
			if err := o.State.ClearPRContext(prNumber); err != nil {
				console.Warning("pr context not cleared: %v", err)
			}
		}
		o.saveProgress(run, fmt.Sprintf("PR #%d merged", prNumber))
		return domain.OutcomeContinue, nil

	case prcycle.SigBlocked:
		if errors.Is(err, prcycle.ErrStalled) {
			return o.block(run, fmt.Sprintf("PR #%d made no progress within the stall timeout", run.PR.Number), err)
		}
		return o.block(run, fmt.Sprintf("PR cycle blocked: %v", err), err)

	case prcycle.SigPaused:
		if stage == domain.StageReadyToMerge {
			return o.block(run, fmt.Sprintf("manual merge required for PR #%d", run.PR.Number), nil)
		}
		run.Status = domain.RunPaused
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		console.Info("run paused, resume after reviewing PR #%d", run.PR.Number)
		return domain.OutcomeInterrupted, nil

	default:
		return domain.OutcomeContinue, nil
	}
}

// advanceVerification checks the success criteria once all tasks are
// done. A failed verification re-opens the task list instead of
// silently declaring success.
func (o *Orchestrator) advanceVerification(ctx context.Context, run *domain.Run) (domain.Outcome, error) {
	console.Info("all tasks done, verifying success criteria")

	criteria := run.Criteria
	if criteria == "" {
		criteria = "All planned tasks are implemented, tested, and merged."
	}

	res, err := o.invoke(ctx, run, domain.PhaseVerification, agent.VerificationPrompt(criteria, tasksSummary(run)))
	if err != nil {
		return o.block(run, fmt.Sprintf("verification session failed: %v", err), err)
	}

	if agent.VerificationPassed(res.Text) {
		run.Status = domain.RunSuccess
		if err := o.State.Save(run); err != nil {
			return domain.OutcomeBlocked, err
		}
		o.emit(run, events.TaskCompleted, map[string]any{"verification": true})
		if err := o.State.CleanupOnSuccess(run); err != nil {
			console.Warning("cleanup incomplete: %v", err)
		}
		console.Success("goal achieved: %s", run.Goal)
		return domain.OutcomeSuccess, nil
	}

	reason := firstLine(strings.TrimSpace(res.Text))
	task := run.AppendTask("Address unmet success criteria: " + reason)
	o.syncPlan(run)
	if err := o.State.Save(run); err != nil {
		return domain.OutcomeBlocked, err
	}
	o.saveProgress(run, "verification failed, task list re-opened")
	console.Warning("verification failed, added task %d: %s", task.Index+1, task.Description)
	return domain.OutcomeContinue, nil
}

// RunFix executes a PR fix session (failing checks or review
// feedback) on behalf of the PR cycle.
func (o *Orchestrator) RunFix(ctx context.Context, run *domain.Run, prompt string) error {
	if o.Gate != nil {
		if err := o.Gate.Wait(ctx); err != nil {
			return err
		}
	}

	res, err := o.invoke(ctx, run, domain.PhaseWorking, prompt)
	if err != nil {
		return err
	}

	outcome := agent.DecodeOutcome(res.Text)
	if outcome.Summary != "" {
		if err := o.State.AppendContext(run.SessionCount, outcome.Summary); err != nil {
			console.Warning("context not saved: %v", err)
		}
	}
	if outcome.Blocked {
		return fmt.Errorf("fix session blocked: %s", outcome.BlockReason)
	}
	return nil
}

// invoke runs one agent session through the retry policy. Every
// attempt, retried ones included, increments the session counter and
// appends one session record.
func (o *Orchestrator) invoke(ctx context.Context, run *domain.Run, phase domain.Phase, prompt string) (*agent.Result, error) {
	var (
		res       *agent.Result
		attempt   int
		waitTotal time.Duration
	)

	policy := *o.Policy
	policy.OnRetry = func(_ int, cerr *retry.ClassifiedError, wait time.Duration) {
		waitTotal += wait
		console.Warning("agent call failed (%s), retrying in %s", cerr.Class, wait.Round(time.Second))
	}

	_, err := policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		run.SessionCount++
		session := run.SessionCount
		if err := o.State.Save(run); err != nil {
			return err
		}

		o.emit(run, events.SessionStarted, map[string]any{"session": session, "phase": string(phase)})
		started := time.Now()
		result, invErr := o.Backend.Invoke(ctx, agent.Request{
			Phase:      phase,
			Prompt:     prompt,
			Model:      agent.ModelName(run.Model),
			WorkingDir: o.WorkDir,
			SessionKey: fmt.Sprintf("%s-%d", run.ID, session),
		})

		rec := &domain.SessionRecord{
			RunID:     run.ID,
			Session:   session,
			Phase:     phase,
			Attempts:  attempt,
			WaitTotal: waitTotal,
			Duration:  time.Since(started),
			StartedAt: started,
		}
		if invErr != nil {
			cerr := retry.Classify(invErr)
			rec.Classification = cerr.Class
			rec.Error = cerr.Error()
			if cerr.Class.Retryable() {
				rec.Outcome = domain.SessionRetried
			} else {
				rec.Outcome = domain.SessionFailed
			}
		} else {
			rec.Outcome = domain.SessionCompleted
			res = result
		}
		o.appendRecord(rec)
		o.emit(run, events.SessionCompleted, map[string]any{
			"session": session,
			"outcome": string(rec.Outcome),
		})
		return invErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) appendRecord(rec *domain.SessionRecord) {
	if o.Log == nil {
		return
	}
	if err := o.Log.Append(rec); err != nil {
		console.Warning("session record not saved: %v", err)
	}
}

// ensureCredentials checks token validity. One failure is tolerated
// until the next step; the second consecutive failure is fatal.
func (o *Orchestrator) ensureCredentials() error {
	if o.Creds == nil {
		return nil
	}
	_, err := o.Creds.ValidToken()
	if err == nil {
		o.credFailures = 0
		return nil
	}
	o.credFailures++
	if o.credFailures >= 2 {
		return err
	}
	console.Warning("credential refresh failed, will retry: %v", err)
	return nil
}

// gateWait holds the loop until the work window opens. The done flag
// is set when the caller should return instead of proceeding.
func (o *Orchestrator) gateWait(ctx context.Context, run *domain.Run) (domain.Outcome, error, bool) {
	if o.Gate == nil {
		return 0, nil, false
	}
	if err := o.Gate.Wait(ctx); err != nil {
		run.Status = domain.RunPaused
		if saveErr := o.State.Save(run); saveErr != nil {
			return domain.OutcomeBlocked, saveErr, true
		}
		return domain.OutcomeInterrupted, err, true
	}
	return 0, nil, false
}

// completeTasks marks a task done, mirrors it into the plan artifact,
// and emits the completion event. Completion is one-way.
func (o *Orchestrator) completeTasks(run *domain.Run, index int) {
	run.CompleteTask(index)
	o.syncPlan(run)
	o.emit(run, events.TaskCompleted, map[string]any{"task": index})
	console.Success("task %d done", index+1)
}

// syncPlan re-serializes the plan artifact to mirror the run's task
// completion flags, preserving surrounding plan prose.
func (o *Orchestrator) syncPlan(run *domain.Run) {
	data, err := o.State.LoadPlan()
	if err != nil {
		return
	}
	plan, err := parser.ParsePlan(data)
	if err != nil {
		console.Warning("plan not re-serialized: %v", err)
		return
	}
	for _, t := range run.Tasks {
		if t.Index < len(plan.Tasks) {
			if t.Done && !plan.Tasks[t.Index].Done {
				plan.MarkDone(t.Index)
			}
		} else {
			plan.Append(t.Description)
		}
	}
	if err := o.State.SavePlan(plan.Render()); err != nil {
		console.Warning("plan not re-serialized: %v", err)
	}
}

func (o *Orchestrator) block(run *domain.Run, reason string, cause error) (domain.Outcome, error) {
	console.Error("run blocked: %s", reason)
	run.Status = domain.RunBlocked
	if err := o.State.Save(run); err != nil {
		return domain.OutcomeBlocked, err
	}
	o.saveProgress(run, reason)
	return domain.OutcomeBlocked, cause
}

func (o *Orchestrator) emit(run *domain.Run, typ events.EventType, payload map[string]any) {
	if o.Sink == nil {
		return
	}
	if err := o.Sink.Emit(events.New(typ, run.ID, payload)); err != nil {
		console.Warning("event %s not delivered: %v", typ, err)
	}
}

// interruptPending maps ctx cancellation to a pause (the process is
// going away, the run stays resumable) and otherwise asks the hook.
func (o *Orchestrator) interruptPending(ctx context.Context) Interrupt {
	if ctx.Err() != nil {
		return InterruptPause
	}
	if o.Interrupted == nil {
		return InterruptNone
	}
	return o.Interrupted()
}

// pendingIndices returns the task indices covered by the current
// submission that are not yet marked done.
func pendingIndices(run *domain.Run) []int {
	if run.PR == nil {
		return nil
	}
	var pending []int
	for _, idx := range run.PR.TaskIndices {
		if idx >= 0 && idx < len(run.Tasks) && !run.Tasks[idx].Done {
			pending = append(pending, idx)
		}
	}
	return pending
}

func taskBranch(run *domain.Run, task *domain.Task) string {
	id := run.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("task/%s-%d", id, task.Index+1)
}

func tasksSummary(run *domain.Run) string {
	var b strings.Builder
	for _, t := range run.Tasks {
		marker := "[ ]"
		if t.Done {
			marker = "[x]"
		}
		fmt.Fprintf(&b, "- %s %s\n", marker, t.Description)
	}
	return b.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
