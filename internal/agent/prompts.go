package agent

import (
	"fmt"
	"strings"
)

// promptBuilder assembles a prompt from an intro and titled sections
type promptBuilder struct {
	parts []string
}

func newPrompt(intro string) *promptBuilder {
	return &promptBuilder{parts: []string{strings.TrimSpace(intro)}}
}

func (b *promptBuilder) section(title, content string) *promptBuilder {
	b.parts = append(b.parts, fmt.Sprintf("## %s\n\n%s", title, strings.TrimSpace(content)))
	return b
}

func (b *promptBuilder) build() string {
	return strings.Join(b.parts, "\n\n")
}

// PlanningPrompt asks the agent to explore the codebase and output an
// ordered task checklist plus success criteria, without changing anything.
func PlanningPrompt(goal, context string) string {
	b := newPrompt(fmt.Sprintf(`You are planning how to achieve this goal:

**%s**

Explore the repository first. Do not write code, create files, or make
branches. Output the plan as text only.`, goal))

	if context != "" {
		b.section("Accumulated Context", context)
	}

	b.section("Required Output", `Produce exactly two sections:

## Task List

An ordered markdown checklist, one task per line:
- [ ] First task description
- [ ] Second task description

Each task should be completable in a single focused session.

## Success Criteria

Concrete, checkable criteria that define when the goal is done
(tests pass, lint clean, specific behavior works).`)

	return b.build()
}

// WorkPrompt asks the agent to complete a single task and report with
// the completion marker. When createPR is set the task must end with a
// pushed branch and an open pull request.
func WorkPrompt(task, context, branch string, createPR bool) string {
	b := newPrompt(fmt.Sprintf(`You are working on a single task:

**%s**

Complete only this task, then stop. A new session handles the next task.`, task))

	if context != "" {
		b.section("Accumulated Context", context)
	}
	if branch != "" {
		b.section("Branch", fmt.Sprintf("Work on branch `%s`. Create it if it does not exist.", branch))
	}

	if createPR {
		b.section("On Completion", `Commit your work, push the branch, and open a pull request.

Report all of the following:
1. What was completed
2. Tests run and results
3. Files modified
4. Commit hash
5. PR URL

End your response with this exact line:

TASK COMPLETE

If you cannot proceed without human intervention, instead end with:

BLOCKED: <one-line reason>`)
	} else {
		b.section("On Completion", `Commit your work but do not push or open a pull request yet.

Report what was completed, tests run, files modified, and the commit hash.

End your response with this exact line:

TASK COMPLETE

If you cannot proceed without human intervention, instead end with:

BLOCKED: <one-line reason>`)
	}

	return b.build()
}

// FixPrompt asks the agent to address review comments or CI failures on
// an existing pull request. The feedback files live under contextDir.
func FixPrompt(prNumber int, branch, contextDir, summary string) string {
	b := newPrompt(fmt.Sprintf(`You are addressing feedback on pull request #%d.

Check out branch `+"`%s`"+` and resolve every item below, then push.`, prNumber, branch))

	b.section("Feedback", summary)
	if contextDir != "" {
		b.section("Full Context", fmt.Sprintf(
			"Individual comments and failing CI logs are saved under `%s`. Read them before changing code.", contextDir))
	}

	b.section("On Completion", `Push your fixes to the same branch. Do not open a new pull request.

End your response with this exact line:

TASK COMPLETE

If you cannot proceed without human intervention, instead end with:

BLOCKED: <one-line reason>`)

	return b.build()
}

// VerificationPrompt asks the agent to check the success criteria and
// answer with the explicit pass/fail marker.
func VerificationPrompt(criteria, tasksSummary string) string {
	b := newPrompt(`You are verifying that completed work satisfies its success criteria.`)

	if tasksSummary != "" {
		b.section("Completed Tasks", tasksSummary)
	}
	b.section("Success Criteria", criteria)
	b.section("Verification Steps", `1. Run the project's test suite
2. Run lint and static analysis
3. Check each criterion directly`)
	b.section("Required Output", `End your response with exactly one of:

VERIFICATION_RESULT: PASS
VERIFICATION_RESULT: FAIL

Only say PASS if every criterion is met. After a FAIL, list each unmet
criterion and what remains to be done.`)

	return b.build()
}
