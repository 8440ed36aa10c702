package agent

import (
	"strings"
	"testing"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

func TestDecodeOutcomeTaskComplete(t *testing.T) {
	text := `Implemented the parser changes.

1. What was completed: parser rewrite
2. Tests run: go test ./... all passing
5. PR URL: https://github.com/acme/widgets/pull/42

TASK COMPLETE`

	out := DecodeOutcome(text)
	if !out.TaskComplete {
		t.Error("expected TaskComplete")
	}
	if out.Blocked {
		t.Error("did not expect Blocked")
	}
	if out.PRNumber != 42 {
		t.Errorf("expected PR 42, got %d", out.PRNumber)
	}
	if out.PRURL != "https://github.com/acme/widgets/pull/42" {
		t.Errorf("unexpected PR URL %q", out.PRURL)
	}
	if !strings.Contains(out.Summary, "parser rewrite") {
		t.Errorf("summary missing report text: %q", out.Summary)
	}
	if strings.Contains(out.Summary, "TASK COMPLETE") {
		t.Error("summary should not contain the completion marker")
	}
}

func TestDecodeOutcomeBlocked(t *testing.T) {
	text := `I investigated the failing migration.

BLOCKED: production database credentials are required to proceed`

	out := DecodeOutcome(text)
	if !out.Blocked {
		t.Fatal("expected Blocked")
	}
	if out.TaskComplete {
		t.Error("blocked output must not count as complete")
	}
	if out.BlockReason != "production database credentials are required to proceed" {
		t.Errorf("unexpected reason %q", out.BlockReason)
	}
}

func TestDecodeOutcomeBlockedWinsOverMarker(t *testing.T) {
	text := `The instructions say to end with TASK COMPLETE when done.

TASK COMPLETE

BLOCKED: cannot push, remote rejects my key`

	out := DecodeOutcome(text)
	if !out.Blocked {
		t.Fatal("expected Blocked")
	}
	if out.TaskComplete {
		t.Error("blocked signal must win over completion marker")
	}
}

func TestDecodeOutcomeMarkerMustBeOwnLine(t *testing.T) {
	text := `Do not say "TASK COMPLETE" until the PR exists. Still working.`

	out := DecodeOutcome(text)
	if out.TaskComplete {
		t.Error("inline mention must not count as completion")
	}
}

func TestDecodeOutcomeNoPR(t *testing.T) {
	out := DecodeOutcome("Committed locally.\n\nTASK COMPLETE")
	if out.PRNumber != 0 || out.PRURL != "" {
		t.Errorf("expected no PR, got #%d %q", out.PRNumber, out.PRURL)
	}
}

func TestVerificationPassed(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"All checks done.\nVERIFICATION_RESULT: PASS", true},
		{"Tests fail.\nVERIFICATION_RESULT: FAIL", false},
		{"All criteria met, tests green.", true},
		{"Overall Success: NO, two criteria not met.", false},
		{"Verification failed: lint errors remain.", false},
		{"Nothing conclusive here.", false},
		// Explicit marker wins over indicator words around it.
		{"Some criteria not met earlier, now fixed.\nVERIFICATION_RESULT: PASS", true},
	}
	for _, tt := range tests {
		if got := VerificationPassed(tt.text); got != tt.want {
			t.Errorf("VerificationPassed(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestToolsForPhase(t *testing.T) {
	planning := ToolsForPhase(domain.PhasePlanning)
	for _, tool := range planning {
		if tool == "Write" || tool == "Edit" || tool == "Bash" {
			t.Errorf("planning tools must be read-only, found %q", tool)
		}
	}

	verification := ToolsForPhase(domain.PhaseVerification)
	hasBash := false
	for _, tool := range verification {
		if tool == "Bash" {
			hasBash = true
		}
		if tool == "Write" || tool == "Edit" {
			t.Errorf("verification tools must not modify files, found %q", tool)
		}
	}
	if !hasBash {
		t.Error("verification needs Bash to run tests")
	}

	working := ToolsForPhase(domain.PhaseWorking)
	if len(working) <= len(verification) {
		t.Error("working phase should have the widest tool set")
	}
}

func TestModelName(t *testing.T) {
	if ModelName("sonnet") == "sonnet" {
		t.Error("alias should resolve to an API model name")
	}
	if got := ModelName("claude-custom-model"); got != "claude-custom-model" {
		t.Errorf("explicit names must pass through, got %q", got)
	}
	if ModelName("") != ModelName("sonnet") {
		t.Error("empty model should default to sonnet")
	}
}

func TestSessionIDDeterministic(t *testing.T) {
	a := SessionID("run-1:task-3")
	b := SessionID("run-1:task-3")
	c := SessionID("run-1:task-4")
	if a != b {
		t.Error("same key must yield same session ID")
	}
	if a == c {
		t.Error("different keys must yield different session IDs")
	}
}
