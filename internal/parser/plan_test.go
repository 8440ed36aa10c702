package parser

import (
	"strings"
	"testing"
)

const samplePlan = `# Plan

- [ ] Set up project scaffolding
- [x] Write the schema
- [ ] Implement the API

Some closing notes.
`

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(samplePlan))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	if len(plan.Tasks) != 3 {
		t.Fatalf("task count = %d, want 3", len(plan.Tasks))
	}
	if plan.Tasks[0].Done {
		t.Error("task 0 should not be done")
	}
	if !plan.Tasks[1].Done {
		t.Error("task 1 should be done")
	}
	if plan.Tasks[2].Description != "Implement the API" {
		t.Errorf("task 2 description = %q", plan.Tasks[2].Description)
	}
	for i, task := range plan.Tasks {
		if task.Index != i {
			t.Errorf("task %d has index %d", i, task.Index)
		}
	}
}

func TestParsePlan_Empty(t *testing.T) {
	plan, err := ParsePlan([]byte("# Plan\n\nNothing here.\n"))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Errorf("task count = %d, want 0", len(plan.Tasks))
	}
}

func TestPlan_MarkDone(t *testing.T) {
	plan, _ := ParsePlan([]byte(samplePlan))

	if err := plan.MarkDone(0); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	rendered := string(plan.Render())
	if !strings.Contains(rendered, "- [x] Set up project scaffolding") {
		t.Errorf("rendered plan missing completed marker:\n%s", rendered)
	}
	// Surrounding content is preserved
	if !strings.Contains(rendered, "Some closing notes.") {
		t.Error("rendered plan lost non-task content")
	}

	// Round-trip keeps the completion
	reparsed, err := ParsePlan([]byte(rendered))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reparsed.Tasks[0].Done {
		t.Error("completion lost on round-trip")
	}
}

func TestPlan_MarkDone_OutOfBounds(t *testing.T) {
	plan, _ := ParsePlan([]byte(samplePlan))
	if err := plan.MarkDone(10); err == nil {
		t.Error("MarkDone(10) should fail")
	}
}

func TestPlan_Append(t *testing.T) {
	plan, _ := ParsePlan([]byte(samplePlan))

	index := plan.Append("Address verification gaps")
	if index != 3 {
		t.Errorf("appended index = %d, want 3", index)
	}

	reparsed, err := ParsePlan(plan.Render())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(reparsed.Tasks) != 4 {
		t.Fatalf("task count after append = %d, want 4", len(reparsed.Tasks))
	}
	if reparsed.Tasks[3].Description != "Address verification gaps" {
		t.Errorf("appended description = %q", reparsed.Tasks[3].Description)
	}
}

func TestParsePlan_Frontmatter(t *testing.T) {
	content := `---
model: opus
max_sessions: 20
---
# Plan

- [ ] Only task
`
	plan, err := ParsePlan([]byte(content))
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Frontmatter.Model != "opus" {
		t.Errorf("frontmatter model = %q, want opus", plan.Frontmatter.Model)
	}
	if plan.Frontmatter.MaxSessions != 20 {
		t.Errorf("frontmatter max_sessions = %d, want 20", plan.Frontmatter.MaxSessions)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("task count = %d, want 1", len(plan.Tasks))
	}

	// Frontmatter survives render
	rendered := string(plan.Render())
	if !strings.HasPrefix(rendered, "---\n") {
		t.Errorf("rendered plan lost frontmatter:\n%s", rendered)
	}
}
