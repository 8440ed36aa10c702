package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/console"
	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// saveProgress re-renders the human-readable progress tracker. A
// failure to write it never interrupts the run.
func (o *Orchestrator) saveProgress(run *domain.Run, note string) {
	if err := o.State.SaveProgress(renderProgress(run, note)); err != nil {
		console.Warning("progress not saved: %v", err)
	}
}

// renderProgress formats the run state as a markdown tracker
func renderProgress(run *domain.Run, note string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Progress\n\n")
	fmt.Fprintf(&b, "**Goal:** %s\n\n", run.Goal)
	fmt.Fprintf(&b, "**Status:** %s | **Sessions:** %d", run.Status, run.SessionCount)
	if run.Options.MaxSessions > 0 {
		fmt.Fprintf(&b, "/%d", run.Options.MaxSessions)
	}
	b.WriteString("\n\n")

	if len(run.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		next := run.NextTask()
		for _, t := range run.Tasks {
			switch {
			case t.Done:
				fmt.Fprintf(&b, "- ✓ %s\n", t.Description)
			case next != nil && t.Index == next.Index:
				fmt.Fprintf(&b, "- → %s\n", t.Description)
			default:
				fmt.Fprintf(&b, "- · %s\n", t.Description)
			}
		}
		b.WriteString("\n")
	}

	if run.PR != nil {
		fmt.Fprintf(&b, "## Submission\n\nPR #%d on `%s`, stage `%s`\n\n",
			run.PR.Number, run.PR.Branch, run.PR.Stage)
	}

	if note != "" {
		fmt.Fprintf(&b, "## Latest\n\n%s\n\n", note)
	}

	fmt.Fprintf(&b, "_Updated %s_\n", time.Now().Format(time.RFC3339))
	return b.String()
}
