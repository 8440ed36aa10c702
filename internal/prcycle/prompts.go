package prcycle

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/claude-task-master/internal/agent"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

func ciFixPrompt(prNumber int, branch, prDir string) string {
	summary := fmt.Sprintf(`CI is failing on this pull request.

The failing job logs are saved as .txt files under %s.
Read every log, understand the errors, fix them, run the tests
locally to confirm, then commit and push.`,
		filepath.Join(prDir, "ci"))
	return agent.FixPrompt(prNumber, branch, prDir, summary)
}

func mergeConflictPrompt(prNumber int, branch, prDir string) string {
	summary := fmt.Sprintf(`The pull request cannot be merged because the branch conflicts
with its base branch. The merge failure details are saved at %s.

Update the branch from the base branch, resolve every conflict,
run the tests locally to confirm, then push the updated branch.`,
		filepath.Join(prDir, "merge_conflict.txt"))
	return agent.FixPrompt(prNumber, branch, prDir, summary)
}

func reviewFixPrompt(prNumber int, branch, prDir string, comments []state.PRComment) string {
	var b strings.Builder
	b.WriteString("Unresolved review comments:\n\n")
	for _, c := range comments {
		author := c.Author
		if c.IsBot {
			author += " (bot)"
		}
		loc := c.Path
		if loc == "" {
			loc = "PR"
		}
		fmt.Fprintf(&b, "- **%s** on %s:%d\n  %s\n", author, loc, c.Line, firstLine(c.Body))
	}
	b.WriteString("\nFor each comment, make the requested change or explain in a reply why it is not needed.")
	return agent.FixPrompt(prNumber, branch, prDir, b.String())
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
