package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PRComment is one review comment handed to a fix session
type PRComment struct {
	ThreadID string
	Author   string
	Path     string
	Line     int
	Body     string
	Resolved bool
	IsBot    bool
}

// PRDir returns (and creates) the context directory for one submission:
// <state>/debugging/pr/<number>/
func (m *Manager) PRDir(prNumber int) (string, error) {
	dir := filepath.Join(m.dir, "debugging", "pr", fmt.Sprintf("%d", prNumber))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// SavePRComments writes each review comment to its own file under
// <pr dir>/comments/ so the fix session can read them one by one.
// Both human and bot comments are written; the bot flag is surfaced
// in the file so the session sees the author kind.
func (m *Manager) SavePRComments(prNumber int, comments []PRComment) error {
	prDir, err := m.PRDir(prNumber)
	if err != nil {
		return err
	}
	commentsDir := filepath.Join(prDir, "comments")
	if err := os.RemoveAll(commentsDir); err != nil {
		return err
	}
	if err := os.MkdirAll(commentsDir, 0755); err != nil {
		return err
	}

	for i, c := range comments {
		status := "Unresolved"
		if c.Resolved {
			status = "Resolved"
		}
		author := c.Author
		if c.IsBot {
			author += " (bot)"
		}
		content := fmt.Sprintf("Thread ID: %s\nFile: %s\nLine: %d\nAuthor: %s\nStatus: %s\n\n%s\n",
			c.ThreadID, c.Path, c.Line, author, status, c.Body)

		name := fmt.Sprintf("%03d_%s_L%d.txt", i+1, sanitizePath(c.Path), c.Line)
		if err := os.WriteFile(filepath.Join(commentsDir, name), []byte(content), 0644); err != nil {
			return err
		}
	}

	// Summary file listing commented paths
	paths := map[string]struct{}{}
	for _, c := range comments {
		paths[c.Path] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d Review Comments\nTotal: %d comments\n\nFiles with comments:\n", prNumber, len(comments))
	for _, p := range sorted {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	return os.WriteFile(filepath.Join(prDir, "comments_summary.txt"), []byte(b.String()), 0644)
}

// SaveCIFailure writes one failing check's logs under <pr dir>/ci/
func (m *Manager) SaveCIFailure(prNumber int, checkName, logs string) error {
	prDir, err := m.PRDir(prNumber)
	if err != nil {
		return err
	}
	ciDir := filepath.Join(prDir, "ci")
	if err := os.MkdirAll(ciDir, 0755); err != nil {
		return err
	}

	content := fmt.Sprintf("CI Check Failed: %s\nPR: #%d\n\n%s\n", checkName, prNumber, logs)
	name := fmt.Sprintf("failed_%s.txt", sanitizePath(checkName))
	return os.WriteFile(filepath.Join(ciDir, name), []byte(content), 0644)
}

// SaveMergeConflict records a refused merge's conflict details under
// the submission's context directory for the fix session to read
func (m *Manager) SaveMergeConflict(prNumber int, details string) error {
	prDir, err := m.PRDir(prNumber)
	if err != nil {
		return err
	}
	content := fmt.Sprintf("PR #%d could not be merged.\n\n%s\n", prNumber, details)
	return os.WriteFile(filepath.Join(prDir, "merge_conflict.txt"), []byte(content), 0644)
}

// ClearPRContext removes the submission's context directory after merge
func (m *Manager) ClearPRContext(prNumber int) error {
	dir := filepath.Join(m.dir, "debugging", "pr", fmt.Sprintf("%d", prNumber))
	return os.RemoveAll(dir)
}

func sanitizePath(p string) string {
	if p == "" {
		return "general"
	}
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return r.Replace(p)
}
