package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WorkflowRun is one CI workflow run
type WorkflowRun struct {
	ID         int64  `json:"databaseId"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
	HeadBranch string `json:"headBranch"`
	Event      string `json:"event"`
}

// WorkflowRuns lists recent workflow runs, optionally filtered by branch
func (c *Client) WorkflowRuns(ctx context.Context, limit int, branch string) ([]WorkflowRun, error) {
	args := []string{
		"run", "list",
		"--limit", strconv.Itoa(limit),
		"--json", "databaseId,name,status,conclusion,url,headBranch,event",
	}
	if branch != "" {
		args = append(args, "--branch", branch)
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var runs []WorkflowRun
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("parsing run list: %w", err)
	}
	return runs, nil
}

// FailedRunLogs fetches logs from the failing jobs of a workflow run,
// truncated to maxLines. With runID 0 the latest failed run is used.
func (c *Client) FailedRunLogs(ctx context.Context, runID int64, branch string, maxLines int) (string, error) {
	if runID == 0 {
		runs, err := c.WorkflowRuns(ctx, 5, branch)
		if err != nil {
			return "", err
		}
		for _, run := range runs {
			if run.Conclusion == "failure" || run.Conclusion == "cancelled" {
				runID = run.ID
				break
			}
		}
		if runID == 0 {
			if len(runs) == 0 {
				return "", nil
			}
			runID = runs[0].ID
		}
	}

	out, err := c.run(ctx, "run", "view", strconv.FormatInt(runID, 10), "--log-failed")
	if err != nil {
		return "", err
	}
	return truncateLines(strings.TrimSpace(string(out)), maxLines), nil
}

func truncateLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n") +
		fmt.Sprintf("\n\n... (%d more lines)", len(lines)-maxLines)
}
