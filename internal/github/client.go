package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client runs collaboration-platform operations through the gh CLI
type Client struct {
	repoDir string

	// run is replaceable for tests
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewClient returns a client operating in the given repository directory
func NewClient(repoDir string) *Client {
	c := &Client{repoDir: repoDir}
	c.run = c.execGH
	return c
}

// CheckAuth verifies the gh CLI is installed and authenticated
func (c *Client) CheckAuth(ctx context.Context) error {
	if _, err := c.run(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("gh CLI not available or not authenticated, run 'gh auth login': %w", err)
	}
	return nil
}

func (c *Client) execGH(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = c.repoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("gh %s: %s: %w", args[0], msg, err)
		}
		return nil, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return out, nil
}

// PRForCurrentBranch returns the PR number for the checked-out branch,
// or 0 if no PR exists.
func (c *Client) PRForCurrentBranch(ctx context.Context) (int, error) {
	out, err := c.run(ctx, "pr", "view", "--json", "number")
	if err != nil {
		// gh exits nonzero when the branch has no PR
		return 0, nil
	}
	var resp struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("parsing pr view output: %w", err)
	}
	return resp.Number, nil
}

// CreatePR opens a pull request for the current branch and returns its number
func (c *Client) CreatePR(ctx context.Context, title, body, base string) (int, error) {
	if base == "" {
		base = "main"
	}
	out, err := c.run(ctx, "pr", "create", "--title", title, "--body", body, "--base", base)
	if err != nil {
		return 0, err
	}
	// Output is the PR URL: https://github.com/owner/repo/pull/123
	url := strings.TrimSpace(string(out))
	parts := strings.Split(url, "/")
	num, convErr := strconv.Atoi(parts[len(parts)-1])
	if convErr != nil {
		return 0, fmt.Errorf("unexpected pr create output %q", url)
	}
	return num, nil
}

// Merge squash-merges a pull request
func (c *Client) Merge(ctx context.Context, prNumber int) error {
	_, err := c.run(ctx, "pr", "merge", strconv.Itoa(prNumber), "--squash", "--delete-branch")
	return err
}

// IsMerged reports whether a pull request has been merged, by any actor
func (c *Client) IsMerged(ctx context.Context, prNumber int) (bool, error) {
	out, err := c.run(ctx, "pr", "view", strconv.Itoa(prNumber), "--json", "state")
	if err != nil {
		return false, err
	}
	var resp struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return false, fmt.Errorf("parsing pr state: %w", err)
	}
	return resp.State == "MERGED", nil
}

// repoNameWithOwner returns the "owner/repo" identifier for the
// repository the client operates in.
func (c *Client) repoNameWithOwner(ctx context.Context) (string, string, error) {
	out, err := c.run(ctx, "repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner")
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(strings.TrimSpace(string(out)), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected repo identifier %q", string(out))
	}
	return parts[0], parts[1], nil
}
