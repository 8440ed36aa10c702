package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CheckState is the combined CI rollup state of a PR head commit
type CheckState string

const (
	ChecksPending CheckState = "PENDING"
	ChecksSuccess CheckState = "SUCCESS"
	ChecksFailure CheckState = "FAILURE"
	ChecksError   CheckState = "ERROR"
)

// Failed reports whether the rollup is a terminal failure
func (s CheckState) Failed() bool {
	return s == ChecksFailure || s == ChecksError
}

// CheckDetail is one CI check or commit status on the head commit
type CheckDetail struct {
	Name       string
	Status     string
	Conclusion string
	URL        string
}

// ReviewComment is one comment inside a review thread
type ReviewComment struct {
	ThreadID string
	Author   string
	Path     string
	Line     int
	Body     string
	Resolved bool
}

// IsBot reports whether the comment author is an app integration.
// Platform bot accounts carry a "[bot]" login suffix.
func (rc ReviewComment) IsBot() bool {
	return IsBotLogin(rc.Author)
}

// IsBotLogin reports whether a login belongs to a bot account
func IsBotLogin(login string) bool {
	return strings.HasSuffix(login, "[bot]")
}

// PRStatus summarizes CI state and review threads for a pull request
type PRStatus struct {
	Number            int
	CheckState        CheckState
	Checks            []CheckDetail
	ChecksPassed      int
	ChecksFailed      int
	ChecksPending     int
	ChecksSkipped     int
	UnresolvedThreads int
	TotalThreads      int
	Comments          []ReviewComment
	Mergeable         string
	BaseBranch        string
}

// AllChecksSettled reports whether no check is still queued or running
func (s *PRStatus) AllChecksSettled() bool {
	return s.ChecksPending == 0 && s.CheckState != ChecksPending
}

const prStatusQuery = `
query($owner: String!, $repo: String!, $pr: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $pr) {
      mergeable
      baseRefName
      commits(last: 1) {
        nodes {
          commit {
            statusCheckRollup {
              state
              contexts(first: 50) {
                nodes {
                  __typename
                  ... on CheckRun {
                    name
                    status
                    conclusion
                    detailsUrl
                  }
                  ... on StatusContext {
                    context
                    state
                    targetUrl
                  }
                }
              }
            }
          }
        }
      }
      reviewThreads(first: 100) {
        nodes {
          id
          isResolved
          comments(first: 10) {
            nodes {
              author { login }
              body
              path
              line
            }
          }
        }
      }
    }
  }
}`

type prStatusResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				Mergeable   string `json:"mergeable"`
				BaseRefName string `json:"baseRefName"`
				Commits     struct {
					Nodes []struct {
						Commit struct {
							StatusCheckRollup *struct {
								State    string `json:"state"`
								Contexts struct {
									Nodes []struct {
										Typename   string `json:"__typename"`
										Name       string `json:"name"`
										Status     string `json:"status"`
										Conclusion string `json:"conclusion"`
										DetailsURL string `json:"detailsUrl"`
										Context    string `json:"context"`
										State      string `json:"state"`
										TargetURL  string `json:"targetUrl"`
									} `json:"nodes"`
								} `json:"contexts"`
							} `json:"statusCheckRollup"`
						} `json:"commit"`
					} `json:"nodes"`
				} `json:"commits"`
				ReviewThreads struct {
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								Author struct {
									Login string `json:"login"`
								} `json:"author"`
								Body string `json:"body"`
								Path string `json:"path"`
								Line int    `json:"line"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
}

// PRStatus fetches CI rollup state and review threads in one GraphQL call
func (c *Client) PRStatus(ctx context.Context, prNumber int) (*PRStatus, error) {
	owner, repo, err := c.repoNameWithOwner(ctx)
	if err != nil {
		return nil, err
	}

	out, err := c.run(ctx, "api", "graphql",
		"-f", "query="+prStatusQuery,
		"-F", "owner="+owner,
		"-F", "repo="+repo,
		"-F", "pr="+strconv.Itoa(prNumber),
	)
	if err != nil {
		return nil, err
	}

	var resp prStatusResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parsing pr status response: %w", err)
	}
	return parsePRStatus(prNumber, &resp), nil
}

func parsePRStatus(prNumber int, resp *prStatusResponse) *PRStatus {
	pr := resp.Data.Repository.PullRequest
	status := &PRStatus{
		Number:     prNumber,
		CheckState: ChecksPending,
		Mergeable:  pr.Mergeable,
		BaseBranch: pr.BaseRefName,
	}
	if status.BaseBranch == "" {
		status.BaseBranch = "main"
	}

	if len(pr.Commits.Nodes) > 0 && pr.Commits.Nodes[0].Commit.StatusCheckRollup != nil {
		rollup := pr.Commits.Nodes[0].Commit.StatusCheckRollup
		status.CheckState = CheckState(rollup.State)
		for _, node := range rollup.Contexts.Nodes {
			var detail CheckDetail
			switch node.Typename {
			case "CheckRun":
				detail = CheckDetail{Name: node.Name, Status: node.Status, Conclusion: node.Conclusion, URL: node.DetailsURL}
			case "StatusContext":
				// StatusContext has no separate conclusion, its state is both
				detail = CheckDetail{Name: node.Context, Status: node.State, Conclusion: node.State, URL: node.TargetURL}
			default:
				continue
			}
			status.Checks = append(status.Checks, detail)
			switch strings.ToUpper(detail.Conclusion) {
			case "SUCCESS", "NEUTRAL":
				status.ChecksPassed++
			case "FAILURE", "ERROR", "CANCELLED", "TIMED_OUT":
				status.ChecksFailed++
			case "SKIPPED":
				status.ChecksSkipped++
			default:
				status.ChecksPending++
			}
		}
	}

	for _, thread := range pr.ReviewThreads.Nodes {
		status.TotalThreads++
		if !thread.IsResolved {
			status.UnresolvedThreads++
		}
		for _, comment := range thread.Comments.Nodes {
			status.Comments = append(status.Comments, ReviewComment{
				ThreadID: thread.ID,
				Author:   comment.Author.Login,
				Path:     comment.Path,
				Line:     comment.Line,
				Body:     comment.Body,
				Resolved: thread.IsResolved,
			})
		}
	}
	return status
}

// UnresolvedComments returns the comments from unresolved threads
func (s *PRStatus) UnresolvedComments() []ReviewComment {
	var out []ReviewComment
	for _, c := range s.Comments {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}
