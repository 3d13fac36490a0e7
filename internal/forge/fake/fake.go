// Package fake provides an in-memory forge.Client used by every other
// package's tests, standing in for the live GitHub/GitLab/Gitea backends.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/flyingrobots/waveops/internal/forge"
)

// Client is a hand-rolled, mutex-guarded in-memory forge.Client. It
// favors a plain struct over a mocking framework, so tests assert
// against real field values instead of generated expectations.
type Client struct {
	mu sync.Mutex

	Issues          map[int]forge.Issue
	PullRequests    map[int]forge.PullRequest
	ClosingPR       map[int]int // issue number -> PR number
	Checks          map[string]forge.CheckAggregate
	Comments        map[int][]forge.Comment
	Deployments     []forge.Deployment
	DeploymentSeq   int64
	DeployStatuses  map[int64]forge.DeploymentStatus
	CheckRuns       []forge.CheckRun
	TeamMembers     map[string][]string
	TeamRepos       map[string][]string
	RepoIssues      []forge.Issue
	RateLimitValue  forge.RateLimit

	// FailTeamAssignment, when set, causes CreateTeamAssignment to
	// report the named issue numbers as failed, simulating a partial
	// team-assignment failure.
	FailTeamAssignment map[int]string
}

// New returns an empty fake client with maps initialized.
func New() *Client {
	return &Client{
		Issues:         map[int]forge.Issue{},
		PullRequests:   map[int]forge.PullRequest{},
		ClosingPR:      map[int]int{},
		Checks:         map[string]forge.CheckAggregate{},
		Comments:       map[int][]forge.Comment{},
		DeployStatuses: map[int64]forge.DeploymentStatus{},
		TeamMembers:    map[string][]string{},
		TeamRepos:      map[string][]string{},
		RateLimitValue: forge.RateLimit{Limit: 5000, Remaining: 5000},
	}
}

var _ forge.Client = (*Client)(nil)

func (c *Client) GetIssue(_ context.Context, number int) (*forge.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.Issues[number]
	if !ok {
		return nil, &forge.Error{Kind: forge.ErrNotFound, Op: "GetIssue"}
	}
	return &issue, nil
}

func (c *Client) UpdateIssue(_ context.Context, number int, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	issue, ok := c.Issues[number]
	if !ok {
		return &forge.Error{Kind: forge.ErrNotFound, Op: "UpdateIssue"}
	}
	issue.Body = body
	c.Issues[number] = issue
	return nil
}

func (c *Client) GetIssueComments(_ context.Context, number int) ([]forge.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]forge.Comment{}, c.Comments[number]...), nil
}

func (c *Client) AddIssueComment(_ context.Context, number int, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Comments[number] = append(c.Comments[number], forge.Comment{ID: int64(len(c.Comments[number]) + 1), Body: body})
	return nil
}

func (c *Client) SearchIssues(_ context.Context, query string) ([]forge.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []forge.Issue
	for _, i := range c.Issues {
		out = append(out, i)
	}
	_ = query
	return out, nil
}

func (c *Client) GetPullRequest(_ context.Context, number int) (*forge.PullRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.PullRequests[number]
	if !ok {
		return nil, &forge.Error{Kind: forge.ErrNotFound, Op: "GetPullRequest"}
	}
	return &pr, nil
}

func (c *Client) GetClosingPullRequestFor(_ context.Context, issueNumber int) (*forge.PullRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prNum, ok := c.ClosingPR[issueNumber]
	if !ok {
		return nil, nil
	}
	pr, ok := c.PullRequests[prNum]
	if !ok {
		return nil, nil
	}
	return &pr, nil
}

func (c *Client) GetCommitChecks(_ context.Context, sha string) (*forge.CheckAggregate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	agg, ok := c.Checks[sha]
	if !ok {
		return nil, &forge.Error{Kind: forge.ErrNotFound, Op: "GetCommitChecks"}
	}
	return &agg, nil
}

func (c *Client) CreateDeployment(_ context.Context, in forge.DeploymentInput) (*forge.Deployment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeploymentSeq++
	d := forge.Deployment{ID: c.DeploymentSeq, Environment: in.Environment, HTMLURL: fmt.Sprintf("https://forge.example/deployments/%d", c.DeploymentSeq)}
	c.Deployments = append(c.Deployments, d)
	c.DeployStatuses[d.ID] = in.Status
	return &d, nil
}

func (c *Client) UpdateDeploymentStatus(_ context.Context, deploymentID int64, status forge.DeploymentStatus, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.DeployStatuses[deploymentID]; !ok {
		return &forge.Error{Kind: forge.ErrNotFound, Op: "UpdateDeploymentStatus"}
	}
	c.DeployStatuses[deploymentID] = status
	return nil
}

func (c *Client) CreateCheckRun(_ context.Context, in forge.CheckRunInput) (*forge.CheckRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cr := forge.CheckRun{ID: int64(len(c.CheckRuns) + 1), HTMLURL: fmt.Sprintf("https://forge.example/check-runs/%d", len(c.CheckRuns)+1)}
	c.CheckRuns = append(c.CheckRuns, cr)
	_ = in
	return &cr, nil
}

func (c *Client) GetTeamMembers(_ context.Context, team string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.TeamMembers[team]...), nil
}

func (c *Client) GetRepositoryIssues(_ context.Context, labels []string) ([]forge.Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = labels
	return append([]forge.Issue{}, c.RepoIssues...), nil
}

func (c *Client) GetTeamRepositories(_ context.Context, team string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.TeamRepos[team]...), nil
}

func (c *Client) CreateTeamAssignment(_ context.Context, team string, issueNumbers []int) (*forge.TeamAssignmentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = team
	result := &forge.TeamAssignmentResult{Failed: map[int]string{}}
	for _, n := range issueNumbers {
		if reason, fail := c.FailTeamAssignment[n]; fail {
			result.Failed[n] = reason
			continue
		}
		result.Assigned = append(result.Assigned, n)
	}
	if len(result.Failed) > 0 {
		return result, &forge.Error{Kind: forge.ErrTeamAssignment, Op: "CreateTeamAssignment", Partial: result}
	}
	return result, nil
}

func (c *Client) GetRateLimit(_ context.Context) (*forge.RateLimit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rl := c.RateLimitValue
	return &rl, nil
}
