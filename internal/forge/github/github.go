// Package github implements internal/forge.Client against the hosted
// GitHub API via google/go-github, the heaviest of the three backends
// promoted from indirect dependencies pulled in transitively by
// go-selfupdate's multi-provider release detection.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v74/github"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/flyingrobots/waveops/internal/forge"
)

const (
	teamMembersTTL   = 15 * time.Minute
	issuesTTL        = 5 * time.Minute
	repositoriesTTL  = 30 * time.Minute
	cacheSize        = 2048
)

// Client implements forge.Client against github.com or a GitHub
// Enterprise instance.
type Client struct {
	gh    *github.Client
	owner string
	repo  string

	throttle *forge.Throttle

	issueCache  *forge.TTLCache[*github.Issue]
	membersCache *forge.TTLCache[[]string]
	reposCache   *forge.TTLCache[[]string]
}

// New builds a Client authenticated with token, targeting owner/repo. A
// non-empty baseURL selects a GitHub Enterprise instance instead of
// github.com.
func New(token, owner, repo, baseURL string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Transport = &oauth2.Transport{Source: ts, Base: rc.HTTPClient.Transport}
	rc.Logger = nil

	gh := github.NewClient(rc.StandardClient())
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configure github enterprise base url: %w", err)
		}
	}

	return &Client{
		gh:           gh,
		owner:        owner,
		repo:         repo,
		throttle:     forge.NewThrottle(10, 20),
		issueCache:   forge.NewTTLCache[*github.Issue](cacheSize, issuesTTL),
		membersCache: forge.NewTTLCache[[]string](cacheSize, teamMembersTTL),
		reposCache:   forge.NewTTLCache[[]string](cacheSize, repositoriesTTL),
	}, nil
}

var _ forge.Client = (*Client)(nil)

func (c *Client) wait(ctx context.Context) error {
	return c.throttle.Wait(ctx)
}

func (c *Client) observeRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}
	c.throttle.Adjust(forge.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		ResetAt:   resp.Rate.Reset.Time,
	}, time.Now())
}

func (c *Client) classify(op string, err error, resp *github.Response) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.StatusCode == 404 {
		return &forge.Error{Kind: forge.ErrNotFound, Op: op, Cause: err}
	}
	if resp != nil && resp.StatusCode == 403 {
		if resp.Rate.Remaining == 0 {
			return &forge.Error{Kind: forge.ErrRateLimited, Op: op, ResetAt: resp.Rate.Reset.Time, Cause: err}
		}
		return &forge.Error{Kind: forge.ErrPermissionDenied, Op: op, Cause: err}
	}
	if rlErr, ok := err.(*github.RateLimitError); ok {
		return &forge.Error{Kind: forge.ErrRateLimited, Op: op, ResetAt: rlErr.Rate.Reset.Time, Cause: err}
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
	gi, resp, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetIssue", err, resp)
	}
	c.issueCache.Set(key, gi)
	return toIssue(gi), nil
}

func (c *Client) UpdateIssue(ctx context.Context, number int, body string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{Body: &body})
	c.observeRateLimit(resp)
	c.issueCache.Invalidate(issueCacheKey(c.owner, c.repo, number))
	if err != nil {
		return c.classify("UpdateIssue", err, resp)
	}
	return nil
}

func (c *Client) GetIssueComments(ctx context.Context, number int) ([]forge.Comment, error) {
	var out []forge.Comment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		comments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetIssueComments", err, resp)
		}
		for _, gc := range comments {
			out = append(out, forge.Comment{ID: gc.GetID(), Body: gc.GetBody()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) AddIssueComment(ctx context.Context, number int, body string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{Body: &body})
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
	result, resp, err := c.gh.Search.Issues(ctx, query, &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 100}})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("SearchIssues", err, resp)
	}
	out := make([]forge.Issue, 0, len(result.Issues))
	for i := range result.Issues {
		out = append(out, *toIssue(&result.Issues[i]))
	}
	return out, nil
}

func (c *Client) GetPullRequest(ctx context.Context, number int) (*forge.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	pr, resp, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetPullRequest", err, resp)
	}
	return toPullRequest(pr), nil
}

// GetClosingPullRequestFor walks the issue's timeline looking for a
// cross-referenced pull request, then returns the first such PR that is
// merged. This faithfully answers "what PR closed this issue" rather
// than guessing from the most recently linked PR.
func (c *Client) GetClosingPullRequestFor(ctx context.Context, issueNumber int) (*forge.PullRequest, error) {
	opts := &github.ListOptions{PerPage: 100}
	var candidates []int
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		events, resp, err := c.gh.Issues.ListIssueTimeline(ctx, c.owner, c.repo, issueNumber, opts)
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetClosingPullRequestFor", err, resp)
		}
		for _, ev := range events {
			if ev.GetEvent() != "cross-referenced" {
				continue
			}
			src := ev.GetSource()
			if src == nil || src.Issue == nil || src.Issue.PullRequestLinks == nil {
				continue
			}
			candidates = append(candidates, src.Issue.GetNumber())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	for _, prNumber := range candidates {
		pr, err := c.GetPullRequest(ctx, prNumber)
		if err != nil {
			if fErr, ok := err.(*forge.Error); ok && fErr.Kind == forge.ErrNotFound {
				continue
			}
			return nil, err
		}
		if pr.Merged {
			return pr, nil
		}
	}
	return nil, nil
}

func (c *Client) GetCommitChecks(ctx context.Context, sha string) (*forge.CheckAggregate, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	runs, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, &github.ListCheckRunsOptions{})
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetCommitChecks", err, resp)
	}

	agg := forge.CheckAggregate{State: "success", TotalCount: runs.GetTotal()}
	for _, run := range runs.CheckRuns {
		switch run.GetStatus() {
		case "completed":
			if run.GetConclusion() != "success" && run.GetConclusion() != "neutral" && run.GetConclusion() != "skipped" {
				agg.FailedCount++
			}
		default:
			if agg.State != "failure" {
				agg.State = "pending"
			}
		}
	}
	if agg.FailedCount > 0 {
		agg.State = "failure"
	}
	return &agg, nil
}

func (c *Client) CreateDeployment(ctx context.Context, in forge.DeploymentInput) (*forge.Deployment, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ref := in.Ref
	if ref == "" {
		ref = "main"
	}
	req := &github.DeploymentRequest{
		Ref:         &ref,
		Environment: &in.Environment,
		Description: &in.Description,
		Payload:     in.Payload,
		AutoMerge:   github.Ptr(false),
	}
	dep, resp, err := c.gh.Repositories.CreateDeployment(ctx, c.owner, c.repo, req)
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateDeployment", err, resp)
	}

	statusReq := &github.DeploymentStatusRequest{State: statusString(in.Status)}
	if _, _, err := c.gh.Repositories.CreateDeploymentStatus(ctx, c.owner, c.repo, dep.GetID(), statusReq); err != nil {
		return nil, c.classify("CreateDeployment(status)", err, nil)
	}

	return &forge.Deployment{ID: dep.GetID(), Environment: dep.GetEnvironment(), HTMLURL: dep.GetURL()}, nil
}

func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status forge.DeploymentStatus, description string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req := &github.DeploymentStatusRequest{State: statusString(status), Description: &description}
	_, resp, err := c.gh.Repositories.CreateDeploymentStatus(ctx, c.owner, c.repo, deploymentID, req)
	c.observeRateLimit(resp)
	if err != nil {
		return c.classify("UpdateDeploymentStatus", err, resp)
	}
	return nil
}

func (c *Client) CreateCheckRun(ctx context.Context, in forge.CheckRunInput) (*forge.CheckRun, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	opts := github.CreateCheckRunOptions{
		Name:    in.Name,
		HeadSHA: in.HeadSHA,
		Status:  github.Ptr(string(in.Status)),
		Output: &github.CheckRunOutput{
			Title:   &in.Title,
			Summary: &in.Summary,
		},
	}
	if in.Status == forge.CheckRunCompleted {
		concl := string(in.Conclusion)
		opts.Conclusion = &concl
	}
	run, resp, err := c.gh.Checks.CreateCheckRun(ctx, c.owner, c.repo, opts)
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateCheckRun", err, resp)
	}
	return &forge.CheckRun{ID: run.GetID(), HTMLURL: run.GetHTMLURL()}, nil
}

func (c *Client) GetTeamMembers(ctx context.Context, team string) ([]string, error) {
	key := c.owner + "/" + team
	if cached, ok := c.membersCache.Get(key); ok {
		return cached, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out []string
	opts := &github.TeamListTeamMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		members, resp, err := c.gh.Teams.ListTeamMembersBySlug(ctx, c.owner, team, opts)
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetTeamMembers", err, resp)
		}
		for _, m := range members {
			out = append(out, m.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.membersCache.Set(key, out)
	return out, nil
}

func (c *Client) GetRepositoryIssues(ctx context.Context, labels []string) ([]forge.Issue, error) {
	var out []forge.Issue
	opts := &github.IssueListByRepoOptions{Labels: labels, ListOptions: github.ListOptions{PerPage: 100}}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetRepositoryIssues", err, resp)
		}
		for _, gi := range issues {
			out = append(out, *toIssue(gi))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) GetTeamRepositories(ctx context.Context, team string) ([]string, error) {
	key := c.owner + "/" + team
	if cached, ok := c.reposCache.Get(key); ok {
		return cached, nil
	}
	var out []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		repos, resp, err := c.gh.Teams.ListTeamReposBySlug(ctx, c.owner, team, opts)
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetTeamRepositories", err, resp)
		}
		for _, r := range repos {
			out = append(out, r.GetFullName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.reposCache.Set(key, out)
	return out, nil
}

// CreateTeamAssignment assigns issues to team by applying a "team:<team>"
// label to each, GitHub having no native concept of team-owned issues.
// Per-issue failures are collected into a partial result rather than
// aborting, "team-assignment-error(partial-result)".
func (c *Client) CreateTeamAssignment(ctx context.Context, team string, issueNumbers []int) (*forge.TeamAssignmentResult, error) {
	result := &forge.TeamAssignmentResult{Failed: map[int]string{}}
	label := "team:" + team
	for _, number := range issueNumbers {
		if err := c.wait(ctx); err != nil {
			result.Failed[number] = err.Error()
			continue
		}
		_, resp, err := c.gh.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, []string{label})
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

func (c *Client) GetRateLimit(ctx context.Context) (*forge.RateLimit, error) {
	limits, resp, err := c.gh.RateLimit.Get(ctx)
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetRateLimit", err, resp)
	}
	core := limits.GetCore()
	return &forge.RateLimit{Limit: core.Limit, Remaining: core.Remaining, ResetAt: core.Reset.Time}, nil
}

func toIssue(gi *github.Issue) *forge.Issue {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.GetName())
	}
	return &forge.Issue{
		Number:   gi.GetNumber(),
		Title:    gi.GetTitle(),
		Body:     gi.GetBody(),
		State:    gi.GetState(),
		Labels:   labels,
		ClosedAt: gi.GetClosedAt().Time,
		HTMLURL:  gi.GetHTMLURL(),
	}
}

func toPullRequest(pr *github.PullRequest) *forge.PullRequest {
	return &forge.PullRequest{
		Number:   pr.GetNumber(),
		State:    pr.GetState(),
		Merged:   pr.GetMerged(),
		MergedAt: pr.GetMergedAt().Time,
		HeadSHA:  pr.GetHead().GetSHA(),
		HTMLURL:  pr.GetHTMLURL(),
	}
}

func statusString(s forge.DeploymentStatus) *string {
	v := string(s)
	return &v
}
