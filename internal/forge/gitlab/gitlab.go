// Package gitlab implements internal/forge.Client against a GitLab
// instance (gitlab.com or self-managed) via gitlab.com/gitlab-org/api/client-go,
// the second of the three providers go-selfupdate's release detection
// pulled in transitively.
package gitlab

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/flyingrobots/waveops/internal/forge"
)

const (
	teamMembersTTL  = 15 * time.Minute
	issuesTTL       = 5 * time.Minute
	repositoriesTTL = 30 * time.Minute
	cacheSize       = 2048
)

// Client implements forge.Client against one GitLab project. Teams map
// to GitLab groups, since GitLab has no first-class "team" resource.
type Client struct {
	gl      *gl.Client
	project string // "owner/repo" path, also usable as a numeric or namespaced project ID

	throttle *forge.Throttle

	issueCache   *forge.TTLCache[*gl.Issue]
	membersCache *forge.TTLCache[[]string]
	reposCache   *forge.TTLCache[[]string]
}

// New builds a Client authenticated with token against project
// ("owner/repo"). A non-empty baseURL selects a self-managed instance.
func New(token, project, baseURL string) (*Client, error) {
	opts := []gl.ClientOptionFunc{}
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	client, err := gl.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("build gitlab client: %w", err)
	}
	return &Client{
		gl:           client,
		project:      project,
		throttle:     forge.NewThrottle(10, 20),
		issueCache:   forge.NewTTLCache[*gl.Issue](cacheSize, issuesTTL),
		membersCache: forge.NewTTLCache[[]string](cacheSize, teamMembersTTL),
		reposCache:   forge.NewTTLCache[[]string](cacheSize, repositoriesTTL),
	}, nil
}

var _ forge.Client = (*Client)(nil)

func (c *Client) wait(ctx context.Context) error { return c.throttle.Wait(ctx) }

func (c *Client) observeRateLimit(resp *gl.Response) {
	if resp == nil {
		return
	}
	remaining, _ := strconv.Atoi(resp.Header.Get("RateLimit-Remaining"))
	limit, _ := strconv.Atoi(resp.Header.Get("RateLimit-Limit"))
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64)
	if limit == 0 {
		return
	}
	c.throttle.Adjust(forge.RateLimit{Limit: limit, Remaining: remaining, ResetAt: time.Unix(resetUnix, 0)}, time.Now())
}

func (c *Client) classify(op string, err error, resp *gl.Response) error {
	if err == nil {
		return nil
	}
	if resp != nil {
		switch resp.StatusCode {
		case 404:
			return &forge.Error{Kind: forge.ErrNotFound, Op: op, Cause: err}
		case 403:
			return &forge.Error{Kind: forge.ErrPermissionDenied, Op: op, Cause: err}
		case 429:
			resetUnix, _ := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64)
			return &forge.Error{Kind: forge.ErrRateLimited, Op: op, ResetAt: time.Unix(resetUnix, 0), Cause: err}
		}
	}
	return &forge.Error{Kind: forge.ErrOther, Op: op, Cause: err}
}

func issueCacheKey(project string, iid int) string { return fmt.Sprintf("%s#%d", project, iid) }

func (c *Client) GetIssue(ctx context.Context, number int) (*forge.Issue, error) {
	key := issueCacheKey(c.project, number)
	if cached, ok := c.issueCache.Get(key); ok {
		return toIssue(cached), nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	issue, resp, err := c.gl.Issues.GetIssue(c.project, number, gl.WithContext(ctx))
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
	_, resp, err := c.gl.Issues.UpdateIssue(c.project, number, &gl.UpdateIssueOptions{Description: &body}, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	c.issueCache.Invalidate(issueCacheKey(c.project, number))
	if err != nil {
		return c.classify("UpdateIssue", err, resp)
	}
	return nil
}

func (c *Client) GetIssueComments(ctx context.Context, number int) ([]forge.Comment, error) {
	var out []forge.Comment
	opts := &gl.ListIssueNotesOptions{ListOptions: gl.ListOptions{PerPage: 100}}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		notes, resp, err := c.gl.Notes.ListIssueNotes(c.project, number, opts, gl.WithContext(ctx))
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetIssueComments", err, resp)
		}
		for _, n := range notes {
			out = append(out, forge.Comment{ID: int64(n.ID), Body: n.Body})
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
	_, resp, err := c.gl.Notes.CreateIssueNote(c.project, number, &gl.CreateIssueNoteOptions{Body: &body}, gl.WithContext(ctx))
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
	issues, resp, err := c.gl.Search.IssuesByProject(c.project, &gl.SearchOptions{Search: gl.Ptr(query)}, gl.WithContext(ctx))
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
	mr, resp, err := c.gl.MergeRequests.GetMergeRequest(c.project, number, nil, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetPullRequest", err, resp)
	}
	return toMergeRequest(mr), nil
}

// GetClosingPullRequestFor uses GitLab's "merge requests that will close
// this issue" endpoint directly, rather than inferring it from comment
// text or label heuristics.
func (c *Client) GetClosingPullRequestFor(ctx context.Context, issueNumber int) (*forge.PullRequest, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	mrs, resp, err := c.gl.Issues.ListMergeRequestsClosingIssue(c.project, issueNumber, nil, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetClosingPullRequestFor", err, resp)
	}
	for _, mr := range mrs {
		full, err := c.GetPullRequest(ctx, mr.IID)
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
	statuses, resp, err := c.gl.Commits.GetCommitStatuses(c.project, sha, &gl.GetCommitStatusesOptions{}, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("GetCommitChecks", err, resp)
	}

	agg := forge.CheckAggregate{State: "success", TotalCount: len(statuses)}
	for _, s := range statuses {
		switch s.Status {
		case "success", "skipped":
		case "pending", "running", "created":
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
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	ref := in.Ref
	if ref == "" {
		ref = "main"
	}
	status := deploymentStatus(in.Status)
	dep, resp, err := c.gl.Deployments.CreateProjectDeployment(c.project, &gl.CreateProjectDeploymentOptions{
		Environment: &in.Environment,
		Ref:         &ref,
		Tag:         gl.Ptr(false),
		Status:      &status,
		SHA:         &ref,
	}, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateDeployment", err, resp)
	}
	return &forge.Deployment{ID: int64(dep.ID), Environment: dep.Environment.Name}, nil
}

func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status forge.DeploymentStatus, description string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	s := deploymentStatus(status)
	_, resp, err := c.gl.Deployments.UpdateProjectDeployment(c.project, int(deploymentID), &gl.UpdateProjectDeploymentOptions{Status: &s}, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return c.classify("UpdateDeploymentStatus", err, resp)
	}
	return nil
}

// CreateCheckRun has no first-class GitLab equivalent; it is modeled as
// a commit status, GitLab's closest analog to a check run (// "capability surfaces are consumed, not a shared class hierarchy" —
// each backend is free to pick its closest native primitive).
func (c *Client) CreateCheckRun(ctx context.Context, in forge.CheckRunInput) (*forge.CheckRun, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	state := "running"
	if in.Status == forge.CheckRunCompleted {
		if in.Conclusion == forge.ConclusionSuccess {
			state = "success"
		} else {
			state = "failed"
		}
	}
	_, resp, err := c.gl.Commits.SetCommitStatus(c.project, in.HeadSHA, &gl.SetCommitStatusOptions{
		State:       gl.BuildStateValue(state),
		Name:        &in.Name,
		Description: &in.Title,
	}, gl.WithContext(ctx))
	c.observeRateLimit(resp)
	if err != nil {
		return nil, c.classify("CreateCheckRun", err, resp)
	}
	return &forge.CheckRun{}, nil
}

func (c *Client) GetTeamMembers(ctx context.Context, team string) ([]string, error) {
	if cached, ok := c.membersCache.Get(team); ok {
		return cached, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out []string
	opts := &gl.ListGroupMembersOptions{ListOptions: gl.ListOptions{PerPage: 100}}
	for {
		members, resp, err := c.gl.Groups.ListGroupMembers(team, opts, gl.WithContext(ctx))
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetTeamMembers", err, resp)
		}
		for _, m := range members {
			out = append(out, m.Username)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.membersCache.Set(team, out)
	return out, nil
}

func (c *Client) GetRepositoryIssues(ctx context.Context, labels []string) ([]forge.Issue, error) {
	var out []forge.Issue
	opts := &gl.ListProjectIssuesOptions{Labels: (*gl.LabelOptions)(&labels), ListOptions: gl.ListOptions{PerPage: 100}}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		issues, resp, err := c.gl.Issues.ListProjectIssues(c.project, opts, gl.WithContext(ctx))
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetRepositoryIssues", err, resp)
		}
		for _, i := range issues {
			out = append(out, *toIssue(i))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) GetTeamRepositories(ctx context.Context, team string) ([]string, error) {
	if cached, ok := c.reposCache.Get(team); ok {
		return cached, nil
	}
	var out []string
	opts := &gl.ListGroupProjectsOptions{ListOptions: gl.ListOptions{PerPage: 100}}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		projects, resp, err := c.gl.Groups.ListGroupProjects(team, opts, gl.WithContext(ctx))
		c.observeRateLimit(resp)
		if err != nil {
			return nil, c.classify("GetTeamRepositories", err, resp)
		}
		for _, p := range projects {
			out = append(out, p.PathWithNamespace)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.reposCache.Set(team, out)
	return out, nil
}

// CreateTeamAssignment applies a "team::<team>" label to each issue,
// GitLab's group membership having no native per-issue assignment to a
// group.
func (c *Client) CreateTeamAssignment(ctx context.Context, team string, issueNumbers []int) (*forge.TeamAssignmentResult, error) {
	result := &forge.TeamAssignmentResult{Failed: map[int]string{}}
	label := gl.LabelOptions{"team::" + team}
	for _, number := range issueNumbers {
		if err := c.wait(ctx); err != nil {
			result.Failed[number] = err.Error()
			continue
		}
		_, resp, err := c.gl.Issues.UpdateIssue(c.project, number, &gl.UpdateIssueOptions{AddLabels: &label}, gl.WithContext(ctx))
		c.observeRateLimit(resp)
		if err != nil {
			result.Failed[number] = err.Error()
			continue
		}
		c.issueCache.Invalidate(issueCacheKey(c.project, number))
		result.Assigned = append(result.Assigned, number)
	}
	if len(result.Failed) > 0 {
		return result, &forge.Error{Kind: forge.ErrTeamAssignment, Op: "CreateTeamAssignment", Partial: result}
	}
	return result, nil
}

// GetRateLimit has no single GitLab endpoint; it issues a Users.CurrentUser
// request and reads the rate-limit window from its RateLimit-* response
// headers.
func (c *Client) GetRateLimit(ctx context.Context) (*forge.RateLimit, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	_, resp, err := c.gl.Users.CurrentUser(gl.WithContext(ctx))
	if err != nil {
		return nil, c.classify("GetRateLimit", err, resp)
	}
	remaining, _ := strconv.Atoi(resp.Header.Get("RateLimit-Remaining"))
	limit, _ := strconv.Atoi(resp.Header.Get("RateLimit-Limit"))
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64)
	return &forge.RateLimit{Limit: limit, Remaining: remaining, ResetAt: time.Unix(resetUnix, 0)}, nil
}

func toIssue(i *gl.Issue) *forge.Issue {
	state := "open"
	if i.State == "closed" {
		state = "closed"
	}
	var closedAt time.Time
	if i.ClosedAt != nil {
		closedAt = *i.ClosedAt
	}
	return &forge.Issue{
		Number:   i.IID,
		Title:    i.Title,
		Body:     i.Description,
		State:    state,
		Labels:   i.Labels,
		ClosedAt: closedAt,
		HTMLURL:  i.WebURL,
	}
}

func toMergeRequest(mr *gl.MergeRequest) *forge.PullRequest {
	var mergedAt time.Time
	if mr.MergedAt != nil {
		mergedAt = *mr.MergedAt
	}
	return &forge.PullRequest{
		Number:   mr.IID,
		State:    mr.State,
		Merged:   mr.State == "merged",
		MergedAt: mergedAt,
		HeadSHA:  mr.SHA,
		HTMLURL:  mr.WebURL,
	}
}

func deploymentStatus(s forge.DeploymentStatus) gl.DeploymentStatusValue {
	switch s {
	case forge.DeploymentSuccess:
		return gl.DeploymentStatusSuccess
	case forge.DeploymentFailure:
		return gl.DeploymentStatusFailed
	case forge.DeploymentError:
		return gl.DeploymentStatusFailed
	default:
		return gl.DeploymentStatusRunning
	}
}
