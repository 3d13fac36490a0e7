// Package forge defines the narrow capability surface the coordination
// kernel consumes from a hosted code-forge, independent of
// which forge backend (GitHub, GitLab, Gitea) or test fake implements it.
// The kernel never imports a concrete backend directly; it is wired
// through this interface, matchingpolymorphism note.
package forge

import (
	"context"
	"time"
)

// Client is the complete set of forge operations the core consumes.
// Implementations must paginate transparently, cache read-only results
// with bounded TTL, evict above a fixed entry count, and observe rate
// limits by pre-emptively delaying.
type Client interface {
	GetIssue(ctx context.Context, number int) (*Issue, error)
	UpdateIssue(ctx context.Context, number int, body string) error
	GetIssueComments(ctx context.Context, number int) ([]Comment, error)
	AddIssueComment(ctx context.Context, number int, body string) error
	SearchIssues(ctx context.Context, query string) ([]Issue, error)

	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)
	GetClosingPullRequestFor(ctx context.Context, issueNumber int) (*PullRequest, error)
	GetCommitChecks(ctx context.Context, sha string) (*CheckAggregate, error)

	CreateDeployment(ctx context.Context, in DeploymentInput) (*Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentID int64, status DeploymentStatus, description string) error

	CreateCheckRun(ctx context.Context, in CheckRunInput) (*CheckRun, error)

	GetTeamMembers(ctx context.Context, team string) ([]string, error)
	GetRepositoryIssues(ctx context.Context, labels []string) ([]Issue, error)
	GetTeamRepositories(ctx context.Context, team string) ([]string, error)
	CreateTeamAssignment(ctx context.Context, team string, issueNumbers []int) (*TeamAssignmentResult, error)

	GetRateLimit(ctx context.Context) (*RateLimit, error)
}

// Issue is the subset of forge issue fields the kernel reasons about.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string // "open" or "closed"
	Labels    []string
	ClosedAt  time.Time
	HTMLURL   string
}

func (i Issue) Closed() bool { return i.State == "closed" }

// PullRequest is the subset of forge PR fields the kernel reasons about.
type PullRequest struct {
	Number    int
	State     string
	Merged    bool
	MergedAt  time.Time
	HeadSHA   string
	HTMLURL   string
}

// CheckAggregate is the combined check/status state for a commit.
type CheckAggregate struct {
	State       string // "success", "failure", "pending", "error"
	FailedCount int
	TotalCount  int
	HTMLURL     string
}

func (c CheckAggregate) Success() bool { return c.State == "success" }

// Comment is a forge issue comment.
type Comment struct {
	ID   int64
	Body string
}

// DeploymentStatus is the write-only status codomain/§6.
type DeploymentStatus string

const (
	DeploymentPending DeploymentStatus = "pending"
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentFailure DeploymentStatus = "failure"
	DeploymentError   DeploymentStatus = "error"
)

// DeploymentInput describes a deployment record to create.
type DeploymentInput struct {
	Environment string
	Description string
	Ref         string
	Payload     map[string]any
	Status      DeploymentStatus
}

// Deployment is a created deployment record.
type Deployment struct {
	ID          int64
	Environment string
	HTMLURL     string
}

// CheckRunStatus mirrors the forge check-run lifecycle used in §6.
type CheckRunStatus string

const (
	CheckRunInProgress CheckRunStatus = "in_progress"
	CheckRunCompleted  CheckRunStatus = "completed"
)

// CheckRunConclusion is set only when Status == CheckRunCompleted.
type CheckRunConclusion string

const (
	ConclusionSuccess CheckRunConclusion = "success"
	ConclusionFailure CheckRunConclusion = "failure"
)

// CheckRunInput describes a check run to create.
type CheckRunInput struct {
	Name       string
	HeadSHA    string
	Status     CheckRunStatus
	Conclusion CheckRunConclusion // only meaningful when Status == CheckRunCompleted
	Title      string
	Summary    string
}

// CheckRun is a created check run.
type CheckRun struct {
	ID      int64
	HTMLURL string
}

// TeamAssignmentResult reports the outcome of assigning issues to a team,
// which may partially fail, "team-assignment-error(partial-result)".
type TeamAssignmentResult struct {
	Assigned []int
	Failed   map[int]string // issue number -> error message
}

// RateLimit mirrors the forge's current rate-limit window.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}
