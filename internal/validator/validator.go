// Package validator implements per-task completion checking: an issue
// must be closed by a merged pull request whose head commit carries a
// green check aggregate. The merge commit's own checks are not read.
package validator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flyingrobots/waveops/internal/forge"
)

// DefaultParallelism bounds the fan-out width for ValidateBatch.
const DefaultParallelism = 8

// Validator checks task completion against a forge.Client.
type Validator struct {
	client      forge.Client
	parallelism int
}

// New builds a Validator over client with the default fan-out width.
func New(client forge.Client) *Validator {
	return &Validator{client: client, parallelism: DefaultParallelism}
}

// WithParallelism overrides the fan-out width used by ValidateBatch.
func (v *Validator) WithParallelism(n int) *Validator {
	v.parallelism = n
	return v
}

// Result is the outcome of validating one task, retaining the
// intermediate evidence (closing PR, check aggregate) alongside the
// final verdict.
type Result struct {
	TaskID      string
	IssueNumber int
	Valid       bool
	Err         error
	ClosingPR   *forge.PullRequest
	Checks      *forge.CheckAggregate
}

// Validate runs the four-step check for one task.
func (v *Validator) Validate(ctx context.Context, taskID string, issueNumber int) Result {
	res := Result{TaskID: taskID, IssueNumber: issueNumber}

	issue, err := v.client.GetIssue(ctx, issueNumber)
	if err != nil {
		res.Err = &ValidationError{Kind: KindOther, TaskID: taskID, IssueNumber: issueNumber, Cause: err}
		return res
	}
	if !issue.Closed() {
		res.Err = &ValidationError{Kind: KindIssueNotClosed, TaskID: taskID, IssueNumber: issueNumber, URL: issue.HTMLURL}
		return res
	}

	pr, err := v.client.GetClosingPullRequestFor(ctx, issueNumber)
	if err != nil {
		res.Err = &ValidationError{Kind: KindOther, TaskID: taskID, IssueNumber: issueNumber, Cause: err}
		return res
	}
	if pr == nil {
		res.Err = &ValidationError{Kind: KindNoClosingPR, TaskID: taskID, IssueNumber: issueNumber, URL: issue.HTMLURL}
		return res
	}
	res.ClosingPR = pr

	if !pr.Merged {
		res.Err = &ValidationError{Kind: KindPRNotMerged, TaskID: taskID, IssueNumber: issueNumber, URL: pr.HTMLURL}
		return res
	}

	checks, err := v.client.GetCommitChecks(ctx, pr.HeadSHA)
	if err != nil {
		res.Err = &ValidationError{Kind: KindOther, TaskID: taskID, IssueNumber: issueNumber, Cause: err}
		return res
	}
	res.Checks = checks

	if !checks.Success() {
		res.Err = &ValidationError{
			Kind:        KindCIChecksFailed,
			TaskID:      taskID,
			IssueNumber: issueNumber,
			URL:         checks.HTMLURL,
			FailedCount: checks.FailedCount,
		}
		return res
	}

	res.Valid = true
	return res
}

// TaskRef pairs a task id with the forge issue number that tracks it.
type TaskRef struct {
	TaskID      string
	IssueNumber int
}

// ValidateBatch validates every ref with bounded parallelism via
// errgroup.SetLimit. Errors are per-task and never abort the batch: every
// ref produces exactly one Result, success or failure.
func (v *Validator) ValidateBatch(ctx context.Context, refs []TaskRef) []Result {
	results := make([]Result, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	limit := v.parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	g.SetLimit(limit)

	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			results[i] = v.Validate(ctx, ref.TaskID, ref.IssueNumber)
			return nil // per-task errors live in Result, never abort the group
		})
	}
	_ = g.Wait()

	return results
}

// Invalid returns the task ids among results that failed validation.
func Invalid(results []Result) []string {
	var out []string
	for _, r := range results {
		if !r.Valid {
			out = append(out, r.TaskID)
		}
	}
	return out
}

// Valid returns the task ids among results that passed validation.
func Valid(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.Valid {
			out = append(out, r.TaskID)
		}
	}
	return out
}

// Messages renders one human-actionable message per failed result,
// including the task id, a forge URL, and the triggering condition
//.
func Messages(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.Err != nil {
			out = append(out, fmt.Sprint(r.Err))
		}
	}
	return out
}
