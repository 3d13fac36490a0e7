package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/forge/fake"
)

func TestValidate_IssueNotClosed(t *testing.T) {
	c := fake.New()
	c.Issues[1] = forge.Issue{Number: 1, State: "open"}

	res := New(c).Validate(context.Background(), "t1", 1)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	var verr *ValidationError
	if !errors.As(res.Err, &verr) || verr.Kind != KindIssueNotClosed {
		t.Fatalf("expected issue-not-closed, got %v", res.Err)
	}
}

func TestValidate_NoClosingPR(t *testing.T) {
	c := fake.New()
	c.Issues[1] = forge.Issue{Number: 1, State: "closed"}

	res := New(c).Validate(context.Background(), "t1", 1)
	if !errors.Is(res.Err, &ValidationError{Kind: KindNoClosingPR}) {
		t.Fatalf("expected no-closing-pr, got %v", res.Err)
	}
}

func TestValidate_PRNotMerged(t *testing.T) {
	c := fake.New()
	c.Issues[1] = forge.Issue{Number: 1, State: "closed"}
	c.ClosingPR[1] = 9
	c.PullRequests[9] = forge.PullRequest{Number: 9, Merged: false}

	res := New(c).Validate(context.Background(), "t1", 1)
	if !errors.Is(res.Err, &ValidationError{Kind: KindPRNotMerged}) {
		t.Fatalf("expected pr-not-merged, got %v", res.Err)
	}
}

func TestValidate_CIChecksFailed(t *testing.T) {
	c := fake.New()
	c.Issues[1] = forge.Issue{Number: 1, State: "closed"}
	c.ClosingPR[1] = 9
	c.PullRequests[9] = forge.PullRequest{Number: 9, Merged: true, HeadSHA: "sha1"}
	c.Checks["sha1"] = forge.CheckAggregate{State: "failure", FailedCount: 2, TotalCount: 5}

	res := New(c).Validate(context.Background(), "t1", 1)
	var verr *ValidationError
	if !errors.As(res.Err, &verr) || verr.Kind != KindCIChecksFailed || verr.FailedCount != 2 {
		t.Fatalf("expected ci-checks-failed with count 2, got %v", res.Err)
	}
}

func TestValidate_Success(t *testing.T) {
	c := fake.New()
	c.Issues[1] = forge.Issue{Number: 1, State: "closed"}
	c.ClosingPR[1] = 9
	c.PullRequests[9] = forge.PullRequest{Number: 9, Merged: true, HeadSHA: "sha1", MergedAt: time.Now()}
	c.Checks["sha1"] = forge.CheckAggregate{State: "success", TotalCount: 5}

	res := New(c).Validate(context.Background(), "t1", 1)
	if !res.Valid || res.Err != nil {
		t.Fatalf("expected valid, got %+v", res)
	}
	if res.ClosingPR == nil || res.Checks == nil {
		t.Fatal("expected evidence retained")
	}
}

func TestValidateBatch_PerTaskErrorsDoNotAbort(t *testing.T) {
	c := fake.New()
	// t1 passes, t2 fails (open issue), t3 passes.
	c.Issues[1] = forge.Issue{Number: 1, State: "closed"}
	c.ClosingPR[1] = 10
	c.PullRequests[10] = forge.PullRequest{Number: 10, Merged: true, HeadSHA: "s1"}
	c.Checks["s1"] = forge.CheckAggregate{State: "success"}

	c.Issues[2] = forge.Issue{Number: 2, State: "open"}

	c.Issues[3] = forge.Issue{Number: 3, State: "closed"}
	c.ClosingPR[3] = 11
	c.PullRequests[11] = forge.PullRequest{Number: 11, Merged: true, HeadSHA: "s3"}
	c.Checks["s3"] = forge.CheckAggregate{State: "success"}

	refs := []TaskRef{{"t1", 1}, {"t2", 2}, {"t3", 3}}
	results := New(c).ValidateBatch(context.Background(), refs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Valid || results[1].Valid || !results[2].Valid {
		t.Fatalf("unexpected validity pattern: %+v", results)
	}
	if got := Invalid(results); len(got) != 1 || got[0] != "t2" {
		t.Fatalf("expected [t2] invalid, got %v", got)
	}
}
