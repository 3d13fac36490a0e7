package github

import (
	"errors"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v74/github"

	"github.com/flyingrobots/waveops/internal/forge"
)

func TestIssueCacheKey(t *testing.T) {
	got := issueCacheKey("flyingrobots", "waveops", 42)
	want := "flyingrobots/waveops#42"
	if got != want {
		t.Fatalf("issueCacheKey() = %q, want %q", got, want)
	}
}

func TestToIssue(t *testing.T) {
	closedAt := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	gi := &gh.Issue{
		Number:   gh.Ptr(7),
		Title:    gh.Ptr("ship the widget"),
		Body:     gh.Ptr("details"),
		State:    gh.Ptr("closed"),
		ClosedAt: &gh.Timestamp{Time: closedAt},
		HTMLURL:  gh.Ptr("https://github.com/o/r/issues/7"),
		Labels:   []*gh.Label{{Name: gh.Ptr("team:alpha")}, {Name: gh.Ptr("bug")}},
	}

	got := toIssue(gi)
	if got.Number != 7 || got.Title != "ship the widget" || got.State != "closed" {
		t.Fatalf("unexpected issue: %+v", got)
	}
	if !got.ClosedAt.Equal(closedAt) {
		t.Fatalf("expected closed_at %v, got %v", closedAt, got.ClosedAt)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "team:alpha" {
		t.Fatalf("unexpected labels: %v", got.Labels)
	}
	if !got.Closed() {
		t.Fatalf("expected Closed() to be true for state %q", got.State)
	}
}

func TestToPullRequest(t *testing.T) {
	mergedAt := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	pr := &gh.PullRequest{
		Number:   gh.Ptr(12),
		State:    gh.Ptr("closed"),
		Merged:   gh.Ptr(true),
		MergedAt: &gh.Timestamp{Time: mergedAt},
		Head:     &gh.PullRequestBranch{SHA: gh.Ptr("abc123")},
		HTMLURL:  gh.Ptr("https://github.com/o/r/pull/12"),
	}

	got := toPullRequest(pr)
	if got.Number != 12 || !got.Merged || got.HeadSHA != "abc123" {
		t.Fatalf("unexpected pull request: %+v", got)
	}
	if !got.MergedAt.Equal(mergedAt) {
		t.Fatalf("expected merged_at %v, got %v", mergedAt, got.MergedAt)
	}
}

func TestStatusString(t *testing.T) {
	got := statusString(forge.DeploymentSuccess)
	if got == nil || *got != string(forge.DeploymentSuccess) {
		t.Fatalf("unexpected status string: %v", got)
	}
}

func TestClassify_NotFound(t *testing.T) {
	c := &Client{}
	resp := &gh.Response{Response: &http.Response{StatusCode: 404}}
	err := c.classify("get issue", errors.New("404"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClassify_RateLimitedFromForbidden(t *testing.T) {
	c := &Client{}
	reset := time.Now().Add(time.Hour)
	resp := &gh.Response{Response: &http.Response{StatusCode: 403}}
	resp.Rate = gh.Rate{Remaining: 0, Reset: gh.Timestamp{Time: reset}}

	err := c.classify("list issues", errors.New("403"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !fe.ResetAt.Equal(reset) {
		t.Fatalf("expected reset %v, got %v", reset, fe.ResetAt)
	}
}

func TestClassify_PermissionDenied(t *testing.T) {
	c := &Client{}
	resp := &gh.Response{Response: &http.Response{StatusCode: 403}}
	resp.Rate = gh.Rate{Remaining: 10}

	err := c.classify("update issue", errors.New("403"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestClassify_Other(t *testing.T) {
	c := &Client{}
	err := c.classify("get issue", errors.New("boom"), nil)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrOther {
		t.Fatalf("expected ErrOther, got %v", err)
	}
}

func TestClassify_NilError(t *testing.T) {
	c := &Client{}
	if err := c.classify("noop", nil, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
