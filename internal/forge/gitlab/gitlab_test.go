package gitlab

import (
	"errors"
	"net/http"
	"testing"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/flyingrobots/waveops/internal/forge"
)

func TestIssueCacheKey(t *testing.T) {
	got := issueCacheKey("flyingrobots/waveops", 9)
	want := "flyingrobots/waveops#9"
	if got != want {
		t.Fatalf("issueCacheKey() = %q, want %q", got, want)
	}
}

func TestToIssue(t *testing.T) {
	closedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	gi := &gl.Issue{
		IID:         4,
		Title:       "fix the thing",
		Description: "details",
		State:       "closed",
		ClosedAt:    &closedAt,
		WebURL:      "https://gitlab.example.com/o/r/-/issues/4",
		Labels:      gl.Labels{"team::alpha"},
	}

	got := toIssue(gi)
	if got.Number != 4 || got.State != "closed" || !got.Closed() {
		t.Fatalf("unexpected issue: %+v", got)
	}
	if !got.ClosedAt.Equal(closedAt) {
		t.Fatalf("expected closed_at %v, got %v", closedAt, got.ClosedAt)
	}
}

func TestToIssue_Open(t *testing.T) {
	gi := &gl.Issue{IID: 5, State: "opened"}
	got := toIssue(gi)
	if got.State != "open" || got.Closed() {
		t.Fatalf("expected open issue, got %+v", got)
	}
}

func TestToMergeRequest(t *testing.T) {
	mergedAt := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	mr := &gl.MergeRequest{
		IID:      11,
		State:    "merged",
		MergedAt: &mergedAt,
		SHA:      "deadbeef",
		WebURL:   "https://gitlab.example.com/o/r/-/merge_requests/11",
	}

	got := toMergeRequest(mr)
	if got.Number != 11 || !got.Merged || got.HeadSHA != "deadbeef" {
		t.Fatalf("unexpected merge request: %+v", got)
	}
	if !got.MergedAt.Equal(mergedAt) {
		t.Fatalf("expected merged_at %v, got %v", mergedAt, got.MergedAt)
	}
}

func TestDeploymentStatus(t *testing.T) {
	cases := map[forge.DeploymentStatus]gl.DeploymentStatusValue{
		forge.DeploymentSuccess: gl.DeploymentStatusSuccess,
		forge.DeploymentFailure: gl.DeploymentStatusFailed,
		forge.DeploymentError:   gl.DeploymentStatusFailed,
	}
	for in, want := range cases {
		if got := deploymentStatus(in); got != want {
			t.Fatalf("deploymentStatus(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestClassify_NotFound(t *testing.T) {
	c := &Client{}
	resp := &gl.Response{Response: &http.Response{StatusCode: 404}}
	err := c.classify("get issue", errors.New("404"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClassify_RateLimited(t *testing.T) {
	c := &Client{}
	header := http.Header{}
	header.Set("RateLimit-Reset", "1770000000")
	resp := &gl.Response{Response: &http.Response{StatusCode: 429, Header: header}}

	err := c.classify("list issues", errors.New("429"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestClassify_PermissionDenied(t *testing.T) {
	c := &Client{}
	resp := &gl.Response{Response: &http.Response{StatusCode: 403}}

	err := c.classify("update issue", errors.New("403"), resp)

	var fe *forge.Error
	if !errors.As(err, &fe) || fe.Kind != forge.ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestClassify_NilError(t *testing.T) {
	c := &Client{}
	if err := c.classify("noop", nil, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
