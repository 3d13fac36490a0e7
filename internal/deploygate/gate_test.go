package deploygate

import (
	"context"
	"strings"
	"testing"

	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/forge/fake"
)

func passingTask(c *fake.Client, issue int, sha string) {
	c.Issues[issue] = forge.Issue{Number: issue, State: "closed"}
	c.ClosingPR[issue] = issue + 100
	c.PullRequests[issue+100] = forge.PullRequest{Number: issue + 100, Merged: true, HeadSHA: sha}
	c.Checks[sha] = forge.CheckAggregate{State: "success"}
}

func TestValidateAndUpdate_AllValid(t *testing.T) {
	c := fake.New()
	passingTask(c, 1, "sha1")

	res, err := New(c).ValidateAndUpdate(context.Background(), "alpha", 3, []TaskAssignment{{TaskID: "t1", IssueNumber: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ready || res.Status != forge.DeploymentSuccess {
		t.Fatalf("expected ready/success, got %+v", res)
	}
	if c.DeployStatuses[res.DeploymentID] != forge.DeploymentSuccess {
		t.Fatal("expected deployment recorded as success")
	}
}

// Scenario 3: team blocked on failing CI.
func TestValidateAndUpdate_BlockedTeam(t *testing.T) {
	c := fake.New()
	c.Issues[2] = forge.Issue{Number: 2, State: "closed"}
	c.ClosingPR[2] = 102
	c.PullRequests[102] = forge.PullRequest{Number: 102, Merged: true, HeadSHA: "shax"}
	c.Checks["shax"] = forge.CheckAggregate{State: "failure", FailedCount: 1}

	res, err := New(c).ValidateAndUpdate(context.Background(), "beta", 2, []TaskAssignment{{TaskID: "t-beta", IssueNumber: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ready || res.Status != forge.DeploymentFailure {
		t.Fatalf("expected blocked/failure, got %+v", res)
	}
	if len(res.InvalidTasks) != 1 || res.InvalidTasks[0] != "t-beta" {
		t.Fatalf("expected t-beta invalid, got %v", res.InvalidTasks)
	}

	var dep forge.Deployment
	for _, d := range c.Deployments {
		if d.ID == res.DeploymentID {
			dep = d
		}
	}
	if dep.Environment != "wave-2-ready" {
		t.Fatalf("expected environment wave-2-ready, got %q", dep.Environment)
	}
}

func TestCheckWaveGateStatus_TwoTeams(t *testing.T) {
	c := fake.New()
	passingTask(c, 1, "sha1")
	c.Issues[2] = forge.Issue{Number: 2, State: "closed"}
	c.ClosingPR[2] = 102
	c.PullRequests[102] = forge.PullRequest{Number: 102, Merged: true, HeadSHA: "shax"}
	c.Checks["shax"] = forge.CheckAggregate{State: "failure", FailedCount: 1}

	results := New(c).CheckWaveGateStatus(context.Background(), 2, TeamTasks{
		"alpha": {{TaskID: "t1", IssueNumber: 1}},
		"beta":  {{TaskID: "t-beta", IssueNumber: 2}},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	byTeam := map[string]TeamReadinessResult{}
	for _, r := range results {
		byTeam[r.Team] = r
	}
	if !byTeam["alpha"].Ready {
		t.Fatal("expected alpha ready")
	}
	if byTeam["beta"].Ready {
		t.Fatal("expected beta blocked")
	}
	if !strings.Contains(byTeam["beta"].Messages[0], "ci-checks-failed") {
		t.Fatalf("expected ci-checks-failed message, got %v", byTeam["beta"].Messages)
	}
}
