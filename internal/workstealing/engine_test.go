package workstealing

import (
	"context"
	"strings"
	"testing"

	"github.com/flyingrobots/waveops/internal/capacity"
	"github.com/flyingrobots/waveops/internal/depgraph"
)

type fakeAssigner struct {
	reassigned []string
	fail       map[string]bool
}

func (f *fakeAssigner) Reassign(_ context.Context, taskID, from, to string) error {
	if f.fail[taskID] {
		return &Error{Code: ErrCoordinationFailure, TaskID: taskID, Reason: "boom"}
	}
	f.reassigned = append(f.reassigned, taskID+":"+from+"->"+to)
	return nil
}

func buildSnapshot(t *testing.T, alpha, gamma capacity.Utilization) capacity.Snapshot {
	t.Helper()
	snap, err := capacity.NewSnapshot([]capacity.Utilization{alpha, gamma})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

// Scenario 5: team alpha at 150% utilization with task T
// needing "frontend"; team gamma at 0% utilization with proficiency 0.4
// in "frontend" (below threshold 0.6). No transfer occurs; recommendations
// include the rejected (T, gamma) pair.
func TestRebalance_RejectsBelowSkillThreshold(t *testing.T) {
	graph, err := depgraph.New([]depgraph.Task{
		{ID: "T", Team: "alpha", Effort: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := graph.Transition("T", depgraph.StateReady); err != nil {
		t.Fatal(err)
	}

	snap := buildSnapshot(t,
		capacity.Utilization{Team: "alpha", ActiveTasks: 6, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1}},
		capacity.Utilization{Team: "gamma", ActiveTasks: 0, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1, Skills: []capacity.SkillProficiency{{Skill: "frontend", Proficiency: 0.4}}}},
	)

	requirements := map[string][]SkillRequirement{"T": {{Skill: "frontend", Weight: 1}}}
	assigner := &fakeAssigner{}
	engine := New(graph, snap, requirements, Config{SkillMatchThreshold: 0.6}, assigner)

	summary, err := engine.Rebalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Executed) != 0 {
		t.Fatalf("expected no transfers, got %v", summary.Executed)
	}
	if len(assigner.reassigned) != 0 {
		t.Fatalf("expected assigner untouched, got %v", assigner.reassigned)
	}

	found := false
	for _, r := range summary.Recommendations {
		if strings.Contains(r, "T") && strings.Contains(r, "gamma") && strings.Contains(r, "skill match") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a skill-mismatch recommendation for (T, gamma), got %v", summary.Recommendations)
	}
}

func TestRebalance_ExecutesAcceptedTransfer(t *testing.T) {
	graph, err := depgraph.New([]depgraph.Task{
		{ID: "T", Team: "alpha", Effort: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := graph.Transition("T", depgraph.StateReady); err != nil {
		t.Fatal(err)
	}

	snap := buildSnapshot(t,
		capacity.Utilization{Team: "alpha", ActiveTasks: 6, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1}},
		capacity.Utilization{Team: "gamma", ActiveTasks: 0, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1, Skills: []capacity.SkillProficiency{{Skill: "frontend", Proficiency: 0.9}}}},
	)

	requirements := map[string][]SkillRequirement{"T": {{Skill: "frontend", Weight: 1}}}
	assigner := &fakeAssigner{}
	engine := New(graph, snap, requirements, Config{SkillMatchThreshold: 0.6, MinimumTransferBenefit: -10}, assigner)

	summary, err := engine.Rebalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Executed) != 1 {
		t.Fatalf("expected one transfer, got %v", summary.Executed)
	}
	if summary.Executed[0].ToTeam != "gamma" {
		t.Fatalf("expected transfer to gamma, got %+v", summary.Executed[0])
	}
	if graph.Node("T").Team != "gamma" {
		t.Fatalf("expected graph node reassigned to gamma, got %q", graph.Node("T").Team)
	}
}

func TestRebalance_CriticalPathWithheldWithoutEmergency(t *testing.T) {
	graph, err := depgraph.New([]depgraph.Task{
		{ID: "T", Team: "alpha", Effort: 1, Critical: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := graph.Transition("T", depgraph.StateReady); err != nil {
		t.Fatal(err)
	}
	depgraph.Analyze(graph) // marks node.CriticalPath

	snap := buildSnapshot(t,
		capacity.Utilization{Team: "alpha", ActiveTasks: 6, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1}},
		capacity.Utilization{Team: "gamma", ActiveTasks: 0, Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Velocity: 1}},
	)

	assigner := &fakeAssigner{}
	engine := New(graph, snap, nil, Config{SkillMatchThreshold: 0, MinimumTransferBenefit: -10}, assigner)

	summary, err := engine.Rebalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Executed) != 0 {
		t.Fatalf("expected critical path task withheld, got %v", summary.Executed)
	}
}

func TestClaimTask_RejectsSkillMismatch(t *testing.T) {
	graph, err := depgraph.New([]depgraph.Task{{ID: "T", Team: "alpha"}})
	if err != nil {
		t.Fatal(err)
	}
	snap := buildSnapshot(t,
		capacity.Utilization{Team: "alpha", Capacity: capacity.TeamCapacity{MaxConcurrent: 4}},
		capacity.Utilization{Team: "gamma", Capacity: capacity.TeamCapacity{MaxConcurrent: 4, Skills: []capacity.SkillProficiency{{Skill: "frontend", Proficiency: 0.2}}}},
	)
	requirements := map[string][]SkillRequirement{"T": {{Skill: "frontend", Weight: 1}}}
	engine := New(graph, snap, requirements, Config{SkillMatchThreshold: 0.6}, &fakeAssigner{})

	err = engine.ClaimTask(context.Background(), "T", "gamma")
	var wsErr *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if !asError(err, &wsErr) || wsErr.Code != ErrSkillMismatch {
		t.Fatalf("expected skill-mismatch error, got %v", err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
