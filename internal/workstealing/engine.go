package workstealing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flyingrobots/waveops/internal/capacity"
	"github.com/flyingrobots/waveops/internal/depgraph"
)

// Clock is the wall-clock source, overridable in tests.
var Clock = time.Now

// Assigner applies an accepted transfer's effect outside the engine —
// typically reassigning the task's owning team in the dependency graph
// and moving the task id between the two teams' WaveState.TeamState.Tasks
// sets. Reassign errors are per-transfer and never roll back earlier
// transfers in the same Rebalance call.
type Assigner interface {
	Reassign(ctx context.Context, taskID, fromTeam, toTeam string) error
}

// Engine rebalances load across teams for one (graph, capacity) pair.
type Engine struct {
	graph        *depgraph.Graph
	snapshot     capacity.Snapshot
	requirements map[string][]SkillRequirement
	config       Config
	assigner     Assigner
}

// New builds an Engine. requirements maps task id to its skill
// requirements; tasks absent from the map are treated as skill-agnostic
// (skillMatch vacuously 1).
func New(graph *depgraph.Graph, snapshot capacity.Snapshot, requirements map[string][]SkillRequirement, config Config, assigner Assigner) *Engine {
	return &Engine{
		graph:        graph,
		snapshot:     snapshot,
		requirements: requirements,
		config:       config.Normalized(),
		assigner:     assigner,
	}
}

// Rebalance runs one full candidate-selection and execution pass.
func (e *Engine) Rebalance(ctx context.Context) (Summary, error) {
	if err := e.config.Validate(); err != nil {
		return Summary{}, err
	}

	candidates, recommendations := e.selectCandidates()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].NetBenefit() > candidates[j].NetBenefit()
	})

	summary := Summary{}
	transferred := make(map[string]bool) // a task transfers at most once per cycle
	for _, c := range candidates {
		if transferred[c.TaskID] {
			continue
		}
		if len(summary.Executed) >= e.config.MaxTransfersPerWave {
			recommendations = append(recommendations, fmt.Sprintf(
				"task %s -> team %s withheld: max-transfers-per-wave (%d) reached",
				c.TaskID, c.ToTeam, e.config.MaxTransfersPerWave))
			continue
		}

		node := e.graph.Node(c.TaskID)
		if node.CriticalPath && !e.config.Emergency {
			recommendations = append(recommendations, fmt.Sprintf(
				"task %s -> team %s withheld: on critical path and not in emergency mode", c.TaskID, c.ToTeam))
			continue
		}
		if !dependenciesStarted(e.graph, node) {
			recommendations = append(recommendations, fmt.Sprintf(
				"task %s -> team %s withheld: dependencies not yet completed or in progress", c.TaskID, c.ToTeam))
			continue
		}

		if err := e.assigner.Reassign(ctx, c.TaskID, c.FromTeam, c.ToTeam); err != nil {
			recommendations = append(recommendations, fmt.Sprintf(
				"task %s -> team %s failed: %v", c.TaskID, c.ToTeam, err))
			continue
		}

		node.Team = c.ToTeam
		transferred[c.TaskID] = true
		summary.Executed = append(summary.Executed, TransferRecord{
			TaskID: c.TaskID, FromTeam: c.FromTeam, ToTeam: c.ToTeam,
			Reason: fmt.Sprintf("net benefit %.2f", c.NetBenefit()), Timestamp: Clock(),
		})
		summary.UtilizationImprovement += c.NetBenefit()
	}

	summary.Recommendations = recommendations
	return summary, nil
}

// selectCandidates enumerates (task, receiver) pairs for every
// overloaded sender's not-yet-started tasks against every underloaded
// receiver, scoring each and splitting into accepted candidates and
// textual recommendations for rejected pairs.
func (e *Engine) selectCandidates() ([]Candidate, []string) {
	overloaded := e.snapshot.Overloaded(e.config.UtilizationThreshold)
	underloaded := e.snapshot.Underloaded(e.config.UtilizationThreshold)
	sort.Strings(overloaded)
	sort.Strings(underloaded)

	var accepted []Candidate
	var recommendations []string

	for _, sender := range overloaded {
		senderUtil, _ := e.snapshot.Team(sender)
		for _, node := range e.graph.Nodes() {
			if node.Team != sender || !notYetStarted(node.State) {
				continue
			}
			for _, receiver := range underloaded {
				if receiver == sender {
					continue
				}
				receiverUtil, _ := e.snapshot.Team(receiver)
				c := e.score(node, sender, receiver, senderUtil, receiverUtil)

				if c.SkillMatch < e.config.SkillMatchThreshold {
					recommendations = append(recommendations, fmt.Sprintf(
						"task %s -> team %s rejected: skill match %.2f below threshold %.2f",
						c.TaskID, c.ToTeam, c.SkillMatch, e.config.SkillMatchThreshold))
					continue
				}
				if c.NetBenefit() < e.config.MinimumTransferBenefit {
					recommendations = append(recommendations, fmt.Sprintf(
						"task %s -> team %s rejected: net benefit %.2f below minimum %.2f",
						c.TaskID, c.ToTeam, c.NetBenefit(), e.config.MinimumTransferBenefit))
					continue
				}
				accepted = append(accepted, c)
			}
		}
	}

	return accepted, recommendations
}

func (e *Engine) score(node *depgraph.DependencyNode, sender, receiver string, senderUtil, receiverUtil capacity.Utilization) Candidate {
	skillMatch := bestSkillMatch(e.requirements[node.ID], receiverUtil.Capacity)

	overhead := e.config.OverheadWeight * (1 - receiverUtil.Capacity.Proficiency(bestSkill(e.requirements[node.ID])))
	transferCost := e.config.BaseTransferCost + overhead

	risk := float64(node.BlockingFactor) * 0.05 * e.config.DependencyRiskWeight
	if node.CriticalPath {
		risk += e.config.DependencyRiskWeight
	}

	senderDelay := delayFor(node, senderUtil.Capacity.Velocity)
	receiverDelay := delayFor(node, receiverUtil.Capacity.Velocity)
	benefit := senderDelay - receiverDelay

	return Candidate{
		TaskID:          node.ID,
		FromTeam:        sender,
		ToTeam:          receiver,
		SkillMatch:      skillMatch,
		TransferCost:    transferCost,
		DependencyRisk:  risk,
		ExpectedBenefit: benefit,
	}
}

// bestSkillMatch returns the maximum weight*proficiency across reqs, or
// 1 (vacuously matched) when the task declares no skill requirements.
func bestSkillMatch(reqs []SkillRequirement, tc capacity.TeamCapacity) float64 {
	if len(reqs) == 0 {
		return 1
	}
	best := 0.0
	for _, r := range reqs {
		if m := r.Weight * tc.Proficiency(r.Skill); m > best {
			best = m
		}
	}
	return best
}

// bestSkill returns the skill name contributing bestSkillMatch, used to
// price onboarding overhead against the single most relevant skill.
func bestSkill(reqs []SkillRequirement) string {
	best := SkillRequirement{}
	for _, r := range reqs {
		if r.Weight > best.Weight {
			best = r
		}
	}
	return best.Skill
}

func delayFor(node *depgraph.DependencyNode, velocity float64) float64 {
	if velocity <= 0 {
		velocity = 1
	}
	return node.EffortOrDefault() / velocity
}

func notYetStarted(s depgraph.State) bool {
	return s == depgraph.StateWaiting || s == depgraph.StateReady
}

// dependenciesStarted reports whether every DependsOn parent of node is
// completed or in_progress. A waiting task whose parents have not at
// least started cannot be handed to a team expecting to start it
// immediately.
func dependenciesStarted(g *depgraph.Graph, node *depgraph.DependencyNode) bool {
	if node.State == depgraph.StateReady {
		return true
	}
	for _, dep := range node.DependsOn {
		d := g.Node(dep)
		if d == nil || (d.State != depgraph.StateCompleted && d.State != depgraph.StateInProgress) {
			return false
		}
	}
	return true
}

// ClaimTask runs the same constraint checks as automatic selection and
// either commits the reassignment or returns a work-stealing-error.
func (e *Engine) ClaimTask(ctx context.Context, taskID, team string) error {
	node := e.graph.Node(taskID)
	if node == nil {
		return &Error{Code: ErrInvalidConfiguration, TaskID: taskID, Team: team, Reason: "unknown task"}
	}
	util, ok := e.snapshot.Team(team)
	if !ok {
		return &Error{Code: ErrInvalidConfiguration, TaskID: taskID, Team: team, Reason: "unknown team"}
	}
	if util.Overloaded(e.config.UtilizationThreshold) {
		return &Error{Code: ErrInsufficientCapacity, TaskID: taskID, Team: team, Reason: "team already at or above utilization threshold"}
	}
	if m := bestSkillMatch(e.requirements[taskID], util.Capacity); m < e.config.SkillMatchThreshold {
		return &Error{Code: ErrSkillMismatch, TaskID: taskID, Team: team, Reason: fmt.Sprintf("skill match %.2f below threshold %.2f", m, e.config.SkillMatchThreshold)}
	}
	if node.CriticalPath && !e.config.Emergency {
		return &Error{Code: ErrDependencyViolation, TaskID: taskID, Team: team, Reason: "task is on the critical path and emergency mode is off"}
	}
	if !dependenciesStarted(e.graph, node) {
		return &Error{Code: ErrDependencyViolation, TaskID: taskID, Team: team, Reason: "dependencies not completed or in progress"}
	}

	from := node.Team
	if err := e.assigner.Reassign(ctx, taskID, from, team); err != nil {
		return &Error{Code: ErrCoordinationFailure, TaskID: taskID, Team: team, Reason: err.Error()}
	}
	node.Team = team
	return nil
}

// ReleaseTask hands taskID back from team to an explicit newOwner,
// running the same constraint checks as ClaimTask.
func (e *Engine) ReleaseTask(ctx context.Context, taskID, team, newOwner string) error {
	node := e.graph.Node(taskID)
	if node == nil {
		return &Error{Code: ErrInvalidConfiguration, TaskID: taskID, Team: team, Reason: "unknown task"}
	}
	if node.Team != team {
		return &Error{Code: ErrTransferRejected, TaskID: taskID, Team: team, Reason: fmt.Sprintf("task is owned by %q, not %q", node.Team, team)}
	}
	return e.ClaimTask(ctx, taskID, newOwner)
}
