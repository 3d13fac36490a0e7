package wavegate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flyingrobots/waveops/internal/deploygate"
	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/wavestate"
)

// Clock is the wall-clock source, overridable in tests.
var Clock = time.Now

// Gate evaluates the wave barrier. At most one evaluation is in flight
// per (plan, wave) key; concurrent callers join the existing call via an
// explicit singleflight.Group field owned by this instance rather than a
// package-level registry shared across every Gate.
type Gate struct {
	client  forge.Client
	deploys *deploygate.Gate
	inFlight singleflight.Group
}

// New builds a Gate over client.
func New(client forge.Client) *Gate {
	return &Gate{client: client, deploys: deploygate.New(client)}
}

// CheckWaveGate evaluates the barrier for one (plan, wave), producing a
// check run, a possibly-updated WaveState, and an announcement exactly
// once across any number of concurrent callers sharing the same key
//.
func (g *Gate) CheckWaveGate(ctx context.Context, check CheckConfig, gate GateConfig, previous *wavestate.WaveState) (Result, error) {
	key := fmt.Sprintf("%s/%d", gate.Plan, gate.Wave)

	leader := false
	v, err, _ := g.inFlight.Do(key, func() (interface{}, error) {
		leader = true
		return g.evaluate(ctx, check, gate, previous)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	if !leader {
		// Joined callers share the evaluation but not its announcement.
		res.Announcement = ""
	}
	return res, nil
}

func (g *Gate) evaluate(ctx context.Context, check CheckConfig, gate GateConfig, previous *wavestate.WaveState) (Result, error) {
	results := g.deploys.CheckWaveGateStatus(ctx, gate.Wave, gate.TeamTasks)
	status := buildStatus(gate.Wave, results)

	state := deriveState(gate, status, previous)

	headRef := check.HeadRef
	if headRef == "" {
		headRef = "main"
	}

	input := buildCheckRunInput(check.CheckName, headRef, gate.Wave, status)
	run, err := g.client.CreateCheckRun(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("create check run for wave %d: %w", gate.Wave, err)
	}

	var announcement string
	wasReady := previous != nil && previous.AllReady
	if status.AllTeamsReady && !wasReady {
		announcement = buildAnnouncement(gate.Wave, status)
	}

	return Result{
		Status:       status,
		State:        state,
		CheckRunID:   run.ID,
		Announcement: announcement,
	}, nil
}

func buildStatus(wave int, results []deploygate.TeamReadinessResult) WaveGateStatus {
	allReady := len(results) > 0
	var ready, blocked []string
	for _, r := range results {
		if r.Ready {
			ready = append(ready, r.Team)
		} else {
			allReady = false
			blocked = append(blocked, r.Team)
		}
	}
	sort.Strings(ready)
	sort.Strings(blocked)

	return WaveGateStatus{
		Wave:          wave,
		AllTeamsReady: allReady,
		Results:       results,
		ReadyTeams:    ready,
		BlockedTeams:  blocked,
		Timestamp:     Clock(),
	}
}

// deriveState builds the new WaveState from the gate status, preserving
// tz from previous when present.
func deriveState(gate GateConfig, status WaveGateStatus, previous *wavestate.WaveState) wavestate.WaveState {
	tz := gate.TZ
	if previous != nil && previous.TZ != "" {
		tz = previous.TZ
	}

	teamIDs := make([]string, 0, len(status.Results))
	for _, r := range status.Results {
		teamIDs = append(teamIDs, r.Team)
	}
	sort.Strings(teamIDs)

	state := wavestate.New(gate.Plan, gate.Wave, tz, teamIDs)
	for _, r := range status.Results {
		st := wavestate.StatusBlocked
		reason := strings.Join(r.Messages, "; ")
		if r.Ready {
			st = wavestate.StatusReady
			reason = ""
		}
		updated, err := state.WithTeamStatus(r.Team, st, reason)
		if err == nil {
			state = updated
		}
		tasksUpdated, err := state.WithTeamTasks(r.Team, append(r.ValidTasks, r.InvalidTasks...))
		if err == nil {
			state = tasksUpdated
		}
	}
	return state
}

func buildCheckRunInput(checkName, headRef string, wave int, status WaveGateStatus) forge.CheckRunInput {
	name := fmt.Sprintf("Wave Gate: %s", checkName)
	if status.AllTeamsReady {
		return forge.CheckRunInput{
			Name:       name,
			HeadSHA:    headRef,
			Status:     forge.CheckRunCompleted,
			Conclusion: forge.ConclusionSuccess,
			Title:      fmt.Sprintf("🎉 Wave %d Complete!", wave),
			Summary:    summaryComplete(status),
		}
	}
	return forge.CheckRunInput{
		Name:    name,
		HeadSHA: headRef,
		Status:  forge.CheckRunInProgress,
		Title:   fmt.Sprintf("🔄 Wave %d In Progress", wave),
		Summary: summaryInProgress(status),
	}
}

func summaryComplete(status WaveGateStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "All teams ready for Wave %d.\n\n", status.Wave)
	for _, r := range status.Results {
		fmt.Fprintf(&b, "- **%s**: %d tasks validated\n", r.Team, len(r.ValidTasks))
	}
	return b.String()
}

func summaryInProgress(status WaveGateStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ready: %v\nBlocked: %v\n\n", status.ReadyTeams, status.BlockedTeams)
	for _, r := range status.Results {
		if !r.Ready {
			fmt.Fprintf(&b, "- **%s** blocked: invalid tasks %v\n", r.Team, r.InvalidTasks)
		}
	}
	return b.String()
}

func buildAnnouncement(wave int, status WaveGateStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**WAVE %d COMPLETE!**\n\n", wave)
	fmt.Fprintf(&b, "All teams ready: %v\n\n", status.ReadyTeams)
	fmt.Fprintf(&b, "Proceed to Wave %d.\n", wave+1)
	return b.String()
}

// ShouldTrigger implements the caller-side trigger rule:
// trigger when there is no previous state, or when any team's readiness
// just flipped false->true. Do not trigger on already-ready teams.
func ShouldTrigger(previous *wavestate.WaveState, current wavestate.WaveState) bool {
	if previous == nil {
		return true
	}
	for team, ts := range current.Teams {
		prev, ok := previous.Teams[team]
		if !ok {
			continue
		}
		if ts.Status == wavestate.StatusReady && prev.Status != wavestate.StatusReady {
			return true
		}
	}
	return false
}
