package wavestate

import "time"

// Clock returns the current time. It is a package variable (not a
// constructor parameter threaded through every call) so tests can pin it;
// production code leaves it as time.Now, a monotonically non-decreasing
// wall-clock source
var Clock = time.Now

// New creates an empty WaveState for the given plan/wave/timezone with the
// provided team ids, each starting in_progress with no tasks. Callers
// that already know initial team ownership should populate Tasks via
// WithTeamTasks after construction.
func New(plan string, wave int, tz string, teamIDs []string) WaveState {
	teams := make(map[string]TeamState, len(teamIDs))
	now := Clock()
	for _, id := range teamIDs {
		teams[id] = TeamState{Status: StatusInProgress, At: now}
	}
	return WaveState{
		Plan:      plan,
		Wave:      wave,
		TZ:        tz,
		Teams:     teams,
		AllReady:  computeAllReady(teams),
		UpdatedAt: now,
	}
}

// WithTeamStatus returns a new WaveState with team's status (and
// optionally reason, when status is blocked) updated, the timestamp
// refreshed, and AllReady recomputed. The receiver is left unmodified.
// Returns ErrTeamNotFound if team is not part of the state.
func (s WaveState) WithTeamStatus(team string, status Status, reason string) (WaveState, error) {
	if _, ok := s.Teams[team]; !ok {
		return WaveState{}, &ErrTeamNotFound{Team: team}
	}

	next := s.Clone()
	now := Clock()

	ts := next.Teams[team]
	ts.Status = status
	ts.At = now
	if status == StatusBlocked {
		ts.Reason = reason
	} else {
		ts.Reason = ""
	}
	next.Teams[team] = ts

	next.AllReady = computeAllReady(next.Teams)
	next.UpdatedAt = now
	return next, nil
}

// WithTeamTasks returns a new WaveState with team's owned task list
// replaced, leaving status untouched. Used by work-stealing to move a
// task's ownership between teams.
func (s WaveState) WithTeamTasks(team string, tasks []string) (WaveState, error) {
	if _, ok := s.Teams[team]; !ok {
		return WaveState{}, &ErrTeamNotFound{Team: team}
	}
	next := s.Clone()
	ts := next.Teams[team]
	ts.Tasks = append([]string{}, tasks...)
	next.Teams[team] = ts
	next.UpdatedAt = Clock()
	return next, nil
}

// Ready returns the set of team ids currently in StatusReady.
func (s WaveState) Ready() []string {
	var out []string
	for id, t := range s.Teams {
		if t.Status == StatusReady {
			out = append(out, id)
		}
	}
	return out
}

// Blocked returns the set of team ids currently in StatusBlocked.
func (s WaveState) Blocked() []string {
	var out []string
	for id, t := range s.Teams {
		if t.Status == StatusBlocked {
			out = append(out, id)
		}
	}
	return out
}
