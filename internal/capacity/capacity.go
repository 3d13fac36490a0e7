// Package capacity holds per-team utilization snapshots refreshed once
// per coordination cycle, feeding the work-stealing engine's candidate
// selection.
package capacity

import "fmt"

// SkillProficiency pairs a skill name with a proficiency in [0,1].
type SkillProficiency struct {
	Skill       string
	Proficiency float64
}

// TeamCapacity is a team's declared ceiling plus its skill vector. It
// changes rarely relative to Utilization and is supplied by the caller
// (plan config), not derived.
type TeamCapacity struct {
	Team        string
	MaxConcurrent int
	Velocity      float64
	Skills        []SkillProficiency
}

// Proficiency returns the team's proficiency in skill, or 0 if absent.
func (c TeamCapacity) Proficiency(skill string) float64 {
	for _, s := range c.Skills {
		if s.Skill == skill {
			return s.Proficiency
		}
	}
	return 0
}

// Utilization is a team's current load against its capacity, refreshed
// on each coordination cycle.
type Utilization struct {
	Team        string
	ActiveTasks int
	Capacity    TeamCapacity
}

// Ratio returns ActiveTasks / MaxConcurrent. A team with MaxConcurrent
// == 0 is always reported as fully saturated (ratio 1), never divides
// by zero.
func (u Utilization) Ratio() float64 {
	if u.Capacity.MaxConcurrent <= 0 {
		return 1
	}
	return float64(u.ActiveTasks) / float64(u.Capacity.MaxConcurrent)
}

// Overloaded reports whether u's ratio exceeds threshold.
func (u Utilization) Overloaded(threshold float64) bool {
	return u.Ratio() > threshold
}

// Underloaded reports whether u's ratio is below threshold.
func (u Utilization) Underloaded(threshold float64) bool {
	return u.Ratio() < threshold
}

// Snapshot holds every team's Utilization for one coordination cycle,
// keyed by team id to avoid owning references between teams (// id-keyed-table pattern, mirrored from the dependency graph).
type Snapshot struct {
	teams map[string]Utilization
}

// NewSnapshot builds a Snapshot from a set of Utilization records.
// Duplicate team ids are rejected: the caller's capacity source is
// expected to produce one record per team.
func NewSnapshot(utils []Utilization) (Snapshot, error) {
	teams := make(map[string]Utilization, len(utils))
	for _, u := range utils {
		if _, ok := teams[u.Team]; ok {
			return Snapshot{}, fmt.Errorf("capacity: duplicate team %q in snapshot", u.Team)
		}
		teams[u.Team] = u
	}
	return Snapshot{teams: teams}, nil
}

// Team returns the Utilization for team and whether it was found.
func (s Snapshot) Team(team string) (Utilization, bool) {
	u, ok := s.teams[team]
	return u, ok
}

// Overloaded returns team ids whose ratio exceeds threshold.
func (s Snapshot) Overloaded(threshold float64) []string {
	var out []string
	for id, u := range s.teams {
		if u.Overloaded(threshold) {
			out = append(out, id)
		}
	}
	return out
}

// Underloaded returns team ids whose ratio is below threshold.
func (s Snapshot) Underloaded(threshold float64) []string {
	var out []string
	for id, u := range s.teams {
		if u.Underloaded(threshold) {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of teams in the snapshot.
func (s Snapshot) Len() int {
	return len(s.teams)
}
