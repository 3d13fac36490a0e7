package wavestate

import "fmt"

// ErrTeamNotFound is raised when an operation references a team that is
// not part of the WaveState, "team-not-found".
type ErrTeamNotFound struct {
	Team string
}

func (e *ErrTeamNotFound) Error() string {
	return fmt.Sprintf("team-not-found: %q", e.Team)
}
