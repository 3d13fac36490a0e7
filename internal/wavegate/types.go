// Package wavegate implements the wave barrier: it fans out to the
// Deployment Gate, creates the check run, and emits the completion
// announcement at most once.
package wavegate

import (
	"time"

	"github.com/flyingrobots/waveops/internal/deploygate"
	"github.com/flyingrobots/waveops/internal/wavestate"
)

// WaveGateStatus is the derived (not stored) per-wave barrier snapshot
//.
type WaveGateStatus struct {
	Wave           int
	AllTeamsReady  bool
	Results        []deploygate.TeamReadinessResult
	ReadyTeams     []string
	BlockedTeams   []string
	Timestamp      time.Time
}

// CheckConfig names the check run to create/update.
type CheckConfig struct {
	CheckName string
	HeadRef   string // defaults to "main" when empty
}

// GateConfig describes the wave being evaluated.
type GateConfig struct {
	Plan      string
	Wave      int
	TZ        string
	TeamTasks deploygate.TeamTasks
}

// Result is the outcome of one CheckWaveGate call.
type Result struct {
	Status       WaveGateStatus
	State        wavestate.WaveState
	CheckRunID   int64
	Announcement string // empty unless allTeamsReady just became true; empty for callers that joined an in-flight evaluation
}
