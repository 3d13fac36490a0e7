// Package deploygate implements the per-team deployment-gate state
// machine: running the Validator over a team's tasks and projecting the
// result to the forge as a deployment record.
package deploygate

import (
	"time"

	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/validator"
)

// TeamReadinessResult is the outcome of validating one team's tasks for
// one wave.
type TeamReadinessResult struct {
	Team          string
	Wave          int
	Ready         bool
	ValidTasks    []string
	InvalidTasks  []string
	Messages      []string
	DeploymentID  int64
	Status        forge.DeploymentStatus
	Timestamp     time.Time
}

// TaskAssignment pairs a task id with its tracking issue number, the
// input to a team's readiness check.
type TaskAssignment = validator.TaskRef
