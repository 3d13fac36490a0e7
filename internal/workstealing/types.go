// Package workstealing detects load imbalance across teams and proposes
// and executes task transfers that respect skill thresholds, dependency
// readiness, and critical-path protections.
package workstealing

import (
	"fmt"
	"time"
)

// SkillRequirement is one skill a task needs, weighted by how much it
// matters to that task, "best skill from the task's
// requirements dotted with receiver proficiency".
type SkillRequirement struct {
	Skill  string
	Weight float64
}

// Candidate is a scored (task, receiver) pair under consideration.
type Candidate struct {
	TaskID          string
	FromTeam        string
	ToTeam          string
	SkillMatch      float64
	TransferCost    float64
	DependencyRisk  float64
	ExpectedBenefit float64
}

// NetBenefit is ExpectedBenefit minus TransferCost, the acceptance
// criterion's right-hand quantity.
func (c Candidate) NetBenefit() float64 {
	return c.ExpectedBenefit - c.TransferCost
}

// TransferRecord is a durable record of one executed transfer.
type TransferRecord struct {
	TaskID    string
	FromTeam  string
	ToTeam    string
	Reason    string
	Timestamp time.Time
}

// Summary is the outcome of one Rebalance call.
type Summary struct {
	Executed               []TransferRecord
	UtilizationImprovement float64
	Recommendations        []string
}

// ErrorCode enumerates the work-stealing-error(code) family.
type ErrorCode string

const (
	ErrInsufficientCapacity ErrorCode = "insufficient-capacity"
	ErrSkillMismatch        ErrorCode = "skill-mismatch"
	ErrDependencyViolation  ErrorCode = "dependency-violation"
	ErrTransferRejected     ErrorCode = "transfer-rejected"
	ErrCoordinationFailure  ErrorCode = "coordination-failure"
	ErrInvalidConfiguration ErrorCode = "invalid-configuration"
)

// Error is the work-stealing-error(code) type. Manual operations
// (claimTask/releaseTask) and rejected automatic candidates both surface
// through it.
type Error struct {
	Code   ErrorCode
	TaskID string
	Team   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("work-stealing-error(%s): task %q team %q: %s", e.Code, e.TaskID, e.Team, e.Reason)
}

// Is allows errors.Is(err, &workstealing.Error{Code: workstealing.ErrSkillMismatch})
// style checks against the code alone, mirroring depgraph.ViolationError.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == "" || other.Code == e.Code
}

// Config holds the thresholds driving candidate selection, surfaced to
// operators via internal/config.WorkStealingConfig.
type Config struct {
	UtilizationThreshold   float64
	SkillMatchThreshold    float64
	MinimumTransferBenefit float64
	MaxTransfersPerWave    int
	Emergency              bool

	// BaseTransferCost and OverheadWeight parameterize transferCost; both
	// default to sensible constants via Normalized.
	BaseTransferCost float64
	OverheadWeight   float64

	// DependencyRiskWeight scales the critical-path/blocking-factor
	// component of dependencyRisk.
	DependencyRiskWeight float64
}

// Normalized returns a copy of cfg with zero-valued tunables replaced by
// defaults, without touching caller-supplied thresholds that are
// legitimately zero (e.g. MinimumTransferBenefit == 0).
func (cfg Config) Normalized() Config {
	if cfg.UtilizationThreshold <= 0 {
		cfg.UtilizationThreshold = 1.2
	}
	if cfg.SkillMatchThreshold <= 0 {
		cfg.SkillMatchThreshold = 0.6
	}
	if cfg.MaxTransfersPerWave <= 0 {
		cfg.MaxTransfersPerWave = 3
	}
	if cfg.BaseTransferCost <= 0 {
		cfg.BaseTransferCost = 0.1
	}
	if cfg.OverheadWeight <= 0 {
		cfg.OverheadWeight = 0.2
	}
	if cfg.DependencyRiskWeight <= 0 {
		cfg.DependencyRiskWeight = 0.5
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.UtilizationThreshold < 0 {
		return &Error{Code: ErrInvalidConfiguration, Reason: "utilization threshold must be non-negative"}
	}
	if cfg.SkillMatchThreshold < 0 || cfg.SkillMatchThreshold > 1 {
		return &Error{Code: ErrInvalidConfiguration, Reason: "skill match threshold must be in [0,1]"}
	}
	if cfg.MaxTransfersPerWave < 0 {
		return &Error{Code: ErrInvalidConfiguration, Reason: "max transfers per wave must be non-negative"}
	}
	return nil
}
