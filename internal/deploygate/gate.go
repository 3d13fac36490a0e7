package deploygate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/validator"
)

// Clock is the wall-clock source, overridable in tests.
var Clock = time.Now

// Gate drives per-team and per-wave deployment-readiness evaluation.
type Gate struct {
	client    forge.Client
	validator *validator.Validator
}

// New builds a Gate over client, with its own Validator instance.
func New(client forge.Client) *Gate {
	return &Gate{client: client, validator: validator.New(client)}
}

// ValidateAndUpdate runs the Validator over team's tasks, creates a
// deployment record in environment wave-<wave>-ready, and returns the
// resulting TeamReadinessResult.
func (g *Gate) ValidateAndUpdate(ctx context.Context, team string, wave int, tasks []TaskAssignment) (TeamReadinessResult, error) {
	results := g.validator.ValidateBatch(ctx, tasks)

	valid := validator.Valid(results)
	invalid := validator.Invalid(results)
	messages := validator.Messages(results)

	status := forge.DeploymentSuccess
	description := fmt.Sprintf("%s team readiness for Wave %d: all tasks valid", team, wave)
	if len(invalid) > 0 {
		status = forge.DeploymentFailure
		description = fmt.Sprintf("%s team readiness for Wave %d: blocked tasks %v", team, wave, invalid)
	}

	now := Clock()
	env := fmt.Sprintf("wave-%d-ready", wave)
	checkID := uuid.New().String()
	dep, err := g.client.CreateDeployment(ctx, forge.DeploymentInput{
		Environment: env,
		Description: description,
		Status:      status,
		Payload: map[string]any{
			"check_id":  checkID,
			"team":      team,
			"wave":      wave,
			"status":    string(status),
			"timestamp": now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return TeamReadinessResult{
			Team: team, Wave: wave, Ready: false,
			ValidTasks: valid, InvalidTasks: invalid, Messages: messages,
			Status: forge.DeploymentError, Timestamp: now,
		}, fmt.Errorf("create deployment for team %s: %w", team, err)
	}

	return TeamReadinessResult{
		Team:         team,
		Wave:         wave,
		Ready:        len(invalid) == 0,
		ValidTasks:   valid,
		InvalidTasks: invalid,
		Messages:     messages,
		DeploymentID: dep.ID,
		Status:       status,
		Timestamp:    now,
	}, nil
}

// TeamTasks maps a team id to its task assignments for a wave.
type TeamTasks map[string][]TaskAssignment

// CheckWaveGateStatus fans out ValidateAndUpdate per team in parallel.
// Errors in one team do not prevent evaluation of others:
// a team whose deployment creation itself fails is reported with
// Status == forge.DeploymentError and Ready == false, rather than
// aborting the whole wave evaluation.
func (g *Gate) CheckWaveGateStatus(ctx context.Context, wave int, teamTasks TeamTasks) []TeamReadinessResult {
	teams := make([]string, 0, len(teamTasks))
	for team := range teamTasks {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	results := make([]TeamReadinessResult, len(teams))
	g2, ctx := errgroup.WithContext(ctx)
	for i, team := range teams {
		i, team := i, team
		g2.Go(func() error {
			res, err := g.ValidateAndUpdate(ctx, team, wave, teamTasks[team])
			if err != nil {
				res.Status = forge.DeploymentError
				res.Ready = false
			}
			results[i] = res
			return nil // per-team errors never abort sibling evaluation
		})
	}
	_ = g2.Wait()

	return results
}
