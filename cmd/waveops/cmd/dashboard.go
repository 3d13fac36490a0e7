package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/capacity"
	"github.com/flyingrobots/waveops/internal/config"
	"github.com/flyingrobots/waveops/internal/coordinator"
	"github.com/flyingrobots/waveops/internal/depgraph"
	"github.com/flyingrobots/waveops/internal/plan"
	"github.com/flyingrobots/waveops/internal/planwatch"
	"github.com/flyingrobots/waveops/internal/tui"
	"github.com/flyingrobots/waveops/internal/wavegate"
	"github.com/flyingrobots/waveops/internal/workstealing"
)

var (
	dashboardPlanPath   string
	dashboardCoordIssue int
	dashboardWave       int
	dashboardCheckName  string
	dashboardTZ         string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run a live terminal dashboard over the coordination cycle",
	Long: `Run a live terminal dashboard over the coordination cycle, re-evaluating
the wave gate, dependency graph, and work-stealing recommendations every
time the plan file changes.`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardPlanPath, "plan", "plan.json", "path to the plan document")
	dashboardCmd.Flags().IntVar(&dashboardCoordIssue, "coordination-issue", 0, "coordination issue number")
	dashboardCmd.Flags().IntVar(&dashboardWave, "wave", 1, "wave number to evaluate")
	dashboardCmd.Flags().StringVar(&dashboardCheckName, "check-name", "waveops", "check run name to create")
	dashboardCmd.Flags().StringVar(&dashboardTZ, "tz", "UTC", "timezone for wave state timestamps")

	rootCmd.AddCommand(dashboardCmd)
}

// noopAssigner withholds every transfer it's offered. The dashboard is a
// read-only view onto the work-stealing engine's recommendations; it
// never drives a reassignment itself.
type noopAssigner struct{}

func (noopAssigner) Reassign(ctx context.Context, taskID, fromTeam, toTeam string) error {
	return fmt.Errorf("dashboard is read-only: transfers are not applied")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return newExitError(ExitForge, "build forge client: %w", err)
	}

	w := planwatch.New(dashboardPlanPath)
	if err := w.Start(); err != nil {
		return newExitError(ExitUsage, "watch plan file: %w", err)
	}
	defer w.Stop()

	p := tea.NewProgram(tui.New())

	event := coordinator.Event{Kind: coordinator.EventManual, Command: "recheck"}

	runCycle := func() {
		result, err := runOneCycle(client, dashboardPlanPath, dashboardCoordIssue, dashboardWave, dashboardCheckName, dashboardTZ, event)
		if err != nil || result.Skipped {
			return
		}
		p.Send(tui.StatusMsg(result.Gate.Status))

		doc, err := plan.Load(dashboardPlanPath)
		if err != nil {
			return
		}
		graph, err := depgraph.New(doc.Tasks())
		if err != nil {
			return
		}
		p.Send(tui.AnalysisMsg(depgraph.Analyze(graph)))

		snapshot, wsConfig := capacityFromStatus(cfg, result.Gate.Status)
		engine := workstealing.New(graph, snapshot, nil, wsConfig, noopAssigner{})
		summary, err := engine.Rebalance(context.Background())
		if err != nil {
			return
		}
		p.Send(tui.RecommendationsMsg(summary))
	}

	go func() {
		runCycle()
		for range w.Events() {
			runCycle()
		}
	}()

	_, err = p.Run()
	return err
}

// capacityFromStatus builds a rough utilization snapshot from the
// deployment gate's per-team readiness results: a team's invalid tasks
// stand in for its active load, since the dashboard has no direct feed
// of in-flight task counts.
func capacityFromStatus(cfg config.Config, status wavegate.WaveGateStatus) (capacity.Snapshot, workstealing.Config) {
	var utils []capacity.Utilization
	for _, r := range status.Results {
		utils = append(utils, capacity.Utilization{
			Team:        r.Team,
			ActiveTasks: len(r.InvalidTasks),
			Capacity:    capacity.TeamCapacity{Team: r.Team, MaxConcurrent: 5, Velocity: 1},
		})
	}
	snapshot, _ := capacity.NewSnapshot(utils)

	ws := cfg.WorkStealing
	return snapshot, workstealing.Config{
		UtilizationThreshold:   ws.GetUtilizationThreshold(),
		SkillMatchThreshold:    ws.GetSkillMatchThreshold(),
		MinimumTransferBenefit: ws.GetMinimumTransferBenefit(),
		MaxTransfersPerWave:    0, // Normalized raises 0 to the default; noopAssigner keeps the pass read-only
		Emergency:              false,
	}
}
