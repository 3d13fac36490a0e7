package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/coordinator"
	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/plan"
	"github.com/flyingrobots/waveops/internal/wavegate"
)

var (
	dispatchEvent   string
	dispatchIssue   int
	dispatchPR      int
	dispatchRef     string
	dispatchComment string
	dispatchCommand string

	dispatchPlanPath  string
	dispatchCoordIssue int
	dispatchWave      int
	dispatchCheckName string
	dispatchTZ        string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one coordination cycle for a forge event",
	Long: `Run one coordination cycle for a forge event.

Examples:
  waveops dispatch --event=pr --pr=142 --plan=plan.json --wave=3
  waveops dispatch --event=manual --command=recheck --plan=plan.json --wave=3`,
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchEvent, "event", "manual", "event kind: issue, comment, pr, push, manual")
	dispatchCmd.Flags().IntVar(&dispatchIssue, "issue", 0, "issue number, for issue/comment events")
	dispatchCmd.Flags().IntVar(&dispatchPR, "pr", 0, "pull request number, for pr events")
	dispatchCmd.Flags().StringVar(&dispatchRef, "ref", "", "ref pushed, for push events")
	dispatchCmd.Flags().StringVar(&dispatchComment, "comment-body", "", "raw comment body, for comment events")
	dispatchCmd.Flags().StringVar(&dispatchCommand, "command", "", "explicit command text, for manual events")

	dispatchCmd.Flags().StringVar(&dispatchPlanPath, "plan", "plan.json", "path to the plan document")
	dispatchCmd.Flags().IntVar(&dispatchCoordIssue, "coordination-issue", 0, "coordination issue number")
	dispatchCmd.Flags().IntVar(&dispatchWave, "wave", 1, "wave number to evaluate")
	dispatchCmd.Flags().StringVar(&dispatchCheckName, "check-name", "waveops", "check run name to create")
	dispatchCmd.Flags().StringVar(&dispatchTZ, "tz", "UTC", "timezone for wave state timestamps")

	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := buildClient(cfg)
	if err != nil {
		return newExitError(ExitForge, "build forge client: %w", err)
	}

	event, err := parseEvent()
	if err != nil {
		return newExitError(ExitUsage, "%w", err)
	}

	result, err := runOneCycle(client, dispatchPlanPath, dispatchCoordIssue, dispatchWave, dispatchCheckName, dispatchTZ, event)
	if err != nil {
		return err
	}

	if result.Skipped {
		fmt.Println("no slash command found; cycle skipped")
		return nil
	}

	fmt.Printf("wave %d: all teams ready = %v\n", result.Gate.Status.Wave, result.Gate.Status.AllTeamsReady)
	for _, r := range result.Gate.Status.Results {
		fmt.Printf("  %-12s ready=%v\n", r.Team, r.Ready)
	}
	if result.Gate.Announcement != "" {
		fmt.Printf("announced: %s\n", result.Gate.Announcement)
	}
	return nil
}

// runOneCycle loads the plan fresh (it may have changed since the last
// cycle) and runs exactly one Coordinator.Dispatch call against it.
func runOneCycle(client forge.Client, planPath string, coordIssue, wave int, checkName, tz string, event coordinator.Event) (coordinator.Result, error) {
	doc, err := plan.Load(planPath)
	if err != nil {
		return coordinator.Result{}, newExitError(ExitUsage, "load plan: %w", err)
	}

	wctx := coordinator.WaveContext{
		CoordinationIssue: coordIssue,
		Check:             wavegate.CheckConfig{CheckName: checkName},
		Gate: wavegate.GateConfig{
			Plan:      doc.Name,
			Wave:      wave,
			TZ:        tz,
			TeamTasks: doc.TeamTasksForWave(wave),
		},
	}

	coord := coordinator.New(client)
	result, err := coord.Dispatch(context.Background(), event, wctx)
	if err != nil {
		return coordinator.Result{}, newExitError(ExitCycle, "coordination cycle failed: %w", err)
	}
	return result, nil
}

func parseEvent() (coordinator.Event, error) {
	switch dispatchEvent {
	case "issue":
		return coordinator.Event{Kind: coordinator.EventIssue, IssueNumber: dispatchIssue}, nil
	case "comment":
		return coordinator.Event{Kind: coordinator.EventComment, IssueNumber: dispatchIssue, CommentBody: dispatchComment}, nil
	case "pr":
		return coordinator.Event{Kind: coordinator.EventPullRequest, PRNumber: dispatchPR}, nil
	case "push":
		return coordinator.Event{Kind: coordinator.EventPush, Ref: dispatchRef}, nil
	case "manual":
		return coordinator.Event{Kind: coordinator.EventManual, Command: dispatchCommand}, nil
	default:
		return coordinator.Event{}, fmt.Errorf("unsupported event kind: %q", dispatchEvent)
	}
}
