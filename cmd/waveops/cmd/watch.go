package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/coordinator"
	"github.com/flyingrobots/waveops/internal/planwatch"
)

var (
	watchPlanPath   string
	watchCoordIssue int
	watchWave       int
	watchCheckName  string
	watchTZ         string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the plan file and trigger a coordination cycle on every change",
	Long: `Watch the plan file and trigger a coordination cycle on every change,
for dev and CI-less setups with no forge webhook delivery.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchPlanPath, "plan", "plan.json", "path to the plan document")
	watchCmd.Flags().IntVar(&watchCoordIssue, "coordination-issue", 0, "coordination issue number")
	watchCmd.Flags().IntVar(&watchWave, "wave", 1, "wave number to evaluate")
	watchCmd.Flags().StringVar(&watchCheckName, "check-name", "waveops", "check run name to create")
	watchCmd.Flags().StringVar(&watchTZ, "tz", "UTC", "timezone for wave state timestamps")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return newExitError(ExitForge, "build forge client: %w", err)
	}

	w := planwatch.New(watchPlanPath)
	if err := w.Start(); err != nil {
		return newExitError(ExitUsage, "watch plan file: %w", err)
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	event := coordinator.Event{Kind: coordinator.EventManual, Command: "recheck"}

	fmt.Printf("watching %s for changes...\n", watchPlanPath)
	for {
		select {
		case <-sigCh:
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}
			result, err := runOneCycle(client, watchPlanPath, watchCoordIssue, watchWave, watchCheckName, watchTZ, event)
			if err != nil {
				fmt.Fprintf(os.Stderr, "waveops: %v\n", err)
				continue
			}
			if result.Skipped {
				continue
			}
			fmt.Printf("wave %d: all teams ready = %v\n", result.Gate.Status.Wave, result.Gate.Status.AllTeamsReady)
		}
	}
}
