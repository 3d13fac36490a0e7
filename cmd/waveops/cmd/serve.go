package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/coordinator"
	"github.com/flyingrobots/waveops/internal/liveboard"
	"github.com/flyingrobots/waveops/internal/planwatch"
)

var (
	serveAddr       string
	servePlanPath   string
	serveCoordIssue int
	serveWave       int
	serveCheckName  string
	serveTZ         string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live wave status board over websocket",
	Long: `Serve a live wave status board over websocket, re-running the
coordination cycle and broadcasting the resulting status whenever the
plan file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "address to listen on")
	serveCmd.Flags().StringVar(&servePlanPath, "plan", "plan.json", "path to the plan document")
	serveCmd.Flags().IntVar(&serveCoordIssue, "coordination-issue", 0, "coordination issue number")
	serveCmd.Flags().IntVar(&serveWave, "wave", 1, "wave number to evaluate")
	serveCmd.Flags().StringVar(&serveCheckName, "check-name", "waveops", "check run name to create")
	serveCmd.Flags().StringVar(&serveTZ, "tz", "UTC", "timezone for wave state timestamps")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return newExitError(ExitForge, "build forge client: %w", err)
	}

	hub := liveboard.NewHub()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: serveAddr, Handler: mux}

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.ListenAndServe() }()

	w := planwatch.New(servePlanPath)
	if err := w.Start(); err != nil {
		return newExitError(ExitUsage, "watch plan file: %w", err)
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	event := coordinator.Event{Kind: coordinator.EventManual, Command: "recheck"}
	runAndBroadcast := func() {
		result, err := runOneCycle(client, servePlanPath, serveCoordIssue, serveWave, serveCheckName, serveTZ, event)
		if err != nil {
			fmt.Fprintf(os.Stderr, "waveops: %v\n", err)
			return
		}
		if result.Skipped {
			return
		}
		if err := hub.Broadcast(result.Gate.Status); err != nil {
			fmt.Fprintf(os.Stderr, "waveops: broadcast: %v\n", err)
		}
	}

	fmt.Printf("serving live board on %s, watching %s\n", serveAddr, servePlanPath)
	runAndBroadcast()

	for {
		select {
		case <-sigCh:
			return srv.Close()
		case err := <-serveErrCh:
			if err != nil && err != http.ErrServerClosed {
				return newExitError(ExitUsage, "serve: %w", err)
			}
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}
			runAndBroadcast()
		}
	}
}
