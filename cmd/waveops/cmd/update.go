package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/selfupdate"
)

// version is overridden at build time via -ldflags "-X ...version=vX.Y.Z".
var version = "dev"

var updateCheckOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and apply a newer waveops release",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "only check for an update, don't apply it")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := cfg.Forge.Backend
	if source == "" {
		source = "github"
	}

	updater, err := selfupdate.New(source, cfg.Forge.Owner, cfg.Forge.Repo, cfg.Forge.BaseURL)
	if err != nil {
		return newExitError(ExitConfig, "build self-updater: %w", err)
	}

	ctx := cmd.Context()

	if updateCheckOnly {
		result, err := updater.CheckForUpdate(ctx, version)
		if err != nil {
			return newExitError(ExitForge, "check for update: %w", err)
		}
		if !result.HasUpdate {
			fmt.Printf("waveops %s is up to date\n", version)
			return nil
		}
		fmt.Printf("waveops %s is available (running %s)\n", result.Version, version)
		return nil
	}

	result, err := updater.Apply(ctx, version)
	if err != nil {
		return newExitError(ExitForge, "apply update: %w", err)
	}
	if !result.HasUpdate {
		fmt.Printf("waveops %s is already up to date\n", version)
		return nil
	}
	fmt.Printf("updated waveops %s -> %s\n", version, result.Version)
	return nil
}
