package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flyingrobots/waveops/internal/config"
	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/forge/gitea"
	"github.com/flyingrobots/waveops/internal/forge/github"
	"github.com/flyingrobots/waveops/internal/forge/gitlab"
	"github.com/flyingrobots/waveops/internal/gitremote"
)

// Exit codes use small distinct values per failure class rather than a
// single blanket non-zero.
const (
	ExitOK      = 0
	ExitUsage   = 2
	ExitConfig  = 3
	ExitForge   = 4
	ExitCycle   = 5
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "waveops",
	Short:         "Coordinate multi-team delivery through wave barriers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".waveops/config.json", "path to waveops config")
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "waveops: %v\n", err)
		if code, ok := err.(exitCoder); ok {
			return code.ExitCode()
		}
		return ExitUsage
	}
	return ExitOK
}

type exitCoder interface {
	ExitCode() int
}

// exitError pairs an error with the process exit code it should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func newExitError(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// loadConfig reads the config file and requires forge credentials to be
// present, since every subcommand below needs a usable forge client.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return config.Config{}, newExitError(ExitConfig, "load config: %w", err)
	}

	if cfg.Forge.Owner == "" || cfg.Forge.Repo == "" {
		if owner, repo, err := gitremote.DetectOwnerRepo(nil); err == nil {
			if cfg.Forge.Owner == "" {
				cfg.Forge.Owner = owner
			}
			if cfg.Forge.Repo == "" {
				cfg.Forge.Repo = repo
			}
		}
	}

	if err := cfg.RequireForge(); err != nil {
		return config.Config{}, newExitError(ExitConfig, "%w", err)
	}
	return cfg, nil
}

// buildClient constructs the forge.Client named by cfg.Forge.Backend.
func buildClient(cfg config.Config) (forge.Client, error) {
	f := cfg.Forge
	switch f.Backend {
	case "", "github":
		return github.New(f.Token, f.Owner, f.Repo, f.BaseURL)
	case "gitlab":
		return gitlab.New(f.Token, f.Owner+"/"+f.Repo, f.BaseURL)
	case "gitea":
		return gitea.New(f.Token, f.Owner, f.Repo, f.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported forge backend: %q", f.Backend)
	}
}
