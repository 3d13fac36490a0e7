package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultVersion = 1

	DefaultUtilizationThreshold = 1.2
	DefaultSkillMatchThreshold  = 0.6
	DefaultMinimumTransferBenefit = 0.1
	DefaultMaxTransfersPerWave  = 3
	DefaultCycleDeadline        = 10 * time.Minute
)

// Config defines WaveOps coordinator configuration stored on disk as
// JSON (the CLI reads .waveops/config.json by default). A forge token and owner/repo slug are required; their
// absence is fatal at startup and is therefore not modeled
// with a zero-value default.
type Config struct {
	Version int `json:"version"`

	// Forge identifies the hosted code-forge repository and credential
	// to operate against. Token may be left empty here and supplied via
	// the WAVEOPS_TOKEN environment variable instead.
	Forge ForgeConfig `json:"forge"`

	WorkStealing *WorkStealingConfig `json:"work_stealing,omitempty"`
	Cycle        *CycleConfig        `json:"cycle,omitempty"`
}

// ForgeConfig names the repository and backend kind to coordinate.
type ForgeConfig struct {
	Backend string `json:"backend"` // "github", "gitlab", or "gitea"
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Token   string `json:"token,omitempty"`
	BaseURL string `json:"base_url,omitempty"` // override for self-hosted gitea/gitlab
}

// WorkStealingConfig holds the thresholds consumed by the rebalancer.
type WorkStealingConfig struct {
	// UtilizationThreshold marks a team overloaded above it and a
	// candidate receiver below it (default 1.2).
	UtilizationThreshold *float64 `json:"utilization_threshold,omitempty"`

	// SkillMatchThreshold is the minimum skillMatch score required
	// before a transfer is even considered (default 0.6).
	SkillMatchThreshold *float64 `json:"skill_match_threshold,omitempty"`

	// MinimumTransferBenefit is the minimum (expectedBenefit -
	// transferCost) required to accept a candidate (default 0.1).
	MinimumTransferBenefit *float64 `json:"minimum_transfer_benefit,omitempty"`

	// MaxTransfersPerWave caps executed transfers per wave (default 3).
	MaxTransfersPerWave *int `json:"max_transfers_per_wave,omitempty"`

	// Emergency allows critical-path tasks to transfer (default false).
	Emergency *bool `json:"emergency,omitempty"`
}

func (c *WorkStealingConfig) GetUtilizationThreshold() float64 {
	if c == nil || c.UtilizationThreshold == nil {
		return DefaultUtilizationThreshold
	}
	return *c.UtilizationThreshold
}

func (c *WorkStealingConfig) GetSkillMatchThreshold() float64 {
	if c == nil || c.SkillMatchThreshold == nil {
		return DefaultSkillMatchThreshold
	}
	return *c.SkillMatchThreshold
}

func (c *WorkStealingConfig) GetMinimumTransferBenefit() float64 {
	if c == nil || c.MinimumTransferBenefit == nil {
		return DefaultMinimumTransferBenefit
	}
	return *c.MinimumTransferBenefit
}

func (c *WorkStealingConfig) GetMaxTransfersPerWave() int {
	if c == nil || c.MaxTransfersPerWave == nil {
		return DefaultMaxTransfersPerWave
	}
	return *c.MaxTransfersPerWave
}

func (c *WorkStealingConfig) IsEmergency() bool {
	return c != nil && c.Emergency != nil && *c.Emergency
}

func (c *WorkStealingConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.UtilizationThreshold != nil && *c.UtilizationThreshold <= 0 {
		return fmt.Errorf("utilization_threshold must be positive, got %v", *c.UtilizationThreshold)
	}
	if c.SkillMatchThreshold != nil && (*c.SkillMatchThreshold < 0 || *c.SkillMatchThreshold > 1) {
		return fmt.Errorf("skill_match_threshold must be in [0,1], got %v", *c.SkillMatchThreshold)
	}
	if c.MaxTransfersPerWave != nil && *c.MaxTransfersPerWave < 0 {
		return fmt.Errorf("max_transfers_per_wave must be non-negative, got %d", *c.MaxTransfersPerWave)
	}
	return nil
}

// CycleConfig bounds one coordination cycle.
type CycleConfig struct {
	// DeadlineSeconds is the end-to-end coordination cycle deadline
	// (default 600s / 10m).
	DeadlineSeconds *int `json:"deadline_seconds,omitempty"`
}

func (c *CycleConfig) GetDeadline() time.Duration {
	if c == nil || c.DeadlineSeconds == nil {
		return DefaultCycleDeadline
	}
	return time.Duration(*c.DeadlineSeconds) * time.Second
}

func (c *CycleConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.DeadlineSeconds != nil && *c.DeadlineSeconds <= 0 {
		return fmt.Errorf("deadline_seconds must be positive, got %d", *c.DeadlineSeconds)
	}
	return nil
}

// Default returns the default config. Forge fields are left empty;
// callers must populate them from disk or the environment before use.
func Default() Config {
	return Config{Version: DefaultVersion}
}

// Load reads config from disk, applies defaults for zero values, then
// overlays WAVEOPS_TOKEN and WAVEOPS_REPO from the environment (env
// wins over the file).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config not found: %w", err)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOrDefault reads config from disk, returning defaults (plus any
// environment overlay) if the file doesn't exist.
func LoadOrDefault(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv overlays WAVEOPS_TOKEN and WAVEOPS_REPO ("owner/repo") onto
// cfg when present, letting deployment environments avoid committing
// credentials to waveops.json.
func applyEnv(cfg *Config) {
	if tok := os.Getenv("WAVEOPS_TOKEN"); tok != "" {
		cfg.Forge.Token = tok
	}
	if repo := os.Getenv("WAVEOPS_REPO"); repo != "" {
		if owner, name, ok := strings.Cut(repo, "/"); ok {
			cfg.Forge.Owner = owner
			cfg.Forge.Repo = name
		}
	}
}

// Save writes a config to disk. The token is written as-is; callers
// that prefer not to persist secrets should leave Forge.Token empty
// and rely on WAVEOPS_TOKEN instead.
func Save(path string, cfg Config) error {
	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate ensures config values are within supported ranges. It does
// not require Forge.Owner/Repo/Token to be set here; RequireForge does
// that check separately so partially-populated configs (pre-env-overlay)
// remain constructible in tests.
func (c Config) Validate() error {
	if c.Version != DefaultVersion {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.Forge.Backend != "" {
		switch c.Forge.Backend {
		case "github", "gitlab", "gitea":
		default:
			return fmt.Errorf("unsupported forge backend: %q", c.Forge.Backend)
		}
	}
	if err := c.WorkStealing.Validate(); err != nil {
		return fmt.Errorf("invalid work_stealing config: %w", err)
	}
	if err := c.Cycle.Validate(); err != nil {
		return fmt.Errorf("invalid cycle config: %w", err)
	}
	return nil
}

// RequireForge validates that a forge token and owner/repo slug are
// present, as required at startup.
func (c Config) RequireForge() error {
	if c.Forge.Token == "" {
		return errors.New("forge token is required (set WAVEOPS_TOKEN or forge.token)")
	}
	if c.Forge.Owner == "" || c.Forge.Repo == "" {
		return errors.New("owner/repo is required (set WAVEOPS_REPO or forge.owner/forge.repo)")
	}
	return nil
}
