// Package selfupdate wraps creativeprojects/go-selfupdate so the
// waveops binary can update itself from GitHub, GitLab, or Gitea
// releases.
package selfupdate

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/creativeprojects/go-selfupdate"
)

// Updater checks a release source for newer builds of waveops and
// replaces the running executable in place.
type Updater struct {
	slug    selfupdate.Repository
	updater *selfupdate.Updater
}

// New builds an Updater targeting owner/repo on the given forge source
// ("github", "gitlab", or "gitea"); baseURL selects a self-hosted
// instance for gitlab/gitea and is ignored for github.
func New(source, owner, repo, baseURL string) (*Updater, error) {
	var config selfupdate.Config
	switch source {
	case "github":
		config.Source, _ = selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	case "gitlab":
		gl, err := selfupdate.NewGitLabSource(selfupdate.GitLabConfig{BaseURL: baseURL})
		if err != nil {
			return nil, fmt.Errorf("build gitlab update source: %w", err)
		}
		config.Source = gl
	case "gitea":
		gt, err := selfupdate.NewGiteaSource(selfupdate.GiteaConfig{BaseURL: baseURL})
		if err != nil {
			return nil, fmt.Errorf("build gitea update source: %w", err)
		}
		config.Source = gt
	default:
		return nil, fmt.Errorf("unsupported update source: %q", source)
	}

	up, err := selfupdate.NewUpdater(config)
	if err != nil {
		return nil, fmt.Errorf("build updater: %w", err)
	}

	return &Updater{
		slug:    selfupdate.NewRepositorySlug(owner, repo),
		updater: up,
	}, nil
}

// Result describes the latest release found by CheckForUpdate.
type Result struct {
	Version     string
	URL         string
	PublishedAt string
	HasUpdate   bool
}

// CheckForUpdate reports whether a release newer than currentVersion
// is available, without downloading or applying it.
func (u *Updater) CheckForUpdate(ctx context.Context, currentVersion string) (Result, error) {
	latest, found, err := u.updater.DetectLatest(ctx, u.slug)
	if err != nil {
		return Result{}, fmt.Errorf("detect latest release: %w", err)
	}
	if !found {
		return Result{}, fmt.Errorf("no release found for %s", formatSlug(u.slug))
	}

	hasUpdate := latest.GreaterThan(currentVersion)
	return Result{
		Version:     latest.Version(),
		URL:         latest.AssetURL,
		PublishedAt: latest.PublishedAt.Format("2006-01-02"),
		HasUpdate:   hasUpdate,
	}, nil
}

// Apply downloads the release matching the running OS/arch and
// replaces the currently running executable with it.
func (u *Updater) Apply(ctx context.Context, currentVersion string) (Result, error) {
	latest, found, err := u.updater.DetectLatest(ctx, u.slug)
	if err != nil {
		return Result{}, fmt.Errorf("detect latest release: %w", err)
	}
	if !found || !latest.GreaterThan(currentVersion) {
		return Result{Version: currentVersion}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return Result{}, fmt.Errorf("locate running executable: %w", err)
	}

	if err := u.updater.UpdateTo(ctx, latest, exe); err != nil {
		return Result{}, fmt.Errorf("apply update (%s/%s): %w", runtime.GOOS, runtime.GOARCH, err)
	}

	return Result{
		Version:     latest.Version(),
		URL:         latest.AssetURL,
		PublishedAt: latest.PublishedAt.Format("2006-01-02"),
		HasUpdate:   true,
	}, nil
}

func formatSlug(r selfupdate.Repository) string {
	owner, repo := r.GetSlug()
	return fmt.Sprintf("%s/%s", owner, repo)
}
