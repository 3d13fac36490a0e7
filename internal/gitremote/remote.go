// Package gitremote detects the owner/repo slug of the current
// repository from its git remote, so the CLI doesn't need --owner and
// --repo flags when waveops is run from inside a checkout.
package gitremote

import (
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes a command and returns its stdout, swappable in
// tests to avoid shelling out to git.
type CommandRunner func(name string, args ...string) ([]byte, error)

func defaultRunner(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// DetectOwnerRepo resolves owner/repo from the origin remote of the
// repository in the current working directory.
func DetectOwnerRepo(run CommandRunner) (owner, repo string, err error) {
	if run == nil {
		run = defaultRunner
	}
	out, err := run("git", "remote", "get-url", "origin")
	if err != nil {
		return "", "", fmt.Errorf("read git remote: %w", err)
	}
	return ParseOwnerRepo(string(out))
}

// ParseOwnerRepo extracts owner/repo from a git remote URL, whether it
// names github.com, gitlab.com, a self-hosted gitea instance, or any
// other host reachable over ssh or https.
func ParseOwnerRepo(remote string) (owner, repo string, err error) {
	remote = strings.TrimSpace(remote)

	var path string
	switch {
	case strings.HasPrefix(remote, "https://"), strings.HasPrefix(remote, "http://"):
		rest := strings.TrimPrefix(strings.TrimPrefix(remote, "https://"), "http://")
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return "", "", fmt.Errorf("unsupported remote format: %s", remote)
		}
		path = rest[idx+1:]
	case strings.HasPrefix(remote, "git@"):
		idx := strings.Index(remote, ":")
		if idx < 0 {
			return "", "", fmt.Errorf("unsupported remote format: %s", remote)
		}
		path = remote[idx+1:]
	case strings.HasPrefix(remote, "ssh://"):
		rest := strings.TrimPrefix(remote, "ssh://")
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return "", "", fmt.Errorf("unsupported remote format: %s", remote)
		}
		path = rest[idx+1:]
	default:
		return "", "", fmt.Errorf("unsupported remote format: %s", remote)
	}

	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid remote path: %s", path)
	}
	owner, repo = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid remote path: %s", path)
	}
	return owner, repo, nil
}
