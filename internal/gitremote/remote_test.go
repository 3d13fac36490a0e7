package gitremote

import (
	"errors"
	"testing"
)

func TestParseOwnerRepo(t *testing.T) {
	cases := []struct {
		name      string
		remote    string
		owner     string
		repo      string
		wantError bool
	}{
		{"https github", "https://github.com/flyingrobots/waveops.git", "flyingrobots", "waveops", false},
		{"https no git suffix", "https://github.com/flyingrobots/waveops", "flyingrobots", "waveops", false},
		{"ssh github", "git@github.com:flyingrobots/waveops.git", "flyingrobots", "waveops", false},
		{"ssh no git suffix", "git@github.com:flyingrobots/waveops", "flyingrobots", "waveops", false},
		{"self-hosted gitlab subgroup", "https://gitlab.example.com/team/sub/waveops.git", "sub", "waveops", false},
		{"ssh protocol", "ssh://git@gitea.example.com:2222/flyingrobots/waveops.git", "flyingrobots", "waveops", false},
		{"invalid", "git@github.com", "", "", true},
		{"unsupported scheme", "file:///tmp/repo.git", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, err := ParseOwnerRepo(tc.remote)
			if tc.wantError {
				if err == nil {
					t.Fatalf("expected error for %q", tc.remote)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if owner != tc.owner || repo != tc.repo {
				t.Fatalf("expected %s/%s, got %s/%s", tc.owner, tc.repo, owner, repo)
			}
		})
	}
}

func TestDetectOwnerRepo(t *testing.T) {
	owner, repo, err := DetectOwnerRepo(func(string, ...string) ([]byte, error) {
		return []byte("https://github.com/flyingrobots/waveops.git\n"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "flyingrobots" || repo != "waveops" {
		t.Fatalf("expected flyingrobots/waveops, got %s/%s", owner, repo)
	}
}

func TestDetectOwnerRepo_PropagatesError(t *testing.T) {
	_, _, err := DetectOwnerRepo(func(string, ...string) ([]byte, error) {
		return nil, errors.New("not a git repository")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
