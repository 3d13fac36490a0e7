package selfupdate

import "testing"

func TestNew_RejectsUnsupportedSource(t *testing.T) {
	_, err := New("svn", "flyingrobots", "waveops", "")
	if err == nil {
		t.Fatal("expected an error for an unsupported update source")
	}
}

func TestNew_GitHub(t *testing.T) {
	u, err := New("github", "flyingrobots", "waveops", "")
	if err != nil {
		t.Fatalf("unexpected error building a github updater: %v", err)
	}
	if u == nil {
		t.Fatal("expected a non-nil updater")
	}
}
