package wavestate

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() {
	old := Clock
	Clock = func() time.Time { return t }
	return func() { Clock = old }
}

func TestNew_AllReadyFalseInitially(t *testing.T) {
	defer fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))()
	s := New("waveops", 2, "UTC", []string{"alpha", "beta"})
	if s.AllReady {
		t.Fatal("expected all_ready false for fresh in_progress teams")
	}
}

func TestWithTeamStatus_UnknownTeam(t *testing.T) {
	s := New("waveops", 1, "UTC", []string{"alpha"})
	_, err := s.WithTeamStatus("ghost", StatusReady, "")
	var notFound *ErrTeamNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected team-not-found, got %v", err)
	}
}

func TestWithTeamStatus_AllReadyConjunction(t *testing.T) {
	s := New("waveops", 1, "UTC", []string{"alpha", "beta"})

	s1, err := s.WithTeamStatus("alpha", StatusReady, "")
	if err != nil {
		t.Fatal(err)
	}
	if s1.AllReady {
		t.Fatal("beta not ready yet, all_ready must be false")
	}

	s2, err := s1.WithTeamStatus("beta", StatusReady, "")
	if err != nil {
		t.Fatal(err)
	}
	if !s2.AllReady {
		t.Fatal("both teams ready, all_ready must be true")
	}

	// Original snapshots must not have been mutated.
	if s.AllReady || s1.AllReady {
		t.Fatal("WithTeamStatus must not mutate prior snapshots")
	}
}

func TestWithTeamStatus_ReasonOnlyWhenBlocked(t *testing.T) {
	s := New("waveops", 1, "UTC", []string{"alpha"})
	blocked, err := s.WithTeamStatus("alpha", StatusBlocked, "ci failing")
	if err != nil {
		t.Fatal(err)
	}
	if blocked.Teams["alpha"].Reason != "ci failing" {
		t.Fatalf("expected reason set, got %q", blocked.Teams["alpha"].Reason)
	}

	ready, err := blocked.WithTeamStatus("alpha", StatusReady, "")
	if err != nil {
		t.Fatal(err)
	}
	if ready.Teams["alpha"].Reason != "" {
		t.Fatalf("expected reason cleared on non-blocked transition, got %q", ready.Teams["alpha"].Reason)
	}
}

func TestClone_Independence(t *testing.T) {
	s := New("waveops", 1, "UTC", []string{"alpha"})
	clone := s.Clone()
	clone.Teams["alpha"] = TeamState{Status: StatusBlocked}
	if s.Teams["alpha"].Status == StatusBlocked {
		t.Fatal("mutating a clone must not affect the original")
	}
}
