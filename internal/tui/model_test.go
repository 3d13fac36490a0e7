package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flyingrobots/waveops/internal/deploygate"
	"github.com/flyingrobots/waveops/internal/depgraph"
	"github.com/flyingrobots/waveops/internal/wavegate"
	"github.com/flyingrobots/waveops/internal/workstealing"
)

func TestView_BeforeFirstStatus(t *testing.T) {
	m := New()
	view := m.View()
	if !strings.Contains(view, "waiting for the first coordination cycle") {
		t.Fatalf("expected waiting message, got %q", view)
	}
}

func TestUpdate_StatusMsgRendersTeams(t *testing.T) {
	m := New()
	updated, _ := m.Update(StatusMsg(wavegate.WaveGateStatus{
		Wave:          2,
		AllTeamsReady: false,
		Results: []deploygate.TeamReadinessResult{
			{Team: "alpha", Ready: true},
			{Team: "beta", Ready: false},
		},
	}))
	view := updated.View()
	if !strings.Contains(view, "alpha") || !strings.Contains(view, "beta") {
		t.Fatalf("expected both teams rendered, got %q", view)
	}
	if !strings.Contains(view, "wave 2") {
		t.Fatalf("expected wave number rendered, got %q", view)
	}
}

func TestUpdate_AnalysisMsgRendersCriticalPath(t *testing.T) {
	m := New()
	updated, _ := m.Update(AnalysisMsg(depgraph.Analysis{
		CriticalPath:       []string{"t1", "t2", "t3"},
		CriticalPathEffort: 6,
	}))
	view := updated.View()
	if !strings.Contains(view, "t1 -> t2 -> t3") {
		t.Fatalf("expected critical path chain rendered, got %q", view)
	}
}

func TestUpdate_RecommendationsMsgRendersTransfers(t *testing.T) {
	m := New()
	updated, _ := m.Update(RecommendationsMsg(workstealing.Summary{
		Executed: []workstealing.TransferRecord{
			{TaskID: "t7", FromTeam: "alpha", ToTeam: "gamma", Reason: "overloaded"},
		},
	}))
	view := updated.View()
	if !strings.Contains(view, "t7") || !strings.Contains(view, "alpha -> gamma") {
		t.Fatalf("expected transfer rendered, got %q", view)
	}
}

func TestUpdate_QuitKey(t *testing.T) {
	m := New()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if updated.View() != "" {
		t.Fatal("expected empty view once quitting")
	}
}
