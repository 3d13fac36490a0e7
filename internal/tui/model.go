// Package tui renders a live terminal dashboard over a running
// coordination cycle: per-team wave-gate status, the dependency graph's
// critical path, and pending work-stealing recommendations.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flyingrobots/waveops/internal/depgraph"
	"github.com/flyingrobots/waveops/internal/wavegate"
	"github.com/flyingrobots/waveops/internal/workstealing"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	readyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// StatusMsg is sent whenever a new WaveGateStatus is available from a
// local coordination cycle.
type StatusMsg wavegate.WaveGateStatus

// AnalysisMsg carries a refreshed dependency-graph analysis.
type AnalysisMsg depgraph.Analysis

// RecommendationsMsg carries the work-stealing engine's latest summary.
type RecommendationsMsg workstealing.Summary

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	status        wavegate.WaveGateStatus
	haveStatus    bool
	analysis      depgraph.Analysis
	haveAnalysis  bool
	recs          workstealing.Summary
	width, height int
	quitting      bool
}

// New builds an empty dashboard model.
func New() Model {
	return Model{}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case StatusMsg:
		m.status = wavegate.WaveGateStatus(msg)
		m.haveStatus = true
		return m, nil
	case AnalysisMsg:
		m.analysis = depgraph.Analysis(msg)
		m.haveAnalysis = true
		return m, nil
	case RecommendationsMsg:
		m.recs = workstealing.Summary(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("waveops") + "\n\n")
	b.WriteString(m.renderWave())
	b.WriteString("\n")
	b.WriteString(m.renderCriticalPath())
	b.WriteString("\n")
	b.WriteString(m.renderRecommendations())
	b.WriteString("\n" + dimStyle.Render("q to quit") + "\n")
	return b.String()
}

func (m Model) renderWave() string {
	if !m.haveStatus {
		return dimStyle.Render("waiting for the first coordination cycle...") + "\n"
	}

	var b strings.Builder
	state := blockedStyle.Render("blocked")
	if m.status.AllTeamsReady {
		state = readyStyle.Render("all teams ready")
	}
	b.WriteString(fmt.Sprintf("wave %d — %s\n", m.status.Wave, state))

	type teamStatus struct {
		Team  string
		Ready bool
	}
	results := make([]teamStatus, 0, len(m.status.Results))
	for _, r := range m.status.Results {
		results = append(results, teamStatus{r.Team, r.Ready})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Team < results[j].Team })

	for _, r := range results {
		mark := blockedStyle.Render("✗")
		if r.Ready {
			mark = readyStyle.Render("✓")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", mark, r.Team))
	}
	return b.String()
}

func (m Model) renderCriticalPath() string {
	if !m.haveAnalysis || len(m.analysis.CriticalPath) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("critical path") + fmt.Sprintf(" (effort %.1f)\n", m.analysis.CriticalPathEffort))
	b.WriteString("  " + strings.Join(m.analysis.CriticalPath, " -> ") + "\n")
	return b.String()
}

func (m Model) renderRecommendations() string {
	if len(m.recs.Executed) == 0 && len(m.recs.Recommendations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("work stealing") + "\n")
	for _, t := range m.recs.Executed {
		b.WriteString(fmt.Sprintf("  moved %s: %s -> %s (%s)\n", t.TaskID, t.FromTeam, t.ToTeam, t.Reason))
	}
	for _, r := range m.recs.Recommendations {
		b.WriteString(dimStyle.Render("  " + r + "\n"))
	}
	return b.String()
}
