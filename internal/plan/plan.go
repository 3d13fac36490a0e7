// Package plan loads an on-disk wave plan document into the task set the
// dependency graph operates on. Schema validation of the plan document
// is out of scope; this package only decodes and performs the minimal
// structural checks needed to build a well-formed internal/depgraph.Task
// slice (duplicate or missing task ids; other fields are not checked).
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flyingrobots/waveops/internal/deploygate"
	"github.com/flyingrobots/waveops/internal/depgraph"
	"github.com/flyingrobots/waveops/internal/validator"
)

// Document is the on-disk shape of a plan file.
type Document struct {
	Name  string         `json:"name"`
	Waves []WaveDocument `json:"waves"`
}

// WaveDocument groups tasks under a single wave number, matching how
// plan authors naturally organize a wave plan rather than repeating the
// wave number on every task.
type WaveDocument struct {
	Wave  int            `json:"wave"`
	Tasks []TaskDocument `json:"tasks"`
}

// TaskDocument is the on-disk shape of one task. IssueNumber links the
// task to the forge issue tracking it, needed to build a deployment
// gate's TeamTasks; it is separate from the task id, which may be a
// short plan-local identifier.
type TaskDocument struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Team               string   `json:"team"`
	IssueNumber        int      `json:"issue_number,omitempty"`
	DependsOn          []string `json:"depends_on,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Critical           bool     `json:"critical,omitempty"`
	Effort             float64  `json:"effort,omitempty"`
}

// Load reads and decodes the plan file at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read plan: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes decodes data as a plan document, checking for duplicate or
// missing task ids.
func LoadBytes(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse plan: %w", err)
	}

	seen := make(map[string]bool)
	for _, wave := range doc.Waves {
		for _, t := range wave.Tasks {
			if t.ID == "" {
				return Document{}, fmt.Errorf("plan %q, wave %d: task missing id", doc.Name, wave.Wave)
			}
			if seen[t.ID] {
				return Document{}, fmt.Errorf("plan %q: duplicate task id %q", doc.Name, t.ID)
			}
			seen[t.ID] = true
		}
	}
	return doc, nil
}

// Tasks flattens every wave's tasks into a single slice ready for
// depgraph.New. It does not check for cycles or dangling dependency
// references; that's depgraph's job once the graph is built.
func (d Document) Tasks() []depgraph.Task {
	var tasks []depgraph.Task
	for _, wave := range d.Waves {
		for _, t := range wave.Tasks {
			tasks = append(tasks, depgraph.Task{
				ID:                 t.ID,
				Title:              t.Title,
				Wave:               wave.Wave,
				Team:               t.Team,
				DependsOn:          t.DependsOn,
				AcceptanceCriteria: t.AcceptanceCriteria,
				Critical:           t.Critical,
				Effort:             t.Effort,
			})
		}
	}
	return tasks
}

// Parse decodes data and flattens it directly to a task slice, a
// convenience for callers that only need the graph's view of the plan.
func Parse(data []byte) ([]depgraph.Task, error) {
	doc, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return doc.Tasks(), nil
}

// Teams returns the distinct, unordered set of team names referenced by
// tasks, useful for seeding a capacity snapshot before the first cycle.
func Teams(tasks []depgraph.Task) []string {
	seen := make(map[string]bool)
	var teams []string
	for _, t := range tasks {
		if t.Team == "" || seen[t.Team] {
			continue
		}
		seen[t.Team] = true
		teams = append(teams, t.Team)
	}
	return teams
}

// TeamTasksForWave builds the deployment gate's TeamTasks input for one
// wave: every task in that wave, grouped by team, referenced by its
// forge issue number.
func (d Document) TeamTasksForWave(wave int) deploygate.TeamTasks {
	out := make(deploygate.TeamTasks)
	for _, w := range d.Waves {
		if w.Wave != wave {
			continue
		}
		for _, t := range w.Tasks {
			out[t.Team] = append(out[t.Team], validator.TaskRef{TaskID: t.ID, IssueNumber: t.IssueNumber})
		}
	}
	return out
}
