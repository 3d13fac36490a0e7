package plan

import "testing"
import "strings"

const samplePlan = `{
  "name": "launch",
  "waves": [
    {
      "wave": 1,
      "tasks": [
        {"id": "t1", "title": "Build API", "team": "alpha", "issue_number": 101, "effort": 2, "critical": true},
        {"id": "t2", "title": "Build UI", "team": "beta", "issue_number": 102, "depends_on": ["t1"]}
      ]
    },
    {
      "wave": 2,
      "tasks": [
        {"id": "t3", "title": "Integrate", "team": "alpha", "issue_number": 103, "depends_on": ["t1", "t2"]}
      ]
    }
  ]
}`

func TestLoadBytesAndTasks(t *testing.T) {
	doc, err := LoadBytes([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	tasks := doc.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	byID := map[string]int{}
	for i, task := range tasks {
		byID[task.ID] = i
	}

	t1 := tasks[byID["t1"]]
	if t1.Wave != 1 || t1.Team != "alpha" || !t1.Critical || t1.Effort != 2 {
		t.Fatalf("unexpected t1: %+v", t1)
	}

	t3 := tasks[byID["t3"]]
	if t3.Wave != 2 || len(t3.DependsOn) != 2 {
		t.Fatalf("unexpected t3: %+v", t3)
	}
}

func TestLoadBytes_RejectsDuplicateID(t *testing.T) {
	dup := `{"name":"x","waves":[{"wave":1,"tasks":[
		{"id":"t1","title":"a","team":"alpha"},
		{"id":"t1","title":"b","team":"beta"}
	]}]}`
	_, err := LoadBytes([]byte(dup))
	if err == nil || !strings.Contains(err.Error(), "duplicate task id") {
		t.Fatalf("expected duplicate task id error, got %v", err)
	}
}

func TestLoadBytes_RejectsMissingID(t *testing.T) {
	missing := `{"name":"x","waves":[{"wave":1,"tasks":[{"title":"a","team":"alpha"}]}]}`
	_, err := LoadBytes([]byte(missing))
	if err == nil || !strings.Contains(err.Error(), "missing id") {
		t.Fatalf("expected missing id error, got %v", err)
	}
}

func TestTeams(t *testing.T) {
	doc, err := LoadBytes([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	teams := Teams(doc.Tasks())
	if len(teams) != 2 {
		t.Fatalf("expected 2 distinct teams, got %v", teams)
	}
}

func TestTeamTasksForWave(t *testing.T) {
	doc, err := LoadBytes([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	tt := doc.TeamTasksForWave(1)
	if len(tt) != 2 {
		t.Fatalf("expected 2 teams in wave 1, got %v", tt)
	}
	alpha := tt["alpha"]
	if len(alpha) != 1 || alpha[0].IssueNumber != 101 {
		t.Fatalf("unexpected alpha tasks: %+v", alpha)
	}
}
