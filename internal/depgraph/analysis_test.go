package depgraph

import "testing"

func TestAnalyze_Empty(t *testing.T) {
	g, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	a := Analyze(g)
	if len(a.CriticalPath) != 0 || len(a.ParallelizableLevels) != 0 || len(a.BlockingTasks) != 0 {
		t.Fatalf("expected empty analysis, got %+v", a)
	}
}

func TestAnalyze_Diamond(t *testing.T) {
	g, err := New(diamond())
	if err != nil {
		t.Fatal(err)
	}
	a := Analyze(g)

	if len(a.ParallelizableLevels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(a.ParallelizableLevels), a.ParallelizableLevels)
	}
	if got := a.ParallelizableLevels[0]; len(got) != 1 || got[0] != "a" {
		t.Fatalf("level 0 should be [a], got %v", got)
	}
	if got := a.ParallelizableLevels[1]; len(got) != 2 {
		t.Fatalf("level 1 should have b,c, got %v", got)
	}

	if len(a.CriticalPath) != 3 || a.CriticalPath[0] != "a" || a.CriticalPath[2] != "d" {
		t.Fatalf("expected critical path a->{b|c}->d, got %v", a.CriticalPath)
	}
	if a.CriticalPathEffort != 3 {
		t.Fatalf("expected effort 3 (default 1 each), got %v", a.CriticalPathEffort)
	}

	if a.BlockingTasks[0] != "a" {
		t.Fatalf("expected a to have the highest blocking factor, got %v", a.BlockingTasks)
	}
}

func TestAnalyze_EffortWeightedCriticalPath(t *testing.T) {
	tasks := []Task{
		{ID: "a", Effort: 1},
		{ID: "b", Effort: 5, DependsOn: []string{"a"}},
		{ID: "c", Effort: 1, DependsOn: []string{"a"}},
		{ID: "d", Effort: 1, DependsOn: []string{"c"}},
		{ID: "e", Effort: 1, DependsOn: []string{"b", "d"}},
	}
	g, err := New(tasks)
	if err != nil {
		t.Fatal(err)
	}
	a := Analyze(g)
	// a->b->e (1+5+1=7) beats a->c->d->e (1+1+1+1=4).
	want := []string{"a", "b", "e"}
	if len(a.CriticalPath) != len(want) {
		t.Fatalf("expected %v, got %v", want, a.CriticalPath)
	}
	for i, id := range want {
		if a.CriticalPath[i] != id {
			t.Fatalf("expected %v, got %v", want, a.CriticalPath)
		}
	}
	if a.CriticalPathEffort != 7 {
		t.Fatalf("expected effort 7, got %v", a.CriticalPathEffort)
	}
}
