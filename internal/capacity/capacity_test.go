package capacity

import "testing"

func TestUtilizationRatio(t *testing.T) {
	cases := []struct {
		name     string
		u        Utilization
		expected float64
	}{
		{"half loaded", Utilization{ActiveTasks: 2, Capacity: TeamCapacity{MaxConcurrent: 4}}, 0.5},
		{"overloaded", Utilization{ActiveTasks: 6, Capacity: TeamCapacity{MaxConcurrent: 4}}, 1.5},
		{"zero capacity never divides by zero", Utilization{ActiveTasks: 0, Capacity: TeamCapacity{MaxConcurrent: 0}}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.u.Ratio(); got != tc.expected {
				t.Errorf("Ratio() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestTeamCapacityProficiency(t *testing.T) {
	c := TeamCapacity{Skills: []SkillProficiency{{Skill: "frontend", Proficiency: 0.4}}}
	if got := c.Proficiency("frontend"); got != 0.4 {
		t.Errorf("Proficiency(frontend) = %v, want 0.4", got)
	}
	if got := c.Proficiency("backend"); got != 0 {
		t.Errorf("Proficiency(backend) = %v, want 0", got)
	}
}

func TestSnapshotRejectsDuplicateTeam(t *testing.T) {
	_, err := NewSnapshot([]Utilization{{Team: "alpha"}, {Team: "alpha"}})
	if err == nil {
		t.Fatal("expected error for duplicate team")
	}
}

func TestSnapshotOverloadedUnderloaded(t *testing.T) {
	snap, err := NewSnapshot([]Utilization{
		{Team: "alpha", ActiveTasks: 6, Capacity: TeamCapacity{MaxConcurrent: 4}},
		{Team: "gamma", ActiveTasks: 0, Capacity: TeamCapacity{MaxConcurrent: 4}},
	})
	if err != nil {
		t.Fatal(err)
	}

	over := snap.Overloaded(1.2)
	if len(over) != 1 || over[0] != "alpha" {
		t.Errorf("Overloaded(1.2) = %v, want [alpha]", over)
	}

	under := snap.Underloaded(1.2)
	if len(under) != 1 || under[0] != "gamma" {
		t.Errorf("Underloaded(1.2) = %v, want [gamma]", under)
	}

	if snap.Len() != 2 {
		t.Errorf("Len() = %d, want 2", snap.Len())
	}

	if _, ok := snap.Team("missing"); ok {
		t.Error("expected missing team to be absent")
	}
}
