// Package depgraph implements the task dependency graph: construction,
// cycle detection, the per-node state machine, completion propagation,
// and critical-path analysis.
package depgraph

import "fmt"

// State is the lifecycle state of a DependencyNode.
type State string

const (
	StateWaiting    State = "waiting"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateBlocked    State = "blocked"
	StateFailed     State = "failed"
)

// legalTransitions enumerates the state machine
var legalTransitions = map[State]map[State]bool{
	StateWaiting:    {StateReady: true, StateBlocked: true},
	StateReady:      {StateInProgress: true, StateBlocked: true},
	StateInProgress: {StateCompleted: true, StateFailed: true, StateBlocked: true},
	StateBlocked:    {StateWaiting: true},
	StateFailed:     {StateWaiting: true},
	StateCompleted:  {},
}

// CanTransition reports whether from -> to is a legal state transition.
func CanTransition(from, to State) bool {
	next, ok := legalTransitions[from]
	return ok && next[to]
}

// Task is an immutable (except for team reassignment) unit of work loaded
// from a plan. AcceptanceCriteria are opaque strings; the core never
// interprets them.
type Task struct {
	ID                 string
	Title              string
	Wave               int
	Team               string
	DependsOn          []string
	AcceptanceCriteria []string
	Critical           bool
	Effort             float64
}

// EffortOrDefault returns Effort, defaulting to 1 when unset (<= 0).
func (t Task) EffortOrDefault() float64 {
	if t.Effort <= 0 {
		return 1
	}
	return t.Effort
}

// DependencyNode wraps a Task with graph-derived state. Nodes hold no
// owning references to each other; edges are represented by id in
// DependsOn/DependedBy and resolved through the owning Graph's tables.
type DependencyNode struct {
	Task

	DependedBy     []string
	State          State
	BlockingFactor int
	CriticalPath   bool
}

// ViolationKind classifies a dependency-graph construction or
// state-machine fault.
type ViolationKind string

const (
	ViolationMissing           ViolationKind = "missing"
	ViolationCycle             ViolationKind = "cycle"
	ViolationIllegalTransition ViolationKind = "illegal-transition"
)

// ViolationError is the dependency-violation(kind) error family.
type ViolationError struct {
	Kind  ViolationKind
	Task  string
	Chain []string // populated for ViolationCycle: the offending chain
	From  State     // populated for ViolationIllegalTransition
	To    State
}

func (e *ViolationError) Error() string {
	switch e.Kind {
	case ViolationMissing:
		return fmt.Sprintf("dependency-violation(missing): task %q depends on unknown task", e.Task)
	case ViolationCycle:
		return fmt.Sprintf("dependency-violation(cycle): %v", e.Chain)
	case ViolationIllegalTransition:
		return fmt.Sprintf("dependency-violation(illegal-transition): task %q cannot go %s -> %s", e.Task, e.From, e.To)
	default:
		return fmt.Sprintf("dependency-violation(%s): task %q", e.Kind, e.Task)
	}
}

// Is allows errors.Is(err, depgraph.ErrCycle) style checks against the kind.
func (e *ViolationError) Is(target error) bool {
	other, ok := target.(*ViolationError)
	if !ok {
		return false
	}
	return other.Kind == "" || other.Kind == e.Kind
}

// ErrCycle, ErrMissing and ErrIllegalTransition are sentinels usable with
// errors.Is to test only the violation kind, e.g.
// errors.Is(err, depgraph.ErrCycle).
var (
	ErrMissing           = &ViolationError{Kind: ViolationMissing}
	ErrCycle             = &ViolationError{Kind: ViolationCycle}
	ErrIllegalTransition = &ViolationError{Kind: ViolationIllegalTransition}
)
