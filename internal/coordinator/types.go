// Package coordinator dispatches forge events to the dependency graph,
// validator, deployment gate, and wave gate, persisting the result
// through the pinned-JSON store.
package coordinator

import "github.com/flyingrobots/waveops/internal/wavegate"

// EventKind classifies the forge event being dispatched.
type EventKind string

const (
	EventIssue       EventKind = "issue"       // issue opened/edited/closed
	EventComment     EventKind = "comment"     // comment on the coordination issue
	EventPullRequest EventKind = "pr"          // pull request merged
	EventPush        EventKind = "push"        // push to main
	EventManual      EventKind = "manual"      // explicit operator-triggered cycle
)

// Event describes one forge notification to dispatch.
type Event struct {
	Kind        EventKind
	IssueNumber int    // the issue that changed, when Kind == EventIssue or EventComment
	PRNumber    int    // the PR that merged, when Kind == EventPullRequest
	Ref         string // the ref pushed, when Kind == EventPush
	CommentBody string // raw comment body, when Kind == EventComment
	Command     string // explicit command text, when Kind == EventManual
}

// WaveContext names the coordination issue and wave being evaluated.
// The coordinator does not discover this on its own; the caller (CLI
// dispatch, or a plan-driven scheduler) supplies it per event, since
// plan parsing is out of the core's scope.
type WaveContext struct {
	CoordinationIssue int
	Check             wavegate.CheckConfig
	Gate              wavegate.GateConfig
}
