package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/flyingrobots/waveops/internal/forge"
	"github.com/flyingrobots/waveops/internal/pinnedjson"
	"github.com/flyingrobots/waveops/internal/wavegate"
	"github.com/flyingrobots/waveops/internal/wavestate"
)

// Coordinator wires forge events to the wave gate and persists the
// result via the pinned-JSON store. Each Dispatch call produces at most
// one WaveState write; on any exception it posts a user-visible error
// comment and leaves the forge untouched.
type Coordinator struct {
	client forge.Client
	gate   *wavegate.Gate
}

// New builds a Coordinator over client, owning a fresh wave gate.
func New(client forge.Client) *Coordinator {
	return &Coordinator{client: client, gate: wavegate.New(client)}
}

// Result is the outcome of one successful Dispatch call.
type Result struct {
	Skipped bool // true for noop comment events
	Gate    wavegate.Result
}

// Dispatch runs one coordination cycle for event against wctx.
func (c *Coordinator) Dispatch(ctx context.Context, event Event, wctx WaveContext) (Result, error) {
	if event.Kind == EventComment && parseSlashCommand(event.CommentBody) == "" {
		return Result{Skipped: true}, nil
	}

	issue, err := c.client.GetIssue(ctx, wctx.CoordinationIssue)
	if err != nil {
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, fmt.Errorf("fetch coordination issue: %w", err))
	}

	previous, err := decodeState(issue.Body)
	if err != nil {
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, err)
	}

	gateResult, err := c.gate.CheckWaveGate(ctx, wctx.Check, wctx.Gate, &previous)
	if err != nil {
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, fmt.Errorf("evaluate wave gate: %w", err))
	}

	encoded, err := wavestate.Encode(gateResult.State)
	if err != nil {
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, fmt.Errorf("encode wave state: %w", err))
	}

	newBody, err := pinnedjson.Replace(issue.Body, string(encoded))
	if err != nil {
		// Scenario 6: corrupted pinned-JSON layout. No fallback location,
		// no partial write; surface to the user and stop.
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, err)
	}

	if err := c.client.UpdateIssue(ctx, wctx.CoordinationIssue, newBody); err != nil {
		return Result{}, c.fail(ctx, wctx.CoordinationIssue, fmt.Errorf("persist wave state: %w", err))
	}

	if gateResult.Announcement != "" {
		if err := c.client.AddIssueComment(ctx, wctx.CoordinationIssue, gateResult.Announcement); err != nil {
			return Result{Gate: gateResult}, fmt.Errorf("post announcement: %w", err)
		}
	}

	return Result{Gate: gateResult}, nil
}

// decodeState extracts and decodes the pinned WaveState from body,
// surfacing pinnedjson.ErrGuardsMissing verbatim when the sentinels are
// absent or duplicated.
func decodeState(body string) (wavestate.WaveState, error) {
	payload, ok := pinnedjson.Extract(body)
	if !ok {
		return wavestate.WaveState{}, pinnedjson.ErrGuardsMissing
	}
	state, err := wavestate.Decode([]byte(payload))
	if err != nil {
		return wavestate.WaveState{}, fmt.Errorf("decode pinned wave state: %w", err)
	}
	return state, nil
}

// fail posts a user-visible error comment on the coordination issue and
// returns the original error, wrapped only for logging context. It
// never attempts a second write of WaveState.
func (c *Coordinator) fail(ctx context.Context, issueNumber int, err error) error {
	comment := fmt.Sprintf("⚠️ Coordination cycle failed: %s", err.Error())
	if postErr := c.client.AddIssueComment(ctx, issueNumber, comment); postErr != nil {
		return fmt.Errorf("%w (additionally failed to post error comment: %v)", err, postErr)
	}
	return err
}

// parseSlashCommand extracts a leading "/command" token from a comment
// body, or "" if none is present. Slash-command semantics themselves are
// out of scope for the core; this only decides whether a
// comment event warrants a cycle at all.
func parseSlashCommand(body string) string {
	line := strings.TrimSpace(body)
	if !strings.HasPrefix(line, "/") {
		return ""
	}
	fields := strings.Fields(line)
	return fields[0]
}
