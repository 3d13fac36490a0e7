package wavestate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Encode serializes s with the fixed key order (root:
// plan, wave, tz, teams, all_ready, updated_at; team: status, at, reason,
// tasks; team ids within "teams" sorted lexicographically). Two equal
// WaveStates always produce byte-identical output, which is required for
// idempotent issue edits — repeated writes of an unchanged state must not
// perturb the coordination issue body.
//
// encoding/json does not let a struct customize map key order, so the
// document is assembled by hand rather than via json.Marshal(s).
func Encode(s WaveState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeField(&buf, "plan", s.Plan, true); err != nil {
		return nil, err
	}
	if err := writeField(&buf, "wave", s.Wave, false); err != nil {
		return nil, err
	}
	if err := writeField(&buf, "tz", s.TZ, false); err != nil {
		return nil, err
	}

	buf.WriteString(`,"teams":{`)
	ids := make([]string, 0, len(s.Teams))
	for id := range s.Teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeTeam(&buf, s.Teams[id]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	if err := writeField(&buf, "all_ready", s.AllReady, false); err != nil {
		return nil, err
	}
	if err := writeField(&buf, "updated_at", formatTime(s.UpdatedAt), false); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeTeam(buf *bytes.Buffer, ts TeamState) error {
	buf.WriteByte('{')
	if err := writeField(buf, "status", string(ts.Status), true); err != nil {
		return err
	}
	if err := writeField(buf, "at", formatTime(ts.At), false); err != nil {
		return err
	}
	if ts.Reason != "" {
		if err := writeField(buf, "reason", ts.Reason, false); err != nil {
			return err
		}
	}
	buf.WriteString(`,"tasks":`)
	tasks := ts.Tasks
	if tasks == nil {
		tasks = []string{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte('}')
	return nil
}

func writeField(buf *bytes.Buffer, key string, value interface{}, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// wireState mirrors the wire shape for Decode; field order here does not
// matter for decoding, only for Encode's hand-rolled writer above.
type wireState struct {
	Plan      string               `json:"plan"`
	Wave      int                  `json:"wave"`
	TZ        string               `json:"tz"`
	Teams     map[string]wireTeam  `json:"teams"`
	AllReady  bool                 `json:"all_ready"`
	UpdatedAt string               `json:"updated_at"`
}

type wireTeam struct {
	Status string   `json:"status"`
	At     string   `json:"at"`
	Reason string   `json:"reason,omitempty"`
	Tasks  []string `json:"tasks"`
}

// Decode parses the wire format produced by Encode back into a WaveState.
func Decode(data []byte) (WaveState, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return WaveState{}, fmt.Errorf("decode wave state: %w", err)
	}

	teams := make(map[string]TeamState, len(w.Teams))
	for id, wt := range w.Teams {
		at, err := parseTime(wt.At)
		if err != nil {
			return WaveState{}, fmt.Errorf("decode team %q: %w", id, err)
		}
		teams[id] = TeamState{
			Status: Status(wt.Status),
			At:     at,
			Reason: wt.Reason,
			Tasks:  wt.Tasks,
		}
	}

	updatedAt, err := parseTime(w.UpdatedAt)
	if err != nil {
		return WaveState{}, fmt.Errorf("decode updated_at: %w", err)
	}

	return WaveState{
		Plan:      w.Plan,
		Wave:      w.Wave,
		TZ:        w.TZ,
		Teams:     teams,
		AllReady:  w.AllReady,
		UpdatedAt: updatedAt,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
