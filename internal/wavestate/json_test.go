package wavestate

import (
	"testing"
	"time"
)

func sample() WaveState {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return WaveState{
		Plan: "launch",
		Wave: 2,
		TZ:   "UTC",
		Teams: map[string]TeamState{
			"beta":  {Status: StatusBlocked, At: at, Reason: "ci red", Tasks: []string{"t2"}},
			"alpha": {Status: StatusReady, At: at, Tasks: []string{"t1"}},
		},
		AllReady:  false,
		UpdatedAt: at,
	}
}

// JSON determinism invariant
func TestEncode_Deterministic(t *testing.T) {
	s := sample()
	a, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(s.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("two serializations of an equal state differ:\n%s\n%s", a, b)
	}
}

func TestEncode_KeyOrder(t *testing.T) {
	s := sample()
	out, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"plan":"launch","wave":2,"tz":"UTC","teams":{"alpha":{"status":"ready","at":"2026-03-01T12:00:00Z","tasks":["t1"]},"beta":{"status":"blocked","at":"2026-03-01T12:00:00Z","reason":"ci red","tasks":["t2"]}},"all_ready":false,"updated_at":"2026-03-01T12:00:00Z"}`
	if string(out) != want {
		t.Fatalf("key order mismatch:\nwant %s\ngot  %s", want, out)
	}
}

// Round trip invariant: WaveState -> JSON -> WaveState is
// the identity.
func TestRoundTrip(t *testing.T) {
	s := sample()
	encoded, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	reencoded, err := Encode(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if string(encoded) != string(reencoded) {
		t.Fatalf("round trip not identity:\n%s\n%s", encoded, reencoded)
	}
}
