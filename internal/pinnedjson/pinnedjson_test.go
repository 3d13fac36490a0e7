package pinnedjson

import (
	"errors"
	"strings"
	"testing"
)

func wrappedBody(payload, before, after string) string {
	return before + NewBody(payload) + after
}

func TestExtract(t *testing.T) {
	body := wrappedBody(`{"a":1}`, "# Wave 3\n\nSome notes.\n\n", "\nFooter text.\n")
	got, ok := Extract(body)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestValidate_MissingSentinel(t *testing.T) {
	if Validate("no sentinels here") {
		t.Fatal("expected false")
	}
}

func TestValidate_DuplicatedSentinel(t *testing.T) {
	body := NewBody("{}") + NewBody("{}")
	if Validate(body) {
		t.Fatal("expected false for duplicated sentinels")
	}
}

func TestReplace_PreservesOutsideContent(t *testing.T) {
	body := wrappedBody(`{"a":1}`, "# Title\n\n", "\n## Footer\n")
	updated, err := Replace(body, `{"a":2}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(updated, "# Title\n\n") {
		t.Fatalf("prefix not preserved: %q", updated)
	}
	if !strings.HasSuffix(updated, "\n## Footer\n") {
		t.Fatalf("suffix not preserved: %q", updated)
	}
	got, ok := Extract(updated)
	if !ok || got != `{"a":2}` {
		t.Fatalf("expected updated payload, got %q ok=%v", got, ok)
	}
}

func TestReplace_GuardsMissing(t *testing.T) {
	_, err := Replace("no sentinels", `{}`)
	if !errors.Is(err, ErrGuardsMissing) {
		t.Fatalf("expected ErrGuardsMissing, got %v", err)
	}
}

func TestReplace_DuplicatedEndSentinel(t *testing.T) {
	body := NewBody("{}") + endSentinel
	_, err := Replace(body, `{}`)
	if !errors.Is(err, ErrGuardsMissing) {
		t.Fatalf("expected ErrGuardsMissing, got %v", err)
	}
}

// Round-trip invariants
func TestRoundTrip_ExtractOfReplace(t *testing.T) {
	body := wrappedBody(`{"a":1}`, "prefix\n", "\nsuffix")
	payload := `{"wave":7}`
	updated, err := Replace(body, payload)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := Extract(updated)
	if !ok || got != payload {
		t.Fatalf("extract(replace(_, j)) != j: got %q", got)
	}
}

func TestRoundTrip_ReplaceOfExtractIsIdentity(t *testing.T) {
	body := wrappedBody(`{"a":1}`, "prefix\n", "\nsuffix")
	payload, ok := Extract(body)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	again, err := Replace(body, payload)
	if err != nil {
		t.Fatal(err)
	}
	if again != body {
		t.Fatalf("replace(extract(body)) != body:\nwant %q\ngot  %q", body, again)
	}
}
