package query

import (
	"testing"

	"github.com/kartikbazzad/queryterm/internal/queryid"
	"github.com/kartikbazzad/queryterm/internal/types"
)

func TestNewValidatesEnvelopeShape(t *testing.T) {
	alloc := queryid.New()

	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"empty array", `[]`, false},
		{"too long", `[1,2,3,4]`, false},
		{"not an array", `{"a":1}`, false},
		{"non-numeric type", `["x"]`, false},
		{"start with root only", `[1, [1, 1]]`, true},
		{"start with global optargs", `[1, [1, 1], {}]`, true},
		{"bad optargs shape", `[1, [1, 1], [1,2]]`, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New([]byte(c.raw), alloc)
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok && err == nil {
				t.Fatalf("expected an error for %q", c.raw)
			}
		})
	}
}

func TestQueryTypeDecoded(t *testing.T) {
	alloc := queryid.New()
	e, err := New([]byte(`[3]`), alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Type != types.QueryStop {
		t.Fatalf("Type = %v, want QueryStop", e.Type)
	}
}

func TestNonNoreplyQueryReleasesIDImmediately(t *testing.T) {
	alloc := queryid.New()
	before := alloc.NextID()

	e, err := New([]byte(`[1, [1,1]]`), alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Handle() != nil {
		t.Fatal("non-noreply query must not retain its handle")
	}
	if alloc.Oldest() != alloc.NextID() {
		t.Fatal("id should have been released immediately, watermark should equal NextID()")
	}
	if alloc.NextID() != before+1 {
		t.Fatalf("NextID() = %d, want %d", alloc.NextID(), before+1)
	}
}

func TestNoreplyQueryRetainsHandleUntilReleased(t *testing.T) {
	alloc := queryid.New()

	raw := `[1, [1,1], {"noreply": [1, true]}]`
	e, err := New([]byte(raw), alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !e.Noreply {
		t.Fatal("expected Noreply = true")
	}
	if e.Handle() == nil {
		t.Fatal("noreply query must retain its handle")
	}
	if alloc.Oldest() != e.Handle().Value() {
		t.Fatal("watermark should still point at the outstanding noreply query")
	}

	e.Release(alloc)
	if e.Handle() != nil {
		t.Fatal("Release should clear the envelope's handle")
	}
	if alloc.Oldest() != alloc.NextID() {
		t.Fatal("watermark should advance past the released noreply query")
	}
}

func TestStaticOptargAsBoolIgnoresMalformedShape(t *testing.T) {
	alloc := queryid.New()
	// profile's value is not the exact [DATUM, bool] shape: must fall back
	// to the default instead of raising here; full validation happens later
	// during ParseTerms.
	raw := `[1, [1,1], {"profile": [1, [1,2]]}]`
	if _, err := New([]byte(raw), alloc); err != nil {
		// The malformed inner array is itself invalid JSON-shape input to
		// New only if it breaks top-level decoding; this document is valid
		// JSON, so New must succeed and simply fall back to the default.
		t.Fatalf("New: %v", err)
	}
}

func TestParseTermsBuildsRootAndDefaultDB(t *testing.T) {
	alloc := queryid.New()
	e, err := New([]byte(`[1, [1, 5]]`), alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s, err := e.ParseTerms(nil, nil)
	if err != nil {
		t.Fatalf("ParseTerms: %v", err)
	}
	root := s.Node(s.Root())
	if v, _ := root.Value.AsNumber(); v != 5 {
		t.Fatalf("root value = %v, want 5", v)
	}
	global := s.GlobalOptargs()
	if len(global) != 1 || s.Node(global[0]).OptargName != "db" {
		t.Fatal("expected a synthesized default db optarg")
	}
}
