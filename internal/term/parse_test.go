package term

import (
	"encoding/json"
	"testing"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
)

func decodeJSON(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", s, err)
	}
	return v
}

func TestParseDatumScalar(t *testing.T) {
	s := New(nil, nil)
	ref, err := s.AddRoot(decodeJSON(t, `[1, "hello"]`), backtrace.Empty)
	if err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	n := s.Node(ref)
	if n.Kind != KindDatum {
		t.Fatalf("Kind = %v, want KindDatum", n.Kind)
	}
	if v, _ := n.Value.AsString(); v != "hello" {
		t.Fatalf("Value = %v, want hello", v)
	}
}

func TestParseApplyWithArgsAndOptargs(t *testing.T) {
	s := New(nil, nil)
	// GET(TABLE("t"), "id") with optarg placeholder — using EQ as a
	// two-arg example instead since GET's semantics don't matter here.
	doc := `[17, [[1, 1], [1, 1]], {"x": [1, true]}]`
	ref, err := s.AddRoot(decodeJSON(t, doc), backtrace.Empty)
	if err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	n := s.Node(ref)
	if n.Kind != KindApply || n.Op != EQ {
		t.Fatalf("got Kind=%v Op=%v, want Apply/EQ", n.Kind, n.Op)
	}
	if len(n.Args) != 2 {
		t.Fatalf("len(Args) = %d, want 2", len(n.Args))
	}
	optRef, ok := n.Optargs["x"]
	if !ok {
		t.Fatal("expected optarg x")
	}
	if b, _ := s.Node(optRef).Value.AsBool(); !b {
		t.Fatal("optarg x should be true")
	}
}

func TestParseObjectLiteralBecomesMakeObj(t *testing.T) {
	s := New(nil, nil)
	ref, err := s.AddRoot(decodeJSON(t, `{"a": 1, "b": "two"}`), backtrace.Empty)
	if err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	n := s.Node(ref)
	if n.Kind != KindApply || n.Op != MAKE_OBJ {
		t.Fatalf("got Kind=%v Op=%v, want Apply/MAKE_OBJ", n.Kind, n.Op)
	}
	if len(n.Optargs) != 2 {
		t.Fatalf("len(Optargs) = %d, want 2", len(n.Optargs))
	}
}

func TestParseBareScalarWrapsAsDatum(t *testing.T) {
	s := New(nil, nil)
	ref, err := s.AddRoot(decodeJSON(t, `42`), backtrace.Empty)
	if err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	n := s.Node(ref)
	if n.Kind != KindDatum {
		t.Fatalf("Kind = %v, want KindDatum", n.Kind)
	}
	if v, _ := n.Value.AsNumber(); v != 42 {
		t.Fatalf("Value = %v, want 42", v)
	}
}

func TestParseArrayShapeErrors(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.AddRoot(decodeJSON(t, `[]`), backtrace.Empty); err == nil {
		t.Fatal("expected error for empty array")
	}
	if _, err := s.AddRoot(decodeJSON(t, `[1,2,3,4]`), backtrace.Empty); err == nil {
		t.Fatal("expected error for over-long array")
	}
	if _, err := s.AddRoot(decodeJSON(t, `["not-a-number", []]`), backtrace.Empty); err == nil {
		t.Fatal("expected error for non-numeric term type")
	}
	if _, err := s.AddRoot(decodeJSON(t, `[1, 2, 3]`), backtrace.Empty); err == nil {
		t.Fatal("expected error for DATUM term with wrong arity")
	}
}

func TestNowFoldsToConstantDatum(t *testing.T) {
	bt := backtrace.New()
	s := New(nil, bt)

	ref1, err := s.AddRoot(decodeJSON(t, `[103, []]`), backtrace.Empty)
	if err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	// Fold happens post-parse, so build a second now() call directly and
	// compare against the first: both must resolve to the same instant.
	ref2 := s.foldNow(s.NewApply(NOW, backtrace.Empty))

	n1 := s.Node(ref1)
	n2 := s.Node(ref2)
	if n1.Kind != KindDatum || n2.Kind != KindDatum {
		t.Fatalf("expected both now() calls folded to DATUM, got %v and %v", n1.Kind, n2.Kind)
	}
	if !n1.Value.Equal(n2.Value) {
		t.Fatal("two now() occurrences in the same query must fold to identical datums")
	}
}

func TestAddGlobalOptargsDefaultsDB(t *testing.T) {
	s := New(nil, nil)
	if err := s.AddGlobalOptargs(map[string]interface{}{}, backtrace.Empty); err != nil {
		t.Fatalf("AddGlobalOptargs: %v", err)
	}
	global := s.GlobalOptargs()
	if len(global) != 1 {
		t.Fatalf("len(GlobalOptargs()) = %d, want 1 (default db)", len(global))
	}
	if s.Node(global[0]).OptargName != "db" {
		t.Fatalf("default optarg name = %q, want db", s.Node(global[0]).OptargName)
	}
}

func TestAddGlobalOptargsRespectsSuppliedDB(t *testing.T) {
	s := New(nil, nil)
	obj := map[string]interface{}{
		"db": []interface{}{float64(DB), []interface{}{[]interface{}{float64(DATUM), "custom"}}},
	}
	if err := s.AddGlobalOptargs(obj, backtrace.Empty); err != nil {
		t.Fatalf("AddGlobalOptargs: %v", err)
	}
	global := s.GlobalOptargs()
	if len(global) != 1 {
		t.Fatalf("len(GlobalOptargs()) = %d, want 1", len(global))
	}
}
