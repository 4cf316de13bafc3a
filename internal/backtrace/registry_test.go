package backtrace

import "testing"

func TestEmptyIsValidInFreshRegistry(t *testing.T) {
	r := New()
	f, ok := r.Frame(Empty)
	if !ok {
		t.Fatal("Empty must be valid in every registry")
	}
	if f.Parent != Empty {
		t.Fatalf("sentinel frame parent = %v, want Empty", f.Parent)
	}
}

func TestChildAndPath(t *testing.T) {
	r := New()
	root := r.Child(Empty, 1)
	dbKey := r.ChildKey(root, "db")
	leaf := r.Child(dbKey, 0)

	if path := r.Path(leaf); path != "1/optarg:db/0" {
		t.Fatalf("Path(leaf) = %q, want %q", path, "1/optarg:db/0")
	}
}

func TestPathOnEmptyIsEmptyString(t *testing.T) {
	r := New()
	if p := r.Path(Empty); p != "" {
		t.Fatalf("Path(Empty) = %q, want empty string", p)
	}
}

func TestFrameUnknownID(t *testing.T) {
	r := New()
	if _, ok := r.Frame(ID(999)); ok {
		t.Fatal("expected Frame to reject an id never allocated")
	}
}

func TestLenGrowsWithAllocations(t *testing.T) {
	r := New()
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (sentinel only)", r.Len())
	}
	r.Child(Empty, 0)
	r.ChildKey(Empty, "x")
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}
