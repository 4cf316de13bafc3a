package term

import (
	"testing"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/datum"
)

func TestBuilderFunWrapsBody(t *testing.T) {
	s := New(nil, nil)
	b := NewBuilder(s)

	body := s.NewDatum(datum.String("x"), backtrace.Empty)
	fun := b.Fun(body)

	n := s.Node(fun)
	if n.Kind != KindApply || n.Op != FUNC {
		t.Fatalf("got Kind=%v Op=%v, want Apply/FUNC", n.Kind, n.Op)
	}
	if len(n.Args) != 1 || n.Args[0] != body {
		t.Fatalf("Fun did not wrap body as its single arg: %v", n.Args)
	}
}

func TestBuilderDBBuildsCallWithNameArg(t *testing.T) {
	s := New(nil, nil)
	b := NewBuilder(s)

	dbRef := b.DB("test")
	n := s.Node(dbRef)
	if n.Kind != KindApply || n.Op != DB {
		t.Fatalf("got Kind=%v Op=%v, want Apply/DB", n.Kind, n.Op)
	}
	if len(n.Args) != 1 {
		t.Fatalf("len(Args) = %d, want 1", len(n.Args))
	}
	if v, _ := s.Node(n.Args[0]).Value.AsString(); v != "test" {
		t.Fatalf("db name = %q, want test", v)
	}
}

func TestBuilderExprThenFunProducesThunkShape(t *testing.T) {
	s := New(nil, nil)
	b := NewBuilder(s)

	value := s.NewDatum(datum.String("v"), backtrace.Empty)
	thunk := b.Fun(b.Expr(value))

	outer := s.Node(thunk)
	if outer.Op != FUNC {
		t.Fatalf("outer Op = %v, want FUNC", outer.Op)
	}
	inner := s.Node(outer.Args[0])
	if inner.Op != FUNCALL {
		t.Fatalf("inner Op = %v, want FUNCALL", inner.Op)
	}
	if inner.Args[0] != value {
		t.Fatal("expr did not wrap the original value ref")
	}
}
