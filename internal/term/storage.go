package term

import (
	"sync"
	"time"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/datum"
)

// Storage owns every term node belonging to a single query. Terms may
// reference other terms in the same storage but never across storages;
// once appended a node never moves, so a Ref taken at construction time
// stays valid for the storage's lifetime.
//
// The arena is realized as a flat, append-only slice addressed by index
// (an "arena + indices" layout) rather than raw or intrusive pointers.
// Teardown is then just letting the slice go, with no unlink dance required.
type Storage struct {
	nodes []Node

	original []byte      // raw original bytes; released only after eval completes
	root     Ref         // NoRef until AddRoot is called
	global   []Ref       // global optarg term refs, in append order

	startOnce sync.Once
	startTime Datum

	bt *backtrace.Registry // nil selects "always empty backtrace" mode
}

// New creates an empty storage. original is the byte buffer backing the
// parsed JSON document; callers must keep it alive until every term
// produced from it has been consumed.
func New(original []byte, bt *backtrace.Registry) *Storage {
	return &Storage{
		nodes:    make([]Node, 0, 16),
		original: original,
		root:     NoRef,
		bt:       bt,
	}
}

// Registry returns the backtrace registry attached to this storage, or nil
// if the storage was built in synthesized (mini-builder-only) mode.
func (s *Storage) Registry() *backtrace.Registry { return s.bt }

// Root returns the parsed root term, or NoRef if AddRoot was never called.
func (s *Storage) Root() Ref { return s.root }

// GlobalOptargs returns the ordered list of global optarg term refs.
func (s *Storage) GlobalOptargs() []Ref { return s.global }

// Node dereferences ref. Callers must only pass refs this storage produced.
func (s *Storage) Node(ref Ref) *Node {
	return &s.nodes[ref]
}

// Len reports how many nodes are in the arena.
func (s *Storage) Len() int { return len(s.nodes) }

func (s *Storage) alloc(n Node) Ref {
	ref := Ref(len(s.nodes))
	s.nodes = append(s.nodes, n)
	return ref
}

// NewDatum appends a leaf term carrying an immutable value.
func (s *Storage) NewDatum(v Datum, bt backtrace.ID) Ref {
	return s.alloc(Node{Kind: KindDatum, Value: v, BacktraceID: bt})
}

// NewApply appends an operator-application term with no children yet;
// callers append to Args/Optargs directly via AppendArg/AppendOptarg.
func (s *Storage) NewApply(op Type, bt backtrace.ID) Ref {
	return s.alloc(Node{Kind: KindApply, Op: op, BacktraceID: bt})
}

// AppendArg adds child to node's positional argument list, in order.
func (s *Storage) AppendArg(node Ref, child Ref) {
	n := &s.nodes[node]
	n.Args = append(n.Args, child)
}

// AppendOptarg adds child under name to node's optargs mapping and stamps
// child's OptargName. Names must be unique within one node; callers parsing
// user input are responsible for rejecting duplicates before calling this.
func (s *Storage) AppendOptarg(node Ref, name string, child Ref) {
	n := &s.nodes[node]
	if n.Optargs == nil {
		n.Optargs = make(map[string]Ref)
	}
	n.Optargs[name] = child
	n.OptargNames = append(n.OptargNames, name)
	s.nodes[child].OptargName = name
}

// NewRef appends an indirection to target. A
// Reference never points at another Reference: the indirection is
// collapsed to target's underlying non-reference term eagerly.
func (s *Storage) NewRef(target Ref) Ref {
	if s.nodes[target].Kind == KindReference {
		target = s.nodes[target].Target
	}
	return s.alloc(Node{Kind: KindReference, Target: target})
}

// Resolve follows a single Reference hop if ref names one, otherwise
// returns ref unchanged. Every consumer that walks the tree should resolve
// before inspecting a node's Kind.
func (s *Storage) Resolve(ref Ref) Ref {
	if s.nodes[ref].Kind == KindReference {
		return s.nodes[ref].Target
	}
	return ref
}

// SetRoot records ref as the query's root term.
func (s *Storage) SetRoot(ref Ref) { s.root = ref }

// AppendGlobalOptarg records ref (already tagged with its optarg name) in
// the head list of query-level options.
func (s *Storage) AppendGlobalOptarg(ref Ref) {
	s.global = append(s.global, ref)
}

// GetTime returns the cached query start time, computing it on first use.
// Every now() occurrence in the query is folded to this same datum during
// parsing, so every reader within a query sees one instant.
func (s *Storage) GetTime() Datum {
	s.startOnce.Do(func() {
		s.startTime = datum.Number(float64(time.Now().Unix()))
	})
	return s.startTime
}

// Original returns the raw bytes backing the parsed JSON document.
func (s *Storage) Original() []byte { return s.original }

// Release drops the storage's hold on its original byte buffer. Call only
// after every term derived from it has been consumed (evaluation done).
func (s *Storage) Release() {
	s.original = nil
}
