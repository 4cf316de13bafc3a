package term

import (
	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/datum"
)

// Builder synthesizes small wrapper subtrees used at global-optarg parse
// time. Every node it produces carries an empty backtrace id: synthesized
// terms are never the target of a client-visible diagnostic.
type Builder struct {
	s *Storage
}

// NewBuilder returns a builder writing into s.
func NewBuilder(s *Storage) *Builder {
	return &Builder{s: s}
}

// Expr wraps value in a VAR-free expression term: expr(value), built as a
// FUNCALL node whose single argument is value. The evaluator's VAR frame
// is supplied by Fun.
func (b *Builder) Expr(value Ref) Ref {
	node := b.s.NewApply(FUNCALL, backtrace.Empty)
	b.s.AppendArg(node, value)
	return node
}

// Fun wraps body in a zero-argument function term: fun(body). This is the
// thunk shape every global optarg value must have so the evaluator can
// invoke it lazily instead of evaluating eagerly at parse time.
func (b *Builder) Fun(body Ref) Ref {
	node := b.s.NewApply(FUNC, backtrace.Empty)
	b.s.AppendArg(node, body)
	return node
}

// DB builds a db(name) term for the given literal database name, used to
// synthesize the default db("test") optarg when a query omits one.
func (b *Builder) DB(name string) Ref {
	nameRef := b.s.NewDatum(datum.String(name), backtrace.Empty)
	node := b.s.NewApply(DB, backtrace.Empty)
	b.s.AppendArg(node, nameRef)
	return node
}
