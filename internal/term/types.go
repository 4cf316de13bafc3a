// Package term owns every term node belonging to a single query: it parses
// JSON and legacy-binary encoded ASTs into an in-memory term tree, tracks
// the query-wide start time datum, and serializes trees back out over the
// versioned binary codecs.
package term

import (
	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/datum"
)

// Datum aliases the evaluator-facing value type so term.go call sites don't
// need to import the datum package directly.
type Datum = datum.Datum

// Type is the term-type tag: an integer drawn from the closed enumeration
// of language operators. The values below follow the numbering of the
// query language's wire protocol so that on-wire integers need no
// translation at the boundary.
type Type int32

const (
	DATUM      Type = 1
	MAKE_ARRAY Type = 2
	MAKE_OBJ   Type = 3

	VAR     Type = 10
	FUNC    Type = 69
	FUNCALL Type = 64 // CALL_FUNC in prose; wire name is FUNCALL

	DB    Type = 14
	TABLE Type = 15
	GET   Type = 16

	EQ  Type = 17
	NE  Type = 18
	ADD Type = 24
	SUB Type = 25

	FILTER Type = 39
	MAP    Type = 38

	NOW Type = 103
)

// Kind distinguishes the three term shapes: datum, apply, reference.
type Kind int

const (
	KindDatum Kind = iota
	KindApply
	KindReference
)

// Ref addresses a term within a Storage's arena. It is what "stable
// identity" means in this realization: terms never move once appended, so
// a Ref taken at construction time stays valid for the storage's lifetime.
type Ref int32

// NoRef names no term; it is the zero value of an unset Ref field.
const NoRef Ref = -1

// Node is one entry in a Storage's arena. Its Kind selects which of the
// three shapes below is populated; the others are zero.
type Node struct {
	Kind Kind

	// KindDatum
	Value Datum

	// KindApply
	Op          Type
	Args        []Ref
	OptargNames []string // insertion order, for deterministic serialization
	Optargs     map[string]Ref

	// KindReference — Target is never itself a Reference.
	Target Ref

	BacktraceID backtrace.ID
	// OptargName is set when this node is the value of some optargs
	// mapping, at append time, then frozen.
	OptargName string
}
