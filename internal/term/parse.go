package term

import (
	"fmt"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/datum"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
)

// childBT returns a child backtrace frame under bt named by an array
// index, or backtrace.Empty when this storage has no registry attached
// (synthesized subtrees carry no diagnostic position).
func (s *Storage) childBT(bt backtrace.ID, index int) backtrace.ID {
	if s.bt == nil {
		return backtrace.Empty
	}
	return s.bt.Child(bt, index)
}

func (s *Storage) childBTKey(bt backtrace.ID, key string) backtrace.ID {
	if s.bt == nil {
		return backtrace.Empty
	}
	return s.bt.ChildKey(bt, key)
}

func perr(bt backtrace.ID, format string, args ...interface{}) error {
	return qerrors.NewParseError(qerrors.BacktraceID(bt), format, args...)
}

// AddRoot parses v as the query's root term and records it.
func (s *Storage) AddRoot(v interface{}, bt backtrace.ID) (Ref, error) {
	ref, err := s.parseInternal(v, bt)
	if err != nil {
		return NoRef, err
	}
	s.SetRoot(ref)
	return ref, nil
}

// AddGlobalOptargs parses obj (a decoded JSON object) as the query-level
// options head list: each value is wrapped fun(expr(value)) so the
// evaluator always sees a thunk, and a missing "db" key gets a synthesized
// fun(db("test")) appended.
func (s *Storage) AddGlobalOptargs(obj map[string]interface{}, bt backtrace.ID) error {
	b := NewBuilder(s)
	haveDB := false

	for key, raw := range obj {
		childBT := s.childBTKey(bt, key)
		valueRef, err := s.parseInternal(raw, childBT)
		if err != nil {
			return err
		}
		wrapped := b.Fun(b.Expr(valueRef))
		if key == "db" {
			haveDB = true
		}
		s.appendGlobalNamed(key, wrapped)
	}

	if !haveDB {
		s.appendGlobalNamed("db", b.Fun(b.DB("test")))
	}

	return nil
}

// appendGlobalNamed tags ref with name and appends it to the global
// optarg head list.
func (s *Storage) appendGlobalNamed(name string, ref Ref) {
	s.nodes[ref].OptargName = name
	s.AppendGlobalOptarg(ref)
}

// parseInternal turns a decoded JSON value into a term subtree.
func (s *Storage) parseInternal(v interface{}, bt backtrace.ID) (Ref, error) {
	switch x := v.(type) {
	case []interface{}:
		return s.parseArray(x, bt)
	case map[string]interface{}:
		return s.parseMakeObj(x, bt)
	default:
		return s.parseDatum(x, bt)
	}
}

func (s *Storage) parseDatum(v interface{}, bt backtrace.ID) (Ref, error) {
	d, err := datum.FromJSON(v)
	if err != nil {
		return NoRef, perr(bt, "invalid datum: %v", err)
	}
	return s.NewDatum(d, bt), nil
}

func (s *Storage) parseMakeObj(obj map[string]interface{}, bt backtrace.ID) (Ref, error) {
	node := s.NewApply(MAKE_OBJ, bt)
	for key, raw := range obj {
		childBT := s.childBTKey(bt, key)
		childRef, err := s.parseInternal(raw, childBT)
		if err != nil {
			return NoRef, err
		}
		s.AppendOptarg(node, key, childRef)
	}
	return node, nil
}

func (s *Storage) parseArray(arr []interface{}, bt backtrace.ID) (Ref, error) {
	if len(arr) < 1 || len(arr) > 3 {
		return NoRef, perr(bt, "expected array of 1-3 elements, found %d", len(arr))
	}

	rawType, ok := arr[0].(float64)
	if !ok {
		return NoRef, perr(bt, "expected NUMBER as term type, found %s", jsonTypeName(arr[0]))
	}
	termType := Type(int32(rawType))

	if termType == DATUM {
		if len(arr) != 2 {
			return NoRef, perr(bt, "DATUM term expected exactly 2 elements, found %d", len(arr))
		}
		return s.parseDatum(arr[1], s.childBT(bt, 1))
	}

	node := s.NewApply(termType, bt)

	if len(arr) >= 2 {
		argsRaw, ok := arr[1].([]interface{})
		if !ok {
			return NoRef, perr(bt, "expected ARRAY for term args, found %s", jsonTypeName(arr[1]))
		}
		for i, argRaw := range argsRaw {
			childRef, err := s.parseInternal(argRaw, s.childBT(bt, i))
			if err != nil {
				return NoRef, err
			}
			s.AppendArg(node, childRef)
		}
	}

	if len(arr) == 3 {
		optargsRaw, ok := arr[2].(map[string]interface{})
		if !ok {
			return NoRef, perr(bt, "expected OBJECT for term optargs, found %s", jsonTypeName(arr[2]))
		}
		for key, raw := range optargsRaw {
			childBT := s.childBTKey(bt, key)
			childRef, err := s.parseInternal(raw, childBT)
			if err != nil {
				return NoRef, err
			}
			s.AppendOptarg(node, key, childRef)
		}
	}

	return s.foldNow(node), nil
}

// foldNow rewrites a nullary NOW() apply term in place to a DATUM carrying
// the query-wide start time, so every occurrence in one query agrees.
func (s *Storage) foldNow(ref Ref) Ref {
	n := &s.nodes[ref]
	if n.Kind == KindApply && n.Op == NOW && len(n.Args) == 0 && len(n.Optargs) == 0 {
		bt := n.BacktraceID
		optargName := n.OptargName
		*n = Node{Kind: KindDatum, Value: s.GetTime(), BacktraceID: bt, OptargName: optargName}
	}
	return ref
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case bool:
		return "BOOL"
	case float64:
		return "NUMBER"
	case string:
		return "STRING"
	case []interface{}:
		return "ARRAY"
	case map[string]interface{}:
		return "OBJECT"
	default:
		return fmt.Sprintf("%T", v)
	}
}
