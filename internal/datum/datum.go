// Package datum is the read-only bridge from decoded JSON values to the
// evaluator's immutable value type. The evaluator itself is an external
// collaborator; this package only knows how to recognize and carry the
// handful of JSON shapes term parsing needs to inspect.
package datum

import (
	"errors"
	"fmt"
)

// Kind identifies the shape of a Datum's payload.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindBool:
		return "BOOL"
	case KindNumber:
		return "NUMBER"
	case KindString:
		return "STRING"
	case KindArray:
		return "ARRAY"
	case KindObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// ErrUnsupportedType is returned when a Go value has no JSON-datum shape.
var ErrUnsupportedType = errors.New("datum: unsupported value type")

// Datum is an immutable value of the query language: a scalar, an array of
// datums, or an object of datums. It is constructed once, from a decoded
// JSON value, and never mutated afterward.
type Datum struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Datum
	obj  map[string]Datum
	// keys records the order object members were added in. FromJSON fills
	// it by ranging over a Go map, so the source document's member order is
	// not kept.
	keys []string
}

// FromJSON adapts a value produced by encoding/json.Unmarshal(&v) — where v
// is an interface{} — into a Datum. It is read-only: it never mutates the
// input and never retains pointers into it beyond what Go's own string and
// slice headers already share.
func FromJSON(v interface{}) (Datum, error) {
	switch x := v.(type) {
	case nil:
		return Datum{kind: KindNull}, nil
	case bool:
		return Datum{kind: KindBool, b: x}, nil
	case float64:
		return Datum{kind: KindNumber, n: x}, nil
	case string:
		return Datum{kind: KindString, s: x}, nil
	case []interface{}:
		out := make([]Datum, len(x))
		for i, elem := range x {
			d, err := FromJSON(elem)
			if err != nil {
				return Datum{}, err
			}
			out[i] = d
		}
		return Datum{kind: KindArray, arr: out}, nil
	case map[string]interface{}:
		obj := make(map[string]Datum, len(x))
		keys := make([]string, 0, len(x))
		for k, elem := range x {
			d, err := FromJSON(elem)
			if err != nil {
				return Datum{}, err
			}
			obj[k] = d
			keys = append(keys, k)
		}
		return Datum{kind: KindObject, obj: obj, keys: keys}, nil
	default:
		return Datum{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// Bool wraps a Go bool as a Datum, used by the mini-builder and by
// static_optarg_as_bool style shape checks.
func Bool(b bool) Datum { return Datum{kind: KindBool, b: b} }

// Number wraps a Go float64 as a Datum.
func Number(n float64) Datum { return Datum{kind: KindNumber, n: n} }

// String wraps a Go string as a Datum.
func String(s string) Datum { return Datum{kind: KindString, s: s} }

// Null returns the null Datum.
func Null() Datum { return Datum{kind: KindNull} }

func (d Datum) Kind() Kind { return d.kind }

// AsBool returns the boolean payload and whether d is a bool datum.
func (d Datum) AsBool() (bool, bool) {
	if d.kind != KindBool {
		return false, false
	}
	return d.b, true
}

// AsNumber returns the numeric payload and whether d is a number datum.
func (d Datum) AsNumber() (float64, bool) {
	if d.kind != KindNumber {
		return 0, false
	}
	return d.n, true
}

// AsString returns the string payload and whether d is a string datum.
func (d Datum) AsString() (string, bool) {
	if d.kind != KindString {
		return "", false
	}
	return d.s, true
}

// AsArray returns the element datums and whether d is an array datum.
func (d Datum) AsArray() ([]Datum, bool) {
	if d.kind != KindArray {
		return nil, false
	}
	return d.arr, true
}

// Keys returns an object datum's member names in insertion order, or nil
// if d is not an object datum.
func (d Datum) Keys() []string {
	if d.kind != KindObject {
		return nil
	}
	return d.keys
}

// Get returns the value of the object member named key and whether it
// exists. It returns false for any non-object datum.
func (d Datum) Get(key string) (Datum, bool) {
	if d.kind != KindObject {
		return Datum{}, false
	}
	v, ok := d.obj[key]
	return v, ok
}

// Equal reports whether two datums carry the same value. Used by tests
// that check now() substitution produces identical datums at every site.
func (d Datum) Equal(other Datum) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case KindNull:
		return true
	case KindBool:
		return d.b == other.b
	case KindNumber:
		return d.n == other.n
	case KindString:
		return d.s == other.s
	case KindArray:
		if len(d.arr) != len(other.arr) {
			return false
		}
		for i := range d.arr {
			if !d.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(d.keys) != len(other.keys) {
			return false
		}
		for k, v := range d.obj {
			ov, ok := other.obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}
