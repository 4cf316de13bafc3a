// Package query validates and constructs a query object from the raw JSON
// envelope a client submits: [QueryType, RootTerm?, GlobalOptArgs?].
package query

import (
	"encoding/json"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
	"github.com/kartikbazzad/queryterm/internal/queryid"
	"github.com/kartikbazzad/queryterm/internal/term"
	"github.com/kartikbazzad/queryterm/internal/types"
)

// Envelope is a validated but not-yet-fully-parsed query. Root and global
// optargs are retained as decoded JSON values; term parsing happens
// lazily in ParseTerms so a caller that only needs the pre-evaluation
// noreply/profile flags never pays for building a term tree.
type Envelope struct {
	Type types.QueryType

	rootRaw    interface{}
	globalRaw  map[string]interface{}
	haveGlobal bool

	Noreply bool
	Profile bool

	handle *queryid.Handle
}

// New decodes raw as a query envelope and runs the C6 construction steps:
// shape validation, pre-evaluation flag extraction, and query-id sequencing.
// alloc must be the id allocator belonging to the session this query was
// submitted on.
func New(raw []byte, alloc *queryid.Allocator) (*Envelope, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, qerrors.NewEnvelopeError("malformed JSON: %v", err)
	}

	arr, ok := doc.([]interface{})
	if !ok {
		return nil, qerrors.NewEnvelopeError("expected top-level array, found %s", jsonTypeName(doc))
	}
	if len(arr) < 1 || len(arr) > 3 {
		return nil, qerrors.NewEnvelopeError("expected array of 1-3 elements, found %d", len(arr))
	}

	rawType, ok := arr[0].(float64)
	if !ok {
		return nil, qerrors.NewEnvelopeError("expected NUMBER as query type, found %s", jsonTypeName(arr[0]))
	}

	e := &Envelope{Type: types.QueryType(int32(rawType))}

	if len(arr) >= 2 {
		e.rootRaw = arr[1]
	}
	if len(arr) == 3 {
		global, ok := arr[2].(map[string]interface{})
		if !ok {
			return nil, qerrors.NewEnvelopeError("expected OBJECT as global optargs, found %s", jsonTypeName(arr[2]))
		}
		e.globalRaw = global
		e.haveGlobal = true
		e.Noreply = staticOptargAsBool(global, "noreply", false)
		e.Profile = staticOptargAsBool(global, "profile", false)
	}

	handle := alloc.Acquire()
	if !e.Noreply {
		alloc.Release(handle)
	} else {
		e.handle = handle
	}

	return e, nil
}

// Handle returns the query's outstanding-id handle, or nil if the query
// was not noreply (its id was released immediately at construction and
// exists only to preserve ordering).
func (e *Envelope) Handle() *queryid.Handle { return e.handle }

// Release drops the query's outstanding id, if it holds one. Callers must
// call this exactly once, when the query completes or is abandoned.
func (e *Envelope) Release(alloc *queryid.Allocator) {
	if e.handle == nil {
		return
	}
	alloc.Release(e.handle)
	e.handle = nil
}

// ParseTerms builds the root term and global optarg terms into a fresh
// term.Storage backed by original. bt is nil to run in the "always empty
// backtrace" mode.
func (e *Envelope) ParseTerms(original []byte, bt *backtrace.Registry) (*term.Storage, error) {
	s := term.New(original, bt)

	if e.rootRaw != nil {
		if _, err := s.AddRoot(e.rootRaw, backtrace.Empty); err != nil {
			return nil, err
		}
	}

	if e.haveGlobal {
		if err := s.AddGlobalOptargs(e.globalRaw, backtrace.Empty); err != nil {
			return nil, err
		}
	} else {
		// No client-supplied optargs at all still needs the default db.
		if err := s.AddGlobalOptargs(map[string]interface{}{}, backtrace.Empty); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// staticOptargAsBool reads the optarg under key from a decoded global
// optargs object and returns its value only if it has the exact shape
// [DATUM, <bool>] (i.e. [1, true] or [1, false]); any other shape, or a
// missing key, returns def without raising. Full-fidelity validation of a
// malformed optarg happens later, during ParseTerms.
func staticOptargAsBool(global map[string]interface{}, key string, def bool) bool {
	raw, ok := global[key]
	if !ok {
		return def
	}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 2 {
		return def
	}
	tag, ok := arr[0].(float64)
	if !ok || term.Type(int32(tag)) != term.DATUM {
		return def
	}
	b, ok := arr[1].(bool)
	if !ok {
		return def
	}
	return b
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
		return "UNKNOWN"
	}
}
