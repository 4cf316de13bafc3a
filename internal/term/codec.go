package term

import (
	"io"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
)

// Version names a cluster-version tag carried out-of-band with a
// serialized term tree. Versions before VersionLatest all share the
// single length-prefixed legacy record format; only the numeric tag
// differs between them, so they route through the same decoder.
type Version int32

const (
	VersionV0_1 Version = iota
	VersionV0_2
	VersionV0_3
	VersionV0_4
	VersionLatest
)

func (v Version) isLegacy() bool { return v < VersionLatest }

// Deserialize reads a term tree encoded under version from r into a new
// Storage. original, when non-nil, is retained by the returned storage as
// the raw bytes the caller read the stream from (mirrors the JSON parse
// path's retention of the source document); pass nil when there is none.
func Deserialize(r io.Reader, version Version, bt *backtrace.Registry, original []byte) (*Storage, error) {
	s := New(original, bt)

	if version.isLegacy() {
		blob, err := ReadLegacyBlob(r)
		if err != nil {
			return nil, err
		}
		root, err := s.ParseLegacy(blob, backtrace.Empty)
		if err != nil {
			return nil, err
		}
		s.SetRoot(root)
		return s, nil
	}

	root, err := s.readLatestNode(newWireReader(r))
	if err != nil {
		return nil, err
	}
	s.SetRoot(root)
	return s, nil
}

// Serialize writes the subtree rooted at root using the latest streaming
// encoding. Writers always emit the latest version regardless of which
// version the tree was originally read from.
func (s *Storage) Serialize(w io.Writer, root Ref) error {
	return s.writeLatestNode(newWireWriter(w), root)
}

// readLatestNode decodes one node of the latest streaming format:
// int32 type, then the backtrace id, then either a datum body or the
// counts and bodies of args and optargs. Recursion is depth-first in the
// same order writeLatestNode emits children.
func (s *Storage) readLatestNode(wr *wireReader) (Ref, error) {
	rawType, err := wr.readInt32()
	if err != nil {
		return NoRef, err
	}
	termType := Type(rawType)

	rawBT, err := wr.readInt32()
	if err != nil {
		return NoRef, err
	}
	bt := backtrace.ID(rawBT)

	if termType == DATUM {
		d, err := wr.readDatum()
		if err != nil {
			return NoRef, err
		}
		return s.NewDatum(d, bt), nil
	}

	node := s.NewApply(termType, bt)

	argc, err := wr.readInt32()
	if err != nil {
		return NoRef, err
	}
	if argc < 0 {
		return NoRef, qerrors.ErrRangeError
	}
	for i := int32(0); i < argc; i++ {
		child, err := s.readLatestNode(wr)
		if err != nil {
			return NoRef, err
		}
		s.AppendArg(node, child)
	}

	optargc, err := wr.readInt32()
	if err != nil {
		return NoRef, err
	}
	if optargc < 0 {
		return NoRef, qerrors.ErrRangeError
	}
	for i := int32(0); i < optargc; i++ {
		name, err := wr.readString()
		if err != nil {
			return NoRef, err
		}
		child, err := s.readLatestNode(wr)
		if err != nil {
			return NoRef, err
		}
		s.AppendOptarg(node, name, child)
	}

	if len(s.nodes[node].Args) != int(argc) || len(s.nodes[node].Optargs) != int(optargc) {
		return NoRef, qerrors.ErrChildCountMismatch
	}

	return s.foldNow(node), nil
}

// writeLatestNode encodes ref, resolving through a Reference indirection
// first: serialized output never emits Reference nodes directly, so a
// referenced term is written in place of the reference each time it is
// reached, keeping the on-wire format tree-shaped even though in-memory
// storage may share a node under multiple references.
func (s *Storage) writeLatestNode(ww *wireWriter, ref Ref) error {
	ref = s.Resolve(ref)
	n := &s.nodes[ref]

	if n.Kind == KindDatum {
		if err := ww.writeInt32(int32(DATUM)); err != nil {
			return err
		}
		if err := ww.writeInt32(int32(n.BacktraceID)); err != nil {
			return err
		}
		return ww.writeDatum(n.Value)
	}

	if err := ww.writeInt32(int32(n.Op)); err != nil {
		return err
	}
	if err := ww.writeInt32(int32(n.BacktraceID)); err != nil {
		return err
	}
	if err := ww.writeInt32(int32(len(n.Args))); err != nil {
		return err
	}
	for _, arg := range n.Args {
		if err := s.writeLatestNode(ww, arg); err != nil {
			return err
		}
	}
	if err := ww.writeInt32(int32(len(n.OptargNames))); err != nil {
		return err
	}
	for _, name := range n.OptargNames {
		if err := ww.writeString(name); err != nil {
			return err
		}
		if err := s.writeLatestNode(ww, n.Optargs[name]); err != nil {
			return err
		}
	}
	return nil
}
