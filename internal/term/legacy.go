package term

import (
	"io"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
)

// legacy typed-record shape on the wire: int32 type, then either a datum
// body (type == DATUM) or an argc/optargc pair of recursively encoded
// children. This is the "protobuf-like typed record" family predating the
// streaming latest codec.
//
// ReadLegacyBlob reads the outer envelope framing shared by every
// pre-latest cluster version: int32 size, then size bytes holding one
// legacy typed record.
func ReadLegacyBlob(r io.Reader) ([]byte, error) {
	wr := newWireReader(r)
	size, err := wr.readInt32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, qerrors.ErrRangeError
	}
	return wr.readBytes(size)
}

// WriteLegacyBlob writes the outer envelope framing around an
// already-encoded legacy record body.
func WriteLegacyBlob(w io.Writer, body []byte) error {
	ww := newWireWriter(w)
	if err := ww.writeInt32(int32(len(body))); err != nil {
		return err
	}
	return ww.writeBytes(body)
}

// ParseLegacy decodes a legacy typed record from blob into a fresh term
// subtree in s, returning the subtree's root. Since the legacy path
// predates the backtrace registry, every node it produces carries bt
// unchanged rather than a derived child frame — callers that need
// per-position diagnostics should attach one to bt themselves before
// calling.
func (s *Storage) ParseLegacy(blob []byte, bt backtrace.ID) (Ref, error) {
	wr := newWireReader(newByteReader(blob))
	return s.parseLegacyRecord(wr, bt)
}

// parseLegacyRecord recurses depth-first, returning each child term
// directly from the recursive call rather than writing through a shared
// out-parameter — the recursion shape this package's legacy decoder was
// changed to use after early revisions reused a single pointer across
// sibling calls and mutated it in place, which is easy to get subtly wrong.
func (s *Storage) parseLegacyRecord(wr *wireReader, bt backtrace.ID) (Ref, error) {
	rawType, err := wr.readInt32()
	if err != nil {
		return NoRef, err
	}
	termType := Type(rawType)

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
		child, err := s.parseLegacyRecord(wr, bt)
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
		child, err := s.parseLegacyRecord(wr, bt)
		if err != nil {
			return NoRef, err
		}
		s.AppendOptarg(node, name, child)
	}

	return s.foldNow(node), nil
}

// byteReader is a minimal io.Reader over an in-memory slice, used so the
// legacy decoder can share wireReader with the streaming latest codec
// without pulling in bytes.Reader's wider API.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}
