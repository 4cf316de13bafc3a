package term

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/kartikbazzad/queryterm/internal/datum"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
)

// wireReader wraps an io.Reader with the primitive reads both codec
// families need, translating short reads into the archive error kinds.
type wireReader struct {
	r io.Reader
}

func newWireReader(r io.Reader) *wireReader { return &wireReader{r: r} }

func (w *wireReader) readInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, qerrors.ErrShortRead
		}
		return 0, qerrors.ErrSockError
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (w *wireReader) readFloat64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, qerrors.ErrShortRead
		}
		return 0, qerrors.ErrSockError
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

func (w *wireReader) readByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, qerrors.ErrShortRead
		}
		return 0, qerrors.ErrSockError
	}
	return buf[0], nil
}

func (w *wireReader) readString() (string, error) {
	n, err := w.readInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", qerrors.ErrRangeError
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return "", qerrors.ErrShortRead
		}
		return "", qerrors.ErrSockError
	}
	return string(buf), nil
}

func (w *wireReader) readBytes(n int32) ([]byte, error) {
	if n < 0 {
		return nil, qerrors.ErrRangeError
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, qerrors.ErrShortRead
		}
		return nil, qerrors.ErrSockError
	}
	return buf, nil
}

// readDatum decodes the shared datum wire shape:
//
//	byte kind; then kind-specific payload.
//
// kind: 0 null, 1 bool, 2 number, 3 string, 4 array, 5 object.
func (w *wireReader) readDatum() (Datum, error) {
	kind, err := w.readByte()
	if err != nil {
		return Datum{}, err
	}
	switch kind {
	case 0:
		return datum.Null(), nil
	case 1:
		b, err := w.readByte()
		if err != nil {
			return Datum{}, err
		}
		return datum.Bool(b != 0), nil
	case 2:
		n, err := w.readFloat64()
		if err != nil {
			return Datum{}, err
		}
		return datum.Number(n), nil
	case 3:
		s, err := w.readString()
		if err != nil {
			return Datum{}, err
		}
		return datum.String(s), nil
	case 4:
		count, err := w.readInt32()
		if err != nil {
			return Datum{}, err
		}
		if count < 0 {
			return Datum{}, qerrors.ErrRangeError
		}
		elems := make([]interface{}, count)
		for i := range elems {
			d, err := w.readDatum()
			if err != nil {
				return Datum{}, err
			}
			elems[i] = datumToJSON(d)
		}
		out, err := datum.FromJSON(elems)
		if err != nil {
			return Datum{}, qerrors.NewParseError(0, "invalid archived array datum: %v", err)
		}
		return out, nil
	case 5:
		count, err := w.readInt32()
		if err != nil {
			return Datum{}, err
		}
		if count < 0 {
			return Datum{}, qerrors.ErrRangeError
		}
		obj := make(map[string]interface{}, count)
		for i := int32(0); i < count; i++ {
			key, err := w.readString()
			if err != nil {
				return Datum{}, err
			}
			d, err := w.readDatum()
			if err != nil {
				return Datum{}, err
			}
			obj[key] = datumToJSON(d)
		}
		out, err := datum.FromJSON(obj)
		if err != nil {
			return Datum{}, qerrors.NewParseError(0, "invalid archived object datum: %v", err)
		}
		return out, nil
	default:
		return Datum{}, qerrors.ErrUnknownTermType
	}
}

// datumToJSON turns an already-built Datum back into the plain interface{}
// shape datum.FromJSON accepts, so nested array/object datums decoded off
// the wire can be recombined with FromJSON's validation.
func datumToJSON(d Datum) interface{} {
	switch d.Kind() {
	case datum.KindNull:
		return nil
	case datum.KindBool:
		v, _ := d.AsBool()
		return v
	case datum.KindNumber:
		v, _ := d.AsNumber()
		return v
	case datum.KindString:
		v, _ := d.AsString()
		return v
	case datum.KindArray:
		arr, _ := d.AsArray()
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = datumToJSON(e)
		}
		return out
	case datum.KindObject:
		out := make(map[string]interface{})
		for _, k := range d.Keys() {
			v, _ := d.Get(k)
			out[k] = datumToJSON(v)
		}
		return out
	default:
		return nil
	}
}

// wireWriter is the encode-side counterpart of wireReader.
type wireWriter struct {
	w io.Writer
}

func newWireWriter(w io.Writer) *wireWriter { return &wireWriter{w: w} }

func (w *wireWriter) writeInt32(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *wireWriter) writeFloat64(v float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *wireWriter) writeByte(b byte) error {
	_, err := w.w.Write([]byte{b})
	return err
}

func (w *wireWriter) writeString(s string) error {
	if err := w.writeInt32(int32(len(s))); err != nil {
		return err
	}
	_, err := w.w.Write([]byte(s))
	return err
}

func (w *wireWriter) writeBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func (w *wireWriter) writeDatum(d Datum) error {
	switch d.Kind() {
	case datum.KindNull:
		return w.writeByte(0)
	case datum.KindBool:
		if err := w.writeByte(1); err != nil {
			return err
		}
		v, _ := d.AsBool()
		if v {
			return w.writeByte(1)
		}
		return w.writeByte(0)
	case datum.KindNumber:
		if err := w.writeByte(2); err != nil {
			return err
		}
		v, _ := d.AsNumber()
		return w.writeFloat64(v)
	case datum.KindString:
		if err := w.writeByte(3); err != nil {
			return err
		}
		v, _ := d.AsString()
		return w.writeString(v)
	case datum.KindArray:
		if err := w.writeByte(4); err != nil {
			return err
		}
		arr, _ := d.AsArray()
		if err := w.writeInt32(int32(len(arr))); err != nil {
			return err
		}
		for _, e := range arr {
			if err := w.writeDatum(e); err != nil {
				return err
			}
		}
		return nil
	case datum.KindObject:
		if err := w.writeByte(5); err != nil {
			return err
		}
		keys := d.Keys()
		if err := w.writeInt32(int32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := w.writeString(k); err != nil {
				return err
			}
			v, _ := d.Get(k)
			if err := w.writeDatum(v); err != nil {
				return err
			}
		}
		return nil
	default:
		return qerrors.ErrUnknownTermType
	}
}
