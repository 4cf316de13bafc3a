package ipc

import (
	"encoding/binary"
	"io"

	"github.com/kartikbazzad/queryterm/internal/errors"
	"github.com/kartikbazzad/queryterm/internal/types"
)

var (
	ErrInvalidFrame  = errors.ErrInvalidFrame
	ErrFrameTooLarge = errors.ErrFrameTooLarge
)

const (
	RequestIDSize  = 8
	SessionIDSize  = 8
	LabelLenSize   = 2
	PayloadLenSize = 4

	MaxFrameSize = 16 * 1024 * 1024
)

const (
	CmdOpenSession  = 1
	CmdCloseSession = 2
	CmdExecute      = 3
	CmdStats        = 4
	CmdServerInfo   = 5
	CmdMetrics      = 6
)

// RequestFrame is one client request over the session socket. Payload
// carries the raw JSON query envelope for CmdExecute; Label carries the
// session label for CmdOpenSession. Payload is unused for the other
// commands.
type RequestFrame struct {
	RequestID uint64
	SessionID uint64
	Command   uint8
	Label     string
	Payload   []byte
}

type ResponseFrame struct {
	RequestID uint64
	Status    types.Status
	Data      []byte
}

func EncodeRequest(frame *RequestFrame) ([]byte, error) {
	size := uint64(RequestIDSize + SessionIDSize + 1 + LabelLenSize + len(frame.Label) + PayloadLenSize + len(frame.Payload))
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], frame.RequestID)
	offset += RequestIDSize

	binary.LittleEndian.PutUint64(buf[offset:], frame.SessionID)
	offset += SessionIDSize

	buf[offset] = frame.Command
	offset++

	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(frame.Label)))
	offset += LabelLenSize
	copy(buf[offset:], frame.Label)
	offset += len(frame.Label)

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(frame.Payload)))
	offset += PayloadLenSize
	copy(buf[offset:], frame.Payload)

	return buf, nil
}

func DecodeRequest(data []byte) (*RequestFrame, error) {
	if len(data) < RequestIDSize+SessionIDSize+1+LabelLenSize {
		return nil, ErrInvalidFrame
	}

	offset := 0
	frame := &RequestFrame{}

	frame.RequestID = binary.LittleEndian.Uint64(data[offset:])
	offset += RequestIDSize

	frame.SessionID = binary.LittleEndian.Uint64(data[offset:])
	offset += SessionIDSize

	frame.Command = data[offset]
	offset++

	labelLen := binary.LittleEndian.Uint16(data[offset:])
	offset += LabelLenSize
	if offset+int(labelLen)+PayloadLenSize > len(data) {
		return nil, ErrInvalidFrame
	}
	frame.Label = string(data[offset : offset+int(labelLen)])
	offset += int(labelLen)

	payloadLen := binary.LittleEndian.Uint32(data[offset:])
	offset += PayloadLenSize
	if offset+int(payloadLen) > len(data) {
		return nil, ErrInvalidFrame
	}
	if payloadLen > 0 {
		frame.Payload = make([]byte, payloadLen)
		copy(frame.Payload, data[offset:offset+int(payloadLen)])
	}

	return frame, nil
}

func EncodeResponse(frame *ResponseFrame) ([]byte, error) {
	size := RequestIDSize + 1 + 4 + len(frame.Data)
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], frame.RequestID)
	offset += RequestIDSize

	buf[offset] = byte(frame.Status)
	offset++

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(frame.Data)))
	offset += 4

	copy(buf[offset:], frame.Data)

	return buf, nil
}

func DecodeResponse(data []byte) (*ResponseFrame, error) {
	if len(data) < RequestIDSize+1+4 {
		return nil, ErrInvalidFrame
	}

	offset := 0
	frame := &ResponseFrame{}

	frame.RequestID = binary.LittleEndian.Uint64(data[offset:])
	offset += RequestIDSize

	frame.Status = types.Status(data[offset])
	offset++

	dataLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	if offset+int(dataLen) > len(data) {
		return nil, ErrInvalidFrame
	}
	if dataLen > 0 {
		frame.Data = make([]byte, dataLen)
		copy(frame.Data, data[offset:offset+int(dataLen)])
	}

	return frame, nil
}

// readFrame and writeFrame implement the length-prefixed stream framing
// every connection uses to delimit encoded RequestFrame/ResponseFrame
// bytes over a byte-oriented net.Conn.
func readFrame(conn io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func writeFrame(conn io.Writer, data []byte) error {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))

	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}

	_, err := conn.Write(data)
	return err
}
