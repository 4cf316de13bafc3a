// Package client is a thin driver for the query-ingestion node's session
// socket: open a session, submit query envelopes, read back a status and
// raw response body.
package client

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kartikbazzad/queryterm/internal/ipc"
	"github.com/kartikbazzad/queryterm/internal/types"
)

var (
	ErrConnectionFailed = errors.New("failed to connect to server")
	ErrInvalidResponse  = errors.New("invalid response from server")
	ErrNotConnected     = errors.New("client is not connected")
)

// Client is a single connection to one query-ingestion node. It is not
// safe for concurrent query submission from multiple goroutines against
// the same session: the server pins a session to one worker and expects
// requests to arrive in order, so callers wanting concurrency should open
// one Client (and one session) per goroutine.
type Client struct {
	socketPath string
	conn       net.Conn
	mu         sync.Mutex
	requestID  uint64

	// id correlates this client's connection across log lines on the
	// server side; it carries no wire-protocol meaning.
	id uuid.UUID
}

func New(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		requestID:  1,
		id:         uuid.New(),
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return ErrConnectionFailed
	}

	c.conn = conn
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// OpenSession opens a session on the server and returns its id. label may
// be empty.
func (c *Client) OpenSession(label string) (uint64, error) {
	if err := c.Connect(); err != nil {
		return 0, err
	}

	frame := &ipc.RequestFrame{
		RequestID: c.nextRequestID(),
		Command:   ipc.CmdOpenSession,
		Label:     label,
	}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return 0, err
	}
	if resp.Status != types.StatusOK {
		return 0, errors.New(string(resp.Data))
	}
	if len(resp.Data) != ipc.SessionIDSize {
		return 0, ErrInvalidResponse
	}

	return binary.LittleEndian.Uint64(resp.Data), nil
}

func (c *Client) CloseSession(sessionID uint64) error {
	if err := c.Connect(); err != nil {
		return err
	}

	frame := &ipc.RequestFrame{
		RequestID: c.nextRequestID(),
		Command:   ipc.CmdCloseSession,
		SessionID: sessionID,
	}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return err
	}
	if resp.Status != types.StatusOK {
		return errors.New(string(resp.Data))
	}
	return nil
}

// Execute submits a raw JSON query envelope ([QueryType, RootTerm?,
// GlobalOptArgs?]) against sessionID and returns the server's raw response
// body.
func (c *Client) Execute(sessionID uint64, envelope []byte) ([]byte, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	if err := validateJSON(envelope); err != nil {
		return nil, err
	}

	frame := &ipc.RequestFrame{
		RequestID: c.nextRequestID(),
		Command:   ipc.CmdExecute,
		SessionID: sessionID,
		Payload:   envelope,
	}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if resp.Status != types.StatusOK {
		return nil, errors.New(string(resp.Data))
	}
	return resp.Data, nil
}

func (c *Client) Stats() (*types.Stats, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	frame := &ipc.RequestFrame{RequestID: c.nextRequestID(), Command: ipc.CmdStats}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if resp.Status != types.StatusOK {
		return nil, errors.New(string(resp.Data))
	}
	return parseStats(resp.Data)
}

// ServerInfo returns the raw JSON body from a SERVER_INFO request.
func (c *Client) ServerInfo() ([]byte, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	frame := &ipc.RequestFrame{RequestID: c.nextRequestID(), Command: ipc.CmdServerInfo}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if resp.Status != types.StatusOK {
		return nil, errors.New(string(resp.Data))
	}
	return resp.Data, nil
}

// Metrics returns the server's Prometheus text-exposition metrics body.
func (c *Client) Metrics() ([]byte, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	frame := &ipc.RequestFrame{RequestID: c.nextRequestID(), Command: ipc.CmdMetrics}

	resp, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if resp.Status != types.StatusOK {
		return nil, errors.New(string(resp.Data))
	}
	return resp.Data, nil
}

func (c *Client) nextRequestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.requestID
	c.requestID++
	return id
}

func (c *Client) sendRequest(frame *ipc.RequestFrame) (*ipc.ResponseFrame, error) {
	data, err := ipc.EncodeRequest(frame)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := c.writeFrame(data); err != nil {
		return nil, err
	}

	respData, err := c.readFrame()
	if err != nil {
		return nil, err
	}

	return ipc.DecodeResponse(respData)
}

func (c *Client) writeFrame(data []byte) error {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))

	if _, err := c.conn.Write(lenBuf); err != nil {
		return err
	}
	_, err := c.conn.Write(data)
	return err
}

func (c *Client) readFrame() ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := readFull(c.conn, lenBuf); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf)
	if length > ipc.MaxFrameSize {
		return nil, errors.New("frame too large")
	}

	buf := make([]byte, length)
	if _, err := readFull(c.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseStats(data []byte) (*types.Stats, error) {
	if len(data) != 48 {
		return nil, ErrInvalidResponse
	}
	return &types.Stats{
		ActiveSessions:     int(binary.LittleEndian.Uint64(data[0:])),
		TotalQueries:       binary.LittleEndian.Uint64(data[8:]),
		OutstandingQueries: binary.LittleEndian.Uint64(data[16:]),
		ParseErrors:        binary.LittleEndian.Uint64(data[24:]),
		ArchiveErrors:      binary.LittleEndian.Uint64(data[32:]),
		TermArenaBytes:     binary.LittleEndian.Uint64(data[40:]),
	}, nil
}

func validateJSON(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("payload is not valid JSON")
	}
	if !utf8.Valid(payload) {
		return errors.New("payload is not valid JSON")
	}
	var v interface{}
	return json.Unmarshal(payload, &v)
}
