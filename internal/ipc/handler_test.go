package ipc

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"

	"github.com/kartikbazzad/queryterm/internal/config"
	"github.com/kartikbazzad/queryterm/internal/logger"
	"github.com/kartikbazzad/queryterm/internal/pool"
	"github.com/kartikbazzad/queryterm/internal/types"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	log := logger.New(io.Discard, logger.LevelError, "[test]")

	p, err := pool.NewPool(cfg, log)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)

	return NewHandler(p, cfg, log)
}

func TestValidateJSONPayloadValid(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"key":"value"}`),
		[]byte(`[1,2,3]`),
		[]byte(`"string"`),
		[]byte(`42`),
		[]byte(`true`),
		[]byte(`null`),
	}
	for _, payload := range cases {
		if err := validateJSONPayload(payload); err != nil {
			t.Errorf("valid JSON should pass: %s, error: %v", payload, err)
		}
	}
}

func TestValidateJSONPayloadInvalid(t *testing.T) {
	cases := [][]byte{
		[]byte(`{invalid}`),
		[]byte(`"unclosed`),
		{0xFF, 0xFE},
		{},
	}
	for _, payload := range cases {
		if err := validateJSONPayload(payload); err == nil {
			t.Errorf("invalid payload should fail: %s", payload)
		}
	}
}

func TestHandleOpenSessionThenExecute(t *testing.T) {
	h := newTestHandler(t)

	open := h.Handle(&RequestFrame{RequestID: 1, Command: CmdOpenSession, Label: "shell-1"})
	if open.Status != types.StatusOK {
		t.Fatalf("open status = %v, data=%s", open.Status, open.Data)
	}
	sessionID := binary.LittleEndian.Uint64(open.Data)

	query := []byte(`[1, [15, [[14, ["test"]], "authors"]]]`)
	exec := h.Handle(&RequestFrame{RequestID: 2, Command: CmdExecute, SessionID: sessionID, Payload: query})
	if exec.Status != types.StatusOK {
		t.Fatalf("execute status = %v, data=%s", exec.Status, exec.Data)
	}
}

func TestHandleExecuteWithoutSessionIsClientError(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Handle(&RequestFrame{RequestID: 1, Command: CmdExecute, SessionID: 0, Payload: []byte(`[1]`)})
	if resp.Status != types.StatusClientError {
		t.Fatalf("status = %v, want StatusClientError", resp.Status)
	}
}

func TestHandleCloseUnknownSessionIsClientError(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Handle(&RequestFrame{RequestID: 1, Command: CmdCloseSession, SessionID: 999})
	if resp.Status != types.StatusClientError {
		t.Fatalf("status = %v, want StatusClientError", resp.Status)
	}
}

func TestHandleIsIdempotentUnderDedupCache(t *testing.T) {
	h := newTestHandler(t)

	first := h.Handle(&RequestFrame{RequestID: 42, Command: CmdOpenSession, Label: "dup"})
	second := h.Handle(&RequestFrame{RequestID: 42, Command: CmdOpenSession, Label: "dup"})

	if string(first.Data) != string(second.Data) {
		t.Fatalf("retried request id produced a different session: %v vs %v", first.Data, second.Data)
	}
}

func TestHandleStats(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Handle(&RequestFrame{RequestID: 1, Command: CmdStats})
	if resp.Status != types.StatusOK || len(resp.Data) != 48 {
		t.Fatalf("stats response = %v, len=%d", resp.Status, len(resp.Data))
	}
}

func TestHandleServerInfo(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Handle(&RequestFrame{RequestID: 1, Command: CmdServerInfo})
	if resp.Status != types.StatusOK || len(resp.Data) == 0 {
		t.Fatalf("server info response = %v, data=%s", resp.Status, resp.Data)
	}
}

func TestHandleExecuteFailureIsTrackedAndSurfacedInServerInfo(t *testing.T) {
	h := newTestHandler(t)

	open := h.Handle(&RequestFrame{RequestID: 1, Command: CmdOpenSession, Label: "tracked"})
	sessionID := binary.LittleEndian.Uint64(open.Data)

	// Well-formed JSON, but the term's args are a string rather than an
	// array: a term parse failure, not a JSON-shape failure, so it reaches
	// the pool and back as an error.
	bad := []byte(`[1, [17, "not-an-array"]]`)
	exec := h.Handle(&RequestFrame{RequestID: 2, Command: CmdExecute, SessionID: sessionID, Payload: bad})
	if exec.Status == types.StatusOK {
		t.Fatalf("expected an error status for malformed term args, got %v", exec.Status)
	}

	info := h.Handle(&RequestFrame{RequestID: 3, Command: CmdServerInfo})
	if info.Status != types.StatusOK {
		t.Fatalf("server info status = %v", info.Status)
	}

	var parsed struct {
		Errors map[string]uint64 `json:"errors_by_category"`
	}
	if err := json.Unmarshal(info.Data, &parsed); err != nil {
		t.Fatalf("unmarshal server info: %v", err)
	}
	total := uint64(0)
	for _, count := range parsed.Errors {
		total += count
	}
	if total == 0 {
		t.Fatalf("expected at least one tracked error, got %+v", parsed.Errors)
	}
}

func TestHandleMetricsReflectsExecutedQuery(t *testing.T) {
	h := newTestHandler(t)

	open := h.Handle(&RequestFrame{RequestID: 1, Command: CmdOpenSession, Label: "metrics"})
	sessionID := binary.LittleEndian.Uint64(open.Data)

	query := []byte(`[1, [15, [[14, ["test"]], "authors"]]]`)
	h.Handle(&RequestFrame{RequestID: 2, Command: CmdExecute, SessionID: sessionID, Payload: query})

	resp := h.Handle(&RequestFrame{RequestID: 3, Command: CmdMetrics})
	if resp.Status != types.StatusOK {
		t.Fatalf("metrics status = %v", resp.Status)
	}
	if len(resp.Data) == 0 {
		t.Fatal("expected non-empty metrics exposition text")
	}
}

func TestPeekQueryTypeReadsLeadingElement(t *testing.T) {
	qt, ok := peekQueryType([]byte(`[4]`))
	if !ok || qt != types.QueryNoreplyWait {
		t.Fatalf("peekQueryType = %v, %v, want QueryNoreplyWait, true", qt, ok)
	}

	if _, ok := peekQueryType([]byte(`not json`)); ok {
		t.Fatal("expected peekQueryType to fail on malformed input")
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newTestHandler(t)

	resp := h.Handle(&RequestFrame{RequestID: 1, Command: 99})
	if resp.Status != types.StatusClientError {
		t.Fatalf("status = %v, want StatusClientError", resp.Status)
	}
}
