package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kartikbazzad/queryterm/internal/config"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
	"github.com/kartikbazzad/queryterm/internal/logger"
	"github.com/kartikbazzad/queryterm/internal/metrics"
	"github.com/kartikbazzad/queryterm/internal/pool"
	"github.com/kartikbazzad/queryterm/internal/types"
)

var errInvalidJSON = errors.New("payload is not valid JSON")

// dedupCacheSize bounds how many recently-completed request ids a
// connection remembers, so a client retrying a request after a dropped
// response doesn't re-execute a non-idempotent CmdOpenSession or CmdExecute.
const dedupCacheSize = 4096

// Handler turns decoded RequestFrames into pool operations. One Handler is
// shared by every connection; per-connection retry-dedup state lives in the
// dedup cache keyed by RequestID, since request ids are only unique within
// a connection's own sequence.
type Handler struct {
	pool       *pool.Pool
	cfg        *config.Config
	logger     *logger.Logger
	dedup      *lru.Cache[uint64, *ResponseFrame]
	classifier *qerrors.Classifier
	errors     *qerrors.ErrorTracker
	metrics    *metrics.PrometheusExporter
}

func NewHandler(p *pool.Pool, cfg *config.Config, log *logger.Logger) *Handler {
	cache, err := lru.New[uint64, *ResponseFrame](dedupCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which dedupCacheSize never is.
		panic(err)
	}
	return &Handler{
		pool:       p,
		cfg:        cfg,
		logger:     log,
		dedup:      cache,
		classifier: qerrors.NewClassifier(),
		errors:     qerrors.NewErrorTracker(),
		metrics:    metrics.NewPrometheusExporter(),
	}
}

func (h *Handler) Handle(frame *RequestFrame) *ResponseFrame {
	if cached, ok := h.dedup.Get(frame.RequestID); ok {
		return cached
	}

	response := h.dispatch(frame)
	h.dedup.Add(frame.RequestID, response)
	return response
}

func (h *Handler) dispatch(frame *RequestFrame) *ResponseFrame {
	response := &ResponseFrame{RequestID: frame.RequestID}

	switch frame.Command {
	case CmdOpenSession:
		s, err := h.pool.OpenSession(frame.Label)
		if err != nil {
			response.Status = types.StatusClientError
			response.Data = []byte(err.Error())
			return response
		}
		response.Status = types.StatusOK
		response.Data = make([]byte, SessionIDSize)
		binary.LittleEndian.PutUint64(response.Data, s.ID)

	case CmdCloseSession:
		if frame.SessionID == 0 {
			response.Status = types.StatusClientError
			response.Data = []byte("invalid session id")
			return response
		}
		if err := h.pool.CloseSession(frame.SessionID); err != nil {
			response.Status = types.StatusClientError
			response.Data = []byte(err.Error())
			return response
		}
		response.Status = types.StatusOK

	case CmdExecute:
		if frame.SessionID == 0 || len(frame.Payload) == 0 {
			response.Status = types.StatusClientError
			response.Data = []byte("invalid query envelope")
			return response
		}
		if err := validateJSONPayload(frame.Payload); err != nil {
			response.Status = types.StatusClientError
			response.Data = []byte(err.Error())
			return response
		}

		queryType, _ := peekQueryType(frame.Payload)

		req := &pool.Request{
			SessionID: frame.SessionID,
			Raw:       frame.Payload,
			Response:  make(chan pool.Response, 1),
		}
		start := time.Now()
		h.pool.Execute(req)
		resp := <-req.Response
		elapsed := time.Since(start)

		response.Status = resp.Status
		h.metrics.RecordQuery(queryType, resp.Status, elapsed)
		if resp.Error != nil {
			category := h.classifier.Classify(resp.Error)
			h.errors.RecordError(resp.Error, category)
			h.metrics.RecordError(category, qerrors.KindOf(resp.Error))
			response.Data = []byte(resp.Error.Error())
		} else {
			response.Data = resp.Data
		}
		if queryType == types.QueryNoreplyWait {
			h.metrics.RecordNoreplyWait(elapsed)
		}

	case CmdStats:
		response.Status = types.StatusOK
		response.Data = serializeStats(h.pool.Stats())

	case CmdServerInfo:
		response.Status = types.StatusOK
		response.Data = serializeServerInfo(h.cfg, h.errors)

	case CmdMetrics:
		response.Status = types.StatusOK
		response.Data = []byte(h.metrics.Export(h.pool.Stats()))

	default:
		response.Status = types.StatusClientError
		response.Data = []byte("unknown command")
	}

	return response
}

// peekQueryType reads just the envelope's leading QueryType element without
// parsing the rest of the term tree, so metrics can be labeled before the
// pool does the expensive work.
func peekQueryType(payload []byte) (types.QueryType, bool) {
	var head []json.RawMessage
	if err := json.Unmarshal(payload, &head); err != nil || len(head) == 0 {
		return 0, false
	}
	var qt int32
	if err := json.Unmarshal(head[0], &qt); err != nil {
		return 0, false
	}
	return types.QueryType(qt), true
}

func validateJSONPayload(payload []byte) error {
	if len(payload) == 0 {
		return errInvalidJSON
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return errInvalidJSON
	}
	return nil
}

func serializeStats(stats *types.Stats) []byte {
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint64(buf[0:], uint64(stats.ActiveSessions))
	binary.LittleEndian.PutUint64(buf[8:], stats.TotalQueries)
	binary.LittleEndian.PutUint64(buf[16:], stats.OutstandingQueries)
	binary.LittleEndian.PutUint64(buf[24:], stats.ParseErrors)
	binary.LittleEndian.PutUint64(buf[32:], stats.ArchiveErrors)
	binary.LittleEndian.PutUint64(buf[40:], stats.TermArenaBytes)
	return buf
}

// serverInfo is the CmdServerInfo response body: the socket path, the
// connection limit, the debug flag, and the error-count breakdown a
// monitoring client would poll to catch a codec regression before it
// shows up as a wave of client-visible failures.
type serverInfo struct {
	SocketPath string            `json:"socket_path"`
	MaxConns   int               `json:"max_connections"`
	Debug      bool              `json:"debug"`
	Errors     map[string]uint64 `json:"errors_by_category,omitempty"`
	Critical   int               `json:"critical_alerts"`
}

func serializeServerInfo(cfg *config.Config, tracker *qerrors.ErrorTracker) []byte {
	info := serverInfo{
		SocketPath: cfg.IPC.SocketPath,
		MaxConns:   cfg.IPC.MaxConnections,
		Debug:      cfg.IPC.DebugMode,
	}
	if tracker != nil {
		info.Errors = map[string]uint64{
			"transient":  tracker.GetErrorCount(qerrors.ErrorTransient),
			"permanent":  tracker.GetErrorCount(qerrors.ErrorPermanent),
			"critical":   tracker.GetErrorCount(qerrors.ErrorCritical),
			"validation": tracker.GetErrorCount(qerrors.ErrorValidation),
			"network":    tracker.GetErrorCount(qerrors.ErrorNetwork),
		}
		info.Critical = len(tracker.GetCriticalAlerts())
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil
	}
	return data
}
