package ipc

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kartikbazzad/queryterm/internal/config"
	qerrors "github.com/kartikbazzad/queryterm/internal/errors"
	"github.com/kartikbazzad/queryterm/internal/logger"
	"github.com/kartikbazzad/queryterm/internal/pool"
	"github.com/panjf2000/ants/v2"
)

type Server struct {
	cfg         *config.Config
	logger      *logger.Logger
	pool        *pool.Pool
	handler     *Handler
	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	connections map[net.Conn]uuid.UUID
	connMu      sync.Mutex
	connPool    *ants.Pool // bounds concurrent connection handlers; nil = unbounded

	acceptRetry    *qerrors.RetryController
	acceptClassify *qerrors.Classifier
}

func NewServer(cfg *config.Config, log *logger.Logger) (*Server, error) {
	p, err := pool.NewPool(cfg, log)
	if err != nil {
		return nil, err
	}
	h := NewHandler(p, cfg, log)

	return &Server{
		cfg:            cfg,
		logger:         log,
		pool:           p,
		handler:        h,
		connections:    make(map[net.Conn]uuid.UUID),
		acceptRetry:    qerrors.NewRetryController(),
		acceptClassify: qerrors.NewClassifier(),
	}, nil
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.pool.Start(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.cfg.IPC.SocketPath); err != nil {
		s.logger.Warn("failed to remove old socket: %v", err)
	}

	listener, err := net.Listen("unix", s.cfg.IPC.SocketPath)
	if err != nil {
		return err
	}

	s.listener = listener
	s.running = true

	if s.cfg.IPC.MaxConnections > 0 {
		connPool, err := ants.NewPool(s.cfg.IPC.MaxConnections, ants.WithPanicHandler(func(v any) {
			s.logger.Error("connection handler panic: %v", v)
		}))
		if err == nil {
			s.connPool = connPool
		}
	}

	s.logger.Info("ipc server listening on %s", s.cfg.IPC.SocketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	if s.listener != nil {
		s.listener.Close()
	}

	s.pool.Stop()
	s.running = false
	s.mu.Unlock()

	s.connMu.Lock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()

	if s.connPool != nil {
		_ = s.connPool.ReleaseTimeout(3 * time.Second)
		s.connPool = nil
	}

	s.logger.Info("ipc server stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		var conn net.Conn
		err := s.acceptRetry.Retry(func() error {
			c, acceptErr := s.listener.Accept()
			conn = c
			return acceptErr
		}, s.acceptClassify)
		if err != nil {
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			s.logger.Error("accept error: %v", err)
			continue
		}

		connID := uuid.New()
		s.connMu.Lock()
		s.connections[conn] = connID
		s.connMu.Unlock()

		s.wg.Add(1)
		if s.connPool != nil {
			conn := conn
			if err := s.connPool.Submit(func() {
				defer s.wg.Done()
				s.handleConnection(conn, connID)
			}); err != nil {
				s.wg.Done()
				conn.Close()
				s.connMu.Lock()
				delete(s.connections, conn)
				s.connMu.Unlock()
				s.logger.Error("failed to submit connection handler: %v", err)
			}
		} else {
			go func() {
				defer s.wg.Done()
				s.handleConnection(conn, connID)
			}()
		}
	}
}

func (s *Server) handleConnection(conn net.Conn, connID uuid.UUID) {
	defer func() {
		conn.Close()
		s.connMu.Lock()
		delete(s.connections, conn)
		s.connMu.Unlock()
	}()

	s.logger.Debug("connection %s opened from %s", connID, conn.RemoteAddr())

	for {
		data, err := readFrame(conn)
		if err != nil {
			if err != net.ErrClosed {
				s.logger.Debug("connection %s closed: %v", connID, err)
			}
			return
		}

		frame, err := DecodeRequest(data)
		if err != nil {
			s.logger.Error("connection %s: failed to decode request: %v", connID, err)
			continue
		}

		response := s.handler.Handle(frame)
		responseData, err := EncodeResponse(response)
		if err != nil {
			s.logger.Error("connection %s: failed to encode response: %v", connID, err)
			continue
		}

		if err := writeFrame(conn, responseData); err != nil {
			s.logger.Error("connection %s: failed to write response: %v", connID, err)
			return
		}
	}
}
