// Package pool manages the set of live client sessions: it opens and
// closes sessions against the durable session catalog, pins each open
// session to a single cooperative worker goroutine bounded by an ants
// pool, and hands queries to the right session's worker.
package pool

import (
	"errors"

	"github.com/kartikbazzad/queryterm/internal/catalog"
	"github.com/kartikbazzad/queryterm/internal/config"
	"github.com/kartikbazzad/queryterm/internal/logger"
	"github.com/kartikbazzad/queryterm/internal/memory"
	"github.com/kartikbazzad/queryterm/internal/query"
	"github.com/kartikbazzad/queryterm/internal/queryid"
	"github.com/kartikbazzad/queryterm/internal/types"
	"github.com/panjf2000/ants/v2"
)

var (
	ErrPoolStopped     = errors.New("session pool is stopped")
	ErrSessionNotFound = errors.New("session not found")
)

// Request is one query submitted against an open session.
type Request struct {
	SessionID uint64
	Raw       []byte // the JSON query envelope
	Response  chan Response
}

type Response struct {
	Status types.Status
	Data   []byte
	Error  error
}

// Pool owns every currently-open Session and the ants pool bounding their
// worker goroutines. Session lifecycle (open/close) is serialized through
// Pool's own mutex; a session's query traffic, once open, only ever runs
// on that session's own pinned worker goroutine.
type Pool struct {
	sessions map[uint64]*Session
	catalog  *catalog.Catalog
	workers  *ants.Pool
	caps     *memory.Caps
	buffers  *memory.BufferPool
	cfg      *config.Config
	logger   *logger.Logger
	stopped  bool
}

func NewPool(cfg *config.Config, log *logger.Logger) (*Pool, error) {
	memCaps := memory.NewCaps(cfg.Session.GlobalArenaCapacityMB, cfg.Session.PerSessionArenaLimitMB)
	bufferPool := memory.NewBufferPool(cfg.Session.BufferSizes)
	cat := catalog.NewCatalog(cfg.DataDir+"/.catalog", log)

	workers, err := ants.NewPool(cfg.Scheduler.MaxPinnedWorkers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}

	return &Pool{
		sessions: make(map[uint64]*Session),
		catalog:  cat,
		workers:  workers,
		caps:     memCaps,
		buffers:  bufferPool,
		cfg:      cfg,
		logger:   log,
	}, nil
}

func (p *Pool) Start() error {
	if err := p.catalog.Load(); err != nil {
		return err
	}
	p.logger.Info("session pool started, max pinned workers=%d", p.cfg.Scheduler.MaxPinnedWorkers)
	return nil
}

func (p *Pool) Stop() {
	p.stopped = true
	for id, s := range p.sessions {
		s.close()
		p.caps.UnregisterSession(id)
	}
	p.workers.Release()
	p.catalog.CloseFile()
	p.logger.Info("session pool stopped")
}

// OpenSession creates a session entry in the catalog and starts its
// pinned worker loop on the ants pool. Submitting to the ants pool blocks
// until a worker slot is free, which is exactly how the pool's cap on
// concurrent pinned workers is enforced.
func (p *Pool) OpenSession(label string) (*Session, error) {
	if p.stopped {
		return nil, ErrPoolStopped
	}

	id, err := p.catalog.Create(label)
	if err != nil {
		return nil, err
	}

	p.caps.RegisterSession(id, p.cfg.Session.PerSessionArenaLimitMB)

	s := newSession(id, label, p.caps)
	p.sessions[id] = s

	if err := p.workers.Submit(s.run); err != nil {
		delete(p.sessions, id)
		p.caps.UnregisterSession(id)
		return nil, err
	}

	p.logger.Info("session opened: id=%d label=%q", id, label)
	return s, nil
}

func (p *Pool) CloseSession(sessionID uint64) error {
	s, exists := p.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	s.close()
	delete(p.sessions, sessionID)
	p.caps.UnregisterSession(sessionID)
	p.caps.Free(sessionID, p.caps.SessionUsage(sessionID))
	return p.catalog.Close(sessionID)
}

// Execute hands a raw query envelope to sessionID's pinned worker. The
// call itself never blocks on query execution: the response arrives on
// req.Response once the session's worker processes it in arrival order.
func (p *Pool) Execute(req *Request) {
	if p.stopped {
		req.Response <- Response{Status: types.StatusPoolStopped, Error: ErrPoolStopped}
		return
	}

	s, exists := p.sessions[req.SessionID]
	if !exists {
		req.Response <- Response{Status: types.StatusClientError, Error: ErrSessionNotFound}
		return
	}

	s.submit(req)
}

func (p *Pool) Stats() *types.Stats {
	var outstanding uint64
	var arenaBytes uint64
	for id, s := range p.sessions {
		outstanding += s.allocator.NextID() - s.allocator.Oldest()
		arenaBytes += p.caps.SessionUsage(id)
	}
	return &types.Stats{
		ActiveSessions:     len(p.sessions),
		OutstandingQueries: outstanding,
		TermArenaBytes:     arenaBytes,
		TermArenaCapacity:  p.caps.GlobalCapacity(),
	}
}

// Session is one client connection's cooperative execution context: a
// single pinned worker goroutine, its own query-id allocator, and the
// queue of requests waiting to run on it in arrival order.
type Session struct {
	ID        uint64
	Label     string
	allocator *queryid.Allocator
	caps      *memory.Caps
	inbox     chan *Request
	done      chan struct{}
}

func newSession(id uint64, label string, caps *memory.Caps) *Session {
	return &Session{
		ID:        id,
		Label:     label,
		allocator: queryid.New(),
		caps:      caps,
		inbox:     make(chan *Request, 64),
		done:      make(chan struct{}),
	}
}

func (s *Session) submit(req *Request) {
	select {
	case s.inbox <- req:
	case <-s.done:
		req.Response <- Response{Status: types.StatusPoolStopped, Error: ErrPoolStopped}
	}
}

func (s *Session) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
		s.allocator.Teardown()
	}
}

// run is the session's pinned worker loop, submitted once to the pool's
// ants.Pool and never re-entered: every query for this session executes
// here, one at a time, matching the single-threaded-per-session scheduling
// requirement.
func (s *Session) run() {
	for {
		select {
		case req := <-s.inbox:
			s.handle(req)
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Session) drain() {
	for {
		select {
		case req := <-s.inbox:
			req.Response <- Response{Status: types.StatusPoolStopped, Error: ErrPoolStopped}
		default:
			return
		}
	}
}

func (s *Session) handle(req *Request) {
	env, err := query.New(req.Raw, s.allocator)
	if err != nil {
		req.Response <- Response{Status: types.StatusClientError, Error: err}
		return
	}
	defer env.Release(s.allocator)

	storage, err := env.ParseTerms(req.Raw, nil)
	if err != nil {
		req.Response <- Response{Status: types.StatusGeneric, Error: err}
		return
	}

	// Evaluation is outside this subsystem's scope; a successfully parsed
	// query reports OK with no payload.
	_ = storage
	req.Response <- Response{Status: types.StatusOK}
}
