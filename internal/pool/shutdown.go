package pool

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kartikbazzad/queryterm/internal/logger"
)

// ShutdownTimeout is the default timeout for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// GracefulShutdown drains outstanding queries on every open session
// before releasing the pool's ants workers and closing the catalog.
type GracefulShutdown struct {
	pool         *Pool
	logger       *logger.Logger
	timeout      time.Duration
	shutdownCh   chan os.Signal
	mu           sync.Mutex
	shuttingDown bool
}

func NewGracefulShutdown(pool *Pool, log *logger.Logger) *GracefulShutdown {
	return &GracefulShutdown{
		pool:       pool,
		logger:     log,
		timeout:    ShutdownTimeout,
		shutdownCh: make(chan os.Signal, 1),
	}
}

func (gs *GracefulShutdown) StartSignalHandling() {
	signal.Notify(gs.shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-gs.shutdownCh
		gs.logger.Info("received shutdown signal: %v", sig)
		gs.Shutdown()
	}()
}

func (gs *GracefulShutdown) Shutdown() {
	gs.mu.Lock()
	if gs.shuttingDown {
		gs.mu.Unlock()
		return
	}
	gs.shuttingDown = true
	gs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	gs.logger.Info("starting graceful shutdown (timeout: %v)", gs.timeout)

	gs.pool.stopped = true
	gs.logger.Info("stopped accepting new sessions and queries")

	drainCtx, drainCancel := context.WithTimeout(ctx, 20*time.Second)
	defer drainCancel()

	if err := gs.drainSessions(drainCtx); err != nil {
		gs.logger.Warn("session drain incomplete: %v", err)
	}

	gs.pool.Stop()
	gs.logger.Info("graceful shutdown complete")
}

// drainSessions waits, session by session, for every query id handed out
// so far to be released before letting Stop tear the pool down. Since each
// session runs on its own pinned worker, waiting on noreply_wait-style
// watermark equality per session is the drain signal: no query below
// NextID remains outstanding.
func (gs *GracefulShutdown) drainSessions(ctx context.Context) error {
	gs.logger.Info("draining %d open sessions...", len(gs.pool.sessions))

	done := make(chan struct{})
	go func() {
		for _, s := range gs.pool.sessions {
			s.allocator.Wait(s.allocator.NextID())
		}
		close(done)
	}()

	select {
	case <-done:
		gs.logger.Info("all sessions drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
