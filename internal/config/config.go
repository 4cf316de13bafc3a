package config

import "time"

// Config configures one query-ingestion node: how it listens for client
// connections, how it bounds per-session term-arena memory, and how it
// schedules pinned session workers.
type Config struct {
	DataDir string

	Session   SessionConfig
	Term      TermConfig
	IPC       IPCConfig
	Scheduler SchedulerConfig
}

// SessionConfig bounds the term-arena memory a session's outstanding
// queries may hold live at once, and the node-wide ceiling across every
// open session.
type SessionConfig struct {
	GlobalArenaCapacityMB  uint64
	PerSessionArenaLimitMB uint64
	BufferSizes            []uint64
	IdleTimeout            time.Duration
	MaxOpenSessions        int
}

// TermConfig holds parsing and serialization settings. No package reads
// these fields: the parser applies no depth, array-size or time limit, and
// the serializer always writes the latest version.
type TermConfig struct {
	MaxTermDepth   int           // maximum AST depth (not enforced)
	MaxArraySize   int           // maximum DATUM array literal length (not enforced)
	DefaultVersion int32         // cluster-version tag (not read)
	ParseTimeout   time.Duration // wall-clock budget for parsing one query (not enforced)
}

// IPCConfig configures the socket the node accepts session connections on.
type IPCConfig struct {
	SocketPath     string
	EnableTCP      bool
	TCPPort        int
	MaxConnections int
	DebugMode      bool
}

// SchedulerConfig bounds the ants pool backing pinned per-session workers.
type SchedulerConfig struct {
	MaxPinnedWorkers int           // ants pool size: max sessions runnable concurrently
	WorkerExpiry     time.Duration // idle goroutine expiry; not passed to the ants pool
	PreAlloc         bool
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Session: SessionConfig{
			GlobalArenaCapacityMB:  1024,
			PerSessionArenaLimitMB: 64,
			BufferSizes:            []uint64{1024, 4096, 16384, 65536, 262144},
			IdleTimeout:            5 * time.Minute,
			MaxOpenSessions:        1024,
		},
		Term: TermConfig{
			MaxTermDepth:   512,
			MaxArraySize:   100000,
			DefaultVersion: 0,
			ParseTimeout:   5 * time.Second,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/queryterm.sock",
			EnableTCP:  false,
			TCPPort:    0,
			DebugMode:  false,
		},
		Scheduler: SchedulerConfig{
			MaxPinnedWorkers: 256,
			WorkerExpiry:     time.Second,
			PreAlloc:         false,
		},
	}
}
