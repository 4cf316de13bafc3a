// Package types holds the small wire-visible value types shared across the
// query-ingestion subsystem's packages, kept separate to avoid import
// cycles between internal/term, internal/query, internal/pool and
// internal/ipc.
package types

import "time"

// QueryType is the outer envelope's query kind.
type QueryType int32

const (
	QueryStart       QueryType = 1
	QueryContinue    QueryType = 2
	QueryStop        QueryType = 3
	QueryNoreplyWait QueryType = 4
	QueryServerInfo  QueryType = 5
)

func (t QueryType) String() string {
	switch t {
	case QueryStart:
		return "START"
	case QueryContinue:
		return "CONTINUE"
	case QueryStop:
		return "STOP"
	case QueryNoreplyWait:
		return "NOREPLY_WAIT"
	case QueryServerInfo:
		return "SERVER_INFO"
	default:
		return "UNKNOWN"
	}
}

// Status is the IPC response status, mirroring the error kinds
// plus a success code.
type Status byte

const (
	StatusOK Status = iota
	StatusClientError
	StatusGeneric
	StatusArchiveError
	StatusPoolStopped
)

// SessionStatus tracks whether a registered session is still servicing
// requests or has been torn down.
type SessionStatus byte

const (
	SessionActive SessionStatus = iota + 1
	SessionClosed
)

// SessionEntry is a session catalog record, grounded on the storage engine's
// CatalogEntry shape (id, name, created-at, status) but naming a client
// session instead of an on-disk database.
type SessionEntry struct {
	SessionID uint64
	Label     string // client-supplied or generated session label
	CreatedAt time.Time
	Status    SessionStatus
}

// Stats reports subsystem-wide counters, exposed over IPC CmdStats and by
// the Prometheus exporter.
type Stats struct {
	ActiveSessions     int
	TotalQueries       uint64
	OutstandingQueries uint64
	ParseErrors        uint64
	ArchiveErrors      uint64
	TermArenaBytes     uint64
	TermArenaCapacity  uint64
}
